package federation

import (
	"fmt"
	"reflect"
	"sort"
)

// Selector identifies the entity type a resolver is registered for, either by
// schema name or by a Go type bound to a schema name later.
type Selector struct {
	name string
	typ  reflect.Type
}

// ByName selects a schema type by name.
func ByName(name string) Selector { return Selector{name: name} }

// ByType selects the schema type bound to t. Pointer types select their
// element type.
func ByType(t reflect.Type) Selector {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return Selector{typ: t}
}

// TypeOf is ByType for a type parameter.
func TypeOf[T any]() Selector {
	return ByType(reflect.TypeOf((*T)(nil)).Elem())
}

// IsDeferred reports whether the selector still needs a name binding.
func (s Selector) IsDeferred() bool { return s.typ != nil }

func (s Selector) String() string {
	if s.typ != nil {
		return "type " + s.typ.String()
	}
	return s.name
}

// ResolverFn resolves one representation. A nil result means not found.
type ResolverFn func(rc *ResolutionContext) (any, error)

// ResolverConfig is a registration waiting for Finalize.
type ResolverConfig struct {
	Selector Selector
	Resolve  ResolverFn
}

// NameResolution maps a Go type to its schema type name.
type NameResolution func(t reflect.Type) (string, bool)

// RegistryBuilder collects resolver registrations during schema assembly.
type RegistryBuilder struct {
	configs []ResolverConfig
}

func NewRegistryBuilder() *RegistryBuilder { return &RegistryBuilder{} }

// Register appends a registration. Registering the same type again replaces
// the earlier resolver at Finalize.
func (b *RegistryBuilder) Register(selector Selector, fn ResolverFn) {
	b.configs = append(b.configs, ResolverConfig{Selector: selector, Resolve: fn})
}

// Configs returns the registrations in order.
func (b *RegistryBuilder) Configs() []ResolverConfig {
	return append([]ResolverConfig(nil), b.configs...)
}

// Finalize resolves every selector and returns the immutable registry. When
// several registrations resolve to the same name, the last one wins.
func (b *RegistryBuilder) Finalize(names NameResolution) (*Registry, error) {
	resolvers := make(map[string]ResolverFn, len(b.configs))
	for _, cfg := range b.configs {
		name := cfg.Selector.name
		if cfg.Selector.IsDeferred() {
			var ok bool
			if names != nil {
				name, ok = names(cfg.Selector.typ)
			}
			if !ok || name == "" {
				return nil, &UnresolvableRuntimeTypeError{Type: cfg.Selector.typ}
			}
		}
		if name == "" {
			return nil, fmt.Errorf("federation: entity resolver registered with an empty type name")
		}
		if cfg.Resolve == nil {
			return nil, fmt.Errorf("federation: nil entity resolver for %s", cfg.Selector)
		}
		resolvers[name] = cfg.Resolve
	}
	return &Registry{resolvers: resolvers}, nil
}

// Registry is the finalized, read-only type name to resolver mapping.
type Registry struct {
	resolvers map[string]ResolverFn
}

// Lookup returns the resolver of typeName.
func (r *Registry) Lookup(typeName string) (ResolverFn, bool) {
	if r == nil {
		return nil, false
	}
	fn, ok := r.resolvers[typeName]
	return fn, ok
}

// TypeNames returns the registered type names in sorted order.
func (r *Registry) TypeNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
