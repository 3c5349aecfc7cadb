package federation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hanpama/fedgraph/internal/executor"
	"github.com/hanpama/fedgraph/internal/schema"
)

// Names of the federation plumbing added to a subgraph schema.
const (
	AnyScalar          = "_Any"
	FieldSetScalar     = "_FieldSet"
	EntityUnion        = "_Entity"
	ServiceType        = "_Service"
	EntitiesField      = "_entities"
	ServiceField       = "_service"
	SDLField           = "sdl"
	RepresentationsArg = "representations"
)

// Options configures Assembly.Build.
type Options struct {
	// NameResolution binds Go types to schema names for resolvers
	// registered with ByType.
	NameResolution NameResolution
	// RequireEntities fails the build when no type declares a key.
	RequireEntities bool
	// MaxConcurrency bounds concurrent entity resolvers per batch; <= 0 is
	// unbounded.
	MaxConcurrency int
}

// Assembly collects federation declarations and resolvers while a subgraph
// is being put together.
type Assembly struct {
	registry *RegistryBuilder
	partials []PartialTypeMetadata
}

func NewAssembly() *Assembly { return &Assembly{} }

// RegistryBuilder returns the resolver registry builder, creating it on first
// use.
func (a *Assembly) RegistryBuilder() *RegistryBuilder {
	if a.registry == nil {
		a.registry = NewRegistryBuilder()
	}
	return a.registry
}

// RegisterEntityResolver registers fn for the entity type selected by sel.
func (a *Assembly) RegisterEntityResolver(sel Selector, fn ResolverFn) {
	a.RegistryBuilder().Register(sel, fn)
}

// AddMetadata adds declarations in source order.
func (a *Assembly) AddMetadata(partials ...PartialTypeMetadata) {
	a.partials = append(a.partials, partials...)
}

// Subgraph is a federation-enabled schema with its runtime.
type Subgraph struct {
	// Runtime serves _service and _entities and delegates everything else.
	Runtime executor.Runtime
	// Schema is the executable schema including the federation plumbing.
	Schema *schema.Schema
	// SDL is the annotated schema returned by _service.sdl.
	SDL string
	// Entities are the _Entity union members.
	Entities []string
	Metadata map[string]*TypeMetadata
	Registry *Registry
}

// Plan is the merged metadata and the _Entity union of an assembly for one
// schema. Resolvers may still be registered before Plan.Build.
type Plan struct {
	assembly *Assembly
	schema   *schema.Schema
	types    []*TypeMetadata // sorted by name

	Metadata map[string]*TypeMetadata
	Entities []string
}

// Plan merges the declarations and computes the _Entity union for sch.
func (a *Assembly) Plan(sch *schema.Schema, requireEntities bool) (*Plan, error) {
	metadata, err := MergeAll(a.partials)
	if err != nil {
		return nil, err
	}
	if err := checkMetadata(sch, metadata); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(metadata))
	for name := range metadata {
		names = append(names, name)
	}
	sort.Strings(names)
	types := make([]*TypeMetadata, len(names))
	for i, name := range names {
		types[i] = metadata[name]
	}

	entities, err := BuildEntityUnion(types, UnionOptions{
		Roots:           []string{sch.QueryType, sch.MutationType, sch.SubscriptionType},
		RequireEntities: requireEntities,
	})
	if err != nil {
		return nil, err
	}
	return &Plan{assembly: a, schema: sch, types: types, Metadata: metadata, Entities: entities}, nil
}

// Build plans the assembly for sch and builds it. Any error aborts the
// build; sch is never modified.
func (a *Assembly) Build(base executor.Runtime, sch *schema.Schema, opts Options) (*Subgraph, error) {
	p, err := a.Plan(sch, opts.RequireEntities)
	if err != nil {
		return nil, err
	}
	return p.Build(base, opts)
}

// Build finalizes the resolver registry and wraps base and the planned
// schema. opts.RequireEntities was already applied by Plan.
func (p *Plan) Build(base executor.Runtime, opts Options) (*Subgraph, error) {
	registry, err := p.assembly.RegistryBuilder().Finalize(opts.NameResolution)
	if err != nil {
		return nil, err
	}

	annotated := p.schema.Clone()
	for _, md := range p.types {
		annotate(annotated.Types[md.TypeName], md)
	}
	sdl := schema.Render(annotated)

	executable := annotated.Clone()
	queryType := extend(executable, p.Entities)

	return &Subgraph{
		Runtime:  newRuntime(base, NewDispatcher(registry, opts.MaxConcurrency), sdl, queryType),
		Schema:   executable,
		SDL:      sdl,
		Entities: p.Entities,
		Metadata: p.Metadata,
		Registry: registry,
	}, nil
}

// checkMetadata rejects declarations for unknown types or fields and keys on
// types that are not objects.
func checkMetadata(sch *schema.Schema, metadata map[string]*TypeMetadata) error {
	var errs []error
	for name, md := range metadata {
		t := sch.Types[name]
		if t == nil {
			errs = append(errs, fmt.Errorf("federation: metadata declared for unknown type %q", name))
			continue
		}
		if md.IsEntity() && t.Kind != schema.TypeKindObject {
			errs = append(errs, fmt.Errorf("federation: @key on %s %q, only object types can be entities", t.Kind, name))
		}
		for field := range md.Fields {
			if t.Field(field) == nil {
				errs = append(errs, fmt.Errorf("federation: marker declared for unknown field %s.%s", name, field))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errors.Join(errs...)
}

// annotate applies the merged metadata to t as printable directives.
func annotate(t *schema.Type, md *TypeMetadata) {
	if t == nil {
		return
	}
	t.Extension = t.Extension || md.Extends
	for _, key := range md.Keys {
		t.AddDirective(schema.NewAppliedDirective("key", "fields", key.FieldSet))
	}
	fieldNames := make([]string, 0, len(md.Fields))
	for name := range md.Fields {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)
	for _, name := range fieldNames {
		f := t.Field(name)
		if f == nil {
			continue
		}
		marker := md.Fields[name]
		if marker.External {
			f.AddDirective(schema.NewAppliedDirective("external"))
		}
		if marker.Requires != "" {
			f.AddDirective(schema.NewAppliedDirective("requires", "fields", marker.Requires))
		}
		if marker.Provides != "" {
			f.AddDirective(schema.NewAppliedDirective("provides", "fields", marker.Provides))
		}
	}
}

// extend adds the federation scalars, directives, _Service, _Entity and the
// root fields to s. It returns the query type name.
func extend(s *schema.Schema, entities []string) string {
	if s.Types["String"] == nil {
		s.AddBuiltins()
	}
	if s.QueryType == "" {
		s.SetQueryType("Query")
	}
	query := s.Types[s.QueryType]
	if query == nil {
		query = schema.NewType(s.QueryType, schema.TypeKindObject, "")
		s.AddType(query)
	}

	s.AddType(schema.NewType(AnyScalar, schema.TypeKindScalar, "")).
		AddType(schema.NewType(FieldSetScalar, schema.TypeKindScalar, ""))
	for _, d := range federationDirectives() {
		s.AddDirective(d)
	}

	service := schema.NewType(ServiceType, schema.TypeKindObject, "")
	service.AddField(schema.NewField(SDLField, "", schema.NonNullType(schema.NamedType("String"))))
	s.AddType(service)
	query.AddField(schema.NewField(ServiceField, "", schema.NonNullType(schema.NamedType(ServiceType))))

	if len(entities) > 0 {
		union := schema.NewType(EntityUnion, schema.TypeKindUnion, "")
		for _, name := range entities {
			union.AddPossibleType(name)
		}
		s.AddType(union)
		query.AddField(schema.NewField(EntitiesField, "",
			schema.NonNullType(schema.ListType(schema.NamedType(EntityUnion)))).
			AddArgument(schema.NewInputValue(RepresentationsArg, "",
				schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType(AnyScalar)))))).
			SetAsync(true))
	}
	return s.QueryType
}

func federationDirectives() []*schema.Directive {
	fieldSet := func() *schema.InputValue {
		return schema.NewInputValue("fields", "", schema.NonNullType(schema.NamedType(FieldSetScalar)))
	}
	return []*schema.Directive{
		schema.NewDirective("key", "").SetRepeatable(true).AddLocation("OBJECT", "INTERFACE").AddArgument(fieldSet()),
		schema.NewDirective("extends", "").AddLocation("OBJECT", "INTERFACE"),
		schema.NewDirective("external", "").AddLocation("FIELD_DEFINITION"),
		schema.NewDirective("requires", "").AddLocation("FIELD_DEFINITION").AddArgument(fieldSet()),
		schema.NewDirective("provides", "").AddLocation("FIELD_DEFINITION").AddArgument(fieldSet()),
	}
}

// IsFederationDirective reports whether name is one of the directives the
// subgraph defines itself.
func IsFederationDirective(name string) bool {
	switch name {
	case "key", "extends", "external", "requires", "provides":
		return true
	}
	return false
}
