package ir

import (
	"slices"
	"sort"

	language "github.com/hanpama/fedgraph/internal/language"
)

// checkImplementations validates every `implements` clause and records the
// implementing objects on each interface.
func (b *builder) checkImplementations() {
	names := make([]string, 0, len(b.types))
	for name := range b.types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := b.types[name]
		for _, iname := range def.Interfaces {
			iface := b.types[iname]
			switch {
			case iface == nil:
				b.report(def.pos, "Interface %q not found for %s %q", iname, kindName(def.Kind), name)
				continue
			case iface.Kind != language.Interface:
				b.report(def.pos, "Type %q is not an interface", iname)
				continue
			}
			b.checkImplements(def, iface)
			if def.Kind == language.Object {
				iface.Implementations = append(iface.Implementations, name)
			}
		}
	}
}

func (b *builder) checkImplements(def, iface *Definition) {
	kind := kindName(def.Kind)
	for _, inherited := range iface.Interfaces {
		if !slices.Contains(def.Interfaces, inherited) {
			b.report(def.pos, "%s %q must also implement interface %q (required by interface %q)", kind, def.Name, inherited, iface.Name)
		}
	}

	for _, want := range iface.Fields {
		got := def.Field(want.Name)
		if got == nil {
			b.report(def.pos, "%s %q is missing field %q required by interface %q", kind, def.Name, want.Name, iface.Name)
			continue
		}
		for _, arg := range want.Args {
			have := got.Arg(arg.Name)
			switch {
			case have == nil:
				b.report(def.pos, "Field %s.%s is missing argument %q required by interface %q", def.Name, got.Name, arg.Name, iface.Name)
			case have.Type.String() != arg.Type.String():
				b.report(def.pos, "Argument %q of field %s.%s has type %s but interface %q expects %s",
					arg.Name, def.Name, got.Name, have.Type, iface.Name, arg.Type)
			}
		}
		for _, arg := range got.Args {
			if want.Arg(arg.Name) == nil && arg.Type.NonNull {
				b.report(def.pos, "Additional argument %q of field %s.%s must be nullable", arg.Name, def.Name, got.Name)
			}
		}
		if !b.covariant(got.Type, want.Type) {
			b.report(def.pos, "Field %s.%s has type %s but interface %q expects %s (or a subtype)",
				def.Name, got.Name, got.Type, iface.Name, want.Type)
		}
	}
}

// covariant reports whether a field of type sub may implement a field of
// type super.
func (b *builder) covariant(sub, super *language.Type) bool {
	if sub.NonNull {
		return b.covariant(nullable(sub), nullable(super))
	}
	if super.NonNull {
		return false
	}
	if sub.Elem != nil || super.Elem != nil {
		return sub.Elem != nil && super.Elem != nil && b.covariant(sub.Elem, super.Elem)
	}
	if sub.NamedType == super.NamedType {
		return true
	}
	def, target := b.types[sub.NamedType], b.types[super.NamedType]
	if def == nil || target == nil {
		return false
	}
	switch target.Kind {
	case language.Union:
		return def.Kind == language.Object && slices.Contains(target.Members, def.Name)
	case language.Interface:
		return slices.Contains(def.Interfaces, target.Name)
	}
	return false
}

func nullable(t *language.Type) *language.Type {
	if !t.NonNull {
		return t
	}
	cp := *t
	cp.NonNull = false
	return &cp
}
