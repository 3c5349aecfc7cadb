package ir

import (
	"slices"
	"strings"

	language "github.com/hanpama/fedgraph/internal/language"
)

// federationScalars are declared by the subgraph itself; user declarations
// of them are accepted and ignored.
var federationScalars = map[string]bool{"_Any": true, "_FieldSet": true}

func (b *builder) defineTypes() {
	for _, pd := range b.docs {
		for _, node := range pd.doc.Definitions {
			if node.Kind == language.Scalar && federationScalars[node.Name] {
				continue
			}
			if _, ok := b.types[node.Name]; ok {
				b.report(node.Position, "Definition %q already exists", node.Name)
				continue
			}
			b.define(pd, node)
		}
	}

	for _, pd := range b.docs {
		for _, node := range pd.doc.Extensions {
			def := b.types[node.Name]
			switch {
			case def == nil && node.Kind == language.Object:
				// Only extended here: the type is owned by another subgraph
				// and the extension becomes its definition.
				b.define(pd, node).ExtensionOnly = true
			case def == nil:
				b.report(node.Position, "definition %q not found for extension", node.Name)
			case def.Kind != node.Kind:
				b.report(node.Position, "Unexpected type for extension %s, expected %s", node.Name, kindName(node.Kind))
			}
		}
	}
}

func (b *builder) define(pd *parsedDocument, node *language.Definition) *Definition {
	def := &Definition{
		Kind:        node.Kind,
		Name:        node.Name,
		Description: node.Description,
		pos:         node.Position,
	}
	b.types[node.Name] = def
	doc := b.documents[pd.id]
	doc.Definitions = append(doc.Definitions, node.Name)
	return def
}

// mergeMembers collects fields, values and union members. Definitions come
// first so extensions append after the fields they extend.
func (b *builder) mergeMembers() {
	for _, extensions := range []bool{false, true} {
		for _, pd := range b.docs {
			nodes := pd.doc.Definitions
			if extensions {
				nodes = pd.doc.Extensions
			}
			for _, node := range nodes {
				if def := b.types[node.Name]; def != nil && !def.Builtin {
					b.merge(def, node)
				}
			}
		}
	}
}

func (b *builder) merge(def *Definition, node *language.Definition) {
	switch node.Kind {
	case language.Object, language.Interface:
		for _, fn := range node.Fields {
			switch {
			case strings.HasPrefix(fn.Name, "__"):
				b.report(fn.Position, "Field name %q cannot start with '__' (reserved prefix)", fn.Name)
			case def.Field(fn.Name) != nil:
				b.report(fn.Position, "Duplicate field %q found in %s %q", fn.Name, kindName(node.Kind), node.Name)
			default:
				def.Fields = append(def.Fields, b.field(fn))
			}
		}
		for _, name := range node.Interfaces {
			if !slices.Contains(def.Interfaces, name) {
				def.Interfaces = append(def.Interfaces, name)
			}
		}

	case language.InputObject:
		for _, fn := range node.Fields {
			if def.InputField(fn.Name) != nil {
				b.report(fn.Position, "Duplicate input value %q found in input %q", fn.Name, node.Name)
				continue
			}
			def.InputFields = append(def.InputFields, b.inputValue(fn.Name, fn.Description, fn.Type, fn.DefaultValue))
		}

	case language.Enum:
		for _, v := range node.EnumValues {
			if def.Value(v.Name) != nil {
				b.report(v.Position, "Duplicate enum value %q found in enum %q", v.Name, node.Name)
				continue
			}
			def.Values = append(def.Values, &EnumValue{Name: v.Name, Description: v.Description})
		}

	case language.Union:
		for _, name := range node.Types {
			member := b.types[name]
			switch {
			case member == nil:
				b.report(node.Position, "Type %q not found for union %q", name, node.Name)
			case member.Kind != language.Object:
				b.report(node.Position, "Union member %q must be an object type, got %s", name, kindName(member.Kind))
			default:
				def.Members = append(def.Members, name)
			}
		}
	}
}

func (b *builder) field(fn *language.FieldDefinition) *Field {
	b.checkType(fn.Type, false)
	f := &Field{Name: fn.Name, Description: fn.Description, Type: fn.Type}
	for _, arg := range fn.Arguments {
		if strings.HasPrefix(arg.Name, "__") {
			b.report(arg.Position, "Argument name %q cannot start with '__' (reserved prefix)", arg.Name)
			continue
		}
		f.Args = append(f.Args, b.inputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue))
	}
	return f
}

func (b *builder) inputValue(name, description string, typ *language.Type, def *language.Value) *InputValue {
	b.checkType(typ, true)
	v := &InputValue{Name: name, Description: description, Type: typ}
	if def != nil {
		value, err := def.Value(nil)
		if err != nil {
			b.report(def.Position, "%s", err.Error())
		}
		v.Default = value
	}
	return v
}

// checkType verifies the named type of t exists and fits the position.
func (b *builder) checkType(t *language.Type, input bool) {
	name := t.Name()
	def := b.types[name]
	if def == nil {
		b.report(t.Position, "Type %q not found in definitions", name)
		return
	}
	switch def.Kind {
	case language.Scalar, language.Enum:
	case language.InputObject:
		if !input {
			b.report(t.Position, "Type %q is not an output type", name)
		}
	default:
		if input {
			b.report(t.Position, "Type %q is not an input type", name)
		}
	}
}

// checkNotEmpty runs once extensions are merged. The query root may be
// empty because the subgraph adds _service and _entities to it.
func (b *builder) checkNotEmpty() {
	for name, def := range b.types {
		switch {
		case def.Kind == language.Object && len(def.Fields) == 0 && name != b.schema.QueryType:
			b.report(def.pos, "Object type %q must have at least one field", name)
		case def.Kind == language.Interface && len(def.Fields) == 0:
			b.report(def.pos, "Interface type %q must have at least one field", name)
		}
	}
}
