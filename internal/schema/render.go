package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render prints s as SDL. Types and directives are sorted by name and the
// built-ins are left out.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	p := &printer{}
	for _, name := range sortedKeys(s.Types) {
		if t := s.Types[name]; !isBuiltinType(t) {
			p.typ(t)
		}
	}
	for _, name := range sortedKeys(s.Directives) {
		if d := s.Directives[name]; !isBuiltinDirective(d) {
			p.directive(d)
		}
	}
	return strings.TrimRight(p.String(), "\n") + "\n"
}

var keywords = map[TypeKind]string{
	TypeKindScalar:      "scalar",
	TypeKindObject:      "type",
	TypeKindInterface:   "interface",
	TypeKindUnion:       "union",
	TypeKindEnum:        "enum",
	TypeKindInputObject: "input",
}

type printer struct {
	strings.Builder
}

func (p *printer) typ(t *Type) {
	p.description("", t.Description)
	if t.Extension {
		p.WriteString("extend ")
	}
	p.WriteString(keywords[t.Kind] + " " + t.Name)

	switch t.Kind {
	case TypeKindObject, TypeKindInterface:
		if len(t.Interfaces) > 0 {
			p.WriteString(" implements " + strings.Join(t.Interfaces, " & "))
		}
		p.applied(t.Directives)
		if len(t.Fields) == 0 {
			// `extend type Query` may carry no fields of its own.
			break
		}
		p.WriteString(" {\n")
		for _, f := range t.Fields {
			p.field(f)
		}
		p.WriteString("}")

	case TypeKindUnion:
		p.WriteString(" = " + strings.Join(t.PossibleTypes, " | "))

	case TypeKindScalar:
		if t.SpecifiedByURL != nil {
			p.WriteString(" @specifiedBy(url: " + strconv.Quote(*t.SpecifiedByURL) + ")")
		}

	case TypeKindEnum:
		p.WriteString(" {\n")
		for _, v := range t.EnumValues {
			p.description("  ", v.Description)
			p.WriteString("  " + v.Name)
			p.deprecated(v.IsDeprecated, v.DeprecationReason)
			p.WriteString("\n")
		}
		p.WriteString("}")

	case TypeKindInputObject:
		if t.OneOf {
			p.WriteString(" @oneOf")
		}
		p.WriteString(" {\n")
		for _, v := range t.InputFields {
			p.description("  ", v.Description)
			p.WriteString("  ")
			p.inputValue(v)
			p.deprecated(v.IsDeprecated, v.DeprecationReason)
			p.WriteString("\n")
		}
		p.WriteString("}")
	}
	p.WriteString("\n\n")
}

func (p *printer) field(f *Field) {
	p.description("  ", f.Description)
	p.WriteString("  " + f.Name)
	p.arguments(f.Arguments)
	p.WriteString(": " + f.Type.String())
	p.applied(f.Directives)
	p.deprecated(f.IsDeprecated, f.DeprecationReason)
	p.WriteString("\n")
}

func (p *printer) directive(d *Directive) {
	p.description("", d.Description)
	p.WriteString("directive @" + d.Name)
	p.arguments(d.Arguments)
	if d.IsRepeatable {
		p.WriteString(" repeatable")
	}
	p.WriteString(" on " + strings.Join(d.Locations, " | ") + "\n\n")
}

func (p *printer) arguments(args []*InputValue) {
	if len(args) == 0 {
		return
	}
	p.WriteString("(")
	for i, arg := range args {
		if i > 0 {
			p.WriteString(", ")
		}
		p.inputValue(arg)
	}
	p.WriteString(")")
}

func (p *printer) inputValue(v *InputValue) {
	p.WriteString(v.Name + ": " + v.Type.String())
	if v.DefaultValue != nil {
		p.WriteString(" = " + renderValue(v.DefaultValue))
	}
}

func (p *printer) applied(directives []*AppliedDirective) {
	for _, d := range directives {
		p.WriteString(" @" + d.Name)
		if len(d.Args) == 0 {
			continue
		}
		parts := make([]string, len(d.Args))
		for i, arg := range d.Args {
			parts[i] = arg.Name + ": " + renderValue(arg.Value)
		}
		p.WriteString("(" + strings.Join(parts, ", ") + ")")
	}
}

func (p *printer) deprecated(is bool, reason string) {
	if !is {
		return
	}
	p.WriteString(" @deprecated")
	if reason != "" {
		p.WriteString("(reason: " + strconv.Quote(reason) + ")")
	}
}

// description prints a block string. Only `"""` needs escaping inside one.
func (p *printer) description(indent, desc string) {
	if desc == "" {
		return
	}
	desc = strings.ReplaceAll(desc, `"""`, `\"""`)
	p.WriteString(indent + `"""` + "\n")
	for _, line := range strings.Split(desc, "\n") {
		p.WriteString(indent + line + "\n")
	}
	p.WriteString(indent + `"""` + "\n")
}

// renderValue prints a default value or directive argument. Strings that
// are not quoted by the caller are quoted here; anything unknown is printed
// as is, which covers enum values.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		parts := make([]string, 0, len(v))
		for _, k := range sortedKeys(v) {
			parts = append(parts, k+": "+renderValue(v[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
