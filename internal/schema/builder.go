package schema

import (
	"context"
	"sort"

	"github.com/hanpama/fedgraph/internal/ir"
	language "github.com/hanpama/fedgraph/internal/language"
)

// BuildFromIR builds the schema of an SDL project. Extensions are already
// merged into their definitions; federation directives are not part of the
// result and are applied by the federation package.
func BuildFromIR(p *ir.Project) (*Schema, error) {
	s := NewSchema("").AddBuiltins()
	if p.Schema != nil {
		s.QueryType = p.Schema.QueryType
		s.MutationType = p.Schema.MutationType
		s.SubscriptionType = p.Schema.SubscriptionType
	}
	for _, def := range p.Types {
		if !def.Builtin {
			s.AddType(fromDefinition(def))
		}
	}
	for _, dir := range p.Directives {
		s.AddDirective(&Directive{
			Name:         dir.Name,
			Description:  dir.Description,
			Locations:    append([]string(nil), dir.Locations...),
			Arguments:    inputValues(dir.Args),
			IsRepeatable: dir.Repeatable,
		})
	}
	return s, nil
}

// BuildFromSDL builds a schema from a single SDL document.
func BuildFromSDL(sdl string) (*Schema, error) {
	disc := ir.NewInMemoryDiscovery([]ir.InMemoryDocument{{Path: "schema.graphql", Content: sdl}})
	proj, err := ir.Build(context.Background(), disc)
	if err != nil {
		return nil, err
	}
	return BuildFromIR(proj)
}

var kinds = map[language.DefinitionKind]TypeKind{
	language.Scalar:      TypeKindScalar,
	language.Object:      TypeKindObject,
	language.Interface:   TypeKindInterface,
	language.Union:       TypeKindUnion,
	language.Enum:        TypeKindEnum,
	language.InputObject: TypeKindInputObject,
}

func fromDefinition(def *ir.Definition) *Type {
	t := NewType(def.Name, kinds[def.Kind], def.Description)
	t.Interfaces = append([]string(nil), def.Interfaces...)
	t.InputFields = inputValues(def.InputFields)
	t.OneOf = def.OneOf
	if def.SpecifiedBy != "" {
		url := def.SpecifiedBy
		t.SpecifiedByURL = &url
	}

	for _, f := range def.Fields {
		field := NewField(f.Name, f.Description, FromAST(f.Type))
		field.Arguments = inputValues(f.Args)
		if f.Deprecation != nil {
			field.IsDeprecated, field.DeprecationReason = true, f.Deprecation.Reason
		}
		t.AddField(field)
	}
	for _, v := range def.Values {
		ev := &EnumValue{Name: v.Name, Description: v.Description}
		if v.Deprecation != nil {
			ev.IsDeprecated, ev.DeprecationReason = true, v.Deprecation.Reason
		}
		t.EnumValues = append(t.EnumValues, ev)
	}

	switch def.Kind {
	case language.Union:
		t.PossibleTypes = append(t.PossibleTypes, def.Members...)
	case language.Interface:
		t.PossibleTypes = append(t.PossibleTypes, def.Implementations...)
		sort.Strings(t.PossibleTypes)
	}
	return t
}

func inputValues(in []*ir.InputValue) []*InputValue {
	var out []*InputValue
	for _, v := range in {
		iv := NewInputValue(v.Name, v.Description, FromAST(v.Type))
		iv.DefaultValue = v.Default
		if v.Deprecation != nil {
			iv.IsDeprecated, iv.DeprecationReason = true, v.Deprecation.Reason
		}
		out = append(out, iv)
	}
	return out
}
