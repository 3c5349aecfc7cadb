package federation

import "github.com/hanpama/fedgraph/internal/ir"

// PartialsFromProject converts the federation directives of an SDL project
// into partial metadata, one per declaring definition or extension, in
// document order.
func PartialsFromProject(p *ir.Project) []PartialTypeMetadata {
	out := make([]PartialTypeMetadata, 0, len(p.Federation))
	for _, decl := range p.Federation {
		partial := PartialTypeMetadata{
			TypeName: decl.TypeName,
			Source:   decl.Source,
			Extends:  decl.Extends,
		}
		for _, key := range decl.Keys {
			partial.Keys = append(partial.Keys, KeyDeclaration{FieldSet: key})
		}
		for _, f := range decl.Fields {
			partial.Fields = append(partial.Fields, FieldDeclaration{
				Name: f.Name,
				Marker: FieldMarker{
					External: f.External,
					Requires: f.Requires,
					Provides: f.Provides,
				},
			})
		}
		out = append(out, partial)
	}
	return out
}
