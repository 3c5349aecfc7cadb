package ir

import (
	"context"
	"fmt"
	"sort"

	language "github.com/hanpama/fedgraph/internal/language"
)

type builder struct {
	documents  map[DocumentID]*Document
	schema     *Schema
	types      map[string]*Definition
	directives map[string]*DirectiveDefinition
	federation []*FederationDeclaration

	// docs are sorted by file path.
	docs       []*parsedDocument
	extensions map[*language.Definition]bool
	violations []*Violation
}

type parsedDocument struct {
	id  DocumentID
	doc *language.SchemaDocument
}

// Build loads every document from disc and produces the merged project.
// Malformed input is reported as a ValidationError.
func Build(ctx context.Context, disc Discovery) (*Project, error) {
	b := &builder{
		documents:  map[DocumentID]*Document{},
		types:      map[string]*Definition{},
		directives: map[string]*DirectiveDefinition{},
		extensions: map[*language.Definition]bool{},
	}
	if err := b.load(ctx, disc); err != nil {
		return nil, err
	}
	for _, def := range builtinScalars {
		b.types[def.Name] = def
	}

	// Each pass relies on the previous ones having succeeded.
	passes := []func(){
		b.defineTypes,
		b.resolveRoots,
		b.defineDirectives,
		b.mergeMembers,
		b.checkImplementations,
		b.applyDirectives,
		b.checkNotEmpty,
	}
	for _, pass := range passes {
		pass()
		if len(b.violations) > 0 {
			sortViolations(b.violations)
			return nil, ValidationError(b.violations)
		}
	}

	return &Project{
		Documents:  b.documents,
		Schema:     b.schema,
		Types:      b.types,
		Directives: b.directives,
		Federation: b.federation,
	}, nil
}

func (b *builder) load(ctx context.Context, disc Discovery) error {
	metas, err := disc.ListDocuments(ctx)
	if err != nil {
		return err
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].FilePath < metas[j].FilePath })

	for _, m := range metas {
		sdl, err := disc.ReadDocument(ctx, m.ID)
		if err != nil {
			return err
		}
		doc, err := language.ParseSchema(m.FilePath, sdl)
		if err != nil {
			return err
		}
		for _, ext := range doc.Extensions {
			b.extensions[ext] = true
		}
		b.documents[m.ID] = &Document{ID: m.ID, Name: m.Name, FilePath: m.FilePath}
		b.docs = append(b.docs, &parsedDocument{id: m.ID, doc: doc})
	}
	return nil
}

func (b *builder) report(pos *language.Position, format string, args ...any) {
	b.violations = append(b.violations, newViolation(fmt.Sprintf(format, args...), pos))
}

// sourceOrder returns the definitions and extensions of doc as they appear
// in the source.
func sourceOrder(doc *language.SchemaDocument) []*language.Definition {
	out := make([]*language.Definition, 0, len(doc.Definitions)+len(doc.Extensions))
	out = append(out, doc.Definitions...)
	out = append(out, doc.Extensions...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position.Start < out[j].Position.Start
	})
	return out
}

// kindName is the SDL keyword for kind.
func kindName(kind language.DefinitionKind) string {
	switch kind {
	case language.Object:
		return "object"
	case language.Interface:
		return "interface"
	case language.Union:
		return "union"
	case language.InputObject:
		return "input"
	case language.Enum:
		return "enum"
	default:
		return "scalar"
	}
}
