package ir

import (
	language "github.com/hanpama/fedgraph/internal/language"
)

// resolveRoots reads the schema definition and its extensions. Without one
// the conventional root names apply.
func (b *builder) resolveRoots() {
	b.schema = &Schema{}
	var defined bool
	for _, pd := range b.docs {
		for _, sd := range pd.doc.Schema {
			if defined {
				b.report(sd.Position, "Schema is already defined")
				continue
			}
			defined = true
			b.setRoots(sd)
		}
	}
	if !defined {
		for _, op := range []language.Operation{language.Query, language.Mutation, language.Subscription} {
			name := conventionalRoot[op]
			if def := b.types[name]; def != nil && def.Kind == language.Object {
				*b.root(op) = name
			}
		}
	}
	for _, pd := range b.docs {
		for _, sd := range pd.doc.SchemaExtension {
			b.setRoots(sd)
		}
	}

	for _, op := range []language.Operation{language.Query, language.Mutation, language.Subscription} {
		name := *b.root(op)
		if name == "" {
			continue
		}
		switch def := b.types[name]; {
		case def == nil:
			b.report(nil, "%s type %q not found in definitions", conventionalRoot[op], name)
		case def.Kind != language.Object:
			b.report(nil, "%s type %q must be an Object type", conventionalRoot[op], name)
		}
	}
}

var conventionalRoot = map[language.Operation]string{
	language.Query:        "Query",
	language.Mutation:     "Mutation",
	language.Subscription: "Subscription",
}

func (b *builder) setRoots(sd *language.SchemaDefinition) {
	for _, ot := range sd.OperationTypes {
		if r := b.root(ot.Operation); r != nil {
			*r = ot.Type
		}
	}
}

func (b *builder) root(op language.Operation) *string {
	switch op {
	case language.Query:
		return &b.schema.QueryType
	case language.Mutation:
		return &b.schema.MutationType
	case language.Subscription:
		return &b.schema.SubscriptionType
	}
	return nil
}

func (b *builder) isRoot(name string) bool {
	return name == b.schema.QueryType || name == b.schema.MutationType || name == b.schema.SubscriptionType
}
