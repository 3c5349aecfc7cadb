package ir

import (
	language "github.com/hanpama/fedgraph/internal/language"
)

var builtinScalars = []*Definition{
	builtinScalar("String", "The `String` scalar type represents textual data, represented as UTF-8 character sequences."),
	builtinScalar("Int", "The `Int` scalar type represents non-fractional signed whole numeric values."),
	builtinScalar("Float", "The `Float` scalar type represents signed double-precision fractional values."),
	builtinScalar("Boolean", "The `Boolean` scalar type represents `true` or `false`."),
	builtinScalar("ID", "The `ID` scalar type represents a unique identifier."),
}

func builtinScalar(name, description string) *Definition {
	return &Definition{Kind: language.Scalar, Name: name, Description: description, Builtin: true}
}
