package schema

var (
	stringType  = NewType("String", TypeKindScalar, "The `String` scalar type represents textual data, represented as UTF-8 character sequences.")
	intType     = NewType("Int", TypeKindScalar, "The `Int` scalar type represents non-fractional signed whole numeric values.")
	floatType   = NewType("Float", TypeKindScalar, "The `Float` scalar type represents signed double-precision fractional values.")
	booleanType = NewType("Boolean", TypeKindScalar, "The `Boolean` scalar type represents `true` or `false`.")
	idType      = NewType("ID", TypeKindScalar, "The `ID` scalar type represents a unique identifier.")

	includeDirective = conditionDirective("include", "Directs the executor to include this field or fragment only when the `if` argument is true.")
	skipDirective    = conditionDirective("skip", "Directs the executor to skip this field or fragment when the `if` argument is true.")

	builtinTypes      = []*Type{stringType, intType, floatType, booleanType, idType}
	builtinDirectives = []*Directive{includeDirective, skipDirective}
)

func conditionDirective(name, description string) *Directive {
	return NewDirective(name, description).
		AddLocation("FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT").
		AddArgument(NewInputValue("if", "", NonNullType(NamedType("Boolean"))))
}

func isBuiltinType(t *Type) bool {
	for _, b := range builtinTypes {
		if t == b {
			return true
		}
	}
	return false
}

func isBuiltinDirective(d *Directive) bool {
	return d == includeDirective || d == skipDirective
}

// AddBuiltins registers the built-in scalars and the @include and @skip
// directives.
func (s *Schema) AddBuiltins() *Schema {
	for _, t := range builtinTypes {
		s.AddType(t)
	}
	for _, d := range builtinDirectives {
		s.AddDirective(d)
	}
	return s
}
