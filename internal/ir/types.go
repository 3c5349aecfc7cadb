package ir

import (
	language "github.com/hanpama/fedgraph/internal/language"
)

// Project is the merged view of every SDL document of a subgraph.
type Project struct {
	Documents  map[DocumentID]*Document
	Schema     *Schema
	Types      map[string]*Definition
	Directives map[string]*DirectiveDefinition
	// Federation holds one declaration per type definition or extension that
	// carries federation directives, in document order.
	Federation []*FederationDeclaration
}

// Schema names the operation root types.
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
}

type Document struct {
	ID       DocumentID
	Name     string
	FilePath string

	// Definitions and Directives name what this document defines.
	Definitions []string
	Directives  []string
}

// DocumentID identifies an SDL document, e.g. "products/product.graphql".
type DocumentID string

// Definition is a named type with every extension merged in.
type Definition struct {
	Kind        language.DefinitionKind
	Name        string
	Description string

	Fields      []*Field      // OBJECT, INTERFACE
	InputFields []*InputValue // INPUT_OBJECT
	Interfaces  []string      // OBJECT, INTERFACE
	Members     []string      // UNION
	Values      []*EnumValue  // ENUM
	// Implementations lists the objects implementing an INTERFACE.
	Implementations []string

	SpecifiedBy string
	OneOf       bool

	// ExtensionOnly is set when the type only appears as `extend type`.
	ExtensionOnly bool
	Builtin       bool

	pos *language.Position
}

func (d *Definition) Field(name string) *Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (d *Definition) InputField(name string) *InputValue { return findInput(d.InputFields, name) }

func (d *Definition) Value(name string) *EnumValue {
	for _, v := range d.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

type Field struct {
	Name        string
	Description string
	Type        *language.Type
	Args        []*InputValue
	Deprecation *Deprecation
}

func (f *Field) Arg(name string) *InputValue { return findInput(f.Args, name) }

// InputValue is an argument or an input object field. Default is nil when
// no default is declared.
type InputValue struct {
	Name        string
	Description string
	Type        *language.Type
	Default     any
	Deprecation *Deprecation
}

func findInput(values []*InputValue, name string) *InputValue {
	for _, v := range values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

type EnumValue struct {
	Name        string
	Description string
	Deprecation *Deprecation
}

type Deprecation struct {
	Reason string
}

type DirectiveDefinition struct {
	Name        string
	Description string
	Args        []*InputValue
	Repeatable  bool
	Locations   []string
}

// FederationDeclaration is what a single type definition or extension
// declares through federation directives.
type FederationDeclaration struct {
	TypeName string
	// Source is "file:line:column" of the declaring node.
	Source  string
	Keys    []string
	Extends bool
	Fields  []*FederationField
}

type FederationField struct {
	Name     string
	External bool
	Requires string
	Provides string
}
