// Package schema is the executable type model of a subgraph.
package schema

// Schema holds every named type and directive of a subgraph.
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type
	Directives       map[string]*Directive
	Description      string
}

func NewSchema(description string) *Schema {
	return &Schema{
		Types:       map[string]*Type{},
		Directives:  map[string]*Directive{},
		Description: description,
	}
}

// Root returns the root type of the "query", "mutation" or "subscription"
// operation, or nil when the schema has none.
func (s *Schema) Root(operation string) *Type {
	switch operation {
	case "query":
		return s.Types[s.QueryType]
	case "mutation":
		return s.Types[s.MutationType]
	case "subscription":
		return s.Types[s.SubscriptionType]
	}
	return nil
}

func (s *Schema) SetQueryType(name string) *Schema {
	s.QueryType = name
	return s
}

func (s *Schema) SetMutationType(name string) *Schema {
	s.MutationType = name
	return s
}

func (s *Schema) AddType(t *Type) *Schema {
	s.Types[t.Name] = t
	return s
}

func (s *Schema) AddDirective(d *Directive) *Schema {
	s.Directives[d.Name] = d
	return s
}

// Clone returns a deep copy. Built-in types and directives are shared since
// nothing mutates them.
func (s *Schema) Clone() *Schema {
	out := NewSchema(s.Description)
	out.QueryType, out.MutationType, out.SubscriptionType = s.QueryType, s.MutationType, s.SubscriptionType
	for name, t := range s.Types {
		if !isBuiltinType(t) {
			t = t.clone()
		}
		out.Types[name] = t
	}
	for name, d := range s.Directives {
		if !isBuiltinDirective(d) {
			cp := *d
			cp.Locations = append([]string(nil), d.Locations...)
			cp.Arguments = cloneInputValues(d.Arguments)
			d = &cp
		}
		out.Directives[name] = d
	}
	return out
}

type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// Type is a named type. Which members are set depends on Kind.
type Type struct {
	Name        string
	Kind        TypeKind
	Description string

	Fields         []*Field      // OBJECT, INTERFACE
	Interfaces     []string      // OBJECT, INTERFACE
	PossibleTypes  []string      // INTERFACE, UNION
	EnumValues     []*EnumValue  // ENUM
	InputFields    []*InputValue // INPUT_OBJECT
	SpecifiedByURL *string
	OneOf          bool

	// Extension renders the type as `extend type` in SDL.
	Extension bool
	// Directives are applied directives printed after the type name.
	Directives []*AppliedDirective
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

// Field returns the field named name, or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddField appends f, replacing an existing field of the same name in place.
func (t *Type) AddField(f *Field) *Type {
	for i, existing := range t.Fields {
		if existing.Name == f.Name {
			t.Fields[i] = f
			return t
		}
	}
	t.Fields = append(t.Fields, f)
	return t
}

func (t *Type) AddPossibleType(name string) *Type {
	t.PossibleTypes = append(t.PossibleTypes, name)
	return t
}

func (t *Type) AddDirective(d *AppliedDirective) *Type {
	t.Directives = append(t.Directives, d)
	return t
}

func (t *Type) clone() *Type {
	cp := *t
	cp.Fields = make([]*Field, len(t.Fields))
	for i, f := range t.Fields {
		fc := *f
		fc.Arguments = cloneInputValues(f.Arguments)
		fc.Directives = append([]*AppliedDirective(nil), f.Directives...)
		cp.Fields[i] = &fc
	}
	cp.Interfaces = append([]string(nil), t.Interfaces...)
	cp.PossibleTypes = append([]string(nil), t.PossibleTypes...)
	cp.EnumValues = append([]*EnumValue(nil), t.EnumValues...)
	cp.InputFields = cloneInputValues(t.InputFields)
	cp.Directives = append([]*AppliedDirective(nil), t.Directives...)
	return &cp
}

type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	Async             bool
	IsDeprecated      bool
	DeprecationReason string
	Directives        []*AppliedDirective
}

func NewField(name, description string, typ *TypeRef) *Field {
	return &Field{Name: name, Description: description, Type: typ}
}

func (f *Field) SetAsync(async bool) *Field {
	f.Async = async
	return f
}

func (f *Field) AddArgument(arg *InputValue) *Field {
	f.Arguments = append(f.Arguments, arg)
	return f
}

func (f *Field) AddDirective(d *AppliedDirective) *Field {
	f.Directives = append(f.Directives, d)
	return f
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

// InputValue is an argument or an input object field.
type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	IsDeprecated      bool
	DeprecationReason string
}

func NewInputValue(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

func cloneInputValues(in []*InputValue) []*InputValue {
	if in == nil {
		return nil
	}
	out := make([]*InputValue, len(in))
	for i, v := range in {
		cp := *v
		out[i] = &cp
	}
	return out
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

func NewDirective(name, description string) *Directive {
	return &Directive{Name: name, Description: description}
}

func (d *Directive) SetRepeatable(repeatable bool) *Directive {
	d.IsRepeatable = repeatable
	return d
}

func (d *Directive) AddLocation(locations ...string) *Directive {
	d.Locations = append(d.Locations, locations...)
	return d
}

func (d *Directive) AddArgument(arg *InputValue) *Directive {
	d.Arguments = append(d.Arguments, arg)
	return d
}

// AppliedDirective is a directive use such as @key(fields: "id").
type AppliedDirective struct {
	Name string
	Args []*AppliedArgument
}

type AppliedArgument struct {
	Name  string
	Value any
}

// NewAppliedDirective builds a directive use. args alternate name and value.
func NewAppliedDirective(name string, args ...any) *AppliedDirective {
	d := &AppliedDirective{Name: name}
	for i := 0; i+1 < len(args); i += 2 {
		d.Args = append(d.Args, &AppliedArgument{Name: args[i].(string), Value: args[i+1]})
	}
	return d
}
