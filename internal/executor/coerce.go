package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	language "github.com/hanpama/fedgraph/internal/language"
	schema "github.com/hanpama/fedgraph/internal/schema"
)

func coerceVariables(s *schema.Schema, op *language.OperationDefinition, provided map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(op.VariableDefinitions))
	var errs []error
	for _, def := range op.VariableDefinitions {
		t := schema.FromAST(def.Type)
		v, ok := provided[def.Variable]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				v = literal(def.DefaultValue, nil)
			case t.IsNonNull():
				errs = append(errs, fmt.Errorf("variable $%s of required type %s was not provided", def.Variable, def.Type))
				continue
			default:
				continue
			}
		}
		c, err := coerceInput(s, v, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("variable $%s of type %s: %w", def.Variable, def.Type, err))
			continue
		}
		out[def.Variable] = c
	}
	return out, errors.Join(errs...)
}

// arguments coerces the arguments of a field. It reports false when a
// located error was recorded and the field must not be resolved.
func (ex *execution) arguments(def *schema.Field, given language.ArgumentList, path Path) (map[string]any, bool) {
	out := make(map[string]any, len(def.Arguments))
	ok := true
	for _, ad := range def.Arguments {
		v, present := ex.argument(given, ad.Name)
		if !present {
			if ad.DefaultValue != nil {
				out[ad.Name] = defaultValue(ex.schema, ad)
			} else if ad.Type.IsNonNull() {
				ex.fail(path, "argument %q is required", ad.Name)
				ok = false
			}
			continue
		}
		c, err := coerceInput(ex.schema, v, ad.Type)
		if err != nil {
			ex.fail(path, "argument %q: %v", ad.Name, err)
			ok = false
			continue
		}
		out[ad.Name] = c
	}
	return out, ok
}

func (ex *execution) argument(given language.ArgumentList, name string) (any, bool) {
	for _, arg := range given {
		if arg.Name != name {
			continue
		}
		if arg.Value.Kind == language.Variable {
			v, ok := ex.variables[arg.Value.Raw]
			return v, ok
		}
		return literal(arg.Value, ex.variables), true
	}
	return nil, false
}

// defaultValue returns the default of iv in the form variables and literals
// coerce to. Defaults come from the schema as parsed Go values.
func defaultValue(s *schema.Schema, iv *schema.InputValue) any {
	if c, err := coerceInput(s, iv.DefaultValue, iv.Type); err == nil {
		return c
	}
	return iv.DefaultValue
}

// literal converts a query literal to a Go value. Nested variables are read
// from vars.
func literal(v *language.Value, vars map[string]any) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.Variable:
		return vars[v.Raw]
	case language.IntValue:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return int(n)
		}
		return v.Raw
	case language.FloatValue:
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
			return f
		}
		return v.Raw
	case language.BooleanValue:
		return v.Raw == "true"
	case language.StringValue, language.BlockValue, language.EnumValue:
		return v.Raw
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = literal(c.Value, vars)
		}
		return out
	case language.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			out[c.Name] = literal(c.Value, vars)
		}
		return out
	}
	return nil
}

// coerceInput validates v against the input type t.
func coerceInput(s *schema.Schema, v any, t *schema.TypeRef) (any, error) {
	if t.IsNonNull() {
		if v == nil {
			return nil, errors.New("null for a non-null type")
		}
		return coerceInput(s, v, t.Unwrap())
	}
	if v == nil {
		return nil, nil
	}
	if t.Kind == schema.TypeRefKindList {
		items, ok := v.([]any)
		if !ok {
			c, err := coerceInput(s, v, t.OfType)
			if err != nil {
				return nil, err
			}
			return []any{c}, nil
		}
		out := make([]any, len(items))
		for i, it := range items {
			c, err := coerceInput(s, it, t.OfType)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}

	name := t.Name()
	if named := s.Types[name]; named != nil {
		switch named.Kind {
		case schema.TypeKindEnum:
			return coerceEnum(named, v)
		case schema.TypeKindInputObject:
			return coerceInputObject(s, named, v)
		}
	}
	if scalar, ok := builtinScalars[name]; ok {
		return scalar(v)
	}
	return v, nil
}

func coerceEnum(t *schema.Type, v any) (any, error) {
	name, ok := v.(string)
	if ok && slices.ContainsFunc(t.EnumValues, func(ev *schema.EnumValue) bool { return ev.Name == name }) {
		return name, nil
	}
	return nil, fmt.Errorf("%v is not a value of enum %s", v, t.Name)
}

func coerceInputObject(s *schema.Schema, t *schema.Type, v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object for %s, got %T", t.Name, v)
	}
	for k := range m {
		if !slices.ContainsFunc(t.InputFields, func(f *schema.InputValue) bool { return f.Name == k }) {
			return nil, fmt.Errorf("unknown field %q for %s", k, t.Name)
		}
	}
	out := make(map[string]any, len(t.InputFields))
	for _, f := range t.InputFields {
		fv, present := m[f.Name]
		if !present {
			if f.DefaultValue != nil {
				out[f.Name] = defaultValue(s, f)
			} else if f.Type.IsNonNull() {
				return nil, fmt.Errorf("required field %q of %s was not provided", f.Name, t.Name)
			}
			continue
		}
		c, err := coerceInput(s, fv, f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, f.Name, err)
		}
		out[f.Name] = c
	}
	return out, nil
}

var builtinScalars = map[string]func(any) (any, error){
	"Int":     coerceInt,
	"Float":   coerceFloat,
	"String":  coerceString,
	"Boolean": coerceBoolean,
	"ID":      coerceID,
}

func coerceInt(v any) (any, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("cannot coerce %v to Int", v)
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %v to Int", v)
		}
		n = i
	default:
		return nil, fmt.Errorf("cannot coerce %v (%T) to Int", v, v)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%d overflows Int", n)
	}
	return int(n), nil
}

func coerceFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", v, v)
}

func coerceString(v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to String", v, v)
}

func coerceBoolean(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", v, v)
}

func coerceID(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	}
	n, err := coerceInt(v)
	if err != nil {
		return nil, fmt.Errorf("cannot coerce %v (%T) to ID", v, v)
	}
	return strconv.Itoa(n.(int)), nil
}
