package localrt

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hanpama/fedgraph/internal/value"
)

// readField returns the named field of a parent value, or nil when absent.
func (r *Runtime) readField(source any, field string) (any, error) {
	switch src := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return src[field], nil
	case value.Value:
		v, ok := src.Get(field)
		if !ok {
			return nil, nil
		}
		return fromValue(v), nil
	}

	rv := reflect.ValueOf(source)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		idx, ok := r.structFields(rv.Type())[field]
		if !ok {
			idx, ok = r.structFields(rv.Type())[strings.ToLower(field)]
		}
		if !ok {
			return nil, nil
		}
		fv, err := rv.FieldByIndexErr(idx)
		if err != nil {
			// nil embedded pointer
			return nil, nil
		}
		return fv.Interface(), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		fv := rv.MapIndex(reflect.ValueOf(field).Convert(rv.Type().Key()))
		if !fv.IsValid() {
			return nil, nil
		}
		return fv.Interface(), nil
	}
	return nil, fmt.Errorf("cannot read field %q from %T", field, source)
}

// fromValue keeps maps as value.Value so nested fields keep reading through
// readField; lists and leaves become Go values.
func fromValue(v value.Value) any {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindMap:
		return v
	case value.KindList:
		items := v.Items()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = fromValue(it)
		}
		return out
	}
	return value.ToGo(v)
}

// structFields indexes the exported fields of t by graphql tag, json tag and
// lower-cased Go name, in that order of precedence.
func (r *Runtime) structFields(t reflect.Type) map[string][]int {
	if cached, ok := r.structs.Load(t); ok {
		return cached.(map[string][]int)
	}
	tagged := map[string][]int{}
	byJSON := map[string][]int{}
	byName := map[string][]int{}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if tag := tagName(f.Tag.Get("graphql")); tag != "" {
			tagged[tag] = f.Index
		}
		if tag := tagName(f.Tag.Get("json")); tag != "" {
			byJSON[tag] = f.Index
		}
		byName[strings.ToLower(f.Name)] = f.Index
	}
	out := make(map[string][]int, len(byName)+len(byJSON)+len(tagged))
	for k, v := range byName {
		out[k] = v
	}
	for k, v := range byJSON {
		out[k] = v
	}
	for k, v := range tagged {
		out[k] = v
	}
	actual, _ := r.structs.LoadOrStore(t, out)
	return actual.(map[string][]int)
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}
