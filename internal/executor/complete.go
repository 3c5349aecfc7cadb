package executor

import (
	"reflect"
	"slices"

	language "github.com/hanpama/fedgraph/internal/language"
	schema "github.com/hanpama/fedgraph/internal/schema"
)

// complete shapes a resolved value v according to t. boundary is the
// position that becomes null when v violates a Non-Null type.
func (ex *execution) complete(t *schema.TypeRef, nodes []*language.Field, v any, path, boundary Path) any {
	if t.IsNonNull() {
		if isNullish(v) {
			if !ex.hasError(path) {
				ex.fail(path, "cannot return null for non-nullable field %s", path)
			}
			ex.prune(boundary)
			return nil
		}
		// Nested failures have already been reported.
		out := ex.complete(t.Unwrap(), nodes, v, path, boundary)
		if isNullish(out) {
			ex.prune(boundary)
			return nil
		}
		return out
	}
	if isNullish(v) {
		return nil
	}
	if t.IsList() {
		return ex.completeList(t.Unwrap(), nodes, v, path, boundary)
	}

	name := t.Name()
	named := ex.schema.Types[name]
	if named == nil {
		ex.fail(path, "unknown type %s", name)
		return nil
	}
	switch named.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		out, err := ex.runtime.SerializeLeafValue(ex.ctx, name, v)
		if err != nil {
			ex.locate(err, path)
			return nil
		}
		return out
	case schema.TypeKindObject:
		return ex.completeObject(named, nodes, v, path, boundary)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return ex.completeAbstract(named, nodes, v, path, boundary)
	}
	ex.fail(path, "cannot complete a value of %s type %s", named.Kind, name)
	return nil
}

func (ex *execution) completeList(item *schema.TypeRef, nodes []*language.Field, v any, path, boundary Path) any {
	items, ok := listItems(v)
	if !ok {
		ex.fail(path, "expected a list, got %T", v)
		return nil
	}
	out := make([]any, len(items))
	for i, it := range items {
		at := path.with(i)
		// A runtime may fail a single item of a list.
		if err, ok := it.(error); ok {
			ex.locate(err, at)
			it = nil
		}
		c := ex.complete(item, nodes, it, at, nullableAt(item, at, boundary))
		if isNullish(c) {
			if item.IsNonNull() {
				return nil
			}
			c = nil
		}
		out[i] = c
	}
	return out
}

func (ex *execution) completeObject(obj *schema.Type, nodes []*language.Field, v any, path, boundary Path) any {
	var sub language.SelectionSet
	for _, n := range nodes {
		sub = append(sub, n.SelectionSet...)
	}
	out := ex.selectionSet(obj, sub, v, path, boundary)
	if out == nil {
		return nil
	}
	return out
}

func (ex *execution) completeAbstract(abstract *schema.Type, nodes []*language.Field, v any, path, boundary Path) any {
	name, err := ex.runtime.ResolveType(ex.ctx, abstract.Name, v)
	if err != nil {
		ex.locate(err, path)
		return nil
	}
	obj := ex.schema.Types[name]
	if obj == nil || obj.Kind != schema.TypeKindObject || !ex.possible(abstract, obj) {
		ex.fail(path, "abstract type %s must resolve to one of its object types, got %q", abstract.Name, name)
		return nil
	}

	var concrete any
	if abstract.Kind == schema.TypeKindUnion {
		concrete, err = ex.runtime.ResolveUnionConcreteValue(ex.ctx, abstract.Name, v)
	} else {
		concrete, err = ex.runtime.ResolveInterfaceConcreteValue(ex.ctx, abstract.Name, v)
	}
	if err != nil {
		ex.locate(err, path)
		return nil
	}
	if isNullish(concrete) {
		return nil
	}
	return ex.completeObject(obj, nodes, concrete, path, boundary)
}

// possible reports whether obj is a member of the abstract type.
func (ex *execution) possible(abstract, obj *schema.Type) bool {
	if slices.Contains(abstract.PossibleTypes, obj.Name) {
		return true
	}
	return abstract.Kind == schema.TypeKindInterface && slices.Contains(obj.Interfaces, abstract.Name)
}

func listItems(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// isNullish reports whether v is nil or a typed nil.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
