package localrt

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"sync"

	"github.com/hanpama/fedgraph/internal/executor"
	"github.com/hanpama/fedgraph/internal/schema"
	"github.com/hanpama/fedgraph/internal/value"
	"golang.org/x/sync/errgroup"
)

// FieldResolver resolves one field for one parent value.
type FieldResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// BatchResolver resolves every task of one (objectType, field) group at a
// depth. It must return one result per task, in task order.
type BatchResolver func(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult

// ScalarSerializer converts a custom scalar value to a JSON-safe Go value.
type ScalarSerializer func(v any) (any, error)

type fieldKey struct {
	objectType string
	field      string
}

// Runtime implements executor.Runtime in process.
// Invariants:
//   - Fields without a registered resolver are read from the parent value:
//     map[string]any, value.Value or a Go struct (graphql tag, json tag,
//     then case-insensitive field name).
//   - Registration mutates the schema's async flags and must finish before
//     the first request.
//   - BatchResolveAsync groups tasks by (objectType, field) and runs the groups
//     concurrently. Results preserve input ordering.
type Runtime struct {
	schema *schema.Schema
	opts   *Options

	resolvers map[fieldKey]FieldResolver
	async     map[fieldKey]FieldResolver
	batches   map[fieldKey]BatchResolver
	typeNames map[reflect.Type]string
	structs   sync.Map // reflect.Type -> map[string][]int
}

var _ executor.Runtime = (*Runtime)(nil)

func New(s *schema.Schema, opts ...Option) *Runtime {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	return &Runtime{
		schema:    s,
		opts:      o,
		resolvers: make(map[fieldKey]FieldResolver),
		async:     make(map[fieldKey]FieldResolver),
		batches:   make(map[fieldKey]BatchResolver),
		typeNames: make(map[reflect.Type]string),
	}
}

// Schema returns the schema the runtime serves.
func (r *Runtime) Schema() *schema.Schema { return r.schema }

// Resolve registers a synchronous resolver for objectType.field.
func (r *Runtime) Resolve(objectType, field string, fn FieldResolver) error {
	f, err := r.field(objectType, field)
	if err != nil {
		return err
	}
	f.Async = false
	k := fieldKey{objectType, field}
	delete(r.async, k)
	delete(r.batches, k)
	r.resolvers[k] = fn
	return nil
}

// ResolveAsync registers a resolver that runs in the async phase of its
// depth, once per parent value.
func (r *Runtime) ResolveAsync(objectType, field string, fn FieldResolver) error {
	f, err := r.field(objectType, field)
	if err != nil {
		return err
	}
	f.Async = true
	k := fieldKey{objectType, field}
	delete(r.resolvers, k)
	delete(r.batches, k)
	r.async[k] = fn
	return nil
}

// ResolveBatch registers a resolver that receives every parent value of a
// depth in one call.
func (r *Runtime) ResolveBatch(objectType, field string, fn BatchResolver) error {
	f, err := r.field(objectType, field)
	if err != nil {
		return err
	}
	f.Async = true
	k := fieldKey{objectType, field}
	delete(r.resolvers, k)
	delete(r.async, k)
	r.batches[k] = fn
	return nil
}

func (r *Runtime) field(objectType, field string) (*schema.Field, error) {
	t := r.schema.Types[objectType]
	if t == nil {
		return nil, fmt.Errorf("localrt: unknown type %q", objectType)
	}
	f := t.Field(field)
	if f == nil {
		return nil, fmt.Errorf("localrt: unknown field %s.%s", objectType, field)
	}
	return f, nil
}

// Bind maps the Go type of sample to a schema object type. Pointer types are
// bound through their element type.
func (r *Runtime) Bind(typeName string, sample any) error {
	t := r.schema.Types[typeName]
	if t == nil || t.Kind != schema.TypeKindObject {
		return fmt.Errorf("localrt: %q is not an object type", typeName)
	}
	r.typeNames[elem(reflect.TypeOf(sample))] = typeName
	return nil
}

// TypeName returns the schema name bound to a Go type.
func (r *Runtime) TypeName(t reflect.Type) (string, bool) {
	name, ok := r.typeNames[elem(t)]
	return name, ok
}

func elem(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func (r *Runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (v any, err error) {
	fn := r.resolvers[fieldKey{objectType, field}]
	if fn == nil {
		return r.readField(source, field)
	}
	defer recoverInto(&err, objectType, field)
	return fn(ctx, source, args)
}

func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	type group struct {
		key  fieldKey
		idxs []int
	}
	groups := []group{}
	idxByKey := map[fieldKey]int{}
	for i, t := range tasks {
		k := fieldKey{t.ObjectType, t.Field}
		if gi, ok := idxByKey[k]; ok {
			groups[gi].idxs = append(groups[gi].idxs, i)
		} else {
			idxByKey[k] = len(groups)
			groups = append(groups, group{key: k, idxs: []int{i}})
		}
	}

	var g errgroup.Group
	if r.opts.MaxConcurrency > 0 {
		g.SetLimit(r.opts.MaxConcurrency)
	}
	for _, grp := range groups {
		g.Go(func() error {
			r.runGroup(ctx, grp.key, tasks, grp.idxs, results)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runGroup writes the results of one group into its slots.
func (r *Runtime) runGroup(ctx context.Context, k fieldKey, tasks []executor.AsyncResolveTask, idxs []int, results []executor.AsyncResolveResult) {
	if batch := r.batches[k]; batch != nil {
		in := make([]executor.AsyncResolveTask, len(idxs))
		for j, idx := range idxs {
			in[j] = tasks[idx]
		}
		out := r.callBatch(ctx, k, batch, in)
		for j, idx := range idxs {
			if j < len(out) {
				results[idx] = out[j]
			} else {
				results[idx] = executor.AsyncResolveResult{Error: fmt.Errorf("missing batch element")}
			}
		}
		return
	}
	fn := r.async[k]
	for _, idx := range idxs {
		t := tasks[idx]
		if fn == nil {
			v, err := r.readField(t.Source, t.Field)
			results[idx] = executor.AsyncResolveResult{Value: v, Error: err}
			continue
		}
		v, err := r.callAsync(ctx, k, fn, t)
		results[idx] = executor.AsyncResolveResult{Value: v, Error: err}
	}
}

func (r *Runtime) callAsync(ctx context.Context, k fieldKey, fn FieldResolver, t executor.AsyncResolveTask) (v any, err error) {
	defer recoverInto(&err, k.objectType, k.field)
	return fn(ctx, t.Source, t.Args)
}

func (r *Runtime) callBatch(ctx context.Context, k fieldKey, fn BatchResolver, tasks []executor.AsyncResolveTask) (out []executor.AsyncResolveResult) {
	defer func() {
		if p := recover(); p != nil {
			out = make([]executor.AsyncResolveResult, len(tasks))
			for i := range out {
				out[i] = executor.AsyncResolveResult{Error: fmt.Errorf("resolver %s.%s panicked: %v", k.objectType, k.field, p)}
			}
		}
	}()
	return fn(ctx, tasks)
}

func recoverInto(err *error, objectType, field string) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("resolver %s.%s panicked: %v", objectType, field, p)
	}
}

// ResolveType reads __typename from maps and value.Value, then falls back to
// the Go type binding table.
func (r *Runtime) ResolveType(ctx context.Context, abstractType string, v any) (string, error) {
	switch src := v.(type) {
	case map[string]any:
		if name, ok := src["__typename"].(string); ok {
			return name, nil
		}
	case value.Value:
		if name, ok := src.GetString("__typename"); ok {
			return name, nil
		}
	}
	if name, ok := r.TypeName(reflect.TypeOf(v)); ok {
		return name, nil
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s from %T", abstractType, v)
}

func (r *Runtime) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, v any) (any, error) {
	return v, nil
}

func (r *Runtime) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, v any) (any, error) {
	return v, nil
}

// SerializeLeafValue coerces built-in scalars, renders enums by name and
// hands custom scalars to their registered serializer.
func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, v any) (any, error) {
	if val, ok := v.(value.Value); ok {
		v = value.ToGo(val)
	}
	if v == nil {
		return nil, nil
	}
	switch typeName {
	case "Int":
		return serializeInt(v)
	case "Float":
		return serializeFloat(v)
	case "String":
		return serializeString(v)
	case "ID":
		switch n := v.(type) {
		case int, int32, int64:
			return fmt.Sprint(n), nil
		case float64:
			if n == math.Trunc(n) {
				return strconv.FormatInt(int64(n), 10), nil
			}
		}
		return serializeString(v)
	case "Boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %T", v)
	}
	if fn := r.opts.Scalars[typeName]; fn != nil {
		return fn(v)
	}
	if t := r.schema.Types[typeName]; t != nil && t.Kind == schema.TypeKindEnum {
		return fmt.Sprint(v), nil
	}
	if b, ok := v.([]byte); ok {
		return base64.StdEncoding.EncodeToString(b), nil
	}
	return v, nil
}

func serializeInt(v any) (any, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint32:
		n = int64(x)
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("Int cannot represent non-integer value %v", x)
		}
		n = int64(x)
	default:
		return nil, fmt.Errorf("Int cannot represent %T", v)
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value %d", n)
	}
	return int32(n), nil
}

func serializeFloat(v any) (any, error) {
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
	}
	return nil, fmt.Errorf("Float cannot represent %T", v)
}

func serializeString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	case []byte:
		return string(x), nil
	}
	return nil, fmt.Errorf("String cannot represent %T", v)
}
