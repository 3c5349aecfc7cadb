// Package executortest provides a scripted executor.Runtime for tests.
package executortest

import (
	"context"
	"errors"
	"sync"

	"github.com/hanpama/fedgraph/internal/executor"
)

// Resolver produces the value of one field.
type Resolver func(ctx context.Context, source any, args map[string]any) (any, error)

// Returns resolves to v.
func Returns(v any) Resolver {
	return func(context.Context, any, map[string]any) (any, error) { return v, nil }
}

// Fails resolves to err.
func Fails(err error) Resolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Key reads key from a map[string]any source.
func Key(key string) Resolver {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		m, _ := source.(map[string]any)
		return m[key], nil
	}
}

// Call records one resolution. Batch is zero for synchronous calls and
// numbers BatchResolveAsync invocations from one otherwise.
type Call struct {
	Batch  int
	Type   string
	Field  string
	Source any
	Args   map[string]any
}

// Runtime resolves fields with registered Resolvers. Unregistered fields
// resolve to null. Abstract values resolve by their "__typename" key and
// leaf values serialize unchanged unless TypeOf or Serialize is set.
type Runtime struct {
	TypeOf    func(abstractType string, v any) (string, error)
	Serialize func(typeName string, v any) (any, error)

	mu        sync.Mutex
	resolvers map[[2]string]Resolver
	calls     []Call
	batches   int
}

func New() *Runtime {
	return &Runtime{resolvers: map[[2]string]Resolver{}}
}

// Handle registers fn for typeName.field.
func (r *Runtime) Handle(typeName, field string, fn Resolver) *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[[2]string{typeName, field}] = fn
	return r
}

// Calls returns the recorded calls in order.
func (r *Runtime) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Runtime) resolve(ctx context.Context, batch int, typeName, field string, source any, args map[string]any) (any, error) {
	r.mu.Lock()
	fn := r.resolvers[[2]string{typeName, field}]
	r.calls = append(r.calls, Call{Batch: batch, Type: typeName, Field: field, Source: source, Args: args})
	r.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, source, args)
}

func (r *Runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	return r.resolve(ctx, 0, objectType, field, source, args)
}

func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	r.mu.Lock()
	r.batches++
	batch := r.batches
	r.mu.Unlock()

	out := make([]executor.AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		v, err := r.resolve(ctx, batch, t.ObjectType, t.Field, t.Source, t.Args)
		out[i] = executor.AsyncResolveResult{Value: v, Error: err}
	}
	return out
}

func (r *Runtime) ResolveType(_ context.Context, abstractType string, v any) (string, error) {
	if r.TypeOf != nil {
		return r.TypeOf(abstractType, v)
	}
	if m, ok := v.(map[string]any); ok {
		if name, ok := m["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", errors.New("value has no __typename")
}

func (r *Runtime) ResolveUnionConcreteValue(_ context.Context, _ string, v any) (any, error) {
	return v, nil
}

func (r *Runtime) ResolveInterfaceConcreteValue(_ context.Context, _ string, v any) (any, error) {
	return v, nil
}

func (r *Runtime) SerializeLeafValue(_ context.Context, typeName string, v any) (any, error) {
	if r.Serialize != nil {
		return r.Serialize(typeName, v)
	}
	return v, nil
}

var _ executor.Runtime = (*Runtime)(nil)
