package federation

import (
	"context"
	"fmt"

	"github.com/hanpama/fedgraph/internal/executor"
	"github.com/hanpama/fedgraph/internal/value"
	"golang.org/x/sync/errgroup"
)

// entity is the _Entity union envelope: the resolved value together with the
// type name it was resolved for.
type entity struct {
	typeName string
	value    any
}

// service is the source value of the _service field.
type service struct{}

// runtime serves the federation fields and delegates the rest to base.
type runtime struct {
	base       executor.Runtime
	dispatcher *Dispatcher
	sdl        string
	queryType  string
}

func newRuntime(base executor.Runtime, d *Dispatcher, sdl, queryType string) *runtime {
	return &runtime{base: base, dispatcher: d, sdl: sdl, queryType: queryType}
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch {
	case objectType == r.queryType && field == ServiceField:
		return service{}, nil
	case objectType == ServiceType && field == SDLField:
		return r.sdl, nil
	case objectType == r.queryType && field == EntitiesField:
		return r.resolveEntities(ctx, executor.AsyncResolveTask{ObjectType: objectType, Field: field, Args: args})
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

// BatchResolveAsync resolves the _entities tasks itself and hands the other
// tasks to the base runtime in one call. Aliased _entities fields and the
// base batch run concurrently.
func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	var rest []executor.AsyncResolveTask
	var restIdx []int
	var g errgroup.Group
	for i, task := range tasks {
		if task.ObjectType == r.queryType && task.Field == EntitiesField {
			g.Go(func() error {
				v, err := r.resolveEntities(ctx, task)
				results[i] = executor.AsyncResolveResult{Value: v, Error: err}
				return nil
			})
			continue
		}
		rest = append(rest, task)
		restIdx = append(restIdx, i)
	}
	if len(rest) > 0 {
		g.Go(func() error {
			baseResults := r.base.BatchResolveAsync(ctx, rest)
			for i, idx := range restIdx {
				if i < len(baseResults) {
					results[idx] = baseResults[i]
				} else {
					results[idx] = executor.AsyncResolveResult{Error: fmt.Errorf("runtime returned no result for %s.%s", rest[i].ObjectType, rest[i].Field)}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// resolveEntities returns one item per representation: an entity envelope,
// nil when not found, or the slot's error.
func (r *runtime) resolveEntities(ctx context.Context, task executor.AsyncResolveTask) (any, error) {
	raw, _ := task.Args[RepresentationsArg].([]any)
	reps := make([]value.Value, len(raw))
	for i, item := range raw {
		v, err := value.FromGo(item)
		if err != nil {
			return nil, fmt.Errorf("representation at index %d: %w", i, err)
		}
		reps[i] = v
	}

	field := FieldContext{ObjectType: task.ObjectType, Field: task.Field, Path: task.Path, Args: task.Args}
	outcomes := r.dispatcher.Dispatch(ctx, field, reps)
	items := make([]any, len(outcomes))
	for i, o := range outcomes {
		switch {
		case o.Err != nil:
			items[i] = o.Err
		case o.Value != nil:
			items[i] = entity{typeName: o.TypeName, value: o.Value}
		}
	}
	return items, nil
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, v any) (string, error) {
	if abstractType == EntityUnion {
		e, ok := v.(entity)
		if !ok {
			return "", fmt.Errorf("unexpected %s value %T", EntityUnion, v)
		}
		return e.typeName, nil
	}
	return r.base.ResolveType(ctx, abstractType, v)
}

func (r *runtime) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, v any) (any, error) {
	if unionTypeName == EntityUnion {
		if e, ok := v.(entity); ok {
			return e.value, nil
		}
		return nil, fmt.Errorf("unexpected %s value %T", EntityUnion, v)
	}
	return r.base.ResolveUnionConcreteValue(ctx, unionTypeName, v)
}

func (r *runtime) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, v any) (any, error) {
	return r.base.ResolveInterfaceConcreteValue(ctx, interfaceTypeName, v)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typeName string, v any) (any, error) {
	switch typeName {
	case AnyScalar:
		if val, ok := v.(value.Value); ok {
			return value.ToGo(val), nil
		}
		return v, nil
	case FieldSetScalar:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%s must be a string, got %T", FieldSetScalar, v)
	}
	return r.base.SerializeLeafValue(ctx, typeName, v)
}
