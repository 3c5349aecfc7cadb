package federation

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/fedgraph/internal/eventbus"
	"github.com/hanpama/fedgraph/internal/events"
	"github.com/hanpama/fedgraph/internal/services"
	"github.com/hanpama/fedgraph/internal/value"
)

// Outcome is the result of one representation. Exactly one of Value and Err
// is meaningful; a nil Value without Err means not found.
type Outcome struct {
	TypeName string
	Value    any
	Err      error
}

// Dispatcher resolves _entities representations against a registry.
type Dispatcher struct {
	registry *Registry
	// limit bounds the number of concurrent resolvers; <= 0 is unbounded.
	limit int
}

func NewDispatcher(registry *Registry, maxConcurrency int) *Dispatcher {
	return &Dispatcher{registry: registry, limit: maxConcurrency}
}

// Dispatch resolves every representation concurrently and returns one outcome
// per representation, in input order. A failing representation never cancels
// the others.
func (d *Dispatcher) Dispatch(ctx context.Context, field FieldContext, reps []value.Value) []Outcome {
	outcomes := make([]Outcome, len(reps))
	if len(reps) == 0 {
		return outcomes
	}

	provider, _ := services.FromContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.EntityBatchStart{Size: len(reps)})

	// No derived context: a failed slot must not cancel its siblings.
	var g errgroup.Group
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}
	for i, rep := range reps {
		g.Go(func() error {
			outcomes[i] = d.resolveOne(ctx, field, provider, i, rep)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	eventbus.Publish(ctx, events.EntityBatchFinish{Size: len(reps), Failed: failed, Duration: time.Since(start)})
	return outcomes
}

// Resolve is Dispatch returning plain values. The error joins every per-slot
// failure; values of failed slots are nil.
func (d *Dispatcher) Resolve(ctx context.Context, field FieldContext, reps []value.Value) ([]any, error) {
	outcomes := d.Dispatch(ctx, field, reps)
	values := make([]any, len(outcomes))
	var errs []error
	for i, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
			continue
		}
		values[i] = o.Value
	}
	return values, errors.Join(errs...)
}

func (d *Dispatcher) resolveOne(ctx context.Context, field FieldContext, provider services.Provider, index int, rep value.Value) (out Outcome) {
	start := time.Now()
	defer func() {
		eventbus.Publish(ctx, events.EntityResolveFinish{
			TypeName: out.TypeName,
			Index:    index,
			Found:    out.Err == nil && out.Value != nil,
			Err:      out.Err,
			Duration: time.Since(start),
		})
	}()

	tn, ok := rep.Get("__typename")
	if !ok {
		return Outcome{Err: &MissingTypenameError{Index: index}}
	}
	typeName, ok := tn.AsString()
	if !ok {
		return Outcome{Err: &InvalidTypenameError{Index: index, Kind: tn.Kind().String()}}
	}
	fn, ok := d.registry.Lookup(typeName)
	if !ok {
		return Outcome{TypeName: typeName, Err: &EntityNotFoundError{TypeName: typeName, Index: index}}
	}

	rc := &ResolutionContext{
		Field:          field,
		Services:       provider,
		Representation: rep,
		Index:          index,
		ctx:            ctx,
	}
	v, err := invoke(fn, rc)
	if err != nil {
		return Outcome{TypeName: typeName, Err: &ResolverExecutionError{TypeName: typeName, Index: index, Cause: err}}
	}
	return Outcome{TypeName: typeName, Value: normalizeNil(v)}
}

func invoke(fn ResolverFn, rc *ResolutionContext) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &panicError{value: r}
		}
	}()
	return fn(rc)
}
