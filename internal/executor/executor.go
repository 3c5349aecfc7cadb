package executor

import (
	"context"
	"errors"
	"fmt"

	language "github.com/hanpama/fedgraph/internal/language"
	schema "github.com/hanpama/fedgraph/internal/schema"
)

// Executor executes operations for one schema and runtime. It holds no
// per-request state and may be shared.
type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// ExecuteRequest executes the operation called operationName in document.
// An empty operationName selects the document's only operation.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	op, err := selectOperation(document, operationName)
	if err != nil {
		return requestFailure(err)
	}
	root, err := e.rootType(op.Operation)
	if err != nil {
		return requestFailure(err)
	}
	vars, err := coerceVariables(e.schema, op, variableValues)
	if err != nil {
		return requestFailure(err)
	}

	ex := &execution{
		ctx:       ctx,
		runtime:   e.runtime,
		schema:    e.schema,
		document:  document,
		variables: vars,
		pruned:    map[string]struct{}{},
		located:   map[string]struct{}{},
	}
	data := ex.selectionSet(root, op.SelectionSet, initialValue, nil, nil)
	for len(ex.queue) > 0 {
		ex.drain(data)
	}
	return &ExecutionResult{Data: data, Errors: ex.errors}
}

func (e *Executor) rootType(op language.Operation) (*schema.Type, error) {
	switch op {
	case language.Query, language.Mutation, language.Subscription:
	default:
		return nil, fmt.Errorf("unsupported operation type %q", op)
	}
	t := e.schema.Root(string(op))
	if t == nil {
		return nil, fmt.Errorf("schema does not support %s operations", op)
	}
	return t, nil
}

func selectOperation(document *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if name == "" {
		switch len(document.Operations) {
		case 0:
			return nil, errors.New("document contains no operations")
		case 1:
			return document.Operations[0], nil
		default:
			return nil, errors.New("operation name is required when the document contains multiple operations")
		}
	}
	if op := document.Operations.ForName(name); op != nil {
		return op, nil
	}
	return nil, fmt.Errorf("unknown operation %q", name)
}

// requestFailure reports errors raised before execution started. Joined
// errors are reported one by one.
func requestFailure(err error) *ExecutionResult {
	list := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		list = joined.Unwrap()
	}
	res := &ExecutionResult{Errors: make([]GraphQLError, len(list))}
	for i, e := range list {
		res.Errors[i] = GraphQLError{Message: e.Error()}
	}
	return res
}

// execution is the state of one ExecuteRequest call.
type execution struct {
	ctx       context.Context
	runtime   Runtime
	schema    *schema.Schema
	document  *language.QueryDocument
	variables map[string]any

	queue  []queuedField
	errors []GraphQLError

	// pruned holds response positions that were nulled by a Non-Null
	// violation; located holds positions that already carry an error.
	pruned  map[string]struct{}
	located map[string]struct{}
}

// pending marks a response position whose value arrives with the next batch.
type pending struct{}

type queuedField struct {
	task     AsyncResolveTask
	typ      *schema.TypeRef
	nodes    []*language.Field
	boundary Path
}

// selectionSet executes set against source. It returns nil when a Non-Null
// field below a non-root object resolves to null.
func (ex *execution) selectionSet(obj *schema.Type, set language.SelectionSet, source any, path, boundary Path) map[string]any {
	out := make(map[string]any)
	for _, g := range ex.collect(obj, set) {
		at := path.with(g.key)
		name := g.nodes[0].Name
		if name == "__typename" {
			out[g.key] = obj.Name
			continue
		}
		def := obj.Field(name)
		if def == nil {
			ex.fail(at, "cannot query field %q on type %q", name, obj.Name)
			continue
		}
		v := ex.field(obj, def, source, g.nodes, at, boundary)
		if isNullish(v) {
			if def.Type.IsNonNull() && len(path) > 0 {
				return nil
			}
			v = nil
		}
		out[g.key] = v
	}
	return out
}

func (ex *execution) field(parent *schema.Type, def *schema.Field, source any, nodes []*language.Field, path, boundary Path) any {
	b := nullableAt(def.Type, path, boundary)
	args, ok := ex.arguments(def, nodes[0].Arguments, path)
	if !ok {
		return ex.complete(def.Type, nodes, nil, path, b)
	}
	if def.Async {
		ex.queue = append(ex.queue, queuedField{
			task: AsyncResolveTask{
				ObjectType: parent.Name,
				Field:      def.Name,
				Source:     source,
				Args:       args,
				Path:       path,
			},
			typ:      def.Type,
			nodes:    nodes,
			boundary: b,
		})
		return pending{}
	}
	v, err := ex.runtime.ResolveSync(ex.ctx, parent.Name, def.Name, source, args)
	if err != nil {
		ex.locate(err, path)
		v = nil
	}
	return ex.complete(def.Type, nodes, v, path, b)
}

// drain resolves one depth of queued fields and writes the completed values
// into data.
func (ex *execution) drain(data map[string]any) {
	live := make([]queuedField, 0, len(ex.queue))
	for _, q := range ex.queue {
		if !ex.isPruned(q.task.Path) {
			live = append(live, q)
		}
	}
	ex.queue = nil
	if len(live) == 0 {
		return
	}

	tasks := make([]AsyncResolveTask, len(live))
	for i, q := range live {
		tasks[i] = q.task
	}
	results := ex.runtime.BatchResolveAsync(ex.ctx, tasks)
	for i, q := range live {
		var r AsyncResolveResult
		if i < len(results) {
			r = results[i]
		} else {
			r.Error = fmt.Errorf("runtime returned %d results for %d tasks", len(results), len(tasks))
		}
		ex.settle(data, q, r)
	}
}

func (ex *execution) settle(data map[string]any, q queuedField, r AsyncResolveResult) {
	path := q.task.Path
	if ex.isPruned(path) {
		return
	}
	v := r.Value
	if r.Error != nil {
		ex.locate(r.Error, path)
		v = nil
	}
	out := ex.complete(q.typ, q.nodes, v, path, q.boundary)
	if isNullish(out) {
		if q.typ.IsNonNull() {
			writeAt(data, q.boundary, nil)
			return
		}
		out = nil
	}
	writeAt(data, path, out)
}

// nullableAt returns the closest position at or above path that may hold
// null for a value of type t.
func nullableAt(t *schema.TypeRef, path, inherited Path) Path {
	if !t.IsNonNull() || len(inherited) == 0 {
		return path
	}
	return inherited
}

func (ex *execution) prune(p Path) {
	if len(p) > 0 {
		ex.pruned[p.String()] = struct{}{}
	}
}

func (ex *execution) isPruned(p Path) bool {
	if len(ex.pruned) == 0 {
		return false
	}
	for i := 1; i <= len(p); i++ {
		if _, ok := ex.pruned[p[:i].String()]; ok {
			return true
		}
	}
	return false
}
