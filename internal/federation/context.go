package federation

import (
	"context"

	"github.com/hanpama/fedgraph/internal/executor"
	"github.com/hanpama/fedgraph/internal/services"
	"github.com/hanpama/fedgraph/internal/value"
)

// Representation is the map a gateway sends to identify an entity.
type Representation = value.Value

// FieldContext describes the _entities field being executed.
type FieldContext struct {
	ObjectType string
	Field      string
	Path       executor.Path
	Args       map[string]any
}

// ResolutionContext is handed to an entity resolver. A new one is built for
// every representation of every request.
type ResolutionContext struct {
	Field          FieldContext
	Services       services.Provider
	Representation Representation
	// Index is the position of the representation in the batch.
	Index int

	ctx context.Context
}

// Context returns the request context. Resolvers should stop work when it is
// done.
func (rc *ResolutionContext) Context() context.Context { return rc.ctx }

// Done is the request cancellation signal.
func (rc *ResolutionContext) Done() <-chan struct{} { return rc.ctx.Done() }

// Err reports why the request was cancelled, if it was.
func (rc *ResolutionContext) Err() error { return rc.ctx.Err() }

// TypeName returns the __typename of the representation.
func (rc *ResolutionContext) TypeName() string {
	name, _ := rc.Representation.GetString("__typename")
	return name
}

// Service resolves a request-scoped or singleton service of type T.
func Service[T any](rc *ResolutionContext) (T, error) {
	return services.Resolve[T](rc.Services)
}
