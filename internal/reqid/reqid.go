// Package reqid tags a context with the id of the request it serves.
package reqid

import (
	"context"
	"math"
	"math/rand/v2"
	"strconv"
)

type key struct{}

// NewContext stores a fresh positive id in parent and returns it.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int64N(math.MaxInt64) + 1
	return WithID(parent, id), id
}

// WithID stores id in parent.
func WithID(parent context.Context, id int64) context.Context {
	return context.WithValue(parent, key{}, id)
}

// FromContext returns the id stored in ctx, if any.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}

// Parse accepts ids produced by NewContext in their decimal form.
func Parse(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
