// Package eventbus dispatches in-process events by their Go type. Logging,
// metrics and tracing subscribe to the events the server, the executor and
// the entity transport publish.
package eventbus

import (
	"context"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

type handler struct {
	id uint64
	fn func(context.Context, any)
}

// Bus holds the handlers of each event type. Handler lists are replaced,
// never mutated, so Publish can iterate them without holding the lock.
type Bus struct {
	mu       sync.Mutex
	lastID   uint64
	handlers map[reflect.Type][]handler
}

func New() *Bus { return &Bus{handlers: map[reflect.Type][]handler{}} }

func (b *Bus) add(t reflect.Type, fn func(context.Context, any)) func() {
	b.mu.Lock()
	b.lastID++
	id := b.lastID
	b.handlers[t] = append(slices.Clip(b.handlers[t]), handler{id, fn})
	b.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { b.remove(t, id) }) }
}

func (b *Bus) remove(t reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := slices.DeleteFunc(slices.Clone(b.handlers[t]), func(h handler) bool { return h.id == id })
	if len(hs) == 0 {
		delete(b.handlers, t)
		return
	}
	b.handlers[t] = hs
}

func (b *Bus) dispatch(ctx context.Context, t reflect.Type, e any) {
	b.mu.Lock()
	hs := b.handlers[t]
	b.mu.Unlock()
	for _, h := range hs {
		h.fn(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use sets the global bus. Passing nil disables event publishing.
func Use(b *Bus) { global.Store(b) }

// Subscribe registers h with the global bus. Without a bus it does nothing
// and the returned func is a no-op.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	b := global.Load()
	if b == nil {
		return func() {}
	}
	return b.add(reflect.TypeFor[T](), func(ctx context.Context, e any) { h(ctx, e.(T)) })
}

// Publish calls the handlers subscribed to T in subscription order.
func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		b.dispatch(ctx, reflect.TypeFor[T](), e)
	}
}
