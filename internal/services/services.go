// Package services is a small service container. Singletons live for the
// process; scoped services are created lazily once per request scope.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
)

// ErrNotRegistered is returned when no service is registered for a type.
var ErrNotRegistered = errors.New("services: service not registered")

// Provider looks up services by Go type.
type Provider interface {
	Get(t reflect.Type) (any, error)
}

// Factory creates a scoped service. It may resolve other services from p.
type Factory func(ctx context.Context, p Provider) (any, error)

type registration struct {
	singleton any
	factory   Factory
}

// Collection holds service registrations. It is not safe to register
// services while scopes are in use.
type Collection struct {
	registrations map[reflect.Type]registration
}

func NewCollection() *Collection {
	return &Collection{registrations: make(map[reflect.Type]registration)}
}

// AddSingleton registers v as the process-wide instance of T.
func AddSingleton[T any](c *Collection, v T) {
	c.registrations[typeOf[T]()] = registration{singleton: v}
}

// AddScoped registers a factory creating one T per scope.
func AddScoped[T any](c *Collection, f func(ctx context.Context, p Provider) (T, error)) {
	c.registrations[typeOf[T]()] = registration{factory: func(ctx context.Context, p Provider) (any, error) {
		return f(ctx, p)
	}}
}

// Get resolves singletons only. It lets a Collection serve as a Provider
// outside of a request.
func (c *Collection) Get(t reflect.Type) (any, error) {
	reg, ok := c.registrations[t]
	if !ok || reg.factory != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	return reg.singleton, nil
}

// Scope is a per-request Provider. Close releases the scoped instances that
// implement io.Closer.
type Scope struct {
	ctx        context.Context
	collection *Collection

	mu        sync.Mutex
	instances map[reflect.Type]*instance
	order     []any
	closed    bool
}

// instance is a scoped service being created or already created. ready is
// closed once v and err are set.
type instance struct {
	ready chan struct{}
	v     any
	err   error
}

var errScopeClosed = errors.New("services: scope closed")

// NewScope opens a scope bound to ctx.
func (c *Collection) NewScope(ctx context.Context) *Scope {
	return &Scope{ctx: ctx, collection: c, instances: make(map[reflect.Type]*instance)}
}

// Get returns the instance of t, running its factory at most once per scope.
// Concurrent callers wait for the first one. A factory must not resolve its
// own type.
func (s *Scope) Get(t reflect.Type) (any, error) {
	reg, ok := s.collection.registrations[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	if reg.factory == nil {
		return reg.singleton, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errScopeClosed
	}
	if in, ok := s.instances[t]; ok {
		s.mu.Unlock()
		<-in.ready
		return in.v, in.err
	}
	in := &instance{ready: make(chan struct{})}
	s.instances[t] = in
	s.mu.Unlock()
	defer close(in.ready)

	// The factory runs unlocked so it can resolve its own dependencies.
	v, err := reg.factory(s.ctx, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		in.err = fmt.Errorf("services: create %s: %w", t, err)
		delete(s.instances, t)
	case s.closed:
		if c, ok := v.(io.Closer); ok {
			_ = c.Close()
		}
		in.err = errScopeClosed
	default:
		in.v = v
		s.order = append(s.order, v)
	}
	return in.v, in.err
}

// Close closes scoped instances in reverse creation order.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	order := s.order
	s.order = nil
	s.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if c, ok := order[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Resolve returns the service of type T from p.
func Resolve[T any](p Provider) (T, error) {
	var zero T
	if p == nil {
		return zero, fmt.Errorf("%w: %s", ErrNotRegistered, typeOf[T]())
	}
	v, err := p.Get(typeOf[T]())
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("services: %s registered with %T", typeOf[T](), v)
	}
	return out, nil
}

type providerKey struct{}

// WithProvider stores p in ctx.
func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext returns the Provider stored by WithProvider.
func FromContext(ctx context.Context) (Provider, bool) {
	p, ok := ctx.Value(providerKey{}).(Provider)
	return p, ok
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
