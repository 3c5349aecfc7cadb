package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type clock struct{ name string }

type repo struct {
	clock  *clock
	closed *[]string
	id     string
}

func (r *repo) Close() error {
	*r.closed = append(*r.closed, r.id)
	if r.id == "bad" {
		return errors.New("close failed")
	}
	return nil
}

func TestSingletonAndScoped(t *testing.T) {
	c := NewCollection()
	AddSingleton(c, &clock{name: "utc"})
	created := 0
	var closed []string
	AddScoped(c, func(ctx context.Context, p Provider) (*repo, error) {
		created++
		clk, err := Resolve[*clock](p)
		if err != nil {
			return nil, err
		}
		return &repo{clock: clk, closed: &closed, id: "repo"}, nil
	})

	scope := c.NewScope(context.Background())
	r1, err := Resolve[*repo](scope)
	require.NoError(t, err)
	r2, err := Resolve[*repo](scope)
	require.NoError(t, err)
	require.Same(t, r1, r2)
	require.Equal(t, "utc", r1.clock.name)
	require.Equal(t, 1, created)

	other := c.NewScope(context.Background())
	r3, err := Resolve[*repo](other)
	require.NoError(t, err)
	require.NotSame(t, r1, r3)

	require.NoError(t, scope.Close())
	require.NoError(t, scope.Close())
	require.Equal(t, []string{"repo"}, closed)

	_, err = Resolve[*repo](scope)
	require.Error(t, err)
}

func TestResolveNotRegistered(t *testing.T) {
	c := NewCollection()
	_, err := Resolve[*clock](c.NewScope(context.Background()))
	require.ErrorIs(t, err, ErrNotRegistered)

	_, err = Resolve[*clock](nil)
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestCollectionServesSingletonsOnly(t *testing.T) {
	c := NewCollection()
	AddSingleton(c, &clock{})
	AddScoped(c, func(context.Context, Provider) (*repo, error) { return &repo{}, nil })

	_, err := Resolve[*clock](c)
	require.NoError(t, err)
	_, err = Resolve[*repo](c)
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestCloseJoinsErrors(t *testing.T) {
	c := NewCollection()
	var closed []string
	AddScoped(c, func(context.Context, Provider) (*repo, error) {
		return &repo{closed: &closed, id: "bad"}, nil
	})
	scope := c.NewScope(context.Background())
	_, err := Resolve[*repo](scope)
	require.NoError(t, err)
	require.EqualError(t, scope.Close(), "close failed")
}

func TestProviderContext(t *testing.T) {
	c := NewCollection()
	scope := c.NewScope(context.Background())
	ctx := WithProvider(context.Background(), scope)
	p, ok := FromContext(ctx)
	require.True(t, ok)
	require.Same(t, scope, p)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
}

type conn struct{ closed *atomic.Int32 }

func (c *conn) Close() error {
	c.closed.Add(1)
	return nil
}

func TestConcurrentResolveCreatesOnce(t *testing.T) {
	var created, closed atomic.Int32
	release := make(chan struct{})
	c := NewCollection()
	AddScoped(c, func(context.Context, Provider) (*conn, error) {
		created.Add(1)
		<-release
		return &conn{closed: &closed}, nil
	})
	scope := c.NewScope(context.Background())

	got := make([]*conn, 8)
	errs := make([]error, len(got))
	var wg sync.WaitGroup
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i], errs[i] = Resolve[*conn](scope)
		}()
	}
	close(release)
	wg.Wait()

	for i, v := range got {
		require.NoError(t, errs[i])
		require.Same(t, got[0], v)
	}
	require.NoError(t, scope.Close())
	require.Equal(t, int32(1), created.Load())
	require.Equal(t, int32(1), closed.Load())
}

func TestInstanceFinishedAfterCloseIsClosed(t *testing.T) {
	var closed atomic.Int32
	started, release := make(chan struct{}), make(chan struct{})
	c := NewCollection()
	AddScoped(c, func(context.Context, Provider) (*conn, error) {
		close(started)
		<-release
		return &conn{closed: &closed}, nil
	})
	scope := c.NewScope(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := Resolve[*conn](scope)
		errc <- err
	}()
	<-started
	require.NoError(t, scope.Close())
	close(release)

	require.EqualError(t, <-errc, "services: scope closed")
	require.Equal(t, int32(1), closed.Load())
}

func TestFailedFactoryIsRetried(t *testing.T) {
	calls := 0
	c := NewCollection()
	AddScoped(c, func(context.Context, Provider) (*clock, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("unavailable")
		}
		return &clock{name: "utc"}, nil
	})
	scope := c.NewScope(context.Background())

	_, err := Resolve[*clock](scope)
	require.EqualError(t, err, "services: create *services.clock: unavailable")
	v, err := Resolve[*clock](scope)
	require.NoError(t, err)
	require.Equal(t, "utc", v.name)
}
