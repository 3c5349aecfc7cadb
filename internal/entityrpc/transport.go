package entityrpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	eventbus "github.com/hanpama/fedgraph/internal/eventbus"
	events "github.com/hanpama/fedgraph/internal/events"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Caller executes one unary call of a contract method. Implementations must
// be safe for concurrent use: entity representations resolve in parallel.
type Caller interface {
	Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error)
}

var (
	errClosed     = errors.New("entityrpc: closed")
	errNoProvider = errors.New("entityrpc: provider not configured")
)

// Transport is the gRPC Caller. Every backend endpoint gets a small set of
// long-lived client connections which calls share round-robin.
type Transport struct {
	opts *Options

	mu        sync.Mutex
	endpoints map[string]*endpointConns
	closed    atomic.Bool
	next      atomic.Uint64
}

var _ Caller = (*Transport)(nil)

func NewTransport(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	if o.MaxConnsPerEndpoint <= 0 {
		o.MaxConnsPerEndpoint = 1
	}
	return &Transport{opts: o, endpoints: map[string]*endpointConns{}}
}

func (t *Transport) Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error) {
	if t.closed.Load() {
		return nil, errClosed
	}
	if t.opts.Provider == nil {
		return nil, errNoProvider
	}
	service := string(method.Parent().FullName())

	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "x-fedgraph-service", service)

	targets, err := t.opts.Provider.Endpoints(ctx, service)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoEndpoints
	}
	target := targets[t.next.Add(1)%uint64(len(targets))]
	cc, err := t.conn(target)
	if err != nil {
		return nil, err
	}

	ev := events.GRPCClientStart{Service: service, Method: string(method.Name()), Target: target}
	eventbus.Publish(ctx, ev)
	start := time.Now()

	resp := dynamicpb.NewMessage(method.Output())
	err = cc.Invoke(ctx, "/"+service+"/"+string(method.Name()), request.Interface(), resp)

	eventbus.Publish(ctx, events.GRPCClientFinish{
		Service:  ev.Service,
		Method:   ev.Method,
		Target:   target,
		Code:     status.Code(err),
		Err:      err,
		Duration: time.Since(start),
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Close closes every connection. Calls made afterwards fail.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for _, ec := range t.endpoints {
		for _, cc := range ec.conns {
			if cc != nil {
				errs = append(errs, cc.Close())
			}
		}
	}
	t.endpoints = map[string]*endpointConns{}
	return errors.Join(errs...)
}

type endpointConns struct {
	conns []*grpc.ClientConn
	next  uint64
}

// conn returns the next connection for target, creating it on first use.
// grpc.NewClient does not dial; the connection is established by the first
// RPC that uses it.
func (t *Transport) conn(target string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return nil, errClosed
	}
	ec := t.endpoints[target]
	if ec == nil {
		ec = &endpointConns{conns: make([]*grpc.ClientConn, t.opts.MaxConnsPerEndpoint)}
		t.endpoints[target] = ec
	}
	i := ec.next % uint64(len(ec.conns))
	ec.next++
	if ec.conns[i] == nil {
		cc, err := grpc.NewClient(target, t.opts.DialOptions...)
		if err != nil {
			return nil, err
		}
		ec.conns[i] = cc
	}
	return ec.conns[i], nil
}
