package entityrpc

import (
	"context"
	"errors"
	"sync"
)

// ErrNoEndpoints indicates the provider returned no endpoints for a service.
var ErrNoEndpoints = errors.New("entityrpc: no endpoints available")

// EndpointProvider lists reachable endpoints (host:port) for a fully-qualified
// gRPC service name. Implementations must be safe for concurrent use.
type EndpointProvider interface {
	Endpoints(ctx context.Context, service string) ([]string, error)
}

// Wildcard is the StaticEndpoints key used for services without their own
// entry.
const Wildcard = "*"

// StaticEndpoints is a provider backed by an in-memory map keyed by service
// name.
type StaticEndpoints struct {
	mu   sync.RWMutex
	data map[string][]string
}

func NewStaticEndpoints(m map[string][]string) *StaticEndpoints {
	cp := make(map[string][]string, len(m))
	for k, v := range m {
		vv := make([]string, len(v))
		copy(vv, v)
		cp[k] = vv
	}
	return &StaticEndpoints{data: cp}
}

func (s *StaticEndpoints) Endpoints(ctx context.Context, service string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.data[service]
	if len(arr) == 0 {
		arr = s.data[Wildcard]
	}
	if len(arr) == 0 {
		return nil, ErrNoEndpoints
	}
	out := make([]string, len(arr))
	copy(out, arr)
	return out, nil
}
