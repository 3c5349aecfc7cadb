// Package metrics exposes Prometheus metrics derived from bus events.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	eventbus "github.com/hanpama/fedgraph/internal/eventbus"
	events "github.com/hanpama/fedgraph/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so several servers can run in one
// process.
type Collector struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	graphqlOperations *prometheus.CounterVec
	graphqlDuration   *prometheus.HistogramVec
	entityResolutions *prometheus.CounterVec
	entityDuration    *prometheus.HistogramVec
	batchSize         prometheus.Histogram
	batchDuration     prometheus.Histogram
	rpcCalls          *prometheus.CounterVec
	rpcDuration       *prometheus.HistogramVec
}

// NewCollector registers every metric, plus the Go and process collectors,
// under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		graphqlOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_operations_total",
			Help:      "Executed GraphQL operations by type and result.",
		}, []string{"operation_type", "result"}),
		graphqlDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graphql_operation_duration_seconds",
			Help:      "GraphQL execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation_type"}),
		entityResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_resolutions_total",
			Help:      "Entity representations resolved, by type and outcome (found, not_found, error).",
		}, []string{"typename", "outcome"}),
		entityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_resolution_duration_seconds",
			Help:      "Latency of one entity resolver call.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"typename"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_batch_size",
			Help:      "Representations per _entities field.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_batch_duration_seconds",
			Help:      "Time to resolve every representation of an _entities field.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_backend_calls_total",
			Help:      "gRPC calls to entity backends by method and status code.",
		}, []string{"method", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_backend_call_duration_seconds",
			Help:      "Latency of gRPC calls to entity backends.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequests, c.httpDuration,
		c.graphqlOperations, c.graphqlDuration,
		c.entityResolutions, c.entityDuration,
		c.batchSize, c.batchDuration,
		c.rpcCalls, c.rpcDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Subscribe starts recording bus events. The returned func stops it.
func (c *Collector) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			c.httpRequests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
			c.httpDuration.WithLabelValues(e.Request.Method).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) {
			result := "ok"
			if len(e.Errors) > 0 {
				result = "error"
			}
			c.graphqlOperations.WithLabelValues(e.OperationType, result).Inc()
			c.graphqlDuration.WithLabelValues(e.OperationType).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.EntityResolveFinish) {
			outcome := "found"
			switch {
			case e.Err != nil:
				outcome = "error"
			case !e.Found:
				outcome = "not_found"
			}
			c.entityResolutions.WithLabelValues(e.TypeName, outcome).Inc()
			c.entityDuration.WithLabelValues(e.TypeName).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.EntityBatchFinish) {
			c.batchSize.Observe(float64(e.Size))
			c.batchDuration.Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GRPCClientFinish) {
			c.rpcCalls.WithLabelValues(e.Method, e.Code.String()).Inc()
			c.rpcDuration.WithLabelValues(e.Method).Observe(e.Duration.Seconds())
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
