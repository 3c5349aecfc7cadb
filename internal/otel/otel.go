package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/fedgraph/internal/eventbus"
	events "github.com/hanpama/fedgraph/internal/events"
	reqid "github.com/hanpama/fedgraph/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const tracerName = "fedgraph"

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(service))
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	unsubscribe := Subscribe(tp)
	return func(ctx context.Context) error {
		defer unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Subscribe records spans for bus events with tp:
//
//	http.request
//	└── graphql.operation
//	    └── federation.entities
//	        └── grpc.client
//
// Spans are correlated by request id.
func Subscribe(tp trace.TracerProvider) (unsubscribe func()) {
	s := &subscriber{tracer: tp.Tracer(tracerName), calls: map[grpcKey][]trace.Span{}}
	return s.register()
}

type grpcKey struct {
	rid    int64
	method string
	target string
}

// spans holds the open span of one kind per request id.
type spans struct{ m sync.Map }

func (o *spans) open(ctx context.Context, span trace.Span) {
	o.m.Store(requestID(ctx), span)
}

func (o *spans) get(ctx context.Context) (trace.Span, bool) {
	v, ok := o.m.Load(requestID(ctx))
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (o *spans) close(ctx context.Context) (trace.Span, bool) {
	v, ok := o.m.LoadAndDelete(requestID(ctx))
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func requestID(ctx context.Context) int64 {
	rid, _ := reqid.FromContext(ctx)
	return rid
}

type subscriber struct {
	tracer trace.Tracer

	http, graphql, entities spans

	// Entity calls of one request overlap; finished calls close the oldest
	// open span with the same key.
	mu    sync.Mutex
	calls map[grpcKey][]trace.Span
}

// within returns ctx carrying the innermost open span of the request.
func within(ctx context.Context, outer ...*spans) context.Context {
	for _, o := range outer {
		if span, ok := o.get(ctx); ok {
			return trace.ContextWithSpan(ctx, span)
		}
	}
	return ctx
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			_, span := s.tracer.Start(ctx, "http.request", trace.WithAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
			))
			s.http.open(ctx, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			if span, ok := s.http.close(ctx); ok {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
				span.End()
			}
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
			_, span := s.tracer.Start(within(ctx, &s.http), "graphql.operation", trace.WithAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			))
			s.graphql.open(ctx, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			if span, ok := s.graphql.close(ctx); ok {
				span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
				span.End()
			}
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.EntityBatchStart) {
			_, span := s.tracer.Start(within(ctx, &s.graphql, &s.http), "federation.entities",
				trace.WithAttributes(attribute.Int("federation.batch_size", e.Size)))
			s.entities.open(ctx, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.EntityResolveFinish) {
			if e.Err == nil {
				return
			}
			if span, ok := s.entities.get(ctx); ok {
				span.RecordError(e.Err, trace.WithAttributes(
					attribute.String("federation.typename", e.TypeName),
					attribute.Int("federation.index", e.Index),
				))
			}
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.EntityBatchFinish) {
			span, ok := s.entities.close(ctx)
			if !ok {
				return
			}
			span.SetAttributes(attribute.Int("federation.failed", e.Failed))
			if e.Failed > 0 {
				span.SetStatus(codes.Error, "entity resolution failed")
			}
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GRPCClientStart) {
			_, span := s.tracer.Start(within(ctx, &s.entities, &s.graphql, &s.http), "grpc.client", trace.WithAttributes(
				semconv.RPCServiceKey.String(e.Service),
				semconv.RPCMethodKey.String(e.Method),
				attribute.String("net.peer.name", e.Target),
			))
			k := grpcKey{requestID(ctx), e.Method, e.Target}
			s.mu.Lock()
			s.calls[k] = append(s.calls[k], span)
			s.mu.Unlock()
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GRPCClientFinish) {
			k := grpcKey{requestID(ctx), e.Method, e.Target}
			s.mu.Lock()
			pending := s.calls[k]
			if len(pending) == 0 {
				s.mu.Unlock()
				return
			}
			span := pending[0]
			if s.calls[k] = pending[1:]; len(s.calls[k]) == 0 {
				delete(s.calls, k)
			}
			s.mu.Unlock()

			span.SetAttributes(attribute.String("grpc.code", e.Code.String()))
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
