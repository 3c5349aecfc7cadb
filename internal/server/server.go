// Package server serves a subgraph's schema over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	eventbus "github.com/hanpama/fedgraph/internal/eventbus"
	events "github.com/hanpama/fedgraph/internal/events"
	executor "github.com/hanpama/fedgraph/internal/executor"
	language "github.com/hanpama/fedgraph/internal/language"
	reqid "github.com/hanpama/fedgraph/internal/reqid"
	schema "github.com/hanpama/fedgraph/internal/schema"
	services "github.com/hanpama/fedgraph/internal/services"
	"google.golang.org/grpc/metadata"
)

// RequestIDMetadata is the outgoing gRPC metadata key carrying the request id.
const RequestIDMetadata = "graphql-request-id"

// RequestIDHeader, when it holds a valid id, is reused as the request id.
const RequestIDHeader = "X-Request-Id"

// Handler answers GraphQL requests sent as GET query parameters or JSON
// POST bodies, including batches.
type Handler struct {
	exec    *executor.Executor
	opt     Options
	forward map[string]struct{}
}

type Options struct {
	// Timeout bounds requests whose context has no deadline. Zero disables it.
	Timeout time.Duration

	Pretty bool

	// MaxBodyBytes limits POST bodies. Zero means unlimited.
	MaxBodyBytes int64

	// CORSOrigins lists allowed origins; "*" allows any. Empty disables CORS.
	CORSOrigins []string

	// MetadataHeaders names request headers copied into outgoing gRPC
	// metadata, matched case-insensitively.
	MetadataHeaders []string

	// Services, when set, gets a scope per request. Resolvers reach it with
	// services.FromContext; the scope is closed after the response is written.
	Services *services.Collection
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option           { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                           { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option              { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option            { return func(o *Options) { o.CORSOrigins = origins } }
func WithMetadataHeaders(headers ...string) Option { return func(o *Options) { o.MetadataHeaders = headers } }
func WithServices(c *services.Collection) Option   { return func(o *Options) { o.Services = c } }

func New(runtime executor.Runtime, schema *schema.Schema, opts ...Option) (*Handler, error) {
	h := &Handler{
		exec:    executor.NewExecutor(runtime, schema),
		opt:     Options{Timeout: 10 * time.Second},
		forward: map[string]struct{}{},
	}
	for _, f := range opts {
		f(&h.opt)
	}
	for _, name := range h.opt.MetadataHeaders {
		h.forward[strings.ToLower(name)] = struct{}{}
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	rid, ok := reqid.Parse(r.Header.Get(RequestIDHeader))
	if ok {
		ctx = reqid.WithID(ctx, rid)
	} else {
		ctx, rid = reqid.NewContext(ctx)
	}

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: sw.status, Duration: time.Since(start)})
	}()

	h.allowOrigin(sw, r)
	switch r.Method {
	case http.MethodOptions:
		sw.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet, http.MethodPost:
	default:
		sw.Header().Set("Allow", "GET, POST, OPTIONS")
		h.writeError(sw, &requestError{status: http.StatusMethodNotAllowed, msg: "method not allowed"})
		return
	}

	reqs, batched, err := decodeRequests(sw, r, h.opt.MaxBodyBytes)
	if err != nil {
		h.writeError(sw, err)
		return
	}

	if h.opt.Services != nil {
		scope := h.opt.Services.NewScope(ctx)
		defer func() { _ = scope.Close() }()
		ctx = services.WithProvider(ctx, scope)
	}
	ctx = metadata.NewOutgoingContext(ctx, h.outgoing(r, rid))

	out := make([]any, len(reqs))
	for i, req := range reqs {
		out[i] = h.execute(ctx, req)
	}
	if batched {
		h.writeJSON(sw, http.StatusOK, out)
		return
	}
	h.writeJSON(sw, http.StatusOK, out[0])
}

// outgoing builds the gRPC metadata for calls made while serving r.
func (h *Handler) outgoing(r *http.Request, rid int64) metadata.MD {
	md := metadata.MD{}
	for name, values := range r.Header {
		if _, ok := h.forward[strings.ToLower(name)]; ok {
			md.Append(name, values...)
		}
	}
	md.Set(RequestIDMetadata, strconv.FormatInt(rid, 10))
	return md
}

func (h *Handler) execute(ctx context.Context, req Request) any {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return syntaxFailure(err)
	}

	opType := ""
	if op := doc.Operations.ForName(req.OperationName); op != nil {
		opType = string(op.Operation)
	}
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	res := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	errs := make([]error, len(res.Errors))
	for i, e := range res.Errors {
		errs[i] = e
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return newResponse(res)
}

// statusWriter remembers the status code written.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
