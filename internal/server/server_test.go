package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	eventbus "github.com/hanpama/fedgraph/internal/eventbus"
	events "github.com/hanpama/fedgraph/internal/events"
	executortest "github.com/hanpama/fedgraph/internal/executor/executortest"
	reqid "github.com/hanpama/fedgraph/internal/reqid"
	schema "github.com/hanpama/fedgraph/internal/schema"
	services "github.com/hanpama/fedgraph/internal/services"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func newTestHandler(t *testing.T, rt *executortest.Runtime, opts ...Option) *Handler {
	t.Helper()
	sch, err := schema.BuildFromSDL(`type Query { hello(name: String): String }`)
	require.NoError(t, err)
	h, err := New(rt, sch, opts...)
	require.NoError(t, err)
	return h
}

func hello() *executortest.Runtime {
	return executortest.New().Handle("Query", "hello", executortest.Returns("world"))
}

func serve(h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetAndPost(t *testing.T) {
	rt := executortest.New().Handle("Query", "hello", func(_ context.Context, _ any, args map[string]any) (any, error) {
		name, _ := args["name"].(string)
		return "hello " + name, nil
	})
	h := newTestHandler(t, rt)

	w := serve(h, "GET", `/?query=query($n:String){hello(name:$n)}&variables={"n":"ada"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data":{"hello":"hello ada"}}`, w.Body.String())
	require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	w = serve(h, "POST", "/", `{"query":"query Q { hello(name: \"bob\") }","operationName":"Q"}`, "Content-Type", "application/json; charset=utf-8")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data":{"hello":"hello bob"}}`, w.Body.String())
}

func TestForwardedHeaders(t *testing.T) {
	for _, tc := range []struct {
		name    string
		opts    []Option
		forward bool
	}{
		{name: "configured", opts: []Option{WithMetadataHeaders("X-Test")}, forward: true},
		{name: "default"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var captured metadata.MD
			rt := executortest.New().Handle("Query", "hello", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
				captured, _ = metadata.FromOutgoingContext(ctx)
				return "world", nil
			})
			h := newTestHandler(t, rt, tc.opts...)

			w := serve(h, "POST", "/", `{"query":"{ hello }"}`, "X-Test", "abc", "X-Other", "nope")

			require.Equal(t, http.StatusOK, w.Code)
			require.Empty(t, captured.Get("x-other"))
			if tc.forward {
				require.Equal(t, []string{"abc"}, captured.Get("x-test"))
			} else {
				require.Empty(t, captured.Get("x-test"))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var md metadata.MD
	var id int64
	rt := executortest.New().Handle("Query", "hello", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
		md, _ = metadata.FromOutgoingContext(ctx)
		id, _ = reqid.FromContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt)

	w := serve(h, "POST", "/", `{"query":"{ hello }"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotZero(t, id)
	require.Equal(t, []string{strconv.FormatInt(id, 10)}, md.Get(RequestIDMetadata))

	serve(h, "POST", "/", `{"query":"{ hello }"}`, RequestIDHeader, "4242")
	require.Equal(t, int64(4242), id)
	require.Equal(t, []string{"4242"}, md.Get(RequestIDMetadata))
}

func TestCORS(t *testing.T) {
	h := newTestHandler(t, hello(), WithCORS("https://shop.example"))

	w := serve(h, "POST", "/", `{"query":"{ hello }"}`, "Origin", "https://shop.example")
	require.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", w.Header().Get("Vary"))

	w = serve(h, "POST", "/", `{"query":"{ hello }"}`, "Origin", "https://evil.example")
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(newTestHandler(t, hello(), WithCORS("*")), "OPTIONS", "/", "",
		"Origin", "https://any.example", "Access-Control-Request-Headers", "X-Test")
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Test", w.Header().Get("Access-Control-Allow-Headers"))
	require.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestRejectedRequests(t *testing.T) {
	h := newTestHandler(t, hello(), WithMaxBodyBytes(24))
	for _, tc := range []struct {
		name, method, target, body, contentType string
		status                                  int
		message                                 string
	}{
		{name: "body too large", method: "POST", target: "/", body: `{"query":"{ hello hello hello }"}`, status: http.StatusRequestEntityTooLarge, message: "request body exceeds 24 bytes"},
		{name: "empty batch", method: "POST", target: "/", body: `[]`, status: http.StatusBadRequest, message: "empty batch"},
		{name: "missing query", method: "POST", target: "/", body: `{}`, status: http.StatusBadRequest, message: "missing query"},
		{name: "missing query param", method: "GET", target: "/", status: http.StatusBadRequest, message: "missing query"},
		{name: "method", method: "PUT", target: "/", body: `{}`, status: http.StatusMethodNotAllowed, message: "method not allowed"},
		{name: "content type", method: "POST", target: "/", body: `{ hello }`, contentType: "application/graphql", status: http.StatusUnsupportedMediaType, message: `unsupported content type "application/graphql"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var header []string
			if tc.contentType != "" {
				header = []string{"Content-Type", tc.contentType}
			}
			w := serve(h, tc.method, tc.target, tc.body, header...)
			require.Equal(t, tc.status, w.Code)
			require.JSONEq(t, `{"errors":[{"message":`+strconv.Quote(tc.message)+`}]}`, w.Body.String())
		})
	}
}

func TestBatch(t *testing.T) {
	h := newTestHandler(t, hello())

	w := serve(h, "POST", "/", `[{"query":"{ hello }"},{"query":"{ a: hello }"},{"query":"{ hello"}]`)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[
		{"data":{"hello":"world"}},
		{"data":{"a":"world"}},
		{"errors":[{"message":"Expected Name, found <EOF>","locations":[{"line":1,"column":8}]}]}
	]`, w.Body.String())
}

type codedErr struct{}

func (codedErr) Error() string              { return "not allowed" }
func (codedErr) Extensions() map[string]any { return map[string]any{"code": "FORBIDDEN"} }

func TestErrorResponses(t *testing.T) {
	h := newTestHandler(t, executortest.New().Handle("Query", "hello", executortest.Fails(codedErr{})))

	w := serve(h, "POST", "/", `{"query":"{ hello }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"data": {"hello": null},
		"errors": [{"message": "not allowed", "path": ["hello"], "extensions": {"code": "FORBIDDEN"}}]
	}`, w.Body.String())

	w = serve(h, "POST", "/", `{"query":"query($n: String!) { hello(name: $n) }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"errors": [{"message": "variable $n of required type String! was not provided"}]}`, w.Body.String())
}

type session struct {
	user   string
	closed bool
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

func TestServicesScopePerRequest(t *testing.T) {
	coll := services.NewCollection()
	var created []*session
	services.AddScoped(coll, func(ctx context.Context, p services.Provider) (*session, error) {
		s := &session{user: "u" + strconv.Itoa(len(created))}
		created = append(created, s)
		return s, nil
	})

	rt := executortest.New().Handle("Query", "hello", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
		p, ok := services.FromContext(ctx)
		if !ok {
			return nil, errors.New("no provider")
		}
		s, err := services.Resolve[*session](p)
		if err != nil {
			return nil, err
		}
		return s.user, nil
	})
	h := newTestHandler(t, rt, WithServices(coll))

	for i := 0; i < 2; i++ {
		w := serve(h, "GET", "/?query=%7B+hello+a%3Ahello+%7D", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"data":{"hello":"u`+strconv.Itoa(i)+`","a":"u`+strconv.Itoa(i)+`"}}`, w.Body.String())
	}
	require.Len(t, created, 2)
	require.True(t, created[0].closed)
	require.True(t, created[1].closed)
}

func TestPublishesRequestEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	var mu sync.Mutex
	var seen []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	}
	t.Cleanup(eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) { record("http " + strconv.Itoa(e.Status)) }))
	t.Cleanup(eventbus.Subscribe(func(_ context.Context, e events.GraphQLStart) { record("graphql " + e.OperationType) }))
	t.Cleanup(eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) { record("errors " + strconv.Itoa(len(e.Errors))) }))

	h := newTestHandler(t, hello())
	serve(h, "POST", "/", `{"query":"{ hello }"}`)
	serve(h, "DELETE", "/", "")

	require.Equal(t, []string{"graphql query", "errors 0", "http 200", "http 405"}, seen)
}
