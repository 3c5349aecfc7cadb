package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hanpama/fedgraph/internal/config"
	"github.com/hanpama/fedgraph/internal/entityrpc"
	"github.com/hanpama/fedgraph/internal/eventbus"
	"github.com/hanpama/fedgraph/internal/executor"
	"github.com/hanpama/fedgraph/internal/federation"
	"github.com/hanpama/fedgraph/internal/ir"
	"github.com/hanpama/fedgraph/internal/language"
	"github.com/hanpama/fedgraph/internal/localrt"
	"github.com/hanpama/fedgraph/internal/schema"
	"github.com/hanpama/fedgraph/internal/value"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const productsSDL = `type Query {
  topProducts: [Product]
}

type Product @key(fields: "upc") {
  upc: String!
  name: String
  price: Int
}
`

const usersSDL = `extend type User @key(fields: "id") {
  id: ID! @external
  username: String
}
`

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "users"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "products.graphql"), []byte(productsSDL), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "users", "users.graphql"), []byte(usersSDL), 0o644))
	return root
}

func captureOutput(t *testing.T, fn func() error) (stdout, stderr string, err error) {
	t.Helper()
	oldOut, oldErr := os.Stdout, os.Stderr
	defer func() {
		os.Stdout, os.Stderr = oldOut, oldErr
	}()

	outR, outW, _ := os.Pipe()
	errR, errW, _ := os.Pipe()
	os.Stdout, os.Stderr = outW, errW

	doneOut := make(chan struct{})
	var bufOut bytes.Buffer
	go func() { _, _ = io.Copy(&bufOut, outR); close(doneOut) }()

	doneErr := make(chan struct{})
	var bufErr bytes.Buffer
	go func() { _, _ = io.Copy(&bufErr, errR); close(doneErr) }()

	err = fn()
	outW.Close()
	errW.Close()
	<-doneOut
	<-doneErr
	stdout, stderr = bufOut.String(), bufErr.String()
	return
}

func TestHelp(t *testing.T) {
	out, _, err := captureOutput(t, func() error {
		return run([]string{"help", "serve"})
	})
	require.NoError(t, err)
	require.Contains(t, out, "serve FLAGS")

	_, stderr, err := captureOutput(t, func() error {
		return run([]string{"bogus"})
	})
	require.EqualError(t, err, `unknown command "bogus"`)
	require.Contains(t, stderr, "COMMANDS:")
}

func TestCompileSDL(t *testing.T) {
	root := writeProject(t)
	out, _, err := captureOutput(t, func() error {
		return run([]string{"compile-sdl", "-graphql.root", root})
	})
	require.NoError(t, err)
	require.Contains(t, out, `type Product @key(fields: "upc") {`)
	require.Contains(t, out, `extend type User @key(fields: "id") {`)
	require.Contains(t, out, "id: ID! @external")
	require.NotContains(t, out, "_entities")
	require.NotContains(t, out, "_Any")
}

func TestCompileSDLReportsViolations(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.graphql"), []byte(`type Query { a: String }
type Product @key { upc: String }
`), 0o644))
	_, _, err := captureOutput(t, func() error {
		return run([]string{"compile-sdl", "-graphql.root", root})
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad.graphql:2")
}

func TestCompileProto(t *testing.T) {
	root := writeProject(t)
	out, _, err := captureOutput(t, func() error {
		return run([]string{"compile-proto", "-graphql.root", root})
	})
	require.NoError(t, err)
	require.Contains(t, out, "service EntityService")
	require.Contains(t, out, "rpc ResolveProductEntity")
	require.Contains(t, out, "rpc ResolveUserEntity")

	outDir := t.TempDir()
	_, _, err = captureOutput(t, func() error {
		return run([]string{"compile-proto", "-graphql.root", root, "-package", "acme.entities", "-out", outDir})
	})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(outDir, "acme", "entities", "entities.proto"))
	require.NoError(t, err)
	require.Contains(t, string(data), "package acme.entities;")
}

func TestParseServeFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fedgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
entities:
  backends:
    "*": ["from-file:1"]
log:
  level: warn
`), 0o644))

	cfg, err := parseServeFlags([]string{
		"-config", path,
		"-server.addr", ":9100",
		"-entities.backend", "*=a:1",
		"-entities.backend", "*=b:1",
		"-federation.max-concurrency", "4",
	})
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.Server.Addr)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, map[string][]string{"*": {"a:1", "b:1"}}, cfg.Entities.Backends)
	require.Equal(t, 4, cfg.Federation.MaxConcurrency)
	require.Equal(t, config.Default().Entities.RPCTimeout, cfg.Entities.RPCTimeout)

	_, err = parseServeFlags([]string{"-log.level", "loud"})
	require.ErrorContains(t, err, `log.level "loud"`)
}

// startBackend serves the entity contract on a loopback port.
func startBackend(t *testing.T) string {
	t.Helper()
	c, err := entityrpc.BuildContract(entityrpc.DefaultPackage, []string{"Product", "User"}, nil)
	require.NoError(t, err)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	entityrpc.RegisterBackend(srv, c, func(ctx context.Context, typeName string, rep value.Value) (any, error) {
		switch typeName {
		case "Product":
			if upc, _ := rep.GetString("upc"); upc == "1" {
				return map[string]any{"upc": "1", "name": "Table", "price": 899}, nil
			}
		case "User":
			id, _ := rep.GetString("id")
			return map[string]any{"id": id, "username": "@" + id}, nil
		}
		return nil, nil
	})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestServeEntitiesFromBackend(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	cfg := config.Default()
	cfg.GraphQL.Root = writeProject(t)
	cfg.Entities.Backends = map[string][]string{entityrpc.Wildcard: {startBackend(t)}}
	cfg.Entities.RPCTimeout = config.Duration(5 * time.Second)

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.Equal(t, []string{"Product", "User"}, a.subgraph.Entities)

	ts := httptest.NewServer(a.mux)
	t.Cleanup(ts.Close)

	body := `{
		"query": "query($r: [_Any!]!) { _entities(representations: $r) { ... on Product { name price } ... on User { username } } }",
		"variables": {"r": [
			{"__typename": "Product", "upc": "1"},
			{"__typename": "User", "id": "7"},
			{"__typename": "Product", "upc": "404"}
		]}
	}`
	resp, err := http.Post(ts.URL+"/graphql", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"data":{"_entities":[
		{"name":"Table","price":899},
		{"username":"@7"},
		null
	]}}`, string(got))

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	m, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(m), `fedgraph_entity_resolutions_total{outcome="not_found",typename="Product"} 1`)
	require.Contains(t, string(m), `fedgraph_entity_backend_calls_total{code="OK",method="ResolveUserEntity"} 1`)
}

func TestServeRequiresBackendMapping(t *testing.T) {
	cfg := config.Default()
	cfg.GraphQL.Root = writeProject(t)
	cfg.Entities.Backends = map[string][]string{"other.Service": {"x:1"}}
	_, err := newApp(context.Background(), cfg, zap.NewNop())
	require.EqualError(t, err, "no backend mapping for fedgraph.entities.EntityService")
}

func TestConfigPath(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"-config", "a.yaml"}, "a.yaml"},
		{[]string{"-server.addr", ":1", "--config=b.yaml"}, "b.yaml"},
		{[]string{"-config"}, ""},
		{[]string{"--", "-config", "c.yaml"}, ""},
	} {
		require.Equal(t, tc.want, configPath(tc.args), "%q", tc.args)
	}
}

func TestFlagErrorPrintsCommandUsage(t *testing.T) {
	_, stderr, err := captureOutput(t, func() error {
		return run([]string{"compile-sdl", "-bogus"})
	})
	require.EqualError(t, err, "flag provided but not defined: -bogus")
	require.Contains(t, stderr, "compile-sdl FLAGS")
}

type catalogProduct struct {
	ID   string `graphql:"id"`
	Name string `graphql:"name"`
}

func TestEntitiesResolvedByGoType(t *testing.T) {
	ctx := context.Background()
	proj, err := ir.Build(ctx, ir.NewInMemoryDiscovery([]ir.InMemoryDocument{{
		Path: "products.graphql",
		Content: `type Query { product(id: ID!): Product }
type Product @key(fields: "id") { id: ID! name: String }
`,
	}}))
	require.NoError(t, err)
	sch, err := schema.BuildFromIR(proj)
	require.NoError(t, err)

	rt := localrt.New(sch)
	require.NoError(t, rt.Bind("Product", catalogProduct{}))
	assembly := federation.NewAssembly()
	assembly.AddMetadata(federation.PartialsFromProject(proj)...)
	federation.AddEntityResolver(assembly.RegistryBuilder(), func(rc *federation.ResolutionContext) (*catalogProduct, error) {
		if id, _ := rc.Representation.GetString("id"); id == "apollo-federation" {
			return &catalogProduct{ID: id, Name: "Federation"}, nil
		}
		return nil, nil
	})
	sg, err := assembly.Build(rt, sch, federation.Options{NameResolution: rt.TypeName})
	require.NoError(t, err)
	require.Equal(t, []string{"Product"}, sg.Entities)

	doc, err := language.ParseQuery(`query($r: [_Any!]!) { _entities(representations: $r) { ... on Product { id name } } }`)
	require.NoError(t, err)
	res := executor.NewExecutor(sg.Runtime, sg.Schema).ExecuteRequest(ctx, doc, "", map[string]any{"r": []any{
		map[string]any{"__typename": "Product", "id": "apollo-federation"},
		map[string]any{"__typename": "Product", "id": "unknown"},
	}}, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"_entities": []any{
		map[string]any{"id": "apollo-federation", "name": "Federation"},
		nil,
	}}, res.Data)
}
