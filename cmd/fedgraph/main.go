package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hanpama/fedgraph/internal/config"
	"github.com/hanpama/fedgraph/internal/entityrpc"
	"github.com/hanpama/fedgraph/internal/eventbus"
	"github.com/hanpama/fedgraph/internal/federation"
	"github.com/hanpama/fedgraph/internal/ir"
	"github.com/hanpama/fedgraph/internal/localrt"
	"github.com/hanpama/fedgraph/internal/logging"
	"github.com/hanpama/fedgraph/internal/metrics"
	"github.com/hanpama/fedgraph/internal/otel"
	"github.com/hanpama/fedgraph/internal/schema"
	"github.com/hanpama/fedgraph/internal/server"
	"github.com/hanpama/fedgraph/internal/services"
	"go.uber.org/zap"
)

const serveUsage = `serve FLAGS:
  -config <file>                       YAML config file (flags override it)
  -graphql.root <dir>                  GraphQL schema root (default: .)
  -server.addr <addr>                  HTTP listen address (default: :8080)
  -server.pretty                       Pretty-print JSON responses
  -server.timeout <duration>           Per-request timeout, e.g. 10s (default: 10s)
  -server.metadata-header <name>       Forward HTTP header to gRPC metadata. Repeatable
  -federation.require-entities         Fail when no type declares @key
  -federation.max-concurrency N        Concurrent entity resolvers per _entities (default: 0, unbounded)
  -entities.backend <Svc=host:port>    Map the entity service to an endpoint. Repeatable.
                                       Use wildcard to set default:
                                         -entities.backend *=host:port
  -entities.max-conns-per-endpoint N   Client connections per endpoint (default: 2)
  -entities.rpc-timeout <duration>     RPC timeout, e.g. 3s (default: 3s)
  -log.level <level>                   debug, info, warn or error (default: info)
  -log.format <format>                 json or console (default: json)
  -metrics.path <path>                 Prometheus endpoint, empty disables (default: /metrics)
  -otel.endpoint <addr>                OTLP collector endpoint
  -otel.service <name>                 OpenTelemetry service name (default: fedgraph)
`

const compileSDLUsage = `compile-sdl FLAGS:
  -graphql.root <dir>      GraphQL project root (default: .)
  -out  <file>             Write federated SDL to file (default: stdout)
  (Validation always runs; exits non-zero on errors)
`

const compileProtoUsage = `compile-proto FLAGS:
  -graphql.root <dir>      GraphQL project root (default: .)
  -package <name>          Proto package (default: fedgraph.entities)
  -out  <dir>              Output directory for the .proto file (default: stdout)
`

type command struct {
	name    string
	summary string
	usage   string
	run     func(args []string) error
}

var commands []*command

func init() {
	commands = []*command{
		{"serve", "Run the federated GraphQL subgraph over HTTP", serveUsage, cmdServe},
		{"compile-sdl", "Print the federated SDL returned by _service { sdl }", compileSDLUsage, cmdCompileSDL},
		{"compile-proto", "Generate the entity backend .proto contract", compileProtoUsage, cmdCompileProto},
		{"help", "Show help for any command", "", cmdHelp},
	}
}

func lookup(name string) *command {
	for _, c := range commands {
		if c.name == name {
			return c
		}
	}
	return nil
}

func rootUsage() string {
	var b strings.Builder
	b.WriteString("fedgraph: federation subgraph server and tools\n\nUSAGE:\n  fedgraph <command> [flags]\n\nCOMMANDS:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-16s %s\n", c.name, c.summary)
	}
	return b.String()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage())
		return errors.New("missing command")
	}
	c := lookup(args[0])
	if c == nil {
		fmt.Fprint(os.Stderr, rootUsage())
		return fmt.Errorf("unknown command %q", args[0])
	}
	err := c.run(args[1:])
	var usage usageError
	if errors.As(err, &usage) {
		fmt.Fprint(os.Stderr, c.usage)
		return usage.error
	}
	return err
}

// usageError is a flag error; the command's usage is printed with it.
type usageError struct{ error }

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	return nil
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage())
		return nil
	}
	c := lookup(args[0])
	if c == nil || c.usage == "" {
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	fmt.Print(c.usage)
	return nil
}

// backendsFlag collects Svc=host:port pairs. The first use replaces the
// backends of the config file.
type backendsFlag struct {
	dst *map[string][]string
	set bool
}

func (b *backendsFlag) String() string { return "" }

func (b *backendsFlag) Set(v string) error {
	svc, ep, ok := strings.Cut(v, "=")
	svc, ep = strings.TrimSpace(svc), strings.TrimSpace(ep)
	if !ok || svc == "" || ep == "" {
		return fmt.Errorf("invalid backend %q", v)
	}
	if !b.set {
		*b.dst = map[string][]string{}
		b.set = true
	}
	(*b.dst)[svc] = append((*b.dst)[svc], ep)
	return nil
}

// listFlag is a repeatable string flag that replaces the config file's list.
type listFlag struct {
	dst *[]string
	set bool
}

func (l *listFlag) String() string { return "" }

func (l *listFlag) Set(v string) error {
	if !l.set {
		*l.dst = nil
		l.set = true
	}
	*l.dst = append(*l.dst, v)
	return nil
}

// configPath finds -config before the real parse, so the remaining flags
// can be bound to the values loaded from the file.
func configPath(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name, val, inline := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if inline {
			return val
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// parseServeFlags loads the config file named by -config and applies the
// flags that were set on top of it.
func parseServeFlags(args []string) (*config.Config, error) {
	cfg := config.Default()
	if path := configPath(args); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.String("config", "", "YAML config file")
	fs.StringVar(&cfg.GraphQL.Root, "graphql.root", cfg.GraphQL.Root, "GraphQL schema root")
	fs.StringVar(&cfg.Server.Addr, "server.addr", cfg.Server.Addr, "HTTP listen address")
	fs.BoolVar(&cfg.Server.Pretty, "server.pretty", cfg.Server.Pretty, "Pretty-print JSON responses")
	fs.Var(&cfg.Server.Timeout, "server.timeout", "Per-request timeout")
	fs.Var(&listFlag{dst: &cfg.Server.MetadataHeaders}, "server.metadata-header", "Forward HTTP header to gRPC metadata")
	fs.BoolVar(&cfg.Federation.RequireEntities, "federation.require-entities", cfg.Federation.RequireEntities, "Fail when no type declares @key")
	fs.IntVar(&cfg.Federation.MaxConcurrency, "federation.max-concurrency", cfg.Federation.MaxConcurrency, "Concurrent entity resolvers per _entities")
	fs.Var(&backendsFlag{dst: &cfg.Entities.Backends}, "entities.backend", "Map the entity service to an endpoint")
	fs.IntVar(&cfg.Entities.MaxConnsPerEndpoint, "entities.max-conns-per-endpoint", cfg.Entities.MaxConnsPerEndpoint, "Client connections per endpoint")
	fs.Var(&cfg.Entities.RPCTimeout, "entities.rpc-timeout", "RPC timeout")
	fs.StringVar(&cfg.Log.Level, "log.level", cfg.Log.Level, "Log level")
	fs.StringVar(&cfg.Log.Format, "log.format", cfg.Log.Format, "Log format")
	fs.Func("metrics.path", "Prometheus endpoint", func(path string) error {
		cfg.Metrics.Path, cfg.Metrics.Enabled = path, path != ""
		return nil
	})
	fs.StringVar(&cfg.OTel.Endpoint, "otel.endpoint", cfg.OTel.Endpoint, "OTLP collector endpoint")
	fs.StringVar(&cfg.OTel.Service, "otel.service", cfg.OTel.Service, "OpenTelemetry service name")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func cmdServe(args []string) error {
	cfg, err := parseServeFlags(args)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventbus.Use(eventbus.New())
	defer logging.Subscribe(logger)()
	shutdown, err := otel.Setup(cfg.OTel.Endpoint, cfg.OTel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: app.mux}
	errc := make(chan error, 1)
	go func() {
		logger.Info("GraphQL server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.Strings("entities", app.subgraph.Entities),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// app is a subgraph wired to its HTTP routes.
type app struct {
	subgraph  *federation.Subgraph
	contract  *entityrpc.Contract
	transport *entityrpc.Transport
	mux       *http.ServeMux
}

func (a *app) Close() error {
	if a.transport != nil {
		return a.transport.Close()
	}
	return nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	proj, err := ir.Load(ctx, cfg.GraphQL.Root)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	sch, err := schema.BuildFromIR(proj)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	rt := localrt.New(sch, localrt.WithMaxConcurrency(cfg.Federation.MaxConcurrency))
	assembly := federation.NewAssembly()
	assembly.AddMetadata(federation.PartialsFromProject(proj)...)
	plan, err := assembly.Plan(sch, cfg.Federation.RequireEntities)
	if err != nil {
		return nil, err
	}

	a := &app{mux: http.NewServeMux()}
	if len(cfg.Entities.Backends) > 0 && len(plan.Entities) > 0 {
		a.contract, err = entityrpc.BuildContract(cfg.Entities.Package, plan.Entities, plan.Metadata)
		if err != nil {
			return nil, err
		}
		if _, ok := cfg.Entities.Backends[a.contract.Service()]; !ok && len(cfg.Entities.Backends[entityrpc.Wildcard]) == 0 {
			return nil, fmt.Errorf("no backend mapping for %s", a.contract.Service())
		}
		a.transport = entityrpc.NewTransport(
			entityrpc.WithProvider(entityrpc.NewStaticEndpoints(cfg.Entities.Backends)),
			entityrpc.WithMaxConnsPerEndpoint(cfg.Entities.MaxConnsPerEndpoint),
			entityrpc.WithRPCTimeout(cfg.Entities.RPCTimeout.Std()),
		)
		entityrpc.Register(assembly.RegistryBuilder(), a.contract, a.transport)
	} else if len(plan.Entities) > 0 {
		logger.Warn("no entity backends configured; _entities resolves every representation to an error",
			zap.Strings("entities", plan.Entities))
	}

	a.subgraph, err = plan.Build(rt, federation.Options{
		NameResolution: rt.TypeName,
		MaxConcurrency: cfg.Federation.MaxConcurrency,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build subgraph: %w", err)
	}

	coll := services.NewCollection()
	services.AddSingleton(coll, logger)
	sopts := []server.Option{server.WithServices(coll)}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Server.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Server.Timeout.Std()))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	if len(cfg.Server.MetadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(cfg.Server.MetadataHeaders...))
	}
	h, err := server.New(a.subgraph.Runtime, a.subgraph.Schema, sopts...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("server init: %w", err)
	}

	a.mux.Handle("/graphql", h)
	a.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics.Namespace)
		collector.Subscribe()
		a.mux.Handle(cfg.Metrics.Path, collector.Handler())
	}
	return a, nil
}

// loadSubgraph builds the subgraph of rootDir without entity resolvers.
func loadSubgraph(rootDir string) (*federation.Subgraph, error) {
	ctx := context.Background()
	proj, err := ir.Load(ctx, rootDir)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	sch, err := schema.BuildFromIR(proj)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	rt := localrt.New(sch)
	assembly := federation.NewAssembly()
	assembly.AddMetadata(federation.PartialsFromProject(proj)...)
	return assembly.Build(rt, sch, federation.Options{NameResolution: rt.TypeName})
}

func cmdCompileSDL(args []string) error {
	rootDir := "."
	outFile := ""
	fs := flag.NewFlagSet("compile-sdl", flag.ContinueOnError)
	fs.StringVar(&rootDir, "graphql.root", rootDir, "GraphQL project root")
	fs.StringVar(&outFile, "out", outFile, "Write federated SDL to file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	sg, err := loadSubgraph(rootDir)
	if err != nil {
		return err
	}
	if outFile == "" {
		fmt.Print(sg.SDL)
		return nil
	}
	return os.WriteFile(outFile, []byte(sg.SDL), 0644)
}

func cmdCompileProto(args []string) error {
	rootDir := "."
	pkg := entityrpc.DefaultPackage
	outDir := ""
	fs := flag.NewFlagSet("compile-proto", flag.ContinueOnError)
	fs.StringVar(&rootDir, "graphql.root", rootDir, "GraphQL project root")
	fs.StringVar(&pkg, "package", pkg, "Proto package")
	fs.StringVar(&outDir, "out", outDir, "Output directory for the .proto file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	sg, err := loadSubgraph(rootDir)
	if err != nil {
		return err
	}
	if len(sg.Entities) == 0 {
		return fmt.Errorf("no entity types in %s", rootDir)
	}
	c, err := entityrpc.BuildContract(pkg, sg.Entities, sg.Metadata)
	if err != nil {
		return err
	}
	if outDir == "" {
		return c.Print(os.Stdout)
	}
	fp, err := c.WriteFile(outDir)
	if err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	fmt.Fprintln(os.Stderr, "wrote", fp)
	return nil
}
