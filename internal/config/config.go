// Package config holds the settings of `fedgraph serve`. Values come from
// Default, are overlaid by an optional YAML file and finally by command-line
// flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	GraphQL    GraphQLConfig    `yaml:"graphql"`
	Federation FederationConfig `yaml:"federation"`
	Entities   EntitiesConfig   `yaml:"entities"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	OTel       OTelConfig       `yaml:"otel"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	Pretty          bool     `yaml:"pretty"`
	Timeout         Duration `yaml:"timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
	CORSOrigins     []string `yaml:"cors_origins,omitempty"`
	// MetadataHeaders are HTTP headers forwarded to entity backends as gRPC
	// metadata.
	MetadataHeaders []string `yaml:"metadata_headers,omitempty"`
}

type GraphQLConfig struct {
	// Root is the directory scanned for .graphql files.
	Root string `yaml:"root"`
}

type FederationConfig struct {
	RequireEntities bool `yaml:"require_entities"`
	// MaxConcurrency bounds concurrent entity resolvers per _entities field.
	// 0 is unbounded.
	MaxConcurrency int `yaml:"max_concurrency"`
}

type EntitiesConfig struct {
	// Package is the proto package of the entity contract.
	Package string `yaml:"package"`
	// Backends maps a gRPC service name, or "*", to endpoints.
	Backends            map[string][]string `yaml:"backends,omitempty"`
	MaxConnsPerEndpoint int                 `yaml:"max_conns_per_endpoint"`
	RPCTimeout          Duration            `yaml:"rpc_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

type OTelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// Duration is a time.Duration written as "3s" or "250ms" in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// String and Set make a Duration usable as a flag.Value.
func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Timeout:         Duration(10 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		GraphQL: GraphQLConfig{Root: "."},
		Entities: EntitiesConfig{
			Package:             "fedgraph.entities",
			MaxConnsPerEndpoint: 2,
			RPCTimeout:          Duration(3 * time.Second),
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics", Namespace: "fedgraph"},
		OTel:    OTelConfig{Service: "fedgraph"},
	}
}

// Load reads the YAML file at path over Default. Unknown keys are errors.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over Default. An empty document yields the
// defaults.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// Encode writes cfg as YAML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, errors.New("server.timeout must not be negative"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("server.max_body_bytes must not be negative"))
	}
	if c.GraphQL.Root == "" {
		errs = append(errs, errors.New("graphql.root is required"))
	}
	if c.Federation.MaxConcurrency < 0 {
		errs = append(errs, errors.New("federation.max_concurrency must not be negative"))
	}
	if c.Entities.Package == "" {
		errs = append(errs, errors.New("entities.package is required"))
	}
	for svc, eps := range c.Entities.Backends {
		if strings.TrimSpace(svc) == "" {
			errs = append(errs, errors.New("entities.backends: empty service name"))
		}
		if len(eps) == 0 {
			errs = append(errs, fmt.Errorf("entities.backends[%s]: no endpoints", svc))
		}
		for _, ep := range eps {
			if strings.TrimSpace(ep) == "" {
				errs = append(errs, fmt.Errorf("entities.backends[%s]: empty endpoint", svc))
			}
		}
	}
	if c.Entities.MaxConnsPerEndpoint < 0 {
		errs = append(errs, errors.New("entities.max_conns_per_endpoint must not be negative"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json or console", c.Log.Format))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}
	if c.OTel.Endpoint != "" && c.OTel.Service == "" {
		errs = append(errs, errors.New("otel.service is required when otel.endpoint is set"))
	}
	return errors.Join(errs...)
}
