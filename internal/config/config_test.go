package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fedgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  timeout: 250ms
  metadata_headers: [authorization]
federation:
  max_concurrency: 8
  require_entities: true
entities:
  backends:
    "*": ["products:9000", "products-2:9000"]
  rpc_timeout: 1s
log:
  level: debug
  format: console
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	want := Default()
	want.Server.Addr = ":9090"
	want.Server.Timeout = Duration(250 * time.Millisecond)
	want.Server.MetadataHeaders = []string{"authorization"}
	want.Federation = FederationConfig{RequireEntities: true, MaxConcurrency: 8}
	want.Entities.Backends = map[string][]string{"*": {"products:9000", "products-2:9000"}}
	want.Entities.RPCTimeout = Duration(time.Second)
	want.Log = LogConfig{Level: "debug", Format: "console"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader("server:\n  adr: x\n"))
	require.ErrorContains(t, err, "field adr not found")

	_, err = Decode(strings.NewReader("server:\n  timeout: soon\n"))
	require.ErrorContains(t, err, "line 2")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodeRoundTrip(t *testing.T) {
	out, err := Default().Encode()
	require.NoError(t, err)
	require.Contains(t, string(out), "rpc_timeout: 3s")

	cfg, err := Decode(strings.NewReader(string(out)))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Federation.MaxConcurrency = -1
	cfg.Entities.Backends = map[string][]string{"svc": nil}
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Metrics.Path = "metrics"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"server.addr is required",
		"federation.max_concurrency must not be negative",
		"entities.backends[svc]: no endpoints",
		`log.level "loud"`,
		`log.format "xml"`,
		`metrics.path "metrics" must start with /`,
	} {
		require.ErrorContains(t, err, want)
	}
}

func TestDurationFlag(t *testing.T) {
	var d Duration
	require.NoError(t, d.Set("1m30s"))
	require.Equal(t, Duration(90*time.Second), d)
	require.Equal(t, "1m30s", d.String())
	require.Error(t, d.Set("soon"))
}
