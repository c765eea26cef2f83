package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
	"github.com/peter-kozarec/dbnfeed/pkg/middleware"
	"github.com/peter-kozarec/dbnfeed/pkg/transport"
)

const testKey = "db-abcdefghijklmnopqrstuvwxyz123"

const sampleYAML = `
dataset: GLBX.MDP3
ts_out: true
gateway:
  address: glbx-mdp3.lsg.example.com:13000
  tls: true
  read_timeout: 10s
subscriptions:
  - symbols: [ESZ5, NQZ5]
    schema: trades
    stype_in: raw_symbol
  - symbols: [ES.FUT]
    schema: ohlcv-1m
    stype_in: parent
    start: "2025-10-01T13:30:00Z"
reconnect:
  max_attempts: 3
  initial_interval: 250ms
monitor: [trades, Bars]
metrics:
  address: ":9090"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dbn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("DBN_KEY", testKey)

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, testKey, cfg.Key)
	assert.Equal(t, "GLBX.MDP3", cfg.Dataset)
	assert.True(t, cfg.TsOut)
	assert.Equal(t, 10*time.Second, cfg.Gateway.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Gateway.DialTimeout)

	require.Len(t, cfg.Subscriptions, 2)
	assert.Equal(t, []string{"ESZ5", "NQZ5"}, cfg.Subscriptions[0].Symbols)
	assert.Equal(t, dbn.SchemaTrades, cfg.Subscriptions[0].Schema)
	assert.Equal(t, dbn.STypeRawSymbol, cfg.Subscriptions[0].STypeIn)
	assert.True(t, cfg.Subscriptions[0].Start.IsZero())
	assert.Equal(t, dbn.SchemaOhlcv1M, cfg.Subscriptions[1].Schema)
	assert.Equal(t, dbn.STypeParent, cfg.Subscriptions[1].STypeIn)
	assert.Equal(t, time.Date(2025, 10, 1, 13, 30, 0, 0, time.UTC), cfg.Subscriptions[1].Start.UTC())

	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Reconnect.InitialInterval)
	assert.Equal(t, live.DefaultReconnectPolicy.MaxInterval, cfg.Reconnect.MaxInterval)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, middleware.MonitorNone|middleware.MonitorTrades|middleware.MonitorBars, cfg.MonitorFlags())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DBN_KEY", testKey)
	t.Setenv("DBN_DATASET", "XNAS.ITCH")
	t.Setenv("DBN_TS_OUT", "false")
	t.Setenv("DBN_RECONNECT_MAX_ATTEMPTS", "-1")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "XNAS.ITCH", cfg.Dataset)
	assert.False(t, cfg.TsOut)
	assert.Equal(t, -1, cfg.Reconnect.MaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		body string
	}{
		{"short key", "db-short", sampleYAML},
		{"no gateway", testKey, "dataset: GLBX.MDP3\nsubscriptions:\n  - symbols: [ESZ5]\n    schema: trades\n"},
		{"no subscriptions", testKey, "dataset: GLBX.MDP3\ngateway:\n  address: localhost:1\n"},
		{"status schema", testKey, "dataset: GLBX.MDP3\ngateway:\n  address: localhost:1\nsubscriptions:\n  - symbols: [ESZ5]\n    schema: status\n"},
		{"unknown schema", testKey, "dataset: GLBX.MDP3\ngateway:\n  address: localhost:1\nsubscriptions:\n  - symbols: [ESZ5]\n    schema: ticks\n"},
		{"unknown monitor", testKey, "dataset: GLBX.MDP3\ngateway:\n  address: localhost:1\nsubscriptions:\n  - symbols: [ESZ5]\n    schema: trades\nmonitor: [everything]\n"},
		{"bad level", testKey, sampleYAML + "\nlogging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DBN_KEY", tt.key)
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Dialer(t *testing.T) {
	cfg := &Config{Gateway: GatewayConfig{Address: "localhost:13000", TLS: true, ReadTimeout: time.Second}}

	tcp, ok := cfg.Dialer(zaptest.NewLogger(t)).(*transport.TCPDialer)
	require.True(t, ok)
	assert.Equal(t, "localhost:13000", tcp.Address)
	assert.NotNil(t, tcp.TLS)
	assert.Equal(t, time.Second, tcp.ReadTimeout)

	cfg.Gateway.WebSocketURL = "ws://localhost:8080/v0/live"
	ws, ok := cfg.Dialer(nil).(*transport.WebSocketDialer)
	require.True(t, ok)
	assert.Equal(t, "ws://localhost:8080/v0/live", ws.URL)
}

func TestConfig_SessionAndSubscribe(t *testing.T) {
	t.Setenv("DBN_KEY", testKey)
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	sc := cfg.SessionConfig(cfg.Dialer(nil))
	assert.Equal(t, testKey, sc.Key)
	assert.True(t, sc.TsOut)
	assert.Equal(t, 3, sc.Reconnect.MaxAttempts)

	s, err := live.NewSession(sc)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, cfg.Subscribe(s))
}

func TestConfig_Logger(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug", File: filepath.Join(t.TempDir(), "dbn.log"), MaxSizeMB: 1}}
	logger, err := cfg.Logger()
	require.NoError(t, err)
	logger.Debug("written")
	_ = logger.Sync()

	b, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	assert.Contains(t, string(b), "written")
}
