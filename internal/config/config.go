package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/peter-kozarec/dbnfeed/internal/dbg"
	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
	"github.com/peter-kozarec/dbnfeed/pkg/middleware"
	"github.com/peter-kozarec/dbnfeed/pkg/transport"
)

// EnvPrefix prefixes every environment override, e.g. DBN_KEY.
const EnvPrefix = "DBN"

type Config struct {
	Key           string               `mapstructure:"key"`
	Dataset       string               `mapstructure:"dataset"`
	TsOut         bool                 `mapstructure:"ts_out"`
	Gateway       GatewayConfig        `mapstructure:"gateway"`
	Subscriptions []SubscriptionConfig `mapstructure:"subscriptions"`
	Reconnect     ReconnectConfig      `mapstructure:"reconnect"`
	Monitor       []string             `mapstructure:"monitor"`
	DuckDB        string               `mapstructure:"duckdb"`
	Metrics       MetricsConfig        `mapstructure:"metrics"`
	Logging       LoggingConfig        `mapstructure:"logging"`
}

// GatewayConfig selects the transport. A WebSocket URL takes precedence
// over the TCP address.
type GatewayConfig struct {
	Address      string        `mapstructure:"address"`
	TLS          bool          `mapstructure:"tls"`
	WebSocketURL string        `mapstructure:"websocket_url"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
}

type SubscriptionConfig struct {
	Symbols []string   `mapstructure:"symbols"`
	Schema  dbn.Schema `mapstructure:"schema"`
	STypeIn dbn.SType  `mapstructure:"stype_in"`
	Start   time.Time  `mapstructure:"start"`
}

type ReconnectConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	DevMode    bool   `mapstructure:"dev_mode"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

var monitorFlags = map[string]middleware.MonitorFlags{
	"all":         middleware.MonitorAll,
	"books":       middleware.MonitorBooks,
	"trades":      middleware.MonitorTrades,
	"bars":        middleware.MonitorBars,
	"definitions": middleware.MonitorDefinitions,
	"imbalances":  middleware.MonitorImbalances,
	"statistics":  middleware.MonitorStatistics,
	"gateway":     middleware.MonitorGateway,
}

// Load reads defaults, an optional .env file, the config file at path (if
// any) and DBN_* environment overrides, in increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("key", "")
	v.SetDefault("dataset", "")
	v.SetDefault("ts_out", false)
	v.SetDefault("gateway.address", "")
	v.SetDefault("gateway.tls", false)
	v.SetDefault("gateway.websocket_url", "")
	v.SetDefault("gateway.dial_timeout", "5s")
	v.SetDefault("gateway.read_timeout", "30s")
	v.SetDefault("reconnect.max_attempts", live.DefaultReconnectPolicy.MaxAttempts)
	v.SetDefault("reconnect.initial_interval", live.DefaultReconnectPolicy.InitialInterval.String())
	v.SetDefault("reconnect.max_interval", live.DefaultReconnectPolicy.MaxInterval.String())
	v.SetDefault("reconnect.multiplier", live.DefaultReconnectPolicy.Multiplier)
	v.SetDefault("monitor", []string{})
	v.SetDefault("duckdb", "")
	v.SetDefault("metrics.address", "")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dev_mode", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.TextUnmarshallerHookFunc(),
			stringToBoolHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func stringToBoolHook(f, t reflect.Kind, data interface{}) (interface{}, error) {
	if f == reflect.String && t == reflect.Bool {
		switch strings.ToLower(data.(string)) {
		case "1", "true", "yes":
			return true, nil
		case "0", "false", "no", "":
			return false, nil
		}
	}
	return data, nil
}

func (c *Config) Validate() error {
	if len(c.Key) != live.APIKeyLength {
		return fmt.Errorf("key must be %d characters", live.APIKeyLength)
	}
	if c.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	if c.Gateway.Address == "" && c.Gateway.WebSocketURL == "" {
		return fmt.Errorf("gateway.address or gateway.websocket_url is required")
	}
	if len(c.Subscriptions) == 0 {
		return fmt.Errorf("subscriptions must contain at least one entry")
	}
	for i, sub := range c.Subscriptions {
		if len(sub.Symbols) == 0 {
			return fmt.Errorf("subscriptions[%d].symbols is required", i)
		}
		if _, err := dbn.RTypeFromSchema(sub.Schema); err != nil {
			return fmt.Errorf("subscriptions[%d].schema: %w", i, err)
		}
	}
	for _, name := range c.Monitor {
		if _, ok := monitorFlags[strings.ToLower(name)]; !ok {
			return fmt.Errorf("monitor: unknown record class %q", name)
		}
	}
	if c.Metrics.Address != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/'")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// MonitorFlags folds the configured record classes into monitor flags.
func (c *Config) MonitorFlags() middleware.MonitorFlags {
	flags := middleware.MonitorNone
	for _, name := range c.Monitor {
		flags |= monitorFlags[strings.ToLower(name)]
	}
	return flags
}

func (c *Config) Logger() (*zap.Logger, error) {
	return dbg.NewLogger(c.Logging.Level, c.Logging.DevMode, dbg.FileOptions{
		Path:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   true,
	})
}

func (c *Config) Dialer(logger *zap.Logger) transport.Dialer {
	if c.Gateway.WebSocketURL != "" {
		return &transport.WebSocketDialer{
			URL:              c.Gateway.WebSocketURL,
			HandshakeTimeout: c.Gateway.DialTimeout,
			ReadTimeout:      c.Gateway.ReadTimeout,
			Logger:           logger,
		}
	}

	d := &transport.TCPDialer{
		Address:     c.Gateway.Address,
		DialTimeout: c.Gateway.DialTimeout,
		ReadTimeout: c.Gateway.ReadTimeout,
		Logger:      logger,
	}
	if c.Gateway.TLS {
		d.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return d
}

func (c *Config) SessionConfig(dialer transport.Dialer) live.Config {
	return live.Config{
		Key:     c.Key,
		Dataset: c.Dataset,
		Dialer:  dialer,
		TsOut:   c.TsOut,
		Reconnect: live.ReconnectPolicy{
			MaxAttempts:     c.Reconnect.MaxAttempts,
			InitialInterval: c.Reconnect.InitialInterval,
			MaxInterval:     c.Reconnect.MaxInterval,
			Multiplier:      c.Reconnect.Multiplier,
		},
	}
}

// Subscribe registers every configured subscription with s.
func (c *Config) Subscribe(s *live.Session) error {
	for _, sub := range c.Subscriptions {
		var opts []live.SubscribeOption
		if !sub.Start.IsZero() {
			opts = append(opts, live.WithStart(sub.Start))
		}
		if err := s.Subscribe(sub.Symbols, sub.Schema, sub.STypeIn, opts...); err != nil {
			return err
		}
	}
	return nil
}
