// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

// Package config loads dailymoji settings from a YAML file, command-line
// flags, and the environment. Flags set on the command line override the file.
package config

import (
	"errors"
	"net"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/dailymoji/dailymoji/internal/logging"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full application configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	NATS     NATSConfig     `koanf:"nats"`
}

// LogConfig selects log output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// StoreConfig selects the session and puzzle backend.
type StoreConfig struct {
	Driver string `koanf:"driver"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL       string        `koanf:"url"`
	MaxConns  int32         `koanf:"max_conns"`
	OpTimeout time.Duration `koanf:"op_timeout"`
}

// HTTPConfig configures the public API.
type HTTPConfig struct {
	Addr           string   `koanf:"addr"`
	PlayerHeader   string   `koanf:"player_header"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// NATSConfig configures solved-event publishing. Empty URL disables it.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:      LogConfig{Format: "json", Level: "info"},
		Store:    StoreConfig{Driver: DriverPostgres},
		Database: DatabaseConfig{MaxConns: 10, OpTimeout: 5 * time.Second},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			PlayerHeader:   "X-Player-ID",
			AllowedOrigins: []string{"*"},
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		NATS:    NATSConfig{SubjectPrefix: "dailymoji"},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"log-format":          "log.format",
	"log-level":           "log.level",
	"store":               "store.driver",
	"database-url":        "database.url",
	"db-max-conns":        "database.max_conns",
	"db-timeout":          "database.op_timeout",
	"http-addr":           "http.addr",
	"player-header":       "http.player_header",
	"allowed-origins":     "http.allowed_origins",
	"metrics-addr":        "metrics.addr",
	"nats-url":            "nats.url",
	"nats-subject-prefix": "nats.subject_prefix",
}

// RegisterFlags adds the flags Load understands to flags, defaulted from Default.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("store", d.Store.Driver, "session store driver (postgres or memory)")
	flags.String("database-url", "", "PostgreSQL URL (default $DATABASE_URL)")
	flags.Int32("db-max-conns", d.Database.MaxConns, "maximum pooled database connections")
	flags.Duration("db-timeout", d.Database.OpTimeout, "deadline for a single store operation")
	flags.String("http-addr", d.HTTP.Addr, "public API listen address")
	flags.String("player-header", d.HTTP.PlayerHeader, "request header carrying the player UUID")
	flags.StringSlice("allowed-origins", d.HTTP.AllowedOrigins, "CORS allowed origins")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address (empty disables)")
	flags.String("nats-url", "", "NATS URL for solved events (empty disables)")
	flags.String("nats-subject-prefix", d.NATS.SubjectPrefix, "NATS subject prefix")
}

// Load builds a Config from Default, the YAML file at path (optional), and
// flags (optional). A .env file in the working directory is loaded into the
// environment first; DATABASE_URL fills database.url when nothing else does.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, oops.Code("CONFIG_DOTENV_FAILED").Wrap(err)
	}

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_LOG_FORMAT_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if !slices.Contains([]string{DriverPostgres, DriverMemory}, c.Store.Driver) {
		return oops.Code("CONFIG_STORE_DRIVER_INVALID").
			With("driver", c.Store.Driver).
			Errorf("store.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver)
	}
	if c.Store.Driver == DriverPostgres && c.Database.URL == "" {
		return oops.Code("CONFIG_DATABASE_URL_MISSING").Errorf("database.url or DATABASE_URL is required for the postgres store")
	}
	if c.Database.MaxConns < 1 {
		return oops.Code("CONFIG_MAX_CONNS_INVALID").
			With("max_conns", c.Database.MaxConns).
			Errorf("database.max_conns must be positive")
	}
	if c.Database.OpTimeout <= 0 {
		return oops.Code("CONFIG_OP_TIMEOUT_INVALID").
			With("op_timeout", c.Database.OpTimeout.String()).
			Errorf("database.op_timeout must be positive")
	}
	if err := checkAddr("http.addr", c.HTTP.Addr); err != nil {
		return err
	}
	if c.Metrics.Addr != "" {
		if err := checkAddr("metrics.addr", c.Metrics.Addr); err != nil {
			return err
		}
	}
	if c.HTTP.PlayerHeader == "" {
		return oops.Code("CONFIG_PLAYER_HEADER_MISSING").Errorf("http.player_header is required")
	}
	return nil
}

func checkAddr(key, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return oops.Code("CONFIG_ADDR_INVALID").With("key", key).With("addr", addr).Wrap(err)
	}
	return nil
}
