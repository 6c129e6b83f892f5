// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

// Package config loads TrackMint settings from flag defaults, an optional
// YAML file, the environment and explicitly set flags, in that order.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/logging"
)

// Environment variables read by Load.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvTokenSecret = "TRACKMINT_TOKEN_SECRET"
)

// MinSecretLen is the shortest accepted HMAC signing secret.
const MinSecretLen = 32

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Notifier backends.
const (
	NotifierLog   = "log"
	NotifierSMTP  = "smtp"
	NotifierKafka = "kafka"
)

// Default values for flags.
const (
	defaultHTTPAddr      = ":8080"
	defaultMetricsAddr   = "127.0.0.1:9100"
	defaultLogFormat     = "json"
	defaultLogLevel      = "info"
	defaultTokenIssuer   = "trackmint"
	defaultAccessTTL     = time.Hour
	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultResetTTL      = 15 * time.Minute
	defaultFrontendURL   = "http://localhost:3000"
	defaultSMTPTimeout   = 10 * time.Second
	defaultKafkaTopic    = "trackmint.password-reset"
	defaultSweepInterval = time.Hour
)

// Config holds every runtime setting.
type Config struct {
	HTTPAddr    string `koanf:"http-addr"`
	MetricsAddr string `koanf:"metrics-addr"`
	LogFormat   string `koanf:"log-format"`
	LogLevel    string `koanf:"log-level"`

	Storage     string `koanf:"storage"`
	DatabaseURL string `koanf:"database-url"`

	TokenSecret string        `koanf:"token-secret"`
	TokenIssuer string        `koanf:"token-issuer"`
	AccessTTL   time.Duration `koanf:"access-ttl"`
	RefreshTTL  time.Duration `koanf:"refresh-ttl"`
	ResetTTL    time.Duration `koanf:"reset-ttl"`

	HasherMemory  uint32 `koanf:"hasher-memory"`
	HasherTime    uint32 `koanf:"hasher-time"`
	HasherThreads uint8  `koanf:"hasher-threads"`

	Notifier     string        `koanf:"notifier"`
	FrontendURL  string        `koanf:"frontend-url"`
	SMTPAddr     string        `koanf:"smtp-addr"`
	SMTPFrom     string        `koanf:"smtp-from"`
	SMTPUser     string        `koanf:"smtp-user"`
	SMTPPassword string        `koanf:"smtp-password"`
	SMTPTimeout  time.Duration `koanf:"smtp-timeout"`
	KafkaBrokers []string      `koanf:"kafka-brokers"`
	KafkaTopic   string        `koanf:"kafka-topic"`

	SweepInterval time.Duration `koanf:"sweep-interval"`
}

// RegisterFlags defines the configuration flags on fs. The signing secret
// has no flag so it never shows up in process listings.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", defaultHTTPAddr, "HTTP API listen address")
	fs.String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", defaultLogFormat, "log format (json or text)")
	fs.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")

	fs.String("storage", StoragePostgres, "storage backend (postgres or memory)")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+EnvDatabaseURL+")")

	fs.String("token-issuer", defaultTokenIssuer, "access token issuer claim")
	fs.Duration("access-ttl", defaultAccessTTL, "access token lifetime")
	fs.Duration("refresh-ttl", defaultRefreshTTL, "refresh token lifetime")
	fs.Duration("reset-ttl", defaultResetTTL, "password reset token lifetime")

	fs.Uint32("hasher-memory", auth.DefaultArgon2Params.Memory, "argon2id memory in KiB")
	fs.Uint32("hasher-time", auth.DefaultArgon2Params.Time, "argon2id iterations")
	fs.Uint8("hasher-threads", auth.DefaultArgon2Params.Threads, "argon2id parallelism")

	fs.String("notifier", NotifierLog, "reset link delivery (log, smtp or kafka)")
	fs.String("frontend-url", defaultFrontendURL, "base URL of the web app used in reset links")
	fs.String("smtp-addr", "", "SMTP server host:port")
	fs.String("smtp-from", "", "sender address for reset emails")
	fs.String("smtp-user", "", "SMTP username")
	fs.String("smtp-password", "", "SMTP password")
	fs.Duration("smtp-timeout", defaultSMTPTimeout, "SMTP dial and session timeout")
	fs.StringSlice("kafka-brokers", nil, "Kafka bootstrap brokers")
	fs.String("kafka-topic", defaultKafkaTopic, "Kafka topic for reset events")

	fs.Duration("sweep-interval", defaultSweepInterval, "interval between expired token sweeps")
}

// Load builds a Config. path may be empty. getenv is usually os.Getenv.
// Flags on fs must have been defined with RegisterFlags.
func Load(fs *pflag.FlagSet, path string, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	for key, env := range map[string]string{
		"database-url": EnvDatabaseURL,
		"token-secret": EnvTokenSecret,
	} {
		if v := getenv(env); v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	// Unchanged flags only fill keys the file and environment left unset.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

// LoadDotEnv loads environment variables from a .env file without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if c.HTTPAddr == "" {
		return invalid("http-addr", "http-addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log-format", "log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log-level", "log-level %q is not a known level", c.LogLevel)
	}

	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return invalid("database-url", "%s is required for postgres storage", EnvDatabaseURL)
		}
	case StorageMemory:
	default:
		return invalid("storage", "storage must be 'postgres' or 'memory', got %q", c.Storage)
	}

	if len(c.TokenSecret) < MinSecretLen {
		return invalid("token-secret", "%s must be at least %d characters", EnvTokenSecret, MinSecretLen)
	}
	for key, ttl := range map[string]time.Duration{
		"access-ttl":     c.AccessTTL,
		"refresh-ttl":    c.RefreshTTL,
		"reset-ttl":      c.ResetTTL,
		"sweep-interval": c.SweepInterval,
	} {
		if ttl <= 0 {
			return invalid(key, "%s must be positive, got %s", key, ttl)
		}
	}
	if c.HasherMemory == 0 || c.HasherTime == 0 || c.HasherThreads == 0 {
		return invalid("hasher", "hasher parameters must be positive")
	}

	if c.FrontendURL == "" {
		return invalid("frontend-url", "frontend-url is required")
	}
	switch c.Notifier {
	case NotifierLog:
	case NotifierSMTP:
		if c.SMTPAddr == "" || c.SMTPFrom == "" {
			return invalid("smtp-addr", "smtp-addr and smtp-from are required for the smtp notifier")
		}
	case NotifierKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return invalid("kafka-brokers", "kafka-brokers and kafka-topic are required for the kafka notifier")
		}
	default:
		return invalid("notifier", "notifier must be 'log', 'smtp' or 'kafka', got %q", c.Notifier)
	}
	return nil
}

// Argon2Params returns the configured hasher cost.
func (c *Config) Argon2Params() auth.Argon2Params {
	return auth.Argon2Params{
		Time:    c.HasherTime,
		Memory:  c.HasherMemory,
		Threads: c.HasherThreads,
	}
}

// LogValue implements slog.LogValuer. Secrets and the database URL are
// left out.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_addr", c.HTTPAddr),
		slog.String("metrics_addr", c.MetricsAddr),
		slog.String("storage", c.Storage),
		slog.String("notifier", c.Notifier),
		slog.Duration("access_ttl", c.AccessTTL),
		slog.Duration("refresh_ttl", c.RefreshTTL),
		slog.Duration("reset_ttl", c.ResetTTL),
		slog.Duration("sweep_interval", c.SweepInterval),
	)
}
