// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/config"
	"github.com/trackmint/trackmint/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(newFlags(t), "", env(map[string]string{
		config.EnvDatabaseURL: "postgres://localhost/trackmint",
		config.EnvTokenSecret: testSecret,
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, config.StoragePostgres, cfg.Storage)
	assert.Equal(t, "postgres://localhost/trackmint", cfg.DatabaseURL)
	assert.Equal(t, testSecret, cfg.TokenSecret)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 15*time.Minute, cfg.ResetTTL)
	assert.Equal(t, auth.DefaultArgon2Params, cfg.Argon2Params())
	assert.Equal(t, config.NotifierLog, cfg.Notifier)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "trackmint.yaml", `
http-addr: ":9090"
log-level: debug
access-ttl: 30m
database-url: postgres://file/trackmint
notifier: kafka
kafka-brokers:
  - broker-1:9092
  - broker-2:9092
hasher-threads: 2
`)

	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := config.Load(newFlags(t), path, env(nil))
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.HTTPAddr)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
		assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, uint8(2), cfg.HasherThreads)
		assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL, "unset keys keep flag defaults")
	})

	t.Run("environment overrides file", func(t *testing.T) {
		cfg, err := config.Load(newFlags(t), path, env(map[string]string{
			config.EnvDatabaseURL: "postgres://env/trackmint",
		}))
		require.NoError(t, err)
		assert.Equal(t, "postgres://env/trackmint", cfg.DatabaseURL)
	})

	t.Run("set flags override everything", func(t *testing.T) {
		fs := newFlags(t, "--http-addr=:7070", "--access-ttl=5m", "--database-url=postgres://flag/trackmint")
		cfg, err := config.Load(fs, path, env(map[string]string{
			config.EnvDatabaseURL: "postgres://env/trackmint",
		}))
		require.NoError(t, err)
		assert.Equal(t, ":7070", cfg.HTTPAddr)
		assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
		assert.Equal(t, "postgres://flag/trackmint", cfg.DatabaseURL)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(newFlags(t), filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func validConfig() *config.Config {
	return &config.Config{
		HTTPAddr:      ":8080",
		LogFormat:     "json",
		LogLevel:      "info",
		Storage:       config.StoragePostgres,
		DatabaseURL:   "postgres://localhost/trackmint",
		TokenSecret:   testSecret,
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		ResetTTL:      15 * time.Minute,
		HasherMemory:  64 * 1024,
		HasherTime:    1,
		HasherThreads: 4,
		Notifier:      config.NotifierLog,
		FrontendURL:   "http://localhost:3000",
		SweepInterval: time.Hour,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantKey string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"memory storage needs no database", func(c *config.Config) {
			c.Storage = config.StorageMemory
			c.DatabaseURL = ""
		}, ""},
		{"missing http addr", func(c *config.Config) { c.HTTPAddr = "" }, "http-addr"},
		{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }, "log-format"},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }, "log-level"},
		{"unknown storage", func(c *config.Config) { c.Storage = "redis" }, "storage"},
		{"postgres without url", func(c *config.Config) { c.DatabaseURL = "" }, "database-url"},
		{"short secret", func(c *config.Config) { c.TokenSecret = strings.Repeat("x", 31) }, "token-secret"},
		{"zero access ttl", func(c *config.Config) { c.AccessTTL = 0 }, "access-ttl"},
		{"negative reset ttl", func(c *config.Config) { c.ResetTTL = -time.Minute }, "reset-ttl"},
		{"zero sweep interval", func(c *config.Config) { c.SweepInterval = 0 }, "sweep-interval"},
		{"zero hasher threads", func(c *config.Config) { c.HasherThreads = 0 }, "hasher"},
		{"missing frontend url", func(c *config.Config) { c.FrontendURL = "" }, "frontend-url"},
		{"unknown notifier", func(c *config.Config) { c.Notifier = "sms" }, "notifier"},
		{"smtp without server", func(c *config.Config) { c.Notifier = config.NotifierSMTP }, "smtp-addr"},
		{"smtp configured", func(c *config.Config) {
			c.Notifier = config.NotifierSMTP
			c.SMTPAddr = "smtp.example.com:587"
			c.SMTPFrom = "no-reply@trackmint.io"
		}, ""},
		{"kafka without brokers", func(c *config.Config) { c.Notifier = config.NotifierKafka }, "kafka-brokers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.wantKey)
		})
	}
}

func TestConfig_LogValueOmitsSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.SMTPPassword = "smtp-secret"
	rendered := cfg.LogValue().String()
	assert.NotContains(t, rendered, testSecret)
	assert.NotContains(t, rendered, "smtp-secret")
	assert.NotContains(t, rendered, "postgres://")
	assert.Contains(t, rendered, ":8080")
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		require.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("sets unset variables only", func(t *testing.T) {
		t.Setenv("TRACKMINT_TEST_KEEP", "from-env")
		path := writeFile(t, ".env", "TRACKMINT_TEST_KEEP=from-file\nTRACKMINT_TEST_NEW=from-file\n")
		t.Cleanup(func() { _ = os.Unsetenv("TRACKMINT_TEST_NEW") })

		require.NoError(t, config.LoadDotEnv(path))
		assert.Equal(t, "from-env", os.Getenv("TRACKMINT_TEST_KEEP"))
		assert.Equal(t, "from-file", os.Getenv("TRACKMINT_TEST_NEW"))
	})
}
