package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ValidateConfig())

	min, err := cfg.MinProfitAmount()
	require.NoError(t, err)
	assert.Nil(t, min)

	assert.Equal(t, uint64(3), cfg.FeePerMille)
	assert.NotNil(t, cfg.AttackRateLimit.Limiter())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"fee too high", func(c *Config) { c.FeePerMille = 1000 }, "fee_per_mille"},
		{"negative deadline", func(c *Config) { c.DeadlineWindow = -time.Second }, "deadline_window"},
		{"bad min profit", func(c *Config) { c.MinProfit = "1.5" }, "min_profit"},
		{"rate limit", func(c *Config) { c.AttackRateLimit.BurstSize = 0 }, "burst size"},
		{"cache size", func(c *Config) { c.Ledger.PairCacheSize = 0 }, "pair_cache_size"},
		{"journal dsn", func(c *Config) { c.Journal = JournalConfig{Enabled: true, Driver: "sqlite3"} }, "journal"},
		{"listen addr", func(c *Config) { c.HTTP.ListenAddr = "" }, "listen_addr"},
		{"namespace", func(c *Config) { c.Metrics.Namespace = "" }, "namespace"},
		{"scanner interval", func(c *Config) { c.Scanner.Enabled = true; c.Scanner.Interval = 0 }, "interval"},
		{"scanner prices", func(c *Config) { c.Scanner.Enabled = true; c.Scanner.Prices = map[string]string{"USDC": "x", "USDT": "1"} }, "invalid price"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log error"},
		{"log encoding", func(c *Config) { c.Log.Encoding = "xml" }, "json or console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.ValidateConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfigCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeePerMille = 2000
	cfg.HTTP.ListenAddr = ""
	err := cfg.ValidateConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fee_per_mille")
	assert.Contains(t, err.Error(), "; http listen_addr")
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashswap.json")

	cfg := DefaultConfig()
	cfg.MinProfit = "1000"
	cfg.Ledger.SeedPath = "pools.yaml"
	cfg.DeadlineWindow = time.Minute
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	min, err := loaded.MinProfitAmount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), min.Uint64())
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigMissingDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvSeedPath, "seed.yaml")
	t.Setenv(EnvJournalDSN, "journal.db")
	t.Setenv(EnvListenAddr, "127.0.0.1:9000")
	t.Setenv(EnvLogLevel, "info")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "seed.yaml", cfg.Ledger.SeedPath)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "journal.db", cfg.Journal.DSN)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.ListenAddr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLogOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.File = "flashswap.log"

	opts := cfg.Log.Options(false)
	assert.Equal(t, "warn", opts.Level)
	assert.Equal(t, "json", opts.Encoding)
	assert.Equal(t, "flashswap.log", opts.File)

	assert.Equal(t, "debug", cfg.Log.Options(true).Level)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDeadline(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Unix(1000, 0)
	assert.Equal(t, now.Add(20*time.Minute), cfg.Deadline(now))

	cfg.DeadlineWindow = 0
	assert.True(t, cfg.Deadline(now).IsZero())
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FLASHSWAP_TEST_VALUE=hello\n"), 0o600))
	t.Setenv("FLASHSWAP_TEST_VALUE", "")
	os.Unsetenv("FLASHSWAP_TEST_VALUE")

	require.NoError(t, LoadEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "hello", GetEnvWithDefault("FLASHSWAP_TEST_VALUE", "default"))
	assert.Equal(t, "default", GetEnvWithDefault("FLASHSWAP_UNSET_VALUE", "default"))
}
