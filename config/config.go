package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/flashswap/dex/uniswap"
	"github.com/michaelpento.lv/flashswap/ledger"
	"github.com/michaelpento.lv/flashswap/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultConfigName = ".flashswap.json"

type Config struct {
	// Pricing
	FeePerMille    uint64        `json:"fee_per_mille"`
	DeadlineWindow time.Duration `json:"deadline_window"`
	MinProfit      string        `json:"min_profit"`

	AttackRateLimit RateLimitConfig `json:"attack_rate_limit"`

	Ledger  LedgerConfig  `json:"ledger"`
	Journal JournalConfig `json:"journal"`
	HTTP    HTTPConfig    `json:"http"`
	Metrics MetricsConfig `json:"metrics"`
	Scanner ScannerConfig `json:"scanner"`
	Log     LogConfig     `json:"log"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	WaitTimeout       time.Duration `json:"wait_timeout"`
}

type LedgerConfig struct {
	SeedPath      string `json:"seed_path"`
	PairCacheSize int    `json:"pair_cache_size"`
}

type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Driver  string `json:"driver"`
	DSN     string `json:"dsn"`
}

type HTTPConfig struct {
	ListenAddr   string        `json:"listen_addr"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// LogConfig configures the process logger. File is written alongside stderr.
type LogConfig struct {
	Level    string `json:"level"`
	Encoding string `json:"encoding"`
	File     string `json:"file"`
}

// ScannerConfig drives the periodic arbitrage scan of the serve command.
// Prices maps token symbol or address to its reference price.
type ScannerConfig struct {
	Enabled     bool              `json:"enabled"`
	Interval    time.Duration     `json:"interval"`
	Base        string            `json:"base"`
	Prices      map[string]string `json:"prices"`
	AutoExecute bool              `json:"auto_execute"`
}

func (c *Config) ValidateConfig() error {
	var errs []string

	if err := uniswap.ValidateFee(c.FeePerMille); err != nil {
		errs = append(errs, fmt.Sprintf("fee_per_mille: %v", err))
	}
	if c.DeadlineWindow < 0 {
		errs = append(errs, "deadline_window must not be negative")
	}
	if _, err := c.MinProfitAmount(); err != nil {
		errs = append(errs, fmt.Sprintf("min_profit: %v", err))
	}
	if err := c.AttackRateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("attack rate limit error: %v", err))
	}
	if c.Ledger.PairCacheSize <= 0 {
		errs = append(errs, "ledger pair_cache_size must be positive")
	}
	if c.Journal.Enabled && (c.Journal.Driver == "" || c.Journal.DSN == "") {
		errs = append(errs, "journal driver and dsn must be specified when the journal is enabled")
	}
	if c.HTTP.ListenAddr == "" {
		errs = append(errs, "http listen_addr must be specified")
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, "metrics namespace must be specified when metrics are enabled")
	}

	if err := c.Scanner.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("scanner error: %v", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("log error: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}
	return nil
}

func (s *ScannerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if s.Base == "" {
		return fmt.Errorf("base token must be specified")
	}
	if len(s.Prices) < 2 {
		return fmt.Errorf("at least two prices are required")
	}
	for token, price := range s.Prices {
		if _, err := uint256.FromDecimal(price); err != nil {
			return fmt.Errorf("invalid price for %s: %w", token, err)
		}
	}
	return nil
}

func (l *LogConfig) Validate() error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return err
	}
	if l.Encoding != "json" && l.Encoding != "console" {
		return fmt.Errorf("encoding must be json or console")
	}
	return nil
}

// Options returns the logger options, forced to debug level when debug is set
func (l LogConfig) Options(debug bool) utils.LogOptions {
	opts := utils.LogOptions{Level: l.Level, Encoding: l.Encoding, File: l.File}
	if debug {
		opts.Level = "debug"
	}
	return opts
}

// Limiter builds the token bucket for the rate limit
func (r RateLimitConfig) Limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(r.RequestsPerSecond), r.BurstSize)
}

// MinProfitAmount parses MinProfit. An empty value means no floor.
func (c *Config) MinProfitAmount() (*uint256.Int, error) {
	if c.MinProfit == "" {
		return nil, nil
	}
	v, err := uint256.FromDecimal(c.MinProfit)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", c.MinProfit, err)
	}
	return v, nil
}

// Deadline returns now+DeadlineWindow, or the zero time when no window is set
func (c *Config) Deadline(now time.Time) time.Time {
	if c.DeadlineWindow == 0 {
		return time.Time{}
	}
	return now.Add(c.DeadlineWindow)
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, defaultConfigName), nil
}

// LoadConfig reads cfgFile over the defaults. With no explicit file a missing
// $HOME/.flashswap.json is not an error.
func LoadConfig(cfgFile string) (*Config, error) {
	explicit := cfgFile != ""
	if !explicit {
		p, err := defaultPath()
		if err != nil {
			return nil, err
		}
		cfgFile = p
	}

	cfg := DefaultConfig()

	file, err := os.Open(cfgFile)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Ledger.SeedPath = GetEnvWithDefault(EnvSeedPath, c.Ledger.SeedPath)
	if dsn := GetEnvWithDefault(EnvJournalDSN, ""); dsn != "" {
		c.Journal.Enabled = true
		c.Journal.DSN = dsn
	}
	c.HTTP.ListenAddr = GetEnvWithDefault(EnvListenAddr, c.HTTP.ListenAddr)
	c.Log.Level = GetEnvWithDefault(EnvLogLevel, c.Log.Level)
}

func SaveConfig(cfg *Config, cfgFile string) error {
	if cfgFile == "" {
		p, err := defaultPath()
		if err != nil {
			return err
		}
		cfgFile = p
	}

	file, err := os.Create(cfgFile)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	return encoder.Encode(cfg)
}

func DefaultConfig() *Config {
	return &Config{
		FeePerMille:    uniswap.DefaultFeePerMille,
		DeadlineWindow: 20 * time.Minute,
		MinProfit:      "",
		AttackRateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         100,
			WaitTimeout:       time.Second,
		},
		Ledger: LedgerConfig{
			SeedPath:      "",
			PairCacheSize: ledger.DefaultPairCacheSize,
		},
		Journal: JournalConfig{
			Enabled: false,
			Driver:  "sqlite3",
			DSN:     "flashswap.db",
		},
		HTTP: HTTPConfig{
			ListenAddr:   ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "flashswap",
		},
		Scanner: ScannerConfig{
			Enabled:  false,
			Interval: 5 * time.Second,
			Base:     "WETH",
			Prices:   map[string]string{"USDC": "1", "USDT": "1"},
		},
		Log: LogConfig{
			Level:    "warn",
			Encoding: "json",
		},
	}
}
