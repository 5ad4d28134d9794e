package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/walletwatch/service/activity"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

// Report output modes.
const (
	ReportStdout = "stdout"
	ReportNone   = "none"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string

	// NATS configuration; empty disables publishing
	NATSURL string

	// Solana configuration
	RPCURL         string
	WSURL          string
	TrackedWallets []string

	// External call timeouts
	RPCTimeout           time.Duration
	MetadataFetchTimeout time.Duration
	PriceTimeout         time.Duration

	// Caching
	PriceTTL          time.Duration
	MetadataCacheTTL  time.Duration
	MetadataCacheSize int

	// Price sources
	PriceAPIURL       string
	DexScreenerAPIURL string
	SOLFallbackPrice  float64

	// Pipeline
	BalanceTracking     activity.TrackingMode
	DedupCapacity       int
	PipelineConcurrency int
	KeepaliveInterval   time.Duration
	ReportOutput        string
}

// Load reads configuration from environment variables and validates all
// required fields. Variables from envFiles (or ./.env when none are given)
// are loaded first and never override the process environment; a missing
// default .env is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.NATSURL = os.Getenv("NATS_URL")

	// Solana configuration
	cfg.RPCURL = os.Getenv("RPC_URL")
	if cfg.RPCURL == "" {
		errs = append(errs, fmt.Errorf("RPC_URL is required"))
	}
	cfg.WSURL = os.Getenv("WS_URL")
	if cfg.WSURL == "" {
		errs = append(errs, fmt.Errorf("WS_URL is required"))
	}
	wallets, err := parseWallets(os.Getenv("TRACKED_WALLETS"))
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.TrackedWallets = wallets
	}

	durations := []struct {
		key, def string
		dst      *time.Duration
	}{
		{"RPC_TIMEOUT", "10s", &cfg.RPCTimeout},
		{"METADATA_FETCH_TIMEOUT", "5s", &cfg.MetadataFetchTimeout},
		{"PRICE_TIMEOUT", "5s", &cfg.PriceTimeout},
		{"PRICE_TTL", "5m", &cfg.PriceTTL},
		{"METADATA_CACHE_TTL", "0s", &cfg.MetadataCacheTTL},
		{"KEEPALIVE_INTERVAL", "30s", &cfg.KeepaliveInterval},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*d.dst = v
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"METADATA_CACHE_SIZE", 0, &cfg.MetadataCacheSize},
		{"DEDUP_CAPACITY", 10000, &cfg.DedupCapacity},
		{"PIPELINE_CONCURRENCY", 16, &cfg.PipelineConcurrency},
	}
	for _, i := range ints {
		v, err := parseInt(i.key, i.def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*i.dst = v
	}

	// Price sources
	cfg.PriceAPIURL = getEnvOrDefault("PRICE_API_URL", "https://api.jup.ag/price/v2")
	cfg.DexScreenerAPIURL = getEnvOrDefault("DEXSCREENER_API_URL", "https://api.dexscreener.com")
	fallback, err := parseFloat("SOL_FALLBACK_PRICE", 170)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SOLFallbackPrice = fallback
	}

	mode, err := activity.ParseTrackingMode(getEnvOrDefault("BALANCE_TRACKING", string(activity.TrackPerAddress)))
	if err != nil {
		errs = append(errs, fmt.Errorf("BALANCE_TRACKING: %w", err))
	} else {
		cfg.BalanceTracking = mode
	}

	cfg.ReportOutput = getEnvOrDefault("REPORT_OUTPUT", ReportStdout)

	if len(errs) == 0 {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.RPCURL == "" {
		errs = append(errs, fmt.Errorf("RPCURL is required"))
	}
	if c.WSURL == "" {
		errs = append(errs, fmt.Errorf("WSURL is required"))
	}
	if len(c.TrackedWallets) == 0 {
		errs = append(errs, fmt.Errorf("at least one tracked wallet is required"))
	}
	for _, w := range c.TrackedWallets {
		if _, err := solanago.PublicKeyFromBase58(w); err != nil {
			errs = append(errs, fmt.Errorf("invalid wallet address %q: %w", w, err))
		}
	}

	if c.RPCTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RPCTimeout must be positive"))
	}
	if c.MetadataCacheSize < 0 {
		errs = append(errs, fmt.Errorf("MetadataCacheSize cannot be negative"))
	}
	if c.DedupCapacity < 0 {
		errs = append(errs, fmt.Errorf("DedupCapacity cannot be negative"))
	}
	if c.PipelineConcurrency < 0 {
		errs = append(errs, fmt.Errorf("PipelineConcurrency cannot be negative"))
	}
	if c.KeepaliveInterval < time.Second {
		errs = append(errs, fmt.Errorf("KeepaliveInterval must be at least 1 second"))
	}
	if c.SOLFallbackPrice <= 0 {
		errs = append(errs, fmt.Errorf("SOLFallbackPrice must be positive"))
	}
	if c.ReportOutput != ReportStdout && c.ReportOutput != ReportNone {
		errs = append(errs, fmt.Errorf("ReportOutput must be %q or %q", ReportStdout, ReportNone))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// parseWallets splits a comma-separated wallet list, dropping blanks and
// duplicates.
func parseWallets(value string) ([]string, error) {
	seen := make(map[string]bool)
	var wallets []string
	for _, w := range strings.Split(value, ",") {
		w = strings.TrimSpace(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		wallets = append(wallets, w)
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("TRACKED_WALLETS is required")
	}
	return wallets, nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}
