package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr     string
	LogLevel       string
	MetricsEnabled bool

	// Ledger node configuration
	RPCURL      string
	RPCUser     string
	RPCPassword string
	RPCTimeout  time.Duration
	Network     string

	// NATS configuration. Empty disables submission events.
	NATSURL string
}

var validNetworks = map[string]bool{
	"mainnet": true,
	"testnet": true,
	"devnet":  true,
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	metricsEnabled, err := parseBool("METRICS_ENABLED", true)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MetricsEnabled = metricsEnabled
	}

	// Ledger node configuration
	cfg.RPCURL = os.Getenv("BRT_RPC_URL")
	if cfg.RPCURL == "" {
		errs = append(errs, fmt.Errorf("BRT_RPC_URL is required"))
	} else if err := validateURL("BRT_RPC_URL", cfg.RPCURL); err != nil {
		errs = append(errs, err)
	}

	cfg.RPCUser = os.Getenv("BRT_RPC_USER")
	cfg.RPCPassword = os.Getenv("BRT_RPC_PASSWORD")
	if cfg.RPCPassword != "" && cfg.RPCUser == "" {
		errs = append(errs, fmt.Errorf("BRT_RPC_PASSWORD requires BRT_RPC_USER"))
	}

	cfg.Network = getEnvOrDefault("BRT_NETWORK", "mainnet")
	if !validNetworks[cfg.Network] {
		errs = append(errs, fmt.Errorf("BRT_NETWORK: unknown network %q", cfg.Network))
	}

	timeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("RPC_TIMEOUT must be positive"))
	} else {
		cfg.RPCTimeout = timeout
	}

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
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

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	if c.RPCURL == "" {
		errs = append(errs, fmt.Errorf("RPCURL is required"))
	} else if err := validateURL("RPCURL", c.RPCURL); err != nil {
		errs = append(errs, err)
	}

	if c.RPCPassword != "" && c.RPCUser == "" {
		errs = append(errs, fmt.Errorf("RPCPassword requires RPCUser"))
	}

	if !validNetworks[c.Network] {
		errs = append(errs, fmt.Errorf("Network %q is not one of mainnet, testnet, devnet", c.Network))
	}

	if c.RPCTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RPCTimeout must be at least 1 second"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
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

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url %q: %w", key, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", key, u.Scheme)
	}
	return nil
}
