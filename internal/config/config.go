// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/taker007/crypto-guardian/internal/ethunit"
	"github.com/taker007/crypto-guardian/internal/security"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database (optional, denylist uses in-memory if not set)
	DatabaseURL string

	// Chain RPC endpoints, chainID → URL. Chains without an entry are
	// rejected at scan time rather than falling back to another chain.
	RPCEndpoints map[string]string

	// Analysis settings
	SimTimeout       time.Duration // per chain call (eth_call / eth_getCode)
	ScanBudget       time.Duration // end-to-end budget for one scan
	HighValueETH     string        // whole-ETH threshold, e.g. "1.0"
	MaxCalldataBytes int           // reject calldata larger than this

	// Observability
	OTLPEndpoint string

	// Security
	RateLimitRPM int
}

// Defaults
const (
	DefaultPort             = "4004"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultSimTimeout       = 2500 * time.Millisecond
	DefaultScanBudget       = 10 * time.Second
	DefaultHighValueETH     = "1.0"
	DefaultMaxCalldataBytes = 64 * 1024
	DefaultRateLimit        = 120
)

// DefaultRPCEndpoints are public endpoints used when RPC_ENDPOINTS is unset.
var DefaultRPCEndpoints = map[string]string{
	"1":     "https://cloudflare-eth.com",
	"8453":  "https://mainnet.base.org",
	"84532": "https://sepolia.base.org",
}

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RPCEndpoints:     loadEndpoints(),
		SimTimeout:       getEnvDuration("SIM_TIMEOUT_MS", DefaultSimTimeout),
		ScanBudget:       getEnvDuration("SCAN_BUDGET_MS", DefaultScanBudget),
		HighValueETH:     getEnv("HIGH_VALUE_THRESHOLD_ETH", DefaultHighValueETH),
		MaxCalldataBytes: int(getEnvInt64("MAX_CALLDATA_BYTES", DefaultMaxCalldataBytes)),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM:     int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required (RPC_ENDPOINTS)")
	}
	for chainID, url := range c.RPCEndpoints {
		if chainID == "" || url == "" {
			return fmt.Errorf("RPC_ENDPOINTS entries must have the form chainID=url")
		}
		if _, err := strconv.ParseUint(chainID, 10, 64); err != nil {
			return fmt.Errorf("invalid chain ID %q in RPC_ENDPOINTS", chainID)
		}
		// In production, endpoints must not point at internal addresses.
		if c.IsProduction() {
			if err := security.ValidateEndpointURL(url); err != nil {
				return fmt.Errorf("RPC endpoint for chain %s: %w", chainID, err)
			}
		}
	}
	if _, ok := ethunit.ParseEther(c.HighValueETH); !ok {
		return fmt.Errorf("HIGH_VALUE_THRESHOLD_ETH must be a decimal ETH amount, got %q", c.HighValueETH)
	}
	if c.SimTimeout <= 0 {
		return fmt.Errorf("SIM_TIMEOUT_MS must be positive")
	}
	if c.MaxCalldataBytes <= 0 {
		return fmt.Errorf("MAX_CALLDATA_BYTES must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// loadEndpoints builds the chain endpoint map: RPC_ENDPOINTS pair list
// (or defaults), then per-chain RPC_URL_<chainID> overrides on top.
func loadEndpoints() map[string]string {
	out := parseEndpoints(os.Getenv("RPC_ENDPOINTS"))
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		chainID, found := strings.CutPrefix(name, "RPC_URL_")
		if !found || chainID == "" {
			continue
		}
		out[chainID] = value
	}
	return out
}

// parseEndpoints parses "1=https://a,8453=https://b" into a map.
// An empty input yields the defaults.
func parseEndpoints(raw string) map[string]string {
	if raw == "" {
		out := make(map[string]string, len(DefaultRPCEndpoints))
		for k, v := range DefaultRPCEndpoints {
			out[k] = v
		}
		return out
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.Index(pair, "=")
		if idx < 0 {
			// Keep the malformed entry so Validate reports it
			out[pair] = ""
			continue
		}
		out[strings.TrimSpace(pair[:idx])] = strings.TrimSpace(pair[idx+1:])
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
