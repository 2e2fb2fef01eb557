// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration.
// It is loaded once at startup and passed into constructors; nothing in the
// core reads the environment directly.
type Config struct {
	Host     string
	Port     int
	LogLevel string
	DataDir  string // Base directory for local state (always absolute)

	// Valuation behavior
	IgnoredAssets   map[string]struct{} // Asset symbols excluded from all valuation output
	PriceProviderID string              // Pricing provider identifier (default "coinbase")

	// Trade safety rails
	AllowedSymbols map[string]struct{} // Execution allowlist; empty means nothing is executable
	MaxNotionalUSD *decimal.Decimal    // Per-order notional cap; nil means no cap

	// Coinbase Advanced Trade credentials
	CoinbaseAPIKey    string
	CoinbaseAPISecret string // PEM-encoded EC private key

	// Plaid (brokerage aggregator) credentials
	PlaidClientID     string
	PlaidSecret       string
	PlaidEnvironment  string // sandbox, development, production
	SchwabContainerID string

	// Local state paths
	ColdStoragePath string // User-maintained cold storage holdings file
	LinkDBPath      string // SQLite store for aggregator linkage tokens
}

// Load reads configuration from environment variables.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("FINAGENT_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// The Coinbase secret is typically pasted into .env with literal "\n"
	// sequences; turn them back into real newlines for PEM parsing.
	apiSecret := strings.ReplaceAll(os.Getenv("COINBASE_API_SECRET"), `\n`, "\n")

	cfg := &Config{
		Host:     getEnv("FINAGENT_HOST", "127.0.0.1"),
		Port:     getEnvAsInt("FINAGENT_PORT", 8000),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DataDir:  absDataDir,

		IgnoredAssets:   getEnvAsSymbolSet("FINAGENT_IGNORED_ASSETS"),
		PriceProviderID: strings.ToLower(getEnv("FINAGENT_PRICE_PROVIDER", "coinbase")),

		AllowedSymbols: getEnvAsSymbolSet("FINAGENT_ALLOWED_SYMBOLS"),
		MaxNotionalUSD: getEnvAsDecimal("FINAGENT_MAX_NOTIONAL_USD"),

		CoinbaseAPIKey:    getEnv("COINBASE_API_KEY", ""),
		CoinbaseAPISecret: apiSecret,

		PlaidClientID:     getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:       getEnv("PLAID_SECRET", ""),
		PlaidEnvironment:  strings.ToLower(getEnv("PLAID_ENV", "sandbox")),
		SchwabContainerID: getEnv("FINAGENT_SCHWAB_CONTAINER_ID", "schwab"),

		ColdStoragePath: getEnv("FINAGENT_COLD_STORAGE_PATH", filepath.Join(absDataDir, "cold_storage.json")),
		LinkDBPath:      getEnv("FINAGENT_LINK_DB_PATH", filepath.Join(absDataDir, "link.db")),
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value with a fallback default
func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer with a fallback default
func getEnvAsInt(key string, fallback int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsSymbolSet parses a comma-separated list of asset symbols into an
// uppercased set. Blank entries are dropped.
func getEnvAsSymbolSet(key string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(os.Getenv(key), ",") {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol == "" {
			continue
		}
		out[symbol] = struct{}{}
	}
	return out
}

// getEnvAsDecimal parses an environment variable as an exact decimal.
// Unset or unparsable values yield nil (no cap) rather than an error.
func getEnvAsDecimal(key string) *decimal.Decimal {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return nil
	}
	return &parsed
}
