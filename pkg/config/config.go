// Package config loads agentgate's runtime configuration from the
// environment, following the teacher's getEnv(key, default) convention
// but failing fast on missing required fields instead of silently
// defaulting them (spec §4.9 ambient stack).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config is the gateway's full runtime configuration.
type Config struct {
	HTTPServerHost string

	RecipientAddress string
	RPCURL           string
	ChainID          uint64
	ChainName        string

	TokenAddress  string
	TokenSymbol   string
	TokenDecimals int

	ReplayBackend string // "memory", "redis", or "postgres"
	RedisAddr     string
	PostgresDSN   string

	PaymentExpiryWindow time.Duration

	Environment string // "development" or "production"
	LogLevel    slog.Level
}

// LoadConfig reads configuration from the environment with the
// AGENTGATE_ prefix, applying defaults for optional fields.
func LoadConfig() (Config, error) {
	cfg := Config{
		HTTPServerHost:      getEnv("AGENTGATE_HTTP_HOST", "8080"),
		RecipientAddress:    os.Getenv("AGENTGATE_RECIPIENT_ADDRESS"),
		RPCURL:              os.Getenv("AGENTGATE_RPC_URL"),
		ChainName:           getEnv("AGENTGATE_CHAIN_NAME", "base"),
		TokenAddress:        os.Getenv("AGENTGATE_TOKEN_ADDRESS"),
		TokenSymbol:         getEnv("AGENTGATE_TOKEN_SYMBOL", "USDC"),
		ReplayBackend:       getEnv("AGENTGATE_REPLAY_BACKEND", "memory"),
		RedisAddr:           getEnv("AGENTGATE_REDIS_ADDR", "localhost:6379"),
		PostgresDSN:         os.Getenv("AGENTGATE_POSTGRES_DSN"),
		Environment:         getEnv("AGENTGATE_ENV", "development"),
	}

	chainID, err := getEnvUint64("AGENTGATE_CHAIN_ID", 8453)
	if err != nil {
		return Config{}, err
	}
	cfg.ChainID = chainID

	decimals, err := getEnvInt("AGENTGATE_TOKEN_DECIMALS", 6)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenDecimals = decimals

	expirySecs, err := getEnvInt("AGENTGATE_PAYMENT_EXPIRY_SECONDS", 300)
	if err != nil {
		return Config{}, err
	}
	cfg.PaymentExpiryWindow = time.Duration(expirySecs) * time.Second

	cfg.LogLevel = parseLogLevel(getEnv("AGENTGATE_LOG_LEVEL", "info"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on missing required fields, rather than at first
// request (spec §4.9).
func (c Config) Validate() error {
	if c.RecipientAddress == "" {
		return fmt.Errorf("config: AGENTGATE_RECIPIENT_ADDRESS is required")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("config: AGENTGATE_RPC_URL is required")
	}
	if c.TokenAddress == "" {
		return fmt.Errorf("config: AGENTGATE_TOKEN_ADDRESS is required")
	}
	switch c.ReplayBackend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("config: AGENTGATE_REPLAY_BACKEND must be memory, redis or postgres, got %q", c.ReplayBackend)
	}
	if c.ReplayBackend == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("config: AGENTGATE_POSTGRES_DSN is required when AGENTGATE_REPLAY_BACKEND=postgres")
	}
	return nil
}

// NewLogger builds the structured logger described in spec §4.9: JSON
// in production, text in development.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	var handler slog.Handler
	if c.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, value)
	}
	return parsed, nil
}

func getEnvUint64(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a non-negative integer, got %q", key, value)
	}
	return parsed, nil
}

func parseLogLevel(value string) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
