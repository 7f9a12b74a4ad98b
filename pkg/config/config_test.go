package config

import (
	"os"
	"testing"
)

func clearAgentgateEnv() {
	for _, key := range []string{
		"AGENTGATE_HTTP_HOST", "AGENTGATE_RECIPIENT_ADDRESS", "AGENTGATE_RPC_URL",
		"AGENTGATE_CHAIN_ID", "AGENTGATE_CHAIN_NAME", "AGENTGATE_TOKEN_ADDRESS",
		"AGENTGATE_TOKEN_SYMBOL", "AGENTGATE_TOKEN_DECIMALS", "AGENTGATE_REPLAY_BACKEND",
		"AGENTGATE_REDIS_ADDR", "AGENTGATE_POSTGRES_DSN", "AGENTGATE_PAYMENT_EXPIRY_SECONDS",
		"AGENTGATE_ENV", "AGENTGATE_LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadConfigFailsFastOnMissingRequiredFields(t *testing.T) {
	clearAgentgateEnv()
	defer clearAgentgateEnv()

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected LoadConfig to fail without required fields set")
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	clearAgentgateEnv()
	defer clearAgentgateEnv()

	os.Setenv("AGENTGATE_RECIPIENT_ADDRESS", "0x1234567890123456789012345678901234567890")
	os.Setenv("AGENTGATE_RPC_URL", "https://mainnet.base.org")
	os.Setenv("AGENTGATE_TOKEN_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ChainID != 8453 {
		t.Errorf("ChainID = %d, want 8453", cfg.ChainID)
	}
	if cfg.TokenDecimals != 6 {
		t.Errorf("TokenDecimals = %d, want 6", cfg.TokenDecimals)
	}
	if cfg.ReplayBackend != "memory" {
		t.Errorf("ReplayBackend = %q, want memory", cfg.ReplayBackend)
	}
}

func TestLoadConfigRequiresPostgresDSNForPostgresBackend(t *testing.T) {
	clearAgentgateEnv()
	defer clearAgentgateEnv()

	os.Setenv("AGENTGATE_RECIPIENT_ADDRESS", "0x1234567890123456789012345678901234567890")
	os.Setenv("AGENTGATE_RPC_URL", "https://mainnet.base.org")
	os.Setenv("AGENTGATE_TOKEN_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	os.Setenv("AGENTGATE_REPLAY_BACKEND", "postgres")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when postgres backend is selected without a DSN")
	}
}

func TestLoadConfigRejectsInvalidInteger(t *testing.T) {
	clearAgentgateEnv()
	defer clearAgentgateEnv()

	os.Setenv("AGENTGATE_RECIPIENT_ADDRESS", "0x1234567890123456789012345678901234567890")
	os.Setenv("AGENTGATE_RPC_URL", "https://mainnet.base.org")
	os.Setenv("AGENTGATE_TOKEN_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	os.Setenv("AGENTGATE_CHAIN_ID", "not-a-number")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for a malformed integer env var")
	}
}
