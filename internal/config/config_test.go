package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDestination = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	assert.Equal(t, DefaultWebSocketURL, cfg.WebSocketURL)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, "static", cfg.PriorityFee.Mode)
	assert.Equal(t, uint64(100_000), cfg.PriorityFee.MicroLamports)
	assert.Equal(t, 75, cfg.PriorityFee.Percentile)
	assert.Equal(t, uint(0), cfg.MaxRetries)
	assert.False(t, cfg.SkipPreflight)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)

	// без получателя и суммы конфигурация не проходит проверку
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
rpc_url: http://127.0.0.1:8899
websocket_url: ws://127.0.0.1:8900
keypair_path: ./authority.json
destination: `+testDestination+`
amount_lamports: 1000000
commitment: finalized
skip_preflight: true
max_retries: 2
confirm_timeout: 30s
priority_fee:
  mode: recent
  micro_lamports: 5000
  percentile: 90
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://127.0.0.1:8899", cfg.RPCURL)
	assert.Equal(t, uint64(1_000_000), cfg.AmountLamports)
	assert.Equal(t, "finalized", cfg.Commitment)
	assert.True(t, cfg.SkipPreflight)
	assert.Equal(t, uint(2), cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, PriorityFeeConfig{Mode: "recent", MicroLamports: 5000, Percentile: 90}, cfg.PriorityFee)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "config.json", `{"destination": "`+testDestination+`", "amount_lamports": 10}`)

	t.Setenv("SOLANA_TRANSFER_RPC_URL", "https://rpc.example.com")
	t.Setenv("SOLANA_TRANSFER_PRIORITY_FEE_MICRO_LAMPORTS", "777")
	t.Setenv("SOLANA_TRANSFER_SKIP_PREFLIGHT", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.com", cfg.RPCURL)
	assert.Equal(t, uint64(777), cfg.PriorityFee.MicroLamports)
	assert.True(t, cfg.SkipPreflight)
	assert.Equal(t, uint64(10), cfg.AmountLamports)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RPCURL:         "https://api.devnet.solana.com",
			WebSocketURL:   "wss://api.devnet.solana.com",
			KeypairPath:    "authority.json",
			Destination:    testDestination,
			AmountLamports: 1,
			Commitment:     "confirmed",
			PriorityFee:    PriorityFeeConfig{Mode: "static", MicroLamports: 1, Percentile: 75},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"rpc scheme", func(c *Config) { c.RPCURL = "ftp://example.com" }},
		{"websocket scheme", func(c *Config) { c.WebSocketURL = "https://example.com" }},
		{"missing keypair", func(c *Config) { c.KeypairPath = "" }},
		{"bad destination", func(c *Config) { c.Destination = "not-a-key" }},
		{"zero amount", func(c *Config) { c.AmountLamports = 0 }},
		{"commitment", func(c *Config) { c.Commitment = "max" }},
		{"fee mode", func(c *Config) { c.PriorityFee.Mode = "dynamic" }},
		{"percentile", func(c *Config) { c.PriorityFee.Percentile = 101 }},
		{"nats scheme", func(c *Config) { c.NATSURL = "http://localhost:4222" }},
		{"nats subject", func(c *Config) { c.NATSURL = "nats://localhost:4222"; c.NATSSubject = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
