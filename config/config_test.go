package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DB:         DBConfig{Driver: "postgres"},
		Settlement: SettlementConfig{APIURL: "https://dev.api.trustlesswork.com", NetworkPassphrase: "Test SDF Network ; September 2015"},
		Platform:   PlatformConfig{FeeRate: 0.02},
		Saga:       SagaConfig{LedgerRetryMax: 5},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"memory driver", func(c *Config) { c.DB.Driver = "memory" }, ""},
		{"zero fee", func(c *Config) { c.Platform.FeeRate = 0 }, ""},
		{"negative fee", func(c *Config) { c.Platform.FeeRate = -0.1 }, "fee_rate"},
		{"fee of one", func(c *Config) { c.Platform.FeeRate = 1 }, "fee_rate"},
		{"missing api url", func(c *Config) { c.Settlement.APIURL = "" }, "api_url"},
		{"missing network passphrase", func(c *Config) { c.Settlement.NetworkPassphrase = "" }, "network_passphrase"},
		{"unknown driver", func(c *Config) { c.DB.Driver = "sqlite" }, "database.driver"},
		{"negative retries", func(c *Config) { c.Saga.LedgerRetryMax = -1 }, "ledger_retry_max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_DefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SETTLEMENT_API_KEY", "secret")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Settlement.APIKey)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 0.02, cfg.Platform.FeeRate)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 5, cfg.Saga.LedgerRetryMax)
	assert.Equal(t, "Test SDF Network ; September 2015", cfg.Settlement.NetworkPassphrase)
}

func TestLoad_PrefixedEnv(t *testing.T) {
	t.Setenv("API_DATABASE_DRIVER", "memory")
	t.Setenv("API_PLATFORM_FEE_RATE", "0.05")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, 0.05, cfg.Platform.FeeRate)
}

func TestLoad_RejectsInvalidFee(t *testing.T) {
	t.Setenv("API_PLATFORM_FEE_RATE", "1.5")

	_, err := Load()

	assert.Error(t, err)
}
