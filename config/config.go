package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	DB            DBConfig            `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Settlement    SettlementConfig    `mapstructure:"settlement"`
	Platform      PlatformConfig      `mapstructure:"platform"`
	Saga          SagaConfig          `mapstructure:"saga"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Idempotency   IdempotencyConfig   `mapstructure:"idempotency"`
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DBConfig holds database specific configuration.
// Driver "memory" runs the ledger in-process (local development only).
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig holds Redis connection settings used by the idempotency store.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CORSConfig holds CORS specific configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthConfig enables wallet bearer tokens when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// SettlementConfig describes the external escrow settlement API.
type SettlementConfig struct {
	APIURL               string        `mapstructure:"api_url"`
	APIKey               string        `mapstructure:"api_key"`
	Timeout              time.Duration `mapstructure:"timeout"`
	RateLimitRPS         float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int           `mapstructure:"rate_limit_burst"`
	TrustlineSymbol      string        `mapstructure:"trustline_symbol"`
	TrustlineAddress     string        `mapstructure:"trustline_address"`
	MilestoneDescription string        `mapstructure:"milestone_description"`

	// NetworkPassphrase selects the Stellar network release transactions are signed for.
	NetworkPassphrase string `mapstructure:"network_passphrase"`
}

// PlatformConfig holds the platform identity and fee policy. SigningKey is a
// Stellar secret seed (S...).
type PlatformConfig struct {
	Address    string  `mapstructure:"address"`
	SigningKey string  `mapstructure:"signing_key"`
	FeeRate    float64 `mapstructure:"fee_rate"`
}

// SagaConfig toggles the guard policies of the agreement lifecycle.
type SagaConfig struct {
	RequireDeliveryBeforeApproval bool          `mapstructure:"require_delivery_before_approval"`
	StrictRequestChanges          bool          `mapstructure:"strict_request_changes"`
	LedgerRetryMax                int           `mapstructure:"ledger_retry_max"`
	LedgerRetryInitialInterval    time.Duration `mapstructure:"ledger_retry_initial_interval"`
}

// NotificationsConfig selects how notifications are persisted.
type NotificationsConfig struct {
	UseQueue bool `mapstructure:"use_queue"`
	Workers  int  `mapstructure:"workers"`
}

// IdempotencyConfig controls Idempotency-Key replay.
type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "escrow_db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("settlement.api_url", "https://dev.api.trustlesswork.com")
	v.SetDefault("settlement.timeout", 30*time.Second)
	v.SetDefault("settlement.rate_limit_rps", 5.0)
	v.SetDefault("settlement.rate_limit_burst", 10)
	v.SetDefault("settlement.trustline_symbol", "USDC")
	v.SetDefault("settlement.milestone_description", "Deliver work")
	v.SetDefault("settlement.network_passphrase", "Test SDF Network ; September 2015")
	v.SetDefault("platform.fee_rate", 0.02)
	v.SetDefault("saga.require_delivery_before_approval", false)
	v.SetDefault("saga.strict_request_changes", false)
	v.SetDefault("saga.ledger_retry_max", 5)
	v.SetDefault("saga.ledger_retry_initial_interval", 200*time.Millisecond)
	v.SetDefault("notifications.use_queue", false)
	v.SetDefault("notifications.workers", 5)
	v.SetDefault("idempotency.ttl", 24*time.Hour)
}

// Load configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/app")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("Config file not found, using defaults and environment variables.")
		} else {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Example: API_SETTLEMENT_API_KEY
	v.SetEnvPrefix("API")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Configuration loaded: Server Port=%d, DB Driver=%s, DB Host=%s, Settlement URL=%s, Allowed Origins=%v",
		cfg.Server.Port, cfg.DB.Driver, cfg.DB.Host, cfg.Settlement.APIURL, cfg.CORS.AllowedOrigins)

	return &cfg, nil
}

// applyEnvOverrides reads the un-prefixed variables used by deployments. They win over everything else.
func applyEnvOverrides(cfg *Config) {
	if portStr := os.Getenv("SERVER_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
		}
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.DB.Port = port
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.DB.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if url := os.Getenv("SETTLEMENT_API_URL"); url != "" {
		cfg.Settlement.APIURL = url
	}
	if key := os.Getenv("SETTLEMENT_API_KEY"); key != "" {
		cfg.Settlement.APIKey = key
	}
	if passphrase := os.Getenv("STELLAR_NETWORK_PASSPHRASE"); passphrase != "" {
		cfg.Settlement.NetworkPassphrase = passphrase
	}
	if key := os.Getenv("PLATFORM_SIGNING_KEY"); key != "" {
		cfg.Platform.SigningKey = key
	}
	if addr := os.Getenv("PLATFORM_ADDRESS"); addr != "" {
		cfg.Platform.Address = addr
	}

	// comma-separated list -> slice
	if originsStr := os.Getenv("CORS_ALLOWED_ORIGINS"); originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		cfg.CORS.AllowedOrigins = origins
	}
}

// Validate rejects configurations the coordinator cannot run with.
func (c *Config) Validate() error {
	if c.Platform.FeeRate < 0 || c.Platform.FeeRate >= 1 {
		return fmt.Errorf("platform.fee_rate must be in [0, 1), got %v", c.Platform.FeeRate)
	}
	if c.Settlement.APIURL == "" {
		return errors.New("settlement.api_url is required")
	}
	if c.Settlement.NetworkPassphrase == "" {
		return errors.New("settlement.network_passphrase is required")
	}
	switch c.DB.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres or memory, got %q", c.DB.Driver)
	}
	if c.Saga.LedgerRetryMax < 0 {
		return errors.New("saga.ledger_retry_max must not be negative")
	}
	return nil
}
