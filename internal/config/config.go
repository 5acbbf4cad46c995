package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir string   `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret     string   `mapstructure:"JWT_SECRET"`
	JWTTTLMinutes int      `mapstructure:"JWT_TTL_MINUTES"`
	QRHMACKey     string   `mapstructure:"QR_HMAC_KEY"`
	QRMaxAgeHours int      `mapstructure:"QR_MAX_AGE_HOURS"`
	IPFSAPIURL    string   `mapstructure:"IPFS_API_URL"`
	LedgerRPCURL  string   `mapstructure:"LEDGER_RPC_URL"`
	LedgerAddress string   `mapstructure:"LEDGER_CONTRACT_ADDRESS"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("JWT_TTL_MINUTES", 60)
	v.SetDefault("QR_MAX_AGE_HOURS", 0) // 0 = payloads never expire
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_TTL_MINUTES")
	v.BindEnv("QR_HMAC_KEY")
	v.BindEnv("QR_MAX_AGE_HOURS")
	v.BindEnv("IPFS_API_URL")
	v.BindEnv("LEDGER_RPC_URL")
	v.BindEnv("LEDGER_CONTRACT_ADDRESS")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.QRHMACKey) < 16 {
		return nil, fmt.Errorf("QR_HMAC_KEY is required and must be at least 16 bytes")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}
