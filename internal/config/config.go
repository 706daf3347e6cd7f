package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	AuthMode       string   `mapstructure:"AUTH_MODE"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	StoreDriver    string   `mapstructure:"STORE_DRIVER"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	SQLitePath     string   `mapstructure:"SQLITE_PATH"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	PracticeName        string `mapstructure:"PRACTICE_NAME"`
	DefaultFacilityName string `mapstructure:"DEFAULT_FACILITY_NAME"`

	DocumentStore       string `mapstructure:"DOCUMENT_STORE"`
	DocumentS3Bucket    string `mapstructure:"DOCUMENT_S3_BUCKET"`
	DocumentS3Region    string `mapstructure:"DOCUMENT_S3_REGION"`
	DocumentS3Endpoint  string `mapstructure:"DOCUMENT_S3_ENDPOINT"`
	DocumentS3PathStyle bool   `mapstructure:"DOCUMENT_S3_PATH_STYLE"`

	// Optional static credentials; the default AWS chain is used otherwise.
	DocumentS3AccessKeyID     string `mapstructure:"DOCUMENT_S3_ACCESS_KEY_ID"`
	DocumentS3SecretAccessKey string `mapstructure:"DOCUMENT_S3_SECRET_ACCESS_KEY"`
}

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	DocumentStoreNone   = "none"
	DocumentStoreMemory = "memory"
	DocumentStoreS3     = "s3"
)

var keys = []string{
	"PORT", "ENV", "AUTH_MODE", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "SQLITE_PATH",
	"REDIS_URL", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"PRACTICE_NAME", "DEFAULT_FACILITY_NAME",
	"DOCUMENT_STORE", "DOCUMENT_S3_BUCKET", "DOCUMENT_S3_REGION",
	"DOCUMENT_S3_ENDPOINT", "DOCUMENT_S3_PATH_STYLE",
	"DOCUMENT_S3_ACCESS_KEY_ID", "DOCUMENT_S3_SECRET_ACCESS_KEY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SQLITE_PATH", "podiatry.db")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("PRACTICE_NAME", "Empathic Podiatry")
	v.SetDefault("DEFAULT_FACILITY_NAME", "Spring Creek")
	v.SetDefault("DOCUMENT_STORE", DocumentStoreNone)
	v.SetDefault("DOCUMENT_S3_REGION", "us-east-1")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.StoreDriver == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); every request is treated as admin.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. An explicit AUTH_MODE
// wins; otherwise development maps to "development" and anything else to "jwt".
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch mode := c.ResolvedAuthMode(); mode {
	case "development":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=development is not allowed when ENV=production")
		}
	case "jwt":
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when AUTH_MODE is \"jwt\"")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}

	switch c.StoreDriver {
	case StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreSQLite, c.StoreDriver)
	}

	switch c.DocumentStore {
	case "", DocumentStoreNone, DocumentStoreMemory:
	case DocumentStoreS3:
		if c.DocumentS3Bucket == "" {
			return fmt.Errorf("DOCUMENT_S3_BUCKET is required when DOCUMENT_STORE is %q", DocumentStoreS3)
		}
	default:
		return fmt.Errorf("DOCUMENT_STORE must be none, memory or s3, got %q", c.DocumentStore)
	}

	return nil
}
