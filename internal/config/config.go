// Package config loads platform configuration from the environment, with an
// optional YAML overlay for deployments that prefer a config file.
package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/openquill/platform/pkg/logger"
)

// Config is the root configuration for the server process.
type Config struct {
	Server     ServerConfig         `yaml:"server"`
	Database   DatabaseConfig       `yaml:"database"`
	Redis      RedisConfig          `yaml:"redis"`
	Auth       AuthConfig           `yaml:"auth"`
	Logging    logger.LoggingConfig `yaml:"logging"`
	Reconciler ReconcilerConfig     `yaml:"reconciler"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `env:"SERVER_HOST,default=0.0.0.0" yaml:"host"`
	Port            int    `env:"SERVER_PORT,default=8080" yaml:"port"`
	ReadTimeout     int    `env:"SERVER_READ_TIMEOUT,default=15" yaml:"read_timeout"`
	WriteTimeout    int    `env:"SERVER_WRITE_TIMEOUT,default=30" yaml:"write_timeout"`
	ShutdownTimeout int    `env:"SERVER_SHUTDOWN_TIMEOUT,default=10" yaml:"shutdown_timeout"`
	AllowedOrigins  string `env:"CORS_ALLOWED_ORIGINS,default=*" yaml:"allowed_origins"`
	RatePerSecond   int    `env:"RATE_LIMIT_PER_SECOND,default=25" yaml:"rate_per_second"`
	RateBurst       int    `env:"RATE_LIMIT_BURST,default=50" yaml:"rate_burst"`
	AuditLogPath    string `env:"AUDIT_LOG_PATH,default=" yaml:"audit_log_path"`
}

// DatabaseConfig controls the Postgres connection pool. An empty DSN selects
// the in-memory store, which is only suitable for local development.
type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER,default=postgres" yaml:"driver"`
	DSN             string `env:"DATABASE_URL,default=" yaml:"dsn"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=25" yaml:"max_open_conns"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME,default=300" yaml:"conn_max_lifetime"`
}

// RedisConfig controls the optional article cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,default=" yaml:"addr"`
	Password string `env:"REDIS_PASSWORD,default=" yaml:"password"`
	DB       int    `env:"REDIS_DB,default=0" yaml:"db"`
	TTL      int    `env:"REDIS_TTL,default=30" yaml:"ttl"`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET,default=dev-insecure-secret" yaml:"jwt_secret"`
	TokenTTL  int    `env:"AUTH_TOKEN_TTL,default=86400" yaml:"token_ttl"`
}

// ReconcilerConfig controls the periodic counter reconciliation job.
type ReconcilerConfig struct {
	Enabled  bool   `env:"RECONCILER_ENABLED,default=false" yaml:"enabled"`
	Schedule string `env:"RECONCILER_SCHEDULE,default=@hourly" yaml:"schedule"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is honoured for local runs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// overlayFile applies a YAML file on top of the environment-derived config.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
