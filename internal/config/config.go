// Package config loads server and client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds all configuration for the server.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Auth    AuthConfig
	Log     LogConfig
}

// ClientConfig holds configuration for the command-line client.
type ClientConfig struct {
	ServerURL string `env:"WORKAHOLIC_URL" envDefault:"http://localhost:8080"`
	// TokenFile stores the session token between runs. Empty means the
	// user config directory.
	TokenFile string `env:"WORKAHOLIC_TOKEN_FILE"`
	Log       LogConfig
	Analytics AnalyticsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	DBPath  string `env:"DB_PATH" envDefault:"./data/workaholic.db"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"`
	TokenDuration time.Duration `env:"JWT_TOKEN_DURATION" envDefault:"720h"`
}

// LogConfig maps onto logging.Options.
type LogConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
}

// AnalyticsConfig enables the AMQP analytics sink when URL is set.
type AnalyticsConfig struct {
	AMQPURL    string `env:"ANALYTICS_AMQP_URL"`
	Exchange   string `env:"ANALYTICS_EXCHANGE" envDefault:"workaholic.analytics"`
	RoutingKey string `env:"ANALYTICS_ROUTING_KEY" envDefault:"events"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := loadEnvFiles(files); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Storage); err != nil {
		return nil, fmt.Errorf("parsing storage config: %w", err)
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// LoadClient reads the client configuration the same way Load does.
func LoadClient(files ...string) (*ClientConfig, error) {
	if err := loadEnvFiles(files); err != nil {
		return nil, err
	}

	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.Auth.TokenDuration <= 0 {
		return errors.New("JWT_TOKEN_DURATION must be positive")
	}
	switch c.Storage.Backend {
	case StorageSQLite:
		if c.Storage.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageSQLite, StorageMemory, c.Storage.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT %d is out of range", c.Server.Port)
	}
	return nil
}

// AnalyticsEnabled reports whether events should be published over AMQP.
func (c *ClientConfig) AnalyticsEnabled() bool {
	return c.Analytics.AMQPURL != ""
}
