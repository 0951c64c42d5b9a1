package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all process configuration for the CLI
type Config struct {
	// HTTP client configuration
	HTTP HTTPConfig

	// Credentials used by non-interactive logins (CI)
	Credentials CredentialsConfig

	// Logging configuration
	Logging LoggingConfig
}

// HTTPConfig holds the settings of the shared HTTP client
type HTTPConfig struct {
	Timeout     time.Duration `env:"ASSESSLY_HTTP_TIMEOUT, default=30s"`
	InsecureTLS bool          `env:"ASSESSLY_INSECURE_TLS, default=false"`
}

// CredentialsConfig holds login credentials taken from the environment
type CredentialsConfig struct {
	Email    string `env:"ASSESSLY_EMAIL"`
	Password string `env:"ASSESSLY_PASSWORD"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL, default=warn"`
	Format string `env:"LOG_FORMAT, default=console"` // json, console
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith resolves the configuration from an arbitrary lookuper
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.HTTP.Timeout <= 0 {
		return nil, fmt.Errorf("ASSESSLY_HTTP_TIMEOUT must be positive, got %s", cfg.HTTP.Timeout)
	}

	return &cfg, nil
}
