package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	socialconnect "github.com/mselvan/social-connect"
	"github.com/mselvan/social-connect/internal/logging"
	"github.com/mselvan/social-connect/internal/telemetry"
)

// Config is the reference host's configuration, read from the environment.
type Config struct {
	HTTP     HTTPConfig                `envPrefix:"SERVER_"`
	Google   socialconnect.OAuthConfig `envPrefix:"GOOGLE_"`
	LinkedIn socialconnect.OAuthConfig `envPrefix:"LINKEDIN_"`
	Redis    RedisConfig               `envPrefix:"REDIS_"`
	Otel     telemetry.Config          `envPrefix:"OTEL_"`
	Sentry   logging.SentryConfig
}

// HTTPConfig configures the listener and the outbound provider client.
type HTTPConfig struct {
	Addr string `env:"ADDR" envDefault:":8080"`
	// BaseURL is the externally visible origin used to build callback URLs.
	BaseURL         string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	SecureCookies   bool          `env:"SECURE_COOKIES"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	// ProviderTimeout bounds each call to a provider.
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"15s"`
	// MaxPendingLogins caps the logins awaiting their callback.
	MaxPendingLogins int `env:"MAX_PENDING_LOGINS" envDefault:"10000"`
}

// RedisConfig selects the credential store. Without a URL credentials are
// kept in memory.
type RedisConfig struct {
	URL    string `env:"URL"`
	Prefix string `env:"PREFIX" envDefault:"socialconnect:cred"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
