package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the service configuration, loaded from the environment.
type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUsername string `env:"DB_USERNAME"`
	DBPassword string `env:"DB_PASSWORD"`
	DBDatabase string `env:"DB_DATABASE"`

	RedisAddr string `env:"REDIS_ADDR"`

	TokenSecret string `env:"ACCESS_TOKEN_SECRET"`

	LocalStorePath    string        `env:"LOCAL_STORE_PATH" envDefault:"diagramdb.sqlite"`
	PresenceKeepalive time.Duration `env:"PRESENCE_KEEPALIVE" envDefault:"30s"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	// Debug enables development-mode logging of channel errors. Presence
	// failures degrade silently otherwise.
	Debug bool `env:"DEBUG"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// RemoteEnabled reports whether the remote relational backend is configured.
// Without it, storage falls back to the local embedded store.
func (c Config) RemoteEnabled() bool {
	return c.DBHost != ""
}

// DatabaseDSN builds the postgres connection string, encoding credentials
// safely.
func (c Config) DatabaseDSN() string {
	userInfo := url.UserPassword(c.DBUsername, c.DBPassword)
	return fmt.Sprintf(
		"postgres://%s@%s:%s/%s?sslmode=disable",
		userInfo.String(),
		c.DBHost,
		c.DBPort,
		url.PathEscape(c.DBDatabase),
	)
}
