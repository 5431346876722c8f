// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr      string        `env:"FINHUB_ADDR" envDefault:"127.0.0.1:8080"`
	DBPath          string        `env:"FINHUB_DB" envDefault:"finhub.db"`
	ExternalBaseURL string        `env:"FINHUB_BASE_URL" envDefault:"http://localhost:8080"`
	ProvidersFile   string        `env:"FINHUB_PROVIDERS" envDefault:"providers.yaml"`
	SessionSecret   string        `env:"FINHUB_SESSION_SECRET"`
	SessionTTL      time.Duration `env:"FINHUB_SESSION_TTL" envDefault:"12h"`
	StateTTL        time.Duration `env:"FINHUB_STATE_TTL" envDefault:"10m"`
	HTTPTimeout     time.Duration `env:"FINHUB_HTTP_TIMEOUT" envDefault:"15s"`
	FanOutLimit     int           `env:"FINHUB_FANOUT_LIMIT" envDefault:"4"`
	RetryCount      int           `env:"FINHUB_RETRY_COUNT" envDefault:"2"`
	AdminEmail      string        `env:"FINHUB_ADMIN_EMAIL" envDefault:"admin@finhub.local"`
	AdminPassword   string        `env:"FINHUB_ADMIN_PASSWORD"`
	Debug           bool          `env:"FINHUB_DEBUG"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("FINHUB_SESSION_SECRET is required")
	}
	return cfg, nil
}
