// Package config loads application configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/quillsend/quillsend-backend/internal/queue"
	"github.com/quillsend/quillsend-backend/internal/store"
)

// Server holds HTTP API settings.
type Server struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Secrets holds the credentials-at-rest encryption key. Must decode to a
// 32-byte AES-256 key.
type Secrets struct {
	EncryptionKey string `env:"SECRETS_ENCRYPTION_KEY,required"`
}

// Scanner drives the periodic sweep for due scheduled campaigns.
type Scanner struct {
	CronSpec string `env:"SCANNER_CRON" envDefault:"@every 1m"`
}

// Config aggregates every component's settings.
type Config struct {
	Server  Server
	Mongo   store.Config
	Queue   queue.Config
	Secrets Secrets
	Scanner Scanner
}

// Load parses the full configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment config: %w", err)
	}
	return cfg, nil
}
