// Package config loads process configuration once at startup. The parsed
// struct is read-only afterwards; nothing re-reads the environment per
// request.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
)

var appIDPattern = regexp.MustCompile(`^app_[0-9a-f]+$`)

// Config carries all runtime configuration for the service.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":9000"`

	// SessionSecret signs session tokens. Required.
	SessionSecret string `env:"SESSION_SECRET,required"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	NonceTTL   time.Duration `env:"NONCE_TTL" envDefault:"10m"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// ProofAppID identifies the application to the identity-proof
	// verifier. Must match app_<hex> or proof verification fails closed.
	ProofAppID       string `env:"PROOF_APP_ID"`
	ProofVerifierURL string `env:"PROOF_VERIFIER_URL" envDefault:"https://developer.worldcoin.org"`
	ProofAction      string `env:"PROOF_ACTION" envDefault:"verify-human"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ProofAppID != "" && !ValidAppID(cfg.ProofAppID) {
		return nil, fmt.Errorf("invalid proof app id %q", cfg.ProofAppID)
	}
	return cfg, nil
}

// ValidAppID reports whether id is a well-formed verifier app id.
func ValidAppID(id string) bool {
	return appIDPattern.MatchString(id)
}
