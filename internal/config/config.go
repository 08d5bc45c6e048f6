// Package config provides configuration loading for vdbgate.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VDBGATE_SERVER_PORT, VDBGATE_AUTH_TOKEN_TTL, ...)
//  2. YAML config file (optional)
//  3. Hardcoded defaults
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete vdbgate configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Engine     EngineConfig     `koanf:"engine"`
	Auth       AuthConfig       `koanf:"auth"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// AllowedOrigins is the CORS allow-list. "*" allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// EngineConfig holds vector engine configuration.
type EngineConfig struct {
	// Path is the directory for persistent engine storage.
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`

	// SyncTimeout bounds the shutdown flush.
	SyncTimeout time.Duration `koanf:"sync_timeout"`
}

// AuthConfig holds token signing and credential configuration.
type AuthConfig struct {
	// Secret signs session tokens. Required; startup fails without it.
	Secret string `koanf:"secret"`

	// TokenTTL is the session token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// Users is the fixed credential store, read-only at request time.
	Users []UserConfig `koanf:"users"`
}

// UserConfig is a single entry in the credential store.
type UserConfig struct {
	Username string `koanf:"username"`
	// PasswordHash is a bcrypt hash of the user's password.
	PasswordHash string `koanf:"password_hash"`
	Role         string `koanf:"role"`
}

// RateLimitConfig holds request quota configuration.
type RateLimitConfig struct {
	Enabled bool `koanf:"enabled"`

	// Default is the per-key request quota per window.
	Default int `koanf:"default"`

	// Window is the quota accounting interval.
	Window time.Duration `koanf:"window"`

	// LoginQuota and BatchQuota override Default on the sensitive routes.
	LoginQuota int `koanf:"login_quota"`
	BatchQuota int `koanf:"batch_quota"`

	// MaxKeys caps the tracked (key, route) pairs before the table is reset.
	MaxKeys int `koanf:"max_keys"`
}

// EmbeddingsConfig selects the embedder backing the engine.
type EmbeddingsConfig struct {
	// Provider is "local" (deterministic, offline) or "openai"
	// (any OpenAI-compatible endpoint, including TEI).
	Provider string `koanf:"provider"`

	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`

	// Dimension is the embedding dimension for the local provider.
	Dimension int `koanf:"dimension"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// Default returns the built-in defaults applied before file and env loading.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Engine: EngineConfig{
			Path:        "./data/vectors",
			SyncTimeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 60 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			Default:    100,
			Window:     time.Minute,
			LoginQuota: 5,
			BatchQuota: 10,
			MaxKeys:    10000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "local",
			Dimension: 384,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for fatal misconfiguration.
//
// A missing signing secret is fatal at startup, never per-request.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Auth.Secret == "" {
		return errors.New("auth secret is required (set VDBGATE_AUTH_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Engine.Path == "" {
		return errors.New("engine path is required")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Default < 1 {
			return fmt.Errorf("rate limit default quota must be positive, got %d", c.RateLimit.Default)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
		}
	}
	switch c.Embeddings.Provider {
	case "local":
		if c.Embeddings.Dimension < 1 {
			return fmt.Errorf("embedding dimension must be positive, got %d", c.Embeddings.Dimension)
		}
	case "openai":
		if c.Embeddings.BaseURL == "" || c.Embeddings.Model == "" {
			return errors.New("openai embeddings require base_url and model")
		}
	default:
		return fmt.Errorf("unknown embeddings provider: %q", c.Embeddings.Provider)
	}
	return nil
}
