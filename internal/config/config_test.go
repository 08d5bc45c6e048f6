package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./data/vectors", cfg.Engine.Path)
	assert.Equal(t, 60*time.Minute, cfg.Auth.TokenTTL)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.Default)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.LoginQuota)
	assert.Equal(t, 10, cfg.RateLimit.BatchQuota)
	assert.Equal(t, "local", cfg.Embeddings.Provider)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
}

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.Secret = "test-secret"
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_RequiresSecret(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth secret")
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.TokenTTL = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyEnginePath(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.Path = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RateLimitBounds(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Default = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.RateLimit.Window = 0
	assert.Error(t, cfg.Validate())

	// Disabled rate limiting skips quota validation.
	cfg = validConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Default = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmbeddingsProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Embeddings.Provider = "cohere"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Embeddings.Provider = "openai"
	assert.Error(t, cfg.Validate(), "openai without base_url and model")

	cfg.Embeddings.BaseURL = "http://localhost:8081"
	cfg.Embeddings.Model = "bge-small-en"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Embeddings.Dimension = 0
	assert.Error(t, cfg.Validate())
}
