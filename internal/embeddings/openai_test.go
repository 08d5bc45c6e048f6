package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIConfig_Validate(t *testing.T) {
	cfg := OpenAIConfig{BaseURL: "http://localhost:8081/v1", Model: "BAAI/bge-small-en-v1.5"}
	assert.NoError(t, cfg.Validate())

	cfg = OpenAIConfig{Model: "BAAI/bge-small-en-v1.5"}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = OpenAIConfig{BaseURL: "http://localhost:8081/v1"}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestNewOpenAIEmbedder_NoAPIKeyForTEI(t *testing.T) {
	// TEI endpoints do not require a key; construction must still succeed.
	e, err := NewOpenAIEmbedder(OpenAIConfig{
		BaseURL: "http://localhost:8081/v1",
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestNewOpenAIEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
