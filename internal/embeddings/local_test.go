package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalEmbedder_RejectsBadDimension(t *testing.T) {
	_, err := NewLocalEmbedder(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLocalEmbedder_Deterministic(t *testing.T) {
	e, err := NewLocalEmbedder(128)
	require.NoError(t, err)

	a, err := e.EmbedQuery(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	b, err := e.EmbedQuery(context.Background(), "the quick brown fox")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestLocalEmbedder_DimensionAndNorm(t *testing.T) {
	e, err := NewLocalEmbedder(64)
	require.NoError(t, err)

	v, err := e.EmbedQuery(context.Background(), "vector search gateway")
	require.NoError(t, err)
	require.Len(t, v, 64)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	e, err := NewLocalEmbedder(256)
	require.NoError(t, err)

	ctx := context.Background()
	base, err := e.EmbedQuery(ctx, "database index storage")
	require.NoError(t, err)
	similar, err := e.EmbedQuery(ctx, "database index compaction")
	require.NoError(t, err)
	unrelated, err := e.EmbedQuery(ctx, "weather forecast tomorrow")
	require.NoError(t, err)

	assert.Greater(t, dot(base, similar), dot(base, unrelated))
}

func TestLocalEmbedder_EmptyQuery(t *testing.T) {
	e, err := NewLocalEmbedder(16)
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestLocalEmbedder_EmbedDocuments(t *testing.T) {
	e, err := NewLocalEmbedder(32)
	require.NoError(t, err)

	vectors, err := e.EmbedDocuments(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 32)
	}

	_, err = e.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestLocalEmbedder_WhitespaceOnlyInput(t *testing.T) {
	e, err := NewLocalEmbedder(8)
	require.NoError(t, err)

	v, err := e.EmbedQuery(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, float32(1), v[0])
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
