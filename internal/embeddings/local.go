package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// LocalEmbedder produces deterministic bag-of-words feature-hashing
// embeddings without any external model or service.
//
// Each token is hashed into the vector space and the result L2-normalized,
// so identical texts always map to identical unit vectors and texts sharing
// vocabulary land close in cosine space. Quality is far below a learned
// model; it exists for offline operation and tests.
type LocalEmbedder struct {
	dimension int
}

// NewLocalEmbedder creates a local embedder producing vectors of the given
// dimension.
func NewLocalEmbedder(dimension int) (*LocalEmbedder, error) {
	if dimension < 1 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dimension)
	}
	return &LocalEmbedder{dimension: dimension}, nil
}

// Dimension returns the embedding dimension.
func (e *LocalEmbedder) Dimension() int { return e.dimension }

// EmbedDocuments generates embeddings for multiple texts.
func (e *LocalEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *LocalEmbedder) embed(text string) []float32 {
	vector := make([]float32, e.dimension)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(token))
		// Each 8-byte chunk of the digest contributes one signed bump.
		for off := 0; off+8 <= len(sum); off += 8 {
			v := binary.LittleEndian.Uint64(sum[off : off+8])
			idx := int(v % uint64(e.dimension))
			if v&(1<<63) != 0 {
				vector[idx]--
			} else {
				vector[idx]++
			}
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Degenerate input (no tokens): fixed unit vector.
		vector[0] = 1
		return vector
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}
