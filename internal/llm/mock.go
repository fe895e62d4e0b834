package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// MockEmbeddingClient is a deterministic, offline EmbeddingProvider for
// tests and the storage_backend=memory development mode: identical text
// always embeds to the identical unit vector, and unrelated text lands far
// apart, which is all the dedup and recall paths need to be exercised
// without a real model behind them.
type MockEmbeddingClient struct {
	dimensions int
}

// NewMockEmbeddingClient builds a mock provider of the given dimensionality
// (default 64 when unset).
func NewMockEmbeddingClient(dimensions int) *MockEmbeddingClient {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &MockEmbeddingClient{dimensions: dimensions}
}

func (c *MockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, c.dimensions)
	// Expand the content hash into as many pseudo-random components as the
	// vector needs, then normalize.
	seed := sha256.Sum256([]byte(text))
	var norm float64
	for i := range vec {
		block := sha256.Sum256(append(seed[:], byte(i), byte(i>>8)))
		bits := binary.LittleEndian.Uint32(block[:4])
		v := float32(bits%2000)/1000.0 - 1.0
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func (c *MockEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (c *MockEmbeddingClient) Dimensions() int { return c.dimensions }

var _ EmbeddingProvider = (*MockEmbeddingClient)(nil)
