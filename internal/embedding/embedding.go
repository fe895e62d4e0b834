// Package embedding wraps an LLM embedding provider with a content-hash
// cache and the cosine-similarity helper the rest of the core relies on.
package embedding

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/memvault/memvault/internal/cache"
	"github.com/memvault/memvault/internal/llm"
)

const cacheTTL = time.Hour

// Service embeds text through a provider, caching by md5(content) so the
// provider is only ever consulted on a cache miss.
type Service struct {
	provider llm.EmbeddingProvider
	cache    cache.Cache
}

// New builds a Service. cache may be nil, disabling caching entirely.
func New(provider llm.EmbeddingProvider, c cache.Cache) *Service {
	return &Service{provider: provider, cache: c}
}

// Embed returns text's unit vector, consulting the cache first.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return decodeVector(cached)
		}
	}

	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(key, encodeVector(vec), cacheTTL)
	}
	return vec, nil
}

// EmbedBatch embeds each text independently, still consulting the cache per
// item so repeated content within a batch only costs one provider call.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding batch item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions reports the provider's embedding dimensionality.
func (s *Service) Dimensions() int {
	return s.provider.Dimensions()
}

func cacheKey(content string) string {
	sum := md5.Sum([]byte(content))
	return "embed:" + base64.RawURLEncoding.EncodeToString(sum[:])
}

func encodeVector(vec []float32) string {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeVector(encoded string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("embedding: decode cached vector: %w", err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding: cached vector length %d not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
