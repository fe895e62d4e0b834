package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedGenerator throttles outbound TextGenerator calls to a fixed
// per-second rate before they reach the wrapped provider, independent of
// the provider's own circuit breaker: the breaker reacts to failures
// already in flight, the limiter keeps the provider from being hammered
// in the first place.
type rateLimitedGenerator struct {
	inner   TextGenerator
	limiter *rate.Limiter
}

// newRateLimitedGenerator wraps inner with a token-bucket limiter at
// perSec requests/second. perSec <= 0 disables limiting and returns inner
// unwrapped.
func newRateLimitedGenerator(inner TextGenerator, perSec float64) TextGenerator {
	if perSec <= 0 {
		return inner
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedGenerator{inner: inner, limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (g *rateLimitedGenerator) Synthesize(ctx context.Context, prompt string, maxTokens int, temperature float64, profile Profile) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return g.inner.Synthesize(ctx, prompt, maxTokens, temperature, profile)
}

func (g *rateLimitedGenerator) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return CompletionResult{}, err
	}
	return g.inner.Complete(ctx, req)
}

func (g *rateLimitedGenerator) Model() string {
	return g.inner.Model()
}

var _ TextGenerator = (*rateLimitedGenerator)(nil)
