// Package llm provides the outbound model-provider clients the core treats
// as external collaborators: text generation, embeddings, and reranking.
package llm

import "context"

// Profile selects the prompt/parameter tuning a TextGenerator call uses.
type Profile string

const (
	ProfileDefault    Profile = "default"
	ProfileReflection Profile = "reflection"
	ProfileExtraction Profile = "extraction"
)

// CompletionRequest is the payload for TextGenerator.Complete.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Profile     Profile
}

// CompletionResult is Complete's return value, including token accounting.
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// TextGenerator is the outbound LLM contract: synthesis for
// free-form generation (reflection, tier summaries), and structured
// completion for extraction/classification prompts that expect the caller
// to parse the response.
type TextGenerator interface {
	Synthesize(ctx context.Context, prompt string, maxTokens int, temperature float64, profile Profile) (string, error)
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	Model() string
}

// EmbeddingProvider turns text into fixed-dimension unit vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// RerankCandidate is one object a Reranker scores against a query.
type RerankCandidate struct {
	ID      string
	Content string
}

// RerankResult pairs a candidate's id with its reranked score.
type RerankResult struct {
	ID    string
	Score float64
}

// Reranker re-orders a candidate set by query relevance, adaptively
// expanding or shrinking the requested result count.
type Reranker interface {
	RerankAdaptive(ctx context.Context, query string, candidates []RerankCandidate, requestedK int) ([]RerankResult, error)
}
