package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// LLMReranker implements Reranker on top of a TextGenerator, asking the
// model to score each candidate's relevance to the query in a single call.
// This is the reranker the core falls back to when no dedicated rerank
// service is configured; a rerank failure is soft, letting the
// caller truncate the candidate set instead.
type LLMReranker struct {
	gen TextGenerator
}

// NewLLMReranker wraps gen as a Reranker.
func NewLLMReranker(gen TextGenerator) *LLMReranker {
	return &LLMReranker{gen: gen}
}

type rerankScoreResponse struct {
	Scores []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

// RerankAdaptive scores every candidate against query and returns the top
// requestedK by descending score. requestedK <= 0 returns every candidate
// scored but unfiltered.
func (r *LLMReranker) RerankAdaptive(ctx context.Context, query string, candidates []RerankCandidate, requestedK int) ([]RerankResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := rerankPrompt(query, candidates)
	text, err := r.gen.Synthesize(ctx, prompt, 1024, 0, ProfileDefault)
	if err != nil {
		return nil, fmt.Errorf("rerank synthesize: %w", err)
	}

	clean := extractJSON(text)
	var resp rerankScoreResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return nil, fmt.Errorf("rerank parse: %w", err)
	}

	scoreByID := make(map[string]float64, len(resp.Scores))
	for _, s := range resp.Scores {
		scoreByID[s.ID] = s.Score
	}

	results := make([]RerankResult, 0, len(candidates))
	for _, c := range candidates {
		score, ok := scoreByID[c.ID]
		if !ok {
			continue
		}
		results = append(results, RerankResult{ID: c.ID, Score: score})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("rerank: no candidate ids matched in response")
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if requestedK > 0 && requestedK < len(results) {
		results = results[:requestedK]
	}
	return results, nil
}

func rerankPrompt(query string, candidates []RerankCandidate) string {
	var sb strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&sb, "- id=%q content=%q\n", c.ID, c.Content)
	}
	return fmt.Sprintf(`TASK: Score how relevant each candidate is to the query, from 0.0 (irrelevant) to 1.0 (highly relevant).
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

QUERY:
%s

CANDIDATES:
%s
Return ONLY the JSON object, nothing else:
{"scores":[{"id":"...","score":0.0}]}`, query, sb.String())
}

var _ Reranker = (*LLMReranker)(nil)
