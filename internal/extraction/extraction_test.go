package extraction_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/extraction"
	"github.com/memvault/memvault/internal/llm"
	"github.com/memvault/memvault/pkg/types"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Synthesize(ctx context.Context, prompt string, maxTokens int, temperature float64, profile llm.Profile) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
	return llm.CompletionResult{}, errors.New("not implemented")
}

func (f *fakeGenerator) Model() string { return "fake" }

func TestDecomposeToFactsFallsBackOnNilGenerator(t *testing.T) {
	svc := extraction.New(nil)
	facts := svc.DecomposeToFacts(context.Background(), "the deploy uses blue/green, and it runs nightly")
	require.Len(t, facts, 1)
	assert.Equal(t, "the deploy uses blue/green, and it runs nightly", facts[0].Content)
}

func TestDecomposeToFactsFallsBackOnGeneratorError(t *testing.T) {
	svc := extraction.New(&fakeGenerator{err: errors.New("boom")})
	facts := svc.DecomposeToFacts(context.Background(), "content")
	require.Len(t, facts, 1)
	assert.Equal(t, "content", facts[0].Content)
}

func TestDecomposeToFactsFallsBackOnUnparsableResponse(t *testing.T) {
	svc := extraction.New(&fakeGenerator{response: "not json at all"})
	facts := svc.DecomposeToFacts(context.Background(), "content")
	require.Len(t, facts, 1)
	assert.Equal(t, "content", facts[0].Content)
}

func TestDecomposeToFactsParsesModelResponse(t *testing.T) {
	svc := extraction.New(&fakeGenerator{response: `{"facts":[{"content":"fact one"},{"content":"fact two"}]}`})
	facts := svc.DecomposeToFacts(context.Background(), "fact one. fact two.")
	require.Len(t, facts, 2)
	assert.Equal(t, "fact one", facts[0].Content)
	assert.Equal(t, "fact two", facts[1].Content)
}

func TestClassifyContentFallsBackOnNilGenerator(t *testing.T) {
	svc := extraction.New(nil)
	memType, subtype := svc.ClassifyContent(context.Background(), "content")
	assert.Equal(t, types.MemoryTypeSemantic, memType)
	assert.Equal(t, types.MemorySubtypeNone, subtype)
}

func TestClassifyContentMapsKnownCategory(t *testing.T) {
	svc := extraction.New(&fakeGenerator{response: `{"category":"preferences"}`})
	memType, subtype := svc.ClassifyContent(context.Background(), "prefers dark mode")
	assert.Equal(t, types.MemoryTypeSemantic, memType)
	assert.Equal(t, types.MemorySubtypePreference, subtype)
}

func TestClassifyContentFallsBackOnGeneratorError(t *testing.T) {
	svc := extraction.New(&fakeGenerator{err: errors.New("boom")})
	memType, subtype := svc.ClassifyContent(context.Background(), "content")
	assert.Equal(t, types.MemoryTypeSemantic, memType)
	assert.Equal(t, types.MemorySubtypeNone, subtype)
}

func TestExtractFromSessionFallbackProducesOneMemoryPerSentenceFact(t *testing.T) {
	svc := extraction.New(nil)
	memories := svc.ExtractFromSession(context.Background(), extraction.SessionInput{
		WorkspaceID: "ws1",
		ContextID:   "ctx1",
		Content:     "the user prefers dark mode",
	})
	require.Len(t, memories, 1)
	assert.Equal(t, "ws1", memories[0].Workspace)
	assert.Equal(t, "ctx1", memories[0].ContextID)
	assert.Equal(t, types.StatusActive, memories[0].Status)
	assert.NotEmpty(t, memories[0].ID)
}

func TestExtractFromSessionUsesFactClassificationWhenPresent(t *testing.T) {
	svc := extraction.New(&fakeGenerator{
		response: `{"facts":[{"content":"the user is named Alex","type":"semantic","subtype":"profile"}]}`,
	})
	memories := svc.ExtractFromSession(context.Background(), extraction.SessionInput{
		WorkspaceID: "ws1",
		Content:     "the user is named Alex",
	})
	require.Len(t, memories, 1)
	assert.Equal(t, types.MemoryTypeSemantic, memories[0].Type)
	assert.Equal(t, types.MemorySubtypeProfile, memories[0].Subtype)
}

func TestExtractFromSessionClassifiesFactsWithoutAType(t *testing.T) {
	gen := &fakeGenerator{response: `{"facts":[{"content":"prefers tabs over spaces"}]}`}
	svc := extraction.New(gen)
	memories := svc.ExtractFromSession(context.Background(), extraction.SessionInput{
		WorkspaceID: "ws1",
		Content:     "prefers tabs over spaces",
	})
	require.Len(t, memories, 1)
	assert.Equal(t, types.MemoryTypeSemantic, memories[0].Type)
}

func TestExtractFromSessionCapsAtMaxMemories(t *testing.T) {
	svc := extraction.New(&fakeGenerator{
		response: `{"facts":[{"content":"a"},{"content":"b"},{"content":"c"}]}`,
	})
	memories := svc.ExtractFromSession(context.Background(), extraction.SessionInput{
		WorkspaceID: "ws1",
		Content:     "a. b. c.",
		MaxMemories: 2,
	})
	assert.Len(t, memories, 2)
}

func TestExtractFromSessionSkipsBlankFacts(t *testing.T) {
	svc := extraction.New(&fakeGenerator{
		response: `{"facts":[{"content":""},{"content":"real fact"}]}`,
	})
	memories := svc.ExtractFromSession(context.Background(), extraction.SessionInput{
		WorkspaceID: "ws1",
		Content:     "real fact",
	})
	require.Len(t, memories, 1)
	assert.Equal(t, "real fact", memories[0].Content)
}

func TestExtractFromSessionReturnsNilWhenMinImportanceUnreachable(t *testing.T) {
	svc := extraction.New(&fakeGenerator{response: `{"facts":[{"content":"fact"}]}`})
	memories := svc.ExtractFromSession(context.Background(), extraction.SessionInput{
		WorkspaceID:   "ws1",
		Content:       "fact",
		MinImportance: 0.99,
	})
	assert.Nil(t, memories)
}

func TestExtractFromSessionIncludesWorkingMemoryInContext(t *testing.T) {
	var sawWorkingMemory bool
	gen := &capturingGenerator{
		onSynthesize: func(prompt string) {
			if strings.Contains(prompt, "Working Memory") && strings.Contains(prompt, "project") && strings.Contains(prompt, "memvault") {
				sawWorkingMemory = true
			}
		},
		response: `{"facts":[{"content":"fact"}]}`,
	}
	svc := extraction.New(gen)
	svc.ExtractFromSession(context.Background(), extraction.SessionInput{
		WorkspaceID:   "ws1",
		Content:       "fact",
		WorkingMemory: map[string]string{"project": "memvault"},
	})
	assert.True(t, sawWorkingMemory)
}

type capturingGenerator struct {
	onSynthesize func(prompt string)
	response     string
}

func (c *capturingGenerator) Synthesize(ctx context.Context, prompt string, maxTokens int, temperature float64, profile llm.Profile) (string, error) {
	c.onSynthesize(prompt)
	return c.response, nil
}

func (c *capturingGenerator) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
	return llm.CompletionResult{}, errors.New("not implemented")
}

func (c *capturingGenerator) Model() string { return "fake" }
