// Package extraction turns raw content into structured memories:
// decomposing composite text into atomic facts, classifying content
// into the six-category taxonomy, and pulling a batch of memories out of a
// session's accumulated content and working memory.
package extraction

import (
	"context"
	"log"
	"strings"

	"github.com/memvault/memvault/internal/llm"
	"github.com/memvault/memvault/pkg/types"
)

// Service turns content into facts and classified memories, falling back to
// conservative defaults whenever the underlying model is unavailable or
// misbehaves.
type Service struct {
	generator llm.TextGenerator
}

// New builds a Service. generator may be nil; every method still returns a
// usable (if unrefined) result in that case.
func New(generator llm.TextGenerator) *Service {
	return &Service{generator: generator}
}

// DecomposeToFacts splits content into atomic facts. On any failure to call
// the model, or to parse its response (even after the truncated-JSON
// recovery path), it falls back to returning content as a single fact.
func (s *Service) DecomposeToFacts(ctx context.Context, content string) []types.Fact {
	if s.generator == nil {
		return []types.Fact{{Content: content}}
	}

	raw, err := s.generator.Synthesize(ctx, llm.DecomposeToFactsPrompt(content), 2000, 0.3, llm.ProfileExtraction)
	if err != nil {
		log.Printf("extraction: decompose_to_facts call failed: %v", err)
		return []types.Fact{{Content: content}}
	}

	facts, err := llm.ParseFacts(raw)
	if err != nil {
		log.Printf("extraction: decompose_to_facts parse failed: %v", err)
		return []types.Fact{{Content: content}}
	}
	return facts
}

// ClassifyContent maps content into a (MemoryType, MemorySubtype) pair via
// the six-category taxonomy. Falls back to (semantic, none) on any failure.
func (s *Service) ClassifyContent(ctx context.Context, content string) (types.MemoryType, types.MemorySubtype) {
	if s.generator == nil {
		return types.MemoryTypeSemantic, types.MemorySubtypeNone
	}

	raw, err := s.generator.Synthesize(ctx, llm.ClassifyContentPrompt(content), 32, 0, llm.ProfileExtraction)
	if err != nil {
		log.Printf("extraction: classify_content call failed: %v", err)
		return types.MemoryTypeSemantic, types.MemorySubtypeNone
	}

	category, err := llm.ParseCategory(raw)
	if err != nil {
		log.Printf("extraction: classify_content parse failed: %v", err)
		return types.MemoryTypeSemantic, types.MemorySubtypeNone
	}

	mapped := types.ExtractionCategoryMapping[category]
	return mapped.Type, mapped.Subtype
}

// SessionInput is the payload for ExtractFromSession.
type SessionInput struct {
	WorkspaceID   string
	ContextID     string
	Content       string
	WorkingMemory map[string]string
	MinImportance float64
	MaxMemories   int
}

// Extraction option defaults applied when the caller leaves them unset.
const (
	defaultMinImportance = 0.5
	defaultMaxMemories   = 50
)

// defaultExtractedImportance is the importance assigned to every memory
// ExtractFromSession produces. The decompose+classify pipeline carries no
// per-item importance signal, so every fact gets the same conservative
// default. MinImportance is still honored as a global gate ahead of the
// per-fact loop, so a caller asking for a high bar gets nothing rather
// than a silently-accepted batch.
const defaultExtractedImportance = 0.6

// ExtractFromSession classifies in.Content (plus any working memory) into
// memories across the six-category taxonomy, and caps the result at
// MaxMemories. Extraction itself is decomposition-driven: each fact
// DecomposeToFacts returns is independently classified and turned into a
// Memory.
func (s *Service) ExtractFromSession(ctx context.Context, in SessionInput) []types.Memory {
	minImportance := in.MinImportance
	if minImportance <= 0 {
		minImportance = defaultMinImportance
	}
	if defaultExtractedImportance < minImportance {
		return nil
	}
	maxMemories := in.MaxMemories
	if maxMemories <= 0 {
		maxMemories = defaultMaxMemories
	}

	combined := buildExtractionContext(in.Content, in.WorkingMemory)
	facts := s.DecomposeToFacts(ctx, combined)

	var out []types.Memory
	for _, fact := range facts {
		if len(out) >= maxMemories {
			break
		}
		if strings.TrimSpace(fact.Content) == "" {
			continue
		}

		memType, subtype := fact.Type, fact.Subtype
		if memType == "" {
			memType, subtype = s.ClassifyContent(ctx, fact.Content)
		}

		out = append(out, types.Memory{
			ID:         types.GenerateMemoryID(),
			Workspace:  in.WorkspaceID,
			ContextID:  in.ContextID,
			Content:    fact.Content,
			Type:       memType,
			Subtype:    subtype,
			Importance: defaultExtractedImportance,
			Status:     types.StatusActive,
		})
	}
	return out
}

func buildExtractionContext(content string, workingMemory map[string]string) string {
	if len(workingMemory) == 0 {
		return content
	}
	var sb strings.Builder
	sb.WriteString(content)
	sb.WriteString("\n\nWorking Memory:\n")
	for k, v := range workingMemory {
		sb.WriteString("- ")
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	return sb.String()
}
