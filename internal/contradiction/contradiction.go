// Package contradiction detects and resolves conflicting memories: a
// cheap negation-pattern heuristic run against a new memory's
// nearest neighbors, and the four resolution strategies an operator can
// apply to a flagged pair.
package contradiction

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// negationPairs are (positive, negative) term pairs; a match is flagged
// when one text contains the positive term and the other contains the
// negative term, in either direction.
var negationPairs = [][2]string{
	{"use", "don't use"}, {"use", "do not use"}, {"use", "avoid"},
	{"enable", "disable"}, {"add", "remove"},
	{"true", "false"}, {"always", "never"},
	{"should", "should not"}, {"should", "shouldn't"},
	{"must", "must not"}, {"must", "mustn't"},
	{"can", "cannot"}, {"can", "can't"},
	{"is", "is not"}, {"is", "isn't"},
	{"prefer", "avoid"}, {"recommended", "not recommended"},
	{"include", "exclude"}, {"allow", "deny"}, {"allow", "block"},
}

// neighborRelevance is the minimum vector-search relevance a neighbor must
// clear to be considered for contradiction checking.
const neighborRelevance = 0.7

// neighborLimit caps how many nearest neighbors are examined per check.
const neighborLimit = 20

// Service detects and resolves contradictions between memories.
type Service struct {
	memStore   storage.MemoryStore
	contrStore storage.ContradictionStore
}

// New builds a Service.
func New(memStore storage.MemoryStore, contrStore storage.ContradictionStore) *Service {
	return &Service{memStore: memStore, contrStore: contrStore}
}

// CheckNewMemory compares memoryID against its nearest neighbors for
// negation-pattern contradictions, persisting and returning any matches.
// A memory with no embedding is skipped entirely (nothing to compare
// against).
func (s *Service) CheckNewMemory(ctx context.Context, workspaceID, memoryID string) ([]types.ContradictionRecord, error) {
	newMemory, err := s.memStore.Get(ctx, workspaceID, memoryID)
	if err != nil {
		return nil, fmt.Errorf("contradiction: load new memory: %w", err)
	}
	if len(newMemory.Embedding) == 0 {
		return nil, nil
	}

	neighbors, err := s.memStore.VectorSearch(ctx, storage.SearchOptions{
		WorkspaceID: workspaceID,
		Embedding:   newMemory.Embedding,
		Limit:       neighborLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("contradiction: vector search: %w", err)
	}

	var out []types.ContradictionRecord
	for _, n := range neighbors {
		if n.ID == memoryID || n.Score < neighborRelevance {
			continue
		}
		existing, err := s.memStore.Get(ctx, workspaceID, n.ID)
		if err != nil {
			log.Printf("contradiction: could not load neighbor %s: %v", n.ID, err)
			continue
		}
		if !hasNegationPattern(newMemory.Content, existing.Content) {
			continue
		}

		record := &types.ContradictionRecord{
			ID:                types.GenerateContradictionID(),
			WorkspaceID:       workspaceID,
			MemoryAID:         memoryID,
			MemoryBID:         existing.ID,
			ContradictionType: types.ContradictionNegation,
			Confidence:        n.Score,
			DetectionMethod:   "negation_pattern",
			DetectedAt:        time.Now(),
		}
		if err := s.contrStore.CreateContradiction(ctx, record); err != nil {
			log.Printf("contradiction: persist %s/%s: %v", memoryID, existing.ID, err)
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

// GetUnresolved returns unresolved contradiction records for a workspace.
func (s *Service) GetUnresolved(ctx context.Context, workspaceID string) ([]types.ContradictionRecord, error) {
	return s.contrStore.GetUnresolvedContradictions(ctx, workspaceID)
}

// Resolve applies the chosen resolution strategy to a contradiction: keep_a
// soft-deletes memory B, keep_b soft-deletes memory A, merge replaces
// memory A's content with mergedContent and soft-deletes B, and keep_both
// changes nothing. In every case the record is marked resolved.
func (s *Service) Resolve(ctx context.Context, workspaceID, id string, resolution types.ContradictionResolution, mergedContent string) error {
	if resolution == types.ResolutionMerge && mergedContent == "" {
		return types.NewError(types.KindValidation, "contradiction: merge resolution requires merged_content")
	}

	unresolved, err := s.contrStore.GetUnresolvedContradictions(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("contradiction: load unresolved: %w", err)
	}
	var record *types.ContradictionRecord
	for i := range unresolved {
		if unresolved[i].ID == id {
			record = &unresolved[i]
			break
		}
	}
	if record == nil {
		return storage.ErrNotFound
	}

	switch resolution {
	case types.ResolutionKeepA:
		if err := s.memStore.Delete(ctx, workspaceID, record.MemoryBID); err != nil {
			return fmt.Errorf("contradiction: soft-delete memory b: %w", err)
		}
	case types.ResolutionKeepB:
		if err := s.memStore.Delete(ctx, workspaceID, record.MemoryAID); err != nil {
			return fmt.Errorf("contradiction: soft-delete memory a: %w", err)
		}
	case types.ResolutionMerge:
		memA, err := s.memStore.Get(ctx, workspaceID, record.MemoryAID)
		if err != nil {
			return fmt.Errorf("contradiction: load memory a: %w", err)
		}
		memA.Content = mergedContent
		if err := s.memStore.Store(ctx, memA); err != nil {
			return fmt.Errorf("contradiction: update memory a: %w", err)
		}
		if err := s.memStore.Delete(ctx, workspaceID, record.MemoryBID); err != nil {
			return fmt.Errorf("contradiction: soft-delete memory b: %w", err)
		}
	case types.ResolutionKeepBoth:
		// no memory changes
	default:
		return types.NewError(types.KindValidation, fmt.Sprintf("contradiction: unknown resolution %q", resolution))
	}

	return s.contrStore.ResolveContradiction(ctx, workspaceID, id, resolution, mergedContent, time.Now())
}

func hasNegationPattern(contentA, contentB string) bool {
	lowerA := strings.ToLower(contentA)
	lowerB := strings.ToLower(contentB)

	for _, pair := range negationPairs {
		pos, neg := pair[0], pair[1]
		if (containsPositive(lowerA, pos, neg) && strings.Contains(lowerB, neg)) ||
			(containsPositive(lowerB, pos, neg) && strings.Contains(lowerA, neg)) {
			return true
		}
	}
	return false
}

// containsPositive reports whether text contains the positive term on its
// own: a text containing "don't use" contains "use" as a substring, but is
// stating the negative, not the positive.
func containsPositive(text, pos, neg string) bool {
	return strings.Contains(text, pos) && !strings.Contains(text, neg)
}
