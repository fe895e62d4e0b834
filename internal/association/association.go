// Package association manages the directed, typed edges between memories:
// creating and querying associations, bounded graph traversal,
// and similarity-threshold auto-association after a memory is stored.
package association

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/memvault/memvault/internal/llm"
	"github.com/memvault/memvault/internal/ontology"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Service orchestrates association creation, traversal, and auto-linking
// over a workspace's memory graph.
type Service struct {
	assocStore storage.AssociationStore
	memStore   storage.MemoryStore
	generator  llm.TextGenerator
}

// New builds a Service. generator may be nil, in which case auto-association
// always labels its edges "similar_to" instead of using LLM classification.
func New(assocStore storage.AssociationStore, memStore storage.MemoryStore, generator llm.TextGenerator) *Service {
	return &Service{assocStore: assocStore, memStore: memStore, generator: generator}
}

// Associate creates a directed edge between two memories. Both endpoints
// must already exist in the workspace; self-edges are rejected. An unknown
// relationship label is not rejected (the ontology is advisory, not
// enforced at write time) but is logged.
func (s *Service) Associate(ctx context.Context, workspaceID string, in types.AssociateInput) (*types.Association, error) {
	if in.SourceID == "" || in.TargetID == "" {
		return nil, types.NewError(types.KindValidation, "association: source and target ids are required")
	}
	if in.SourceID == in.TargetID {
		return nil, types.NewError(types.KindValidation, "association: cannot associate a memory with itself")
	}
	if _, err := s.memStore.Get(ctx, workspaceID, in.SourceID); err != nil {
		return nil, fmt.Errorf("association: source memory: %w", err)
	}
	if _, err := s.memStore.Get(ctx, workspaceID, in.TargetID); err != nil {
		return nil, fmt.Errorf("association: target memory: %w", err)
	}
	if !ontology.ValidateRelationship(in.Relationship) {
		log.Printf("association: relationship %q is not in the known ontology, storing anyway", in.Relationship)
	}

	assoc := &types.Association{
		ID:           types.GenerateAssociationID(),
		WorkspaceID:  workspaceID,
		SourceID:     in.SourceID,
		TargetID:     in.TargetID,
		Relationship: in.Relationship,
		Strength:     in.Strength,
		Metadata:     in.Metadata,
		CreatedAt:    time.Now(),
	}
	if assoc.Strength == 0 {
		assoc.Strength = 1.0
	}
	if err := s.assocStore.CreateAssociation(ctx, assoc); err != nil {
		return nil, fmt.Errorf("association: create: %w", err)
	}
	return assoc, nil
}

// GetRelated returns the associations touching memoryID in the requested
// direction.
func (s *Service) GetRelated(ctx context.Context, workspaceID, memoryID string, direction types.Direction) ([]types.Association, error) {
	return s.assocStore.GetAssociations(ctx, workspaceID, memoryID, direction)
}

// maxTraverseDepth bounds Traverse regardless of what the caller requests,
// so a misconfigured MaxDepth can't turn a thin BFS wrapper into an
// unbounded walk of the graph.
const maxTraverseDepth = 10

// Traverse performs a bounded breadth-first walk of the association graph
// starting at in.StartID, optionally restricted to a set of relationship
// labels, and returns one GraphPath per distinct memory reached.
func (s *Service) Traverse(ctx context.Context, workspaceID string, in types.TraverseInput) ([]types.GraphPath, error) {
	maxDepth := in.MaxDepth
	if maxDepth <= 0 || maxDepth > maxTraverseDepth {
		maxDepth = maxTraverseDepth
	}
	direction := in.Direction
	if direction == "" {
		direction = types.DirectionOutgoing
	}
	allowed := make(map[string]bool, len(in.Relationships))
	for _, r := range in.Relationships {
		allowed[r] = true
	}

	type frontierEntry struct {
		path     []string
		rels     []string
		strength float64
		depth    int
	}

	visited := map[string]bool{in.StartID: true}
	queue := []frontierEntry{{path: []string{in.StartID}, strength: 1, depth: 0}}
	var results []types.GraphPath

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		cur := queue[0]
		queue = queue[1:]

		if cur.depth > 0 {
			results = append(results, types.GraphPath{
				MemoryIDs:     append([]string{}, cur.path...),
				Relationships: append([]string{}, cur.rels...),
				TotalStrength: cur.strength,
				Depth:         cur.depth,
			})
		}
		if cur.depth >= maxDepth {
			continue
		}

		edges, err := s.assocStore.GetAssociations(ctx, workspaceID, cur.path[len(cur.path)-1], direction)
		if err != nil {
			return results, fmt.Errorf("association: traverse neighbors: %w", err)
		}
		for _, e := range edges {
			if len(allowed) > 0 && !allowed[e.Relationship] {
				continue
			}
			next := e.TargetID
			if next == cur.path[len(cur.path)-1] {
				next = e.SourceID
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, frontierEntry{
				path:     append(append([]string{}, cur.path...), next),
				rels:     append(append([]string{}, cur.rels...), e.Relationship),
				strength: cur.strength * e.Strength,
				depth:    cur.depth + 1,
			})
		}
	}
	return results, nil
}

// SimilarCandidate is a memory found by a prior similarity probe, paired
// with its similarity score and content (content is used for LLM
// classification when available).
type SimilarCandidate struct {
	MemoryID   string
	Content    string
	Similarity float64
}

// AutoAssociate links memoryID to each candidate whose similarity clears
// threshold, labeling the edge via ontology classification when a generator
// is configured and both contents are available, or "similar_to" otherwise. It is
// best-effort: a failure linking one candidate does not stop the others,
// and an edge that already exists is skipped rather than duplicated.
func (s *Service) AutoAssociate(ctx context.Context, workspaceID, memoryID, memoryContent string, candidates []SimilarCandidate, threshold float64) {
	existing, err := s.assocStore.GetAssociations(ctx, workspaceID, memoryID, types.DirectionOutgoing)
	if err != nil {
		log.Printf("association: auto_associate could not load existing edges for %s: %v", memoryID, err)
		existing = nil
	}
	linked := make(map[string]bool, len(existing))
	for _, e := range existing {
		linked[e.TargetID] = true
	}

	for _, c := range candidates {
		if c.Similarity < threshold || c.MemoryID == memoryID || linked[c.MemoryID] {
			continue
		}

		label := "similar_to"
		if s.generator != nil && memoryContent != "" && c.Content != "" {
			label = ontology.ClassifyRelationship(ctx, s.generator, memoryContent, c.Content)
		}

		_, err = s.Associate(ctx, workspaceID, types.AssociateInput{
			SourceID:     memoryID,
			TargetID:     c.MemoryID,
			Relationship: label,
			Strength:     c.Similarity,
			Metadata: map[string]interface{}{
				"auto_generated":   true,
				"similarity_score": c.Similarity,
			},
		})
		if err != nil {
			log.Printf("association: auto_associate %s->%s: %v", memoryID, c.MemoryID, err)
		}
	}
}

// FindContradictions returns associations labeled "contradicts" that touch
// memoryID in either direction.
func (s *Service) FindContradictions(ctx context.Context, workspaceID, memoryID string) ([]types.Association, error) {
	return s.filterByRelationship(ctx, workspaceID, memoryID, types.DirectionBoth, "contradicts")
}

// GetCausalChain follows outgoing "causes"/"leads_to" edges from memoryID.
func (s *Service) GetCausalChain(ctx context.Context, workspaceID, memoryID string, maxDepth int) ([]types.GraphPath, error) {
	return s.Traverse(ctx, workspaceID, types.TraverseInput{
		StartID:       memoryID,
		MaxDepth:      maxDepth,
		Relationships: []string{"causes", "leads_to"},
		Direction:     types.DirectionOutgoing,
	})
}

// GetSolutionsForProblem returns memories that solve or address memoryID.
func (s *Service) GetSolutionsForProblem(ctx context.Context, workspaceID, memoryID string) ([]types.Association, error) {
	edges, err := s.assocStore.GetAssociations(ctx, workspaceID, memoryID, types.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("association: get solutions: %w", err)
	}
	var out []types.Association
	for _, e := range edges {
		switch e.Relationship {
		case "solves", "solved_by", "addresses", "addressed_by":
			out = append(out, e)
		}
	}
	return out, nil
}

// GetRelatedByCategory returns associations touching memoryID whose
// relationship falls in the given ontology category.
func (s *Service) GetRelatedByCategory(ctx context.Context, workspaceID, memoryID string, category types.RelationshipCategory) ([]types.Association, error) {
	edges, err := s.assocStore.GetAssociations(ctx, workspaceID, memoryID, types.DirectionBoth)
	if err != nil {
		return nil, fmt.Errorf("association: get related by category: %w", err)
	}
	labels := make(map[string]bool)
	for _, l := range ontology.GetRelationshipsByCategory(category) {
		labels[l] = true
	}
	var out []types.Association
	for _, e := range edges {
		if labels[e.Relationship] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Service) filterByRelationship(ctx context.Context, workspaceID, memoryID string, direction types.Direction, relationship string) ([]types.Association, error) {
	edges, err := s.assocStore.GetAssociations(ctx, workspaceID, memoryID, direction)
	if err != nil {
		return nil, fmt.Errorf("association: filter by relationship: %w", err)
	}
	var out []types.Association
	for _, e := range edges {
		if e.Relationship == relationship {
			out = append(out, e)
		}
	}
	return out, nil
}
