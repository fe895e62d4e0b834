package association_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/association"
	"github.com/memvault/memvault/internal/storage/memdb"
	"github.com/memvault/memvault/pkg/types"
)

func seedMemory(t *testing.T, store *memdb.Store, workspaceID, id string) {
	t.Helper()
	require.NoError(t, store.Store(context.Background(), &types.Memory{
		ID: id, Workspace: workspaceID, Content: id, Type: types.MemoryTypeSemantic, Status: types.StatusActive,
	}))
}

func TestAssociateRejectsSelfEdge(t *testing.T) {
	store := memdb.New()
	seedMemory(t, store, "ws1", "m1")
	svc := association.New(store, store, nil)

	_, err := svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "m1", TargetID: "m1", Relationship: "related_to"})
	require.Error(t, err)
	kind, ok := types.AsKind(err)
	require.True(t, ok)
	assert.Equal(t, types.KindValidation, kind)
}

func TestAssociateRequiresExistingEndpoints(t *testing.T) {
	store := memdb.New()
	seedMemory(t, store, "ws1", "m1")
	svc := association.New(store, store, nil)

	_, err := svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "m1", TargetID: "missing", Relationship: "related_to"})
	assert.Error(t, err)
}

func TestAssociateAndGetRelated(t *testing.T) {
	store := memdb.New()
	seedMemory(t, store, "ws1", "m1")
	seedMemory(t, store, "ws1", "m2")
	svc := association.New(store, store, nil)

	assoc, err := svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "m1", TargetID: "m2", Relationship: "causes"})
	require.NoError(t, err)
	assert.NotEmpty(t, assoc.ID)
	assert.Equal(t, 1.0, assoc.Strength)

	out, err := svc.GetRelated(context.Background(), "ws1", "m1", types.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "m2", out[0].TargetID)
}

func TestAssociateAllowsUnknownLabel(t *testing.T) {
	store := memdb.New()
	seedMemory(t, store, "ws1", "m1")
	seedMemory(t, store, "ws1", "m2")
	svc := association.New(store, store, nil)

	_, err := svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "m1", TargetID: "m2", Relationship: "totally_custom"})
	assert.NoError(t, err)
}

func TestTraverseFindsMultiHopPath(t *testing.T) {
	store := memdb.New()
	for _, id := range []string{"a", "b", "c"} {
		seedMemory(t, store, "ws1", id)
	}
	svc := association.New(store, store, nil)
	_, err := svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "a", TargetID: "b", Relationship: "causes"})
	require.NoError(t, err)
	_, err = svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "b", TargetID: "c", Relationship: "causes"})
	require.NoError(t, err)

	paths, err := svc.Traverse(context.Background(), "ws1", types.TraverseInput{StartID: "a", MaxDepth: 5, Direction: types.DirectionOutgoing})
	require.NoError(t, err)

	var reachedC bool
	for _, p := range paths {
		if p.MemoryIDs[len(p.MemoryIDs)-1] == "c" {
			reachedC = true
			assert.Equal(t, 2, p.Depth)
		}
	}
	assert.True(t, reachedC, "expected traversal to reach c via b")
}

func TestTraverseFiltersByRelationship(t *testing.T) {
	store := memdb.New()
	for _, id := range []string{"a", "b", "c"} {
		seedMemory(t, store, "ws1", id)
	}
	svc := association.New(store, store, nil)
	_, err := svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "a", TargetID: "b", Relationship: "causes"})
	require.NoError(t, err)
	_, err = svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "a", TargetID: "c", Relationship: "contradicts"})
	require.NoError(t, err)

	paths, err := svc.Traverse(context.Background(), "ws1", types.TraverseInput{
		StartID: "a", MaxDepth: 5, Direction: types.DirectionOutgoing, Relationships: []string{"causes"},
	})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "b", paths[0].MemoryIDs[len(paths[0].MemoryIDs)-1])
}

func TestTraversePathStrengthIsProductOfEdgeStrengths(t *testing.T) {
	store := memdb.New()
	for _, id := range []string{"a", "b", "c"} {
		seedMemory(t, store, "ws1", id)
	}
	svc := association.New(store, store, nil)
	_, err := svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "a", TargetID: "b", Relationship: "causes", Strength: 0.5})
	require.NoError(t, err)
	_, err = svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "b", TargetID: "c", Relationship: "causes", Strength: 0.4})
	require.NoError(t, err)

	paths, err := svc.Traverse(context.Background(), "ws1", types.TraverseInput{StartID: "a", MaxDepth: 5, Direction: types.DirectionOutgoing})
	require.NoError(t, err)

	strengths := map[string]float64{}
	for _, p := range paths {
		strengths[p.MemoryIDs[len(p.MemoryIDs)-1]] = p.TotalStrength
	}
	assert.InDelta(t, 0.5, strengths["b"], 1e-9)
	assert.InDelta(t, 0.2, strengths["c"], 1e-9)
}

func TestAutoAssociateSkipsBelowThresholdAndSelf(t *testing.T) {
	store := memdb.New()
	seedMemory(t, store, "ws1", "m1")
	seedMemory(t, store, "ws1", "m2")
	svc := association.New(store, store, nil)

	svc.AutoAssociate(context.Background(), "ws1", "m1", "content a", []association.SimilarCandidate{
		{MemoryID: "m2", Content: "content b", Similarity: 0.5},
		{MemoryID: "m1", Content: "content a", Similarity: 0.99},
	}, 0.8)

	related, err := svc.GetRelated(context.Background(), "ws1", "m1", types.DirectionOutgoing)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestAutoAssociateLinksAboveThresholdWithFallbackLabel(t *testing.T) {
	store := memdb.New()
	seedMemory(t, store, "ws1", "m1")
	seedMemory(t, store, "ws1", "m2")
	svc := association.New(store, store, nil)

	svc.AutoAssociate(context.Background(), "ws1", "m1", "", []association.SimilarCandidate{
		{MemoryID: "m2", Content: "content b", Similarity: 0.9},
	}, 0.8)

	related, err := svc.GetRelated(context.Background(), "ws1", "m1", types.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "similar_to", related[0].Relationship)
	assert.Equal(t, true, related[0].Metadata["auto_generated"])
}

func TestAutoAssociateIsIdempotent(t *testing.T) {
	store := memdb.New()
	seedMemory(t, store, "ws1", "m1")
	seedMemory(t, store, "ws1", "m2")
	svc := association.New(store, store, nil)

	candidates := []association.SimilarCandidate{{MemoryID: "m2", Content: "b", Similarity: 0.9}}
	svc.AutoAssociate(context.Background(), "ws1", "m1", "a", candidates, 0.8)
	svc.AutoAssociate(context.Background(), "ws1", "m1", "a", candidates, 0.8)

	related, err := svc.GetRelated(context.Background(), "ws1", "m1", types.DirectionOutgoing)
	require.NoError(t, err)
	assert.Len(t, related, 1)
}

func TestFindContradictions(t *testing.T) {
	store := memdb.New()
	seedMemory(t, store, "ws1", "m1")
	seedMemory(t, store, "ws1", "m2")
	svc := association.New(store, store, nil)
	_, err := svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "m1", TargetID: "m2", Relationship: "contradicts"})
	require.NoError(t, err)

	found, err := svc.FindContradictions(context.Background(), "ws1", "m1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "m2", found[0].TargetID)
}

func TestGetRelatedByCategory(t *testing.T) {
	store := memdb.New()
	seedMemory(t, store, "ws1", "m1")
	seedMemory(t, store, "ws1", "m2")
	seedMemory(t, store, "ws1", "m3")
	svc := association.New(store, store, nil)
	_, err := svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "m1", TargetID: "m2", Relationship: "causes"})
	require.NoError(t, err)
	_, err = svc.Associate(context.Background(), "ws1", types.AssociateInput{SourceID: "m1", TargetID: "m3", Relationship: "before"})
	require.NoError(t, err)

	causal, err := svc.GetRelatedByCategory(context.Background(), "ws1", "m1", types.CategoryCausal)
	require.NoError(t, err)
	require.Len(t, causal, 1)
	assert.Equal(t, "m2", causal[0].TargetID)
}
