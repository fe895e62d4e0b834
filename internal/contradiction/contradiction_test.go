package contradiction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/contradiction"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/storage/memdb"
	"github.com/memvault/memvault/pkg/types"
)

func storeMemory(t *testing.T, store *memdb.Store, id, content string, embedding []float32) {
	t.Helper()
	require.NoError(t, store.Store(context.Background(), &types.Memory{
		ID: id, Workspace: "ws1", Content: content, Type: types.MemoryTypeSemantic,
		Status: types.StatusActive, Embedding: embedding,
	}))
}

func TestCheckNewMemorySkipsWithoutEmbedding(t *testing.T) {
	store := memdb.New()
	storeMemory(t, store, "m1", "always use TLS", nil)
	svc := contradiction.New(store, store)

	found, err := svc.CheckNewMemory(context.Background(), "ws1", "m1")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCheckNewMemoryDetectsNegationPattern(t *testing.T) {
	store := memdb.New()
	storeMemory(t, store, "m1", "you should always enable TLS", []float32{1, 0, 0})
	storeMemory(t, store, "m2", "you should disable TLS in dev", []float32{1, 0, 0})
	svc := contradiction.New(store, store)

	found, err := svc.CheckNewMemory(context.Background(), "ws1", "m1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "m2", found[0].MemoryBID)
	assert.Equal(t, types.ContradictionNegation, found[0].ContradictionType)
	assert.Equal(t, "negation_pattern", found[0].DetectionMethod)
}

func TestCheckNewMemoryNoMatchWithoutNegationTerms(t *testing.T) {
	store := memdb.New()
	storeMemory(t, store, "m1", "the deploy uses blue/green", []float32{1, 0, 0})
	storeMemory(t, store, "m2", "the deploy uses canary releases", []float32{1, 0, 0})
	svc := contradiction.New(store, store)

	found, err := svc.CheckNewMemory(context.Background(), "ws1", "m1")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestResolveKeepA(t *testing.T) {
	store := memdb.New()
	storeMemory(t, store, "m1", "a", []float32{1, 0, 0})
	storeMemory(t, store, "m2", "b", []float32{1, 0, 0})
	require.NoError(t, store.CreateContradiction(context.Background(), &types.ContradictionRecord{
		ID: "cx1", WorkspaceID: "ws1", MemoryAID: "m1", MemoryBID: "m2",
		ContradictionType: types.ContradictionNegation, Confidence: 0.9, DetectionMethod: "negation_pattern",
	}))
	svc := contradiction.New(store, store)

	require.NoError(t, svc.Resolve(context.Background(), "ws1", "cx1", types.ResolutionKeepA, ""))

	_, err := store.Get(context.Background(), "ws1", "m2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	listed, err := store.List(context.Background(), storage.ListOptions{WorkspaceID: "ws1", IncludeDeleted: true})
	require.NoError(t, err)
	var statusB types.MemoryStatus
	for _, m := range listed.Items {
		if m.ID == "m2" {
			statusB = m.Status
		}
	}
	assert.Equal(t, types.StatusDeleted, statusB)

	unresolved, err := svc.GetUnresolved(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Empty(t, unresolved)
}

func TestResolveMergeRequiresMergedContent(t *testing.T) {
	store := memdb.New()
	svc := contradiction.New(store, store)
	err := svc.Resolve(context.Background(), "ws1", "cx1", types.ResolutionMerge, "")
	assert.Error(t, err)
}

func TestResolveMergeUpdatesMemoryAContent(t *testing.T) {
	store := memdb.New()
	storeMemory(t, store, "m1", "a", []float32{1, 0, 0})
	storeMemory(t, store, "m2", "b", []float32{1, 0, 0})
	require.NoError(t, store.CreateContradiction(context.Background(), &types.ContradictionRecord{
		ID: "cx1", WorkspaceID: "ws1", MemoryAID: "m1", MemoryBID: "m2",
		ContradictionType: types.ContradictionNegation, Confidence: 0.9, DetectionMethod: "negation_pattern",
	}))
	svc := contradiction.New(store, store)

	require.NoError(t, svc.Resolve(context.Background(), "ws1", "cx1", types.ResolutionMerge, "merged text"))

	memA, err := store.Get(context.Background(), "ws1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "merged text", memA.Content)

	_, err = store.Get(context.Background(), "ws1", "m2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResolveKeepBothMakesNoMemoryChanges(t *testing.T) {
	store := memdb.New()
	storeMemory(t, store, "m1", "a", []float32{1, 0, 0})
	storeMemory(t, store, "m2", "b", []float32{1, 0, 0})
	require.NoError(t, store.CreateContradiction(context.Background(), &types.ContradictionRecord{
		ID: "cx1", WorkspaceID: "ws1", MemoryAID: "m1", MemoryBID: "m2",
		ContradictionType: types.ContradictionNegation, Confidence: 0.9, DetectionMethod: "negation_pattern",
	}))
	svc := contradiction.New(store, store)

	require.NoError(t, svc.Resolve(context.Background(), "ws1", "cx1", types.ResolutionKeepBoth, ""))

	memA, err := store.Get(context.Background(), "ws1", "m1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, memA.Status)
	memB, err := store.Get(context.Background(), "ws1", "m2")
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, memB.Status)
}

func TestResolveUnknownIDReturnsNotFound(t *testing.T) {
	store := memdb.New()
	svc := contradiction.New(store, store)
	err := svc.Resolve(context.Background(), "ws1", "missing", types.ResolutionKeepBoth, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
