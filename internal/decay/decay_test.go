package decay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/decay"
	"github.com/memvault/memvault/internal/storage/memdb"
	"github.com/memvault/memvault/pkg/types"
)

func seedWorkspace(t *testing.T, store *memdb.Store, settings types.WorkspaceSettings) {
	t.Helper()
	require.NoError(t, store.UpsertWorkspace(context.Background(), &types.Workspace{
		TenantID: "t1", ID: "ws1", Name: "ws1", Settings: settings,
	}))
}

func storeAgedMemory(t *testing.T, store *memdb.Store, id string, age time.Duration, importance float64, pinned bool, accessCount int) {
	t.Helper()
	require.NoError(t, store.Store(context.Background(), &types.Memory{
		ID: id, Workspace: "ws1", Content: id, Type: types.MemoryTypeSemantic, Status: types.StatusActive,
		Importance: importance, DecayFactor: 1.0, Pinned: pinned, AccessCount: accessCount,
		CreatedAt: time.Now().Add(-age),
	}))
}

func TestDecayWorkspaceSkipsPinnedAndYoungMemories(t *testing.T) {
	store := memdb.New()
	settings := types.DefaultWorkspaceSettings()
	settings.DecayMinAgeDays = 30
	settings.DecayRatePerDay = 0.01
	seedWorkspace(t, store, settings)

	storeAgedMemory(t, store, "old", 60*24*time.Hour, 0.8, false, 0)
	storeAgedMemory(t, store, "young", 1*24*time.Hour, 0.8, false, 0)
	storeAgedMemory(t, store, "pinned", 60*24*time.Hour, 0.8, true, 0)

	svc := decay.New(store, store)
	result, err := svc.DecayWorkspace(context.Background(), "t1", "ws1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Decayed)

	old, err := store.Get(context.Background(), "ws1", "old")
	require.NoError(t, err)
	assert.Less(t, old.DecayFactor, 1.0)

	young, err := store.Get(context.Background(), "ws1", "young")
	require.NoError(t, err)
	assert.Equal(t, 1.0, young.DecayFactor)
}

func TestArchiveStaleMemoriesArchivesLowImportanceCandidates(t *testing.T) {
	store := memdb.New()
	settings := types.DefaultWorkspaceSettings()
	settings.ArchiveMaxImportance = 0.2
	settings.ArchiveMaxAccessCount = 1
	settings.ArchiveMinAgeDays = 90
	seedWorkspace(t, store, settings)

	storeAgedMemory(t, store, "stale", 100*24*time.Hour, 0.1, false, 0)
	storeAgedMemory(t, store, "important", 100*24*time.Hour, 0.9, false, 0)
	storeAgedMemory(t, store, "young-low", 1*24*time.Hour, 0.1, false, 0)
	storeAgedMemory(t, store, "pinned-low", 100*24*time.Hour, 0.1, true, 0)

	svc := decay.New(store, store)
	archived, err := svc.ArchiveStaleMemories(context.Background(), "t1", "ws1")
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	stale, err := store.Get(context.Background(), "ws1", "stale")
	require.NoError(t, err)
	assert.Equal(t, types.StatusArchived, stale.Status)

	important, err := store.Get(context.Background(), "ws1", "important")
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, important.Status)
}

func TestDecayAllWorkspacesSweepsEveryWorkspace(t *testing.T) {
	store := memdb.New()
	settings := types.DefaultWorkspaceSettings()
	settings.DecayMinAgeDays = 1
	settings.DecayRatePerDay = 0.01
	settings.ArchiveMinAgeDays = 1
	settings.ArchiveMaxImportance = 0.2

	require.NoError(t, store.UpsertWorkspace(context.Background(), &types.Workspace{TenantID: "t1", ID: "ws1", Name: "ws1", Settings: settings}))
	require.NoError(t, store.UpsertWorkspace(context.Background(), &types.Workspace{TenantID: "t1", ID: "ws2", Name: "ws2", Settings: settings}))

	require.NoError(t, store.Store(context.Background(), &types.Memory{
		ID: "m1", Workspace: "ws1", Content: "m1", Type: types.MemoryTypeSemantic, Status: types.StatusActive,
		Importance: 0.8, DecayFactor: 1.0, CreatedAt: time.Now().Add(-10 * 24 * time.Hour),
	}))
	require.NoError(t, store.Store(context.Background(), &types.Memory{
		ID: "m2", Workspace: "ws2", Content: "m2", Type: types.MemoryTypeSemantic, Status: types.StatusActive,
		Importance: 0.8, DecayFactor: 1.0, CreatedAt: time.Now().Add(-10 * 24 * time.Hour),
	}))

	svc := decay.New(store, store)
	result, errs := svc.DecayAllWorkspaces(context.Background())
	assert.Empty(t, errs)
	assert.Equal(t, 2, result.WorkspacesProcessed)
	assert.Equal(t, 2, result.Decayed)
}

func TestEffectiveImportanceFoldsInDecayFactor(t *testing.T) {
	mem := &types.Memory{Importance: 0.8, DecayFactor: 0.5}
	assert.Equal(t, 0.4, decay.EffectiveImportance(mem))
}

func TestEffectiveImportanceTreatsZeroDecayFactorAsUndecayed(t *testing.T) {
	mem := &types.Memory{Importance: 0.8}
	assert.Equal(t, 0.8, decay.EffectiveImportance(mem))
}

func TestCalculateAccessBoostCapsAtOne(t *testing.T) {
	assert.Equal(t, 1.0, decay.CalculateAccessBoost(&types.Memory{Importance: 0.95}))
	assert.InDelta(t, 0.6, decay.CalculateAccessBoost(&types.Memory{Importance: 0.5}), 0.0001)
}
