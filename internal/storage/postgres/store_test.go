package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/storage/postgres"
	"github.com/memvault/memvault/pkg/types"
)

// postgresTestDSN returns the DSN for the test database. Tests are skipped
// when POSTGRES_TEST_DSN isn't set, since these exercise a real server.
func postgresTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	store, err := postgres.New(postgresTestDSN(t))
	require.NoError(t, err, "New should succeed")
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := &types.Memory{
		ID: "pg-mem-1", Workspace: "ws-1", Content: "the staging cluster uses blue/green deploys",
		ContentHash: "pg-hash-1", Type: types.MemoryTypeSemantic, Importance: 0.6, Status: types.StatusActive,
		Embedding: []float32{0.1, 0.2, 0.3},
	}
	require.NoError(t, store.Store(ctx, mem))
	t.Cleanup(func() { _ = store.Purge(ctx, "ws-1", "pg-mem-1") })

	got, err := store.Get(ctx, "ws-1", "pg-mem-1")
	require.NoError(t, err)
	assert.Equal(t, mem.Content, got.Content)
	require.Len(t, got.Embedding, 3)
	assert.InDelta(t, 0.2, got.Embedding[1], 1e-6)
}

func TestGetByContentHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := &types.Memory{ID: "pg-mem-2", Workspace: "ws-1", Content: "x", ContentHash: "pg-hash-unique", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	require.NoError(t, store.Store(ctx, mem))
	t.Cleanup(func() { _ = store.Purge(ctx, "ws-1", "pg-mem-2") })

	got, err := store.GetByContentHash(ctx, "ws-1", "pg-hash-unique")
	require.NoError(t, err)
	assert.Equal(t, "pg-mem-2", got.ID)
}

func TestDeleteIsSoftThenPurge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := &types.Memory{ID: "pg-mem-3", Workspace: "ws-1", Content: "x", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	require.NoError(t, store.Store(ctx, mem))

	require.NoError(t, store.Delete(ctx, "ws-1", "pg-mem-3"))
	_, err := store.Get(ctx, "ws-1", "pg-mem-3")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	listed, err := store.List(ctx, storage.ListOptions{WorkspaceID: "ws-1", IncludeDeleted: true, Limit: 200})
	require.NoError(t, err)
	var status types.MemoryStatus
	for _, m := range listed.Items {
		if m.ID == "pg-mem-3" {
			status = m.Status
		}
	}
	assert.Equal(t, types.StatusDeleted, status)

	require.NoError(t, store.Purge(ctx, "ws-1", "pg-mem-3"))
	_, err = store.Get(ctx, "ws-1", "pg-mem-3")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFullTextSearchMatchesContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem1 := &types.Memory{ID: "pg-mem-4", Workspace: "ws-1", Content: "the rotation policy for deploy keys", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	mem2 := &types.Memory{ID: "pg-mem-5", Workspace: "ws-1", Content: "unrelated content about lunch", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	require.NoError(t, store.Store(ctx, mem1))
	require.NoError(t, store.Store(ctx, mem2))
	t.Cleanup(func() {
		_ = store.Purge(ctx, "ws-1", "pg-mem-4")
		_ = store.Purge(ctx, "ws-1", "pg-mem-5")
	})

	results, err := store.FullTextSearch(ctx, storage.SearchOptions{WorkspaceID: "ws-1", Query: "rotation deploy", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "pg-mem-4", results[0].ID)
}

func TestVectorSearchBruteForceFallbackOrdersBySimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	memories := []struct {
		id  string
		vec []float32
	}{
		{"pg-mem-close", []float32{1, 0, 0}},
		{"pg-mem-far", []float32{0, 1, 0}},
	}
	for _, m := range memories {
		mem := &types.Memory{ID: m.id, Workspace: "ws-1", Content: "x", Type: types.MemoryTypeSemantic, Status: types.StatusActive, Embedding: m.vec}
		require.NoError(t, store.Store(ctx, mem))
		id := m.id
		t.Cleanup(func() { _ = store.Purge(ctx, "ws-1", id) })
	}

	results, err := store.VectorSearch(ctx, storage.SearchOptions{WorkspaceID: "ws-1", Embedding: []float32{1, 0, 0}, Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "pg-mem-close", results[0].ID)
}

func TestWorkspaceContextSessionAndContradictionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ws := &types.Workspace{TenantID: "tenant-pg", ID: "ws-pg-1", Name: "Project Y", Settings: types.DefaultWorkspaceSettings()}
	require.NoError(t, store.UpsertWorkspace(ctx, ws))

	got, err := store.GetWorkspace(ctx, "tenant-pg", "ws-pg-1")
	require.NoError(t, err)
	assert.Equal(t, 1536, got.Settings.EmbeddingDimensions)

	c := &types.Context{WorkspaceID: "ws-pg-1", ID: "ctx-pg-1", Name: "thread"}
	require.NoError(t, store.UpsertContext(ctx, c))
	gotCtx, err := store.GetContext(ctx, "ws-pg-1", "ctx-pg-1")
	require.NoError(t, err)
	assert.Equal(t, "thread", gotCtx.Name)

	now := time.Now()
	sess := &types.Session{ID: "sess-pg-1", TenantID: "tenant-pg", WorkspaceID: "ws-pg-1", ContextID: "ctx-pg-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.CreateSession(ctx, sess))
	require.NoError(t, store.CommitSession(ctx, "sess-pg-1", now))
	gotSess, err := store.GetSession(ctx, "sess-pg-1")
	require.NoError(t, err)
	assert.True(t, gotSess.IsCommitted())

	cx := &types.ContradictionRecord{
		ID: "cx-pg-1", WorkspaceID: "ws-pg-1", MemoryAID: "a", MemoryBID: "b",
		ContradictionType: types.ContradictionNegation, Confidence: 0.9, DetectionMethod: "negation_pattern",
	}
	require.NoError(t, store.CreateContradiction(ctx, cx))
	unresolved, err := store.GetUnresolvedContradictions(ctx, "ws-pg-1")
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.NoError(t, store.ResolveContradiction(ctx, "ws-pg-1", "cx-pg-1", types.ResolutionKeepA, "", now))
}

func TestListSessionsFiltersByWorkspace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.CreateSession(ctx, &types.Session{ID: "sess-pg-list-1", WorkspaceID: "ws-pg-list-a", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.CreateSession(ctx, &types.Session{ID: "sess-pg-list-2", WorkspaceID: "ws-pg-list-b", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	list, err := store.ListSessions(ctx, "ws-pg-list-a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sess-pg-list-1", list[0].ID)
}

func TestUpdateSessionExpiryPersists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.CreateSession(ctx, &types.Session{ID: "sess-pg-expiry", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))

	extended := now.Add(2 * time.Hour)
	require.NoError(t, store.UpdateSessionExpiry(ctx, "sess-pg-expiry", extended))

	got, err := store.GetSession(ctx, "sess-pg-expiry")
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(extended))
}

func TestDeleteSessionRemovesRegardlessOfExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.CreateSession(ctx, &types.Session{ID: "sess-pg-del", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.SetWorkingMemory(ctx, &types.WorkingMemory{SessionID: "sess-pg-del", Key: "k", Value: "v"}))

	require.NoError(t, store.DeleteSession(ctx, "sess-pg-del"))

	_, err := store.GetSession(ctx, "sess-pg-del")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetWorkingMemory(ctx, "sess-pg-del", "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListExpiredSessionsRespectsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.CreateSession(ctx, &types.Session{ID: "sess-pg-exp1", CreatedAt: now, ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.CreateSession(ctx, &types.Session{ID: "sess-pg-exp2", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.CreateSession(ctx, &types.Session{ID: "sess-pg-live", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	limited, err := store.ListExpiredSessions(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListAllWorkspacesSpansTenants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertWorkspace(ctx, &types.Workspace{TenantID: "tenant-pg-all-1", ID: "ws-pg-all-1", Settings: types.DefaultWorkspaceSettings()}))
	require.NoError(t, store.UpsertWorkspace(ctx, &types.Workspace{TenantID: "tenant-pg-all-2", ID: "ws-pg-all-2", Settings: types.DefaultWorkspaceSettings()}))

	all, err := store.ListAllWorkspaces(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 2)
}
