package memdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/storage/memdb"
	"github.com/memvault/memvault/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndGet(t *testing.T) {
	s := memdb.New()
	m := &types.Memory{ID: "m1", Workspace: "ws1", Content: "hello", Status: types.StatusActive}
	require.NoError(t, s.Store(context.Background(), m))

	got, err := s.Get(context.Background(), "ws1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
}

func TestGetWrongWorkspaceNotFound(t *testing.T) {
	s := memdb.New()
	m := &types.Memory{ID: "m1", Workspace: "ws1", Content: "hello", Status: types.StatusActive}
	require.NoError(t, s.Store(context.Background(), m))

	_, err := s.Get(context.Background(), "ws2", "m1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteIsSoft(t *testing.T) {
	s := memdb.New()
	m := &types.Memory{ID: "m1", Workspace: "ws1", Content: "hello", Status: types.StatusActive}
	require.NoError(t, s.Store(context.Background(), m))
	require.NoError(t, s.Delete(context.Background(), "ws1", "m1"))

	_, err := s.Get(context.Background(), "ws1", "m1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	listed, err := s.List(context.Background(), storage.ListOptions{WorkspaceID: "ws1", IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, listed.Items, 1)
}

func TestGetByIDIgnoresWorkspace(t *testing.T) {
	s := memdb.New()
	m := &types.Memory{ID: "m1", Workspace: "ws1", Content: "hello", Status: types.StatusActive}
	require.NoError(t, s.Store(context.Background(), m))

	got, err := s.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "ws1", got.Workspace)

	require.NoError(t, s.Delete(context.Background(), "ws1", "m1"))
	_, err = s.GetByID(context.Background(), "m1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVectorSearchAppliesTypeAndTagFilters(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.Store(context.Background(), &types.Memory{
		ID: "m1", Workspace: "ws1", Content: "a", Type: types.MemoryTypeWorking,
		Tags: []string{"auth"}, Status: types.StatusActive, Embedding: []float32{1, 0},
	}))
	require.NoError(t, s.Store(context.Background(), &types.Memory{
		ID: "m2", Workspace: "ws1", Content: "b", Type: types.MemoryTypeSemantic,
		Status: types.StatusActive, Embedding: []float32{1, 0},
	}))

	scored, err := s.VectorSearch(context.Background(), storage.SearchOptions{
		WorkspaceID: "ws1", Embedding: []float32{1, 0}, Types: []string{"working"}, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "m1", scored[0].ID)

	scored, err = s.VectorSearch(context.Background(), storage.SearchOptions{
		WorkspaceID: "ws1", Embedding: []float32{1, 0}, Tags: []string{"auth"}, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "m1", scored[0].ID)
}

func TestGetByContentHash(t *testing.T) {
	s := memdb.New()
	m := &types.Memory{ID: "m1", Workspace: "ws1", Content: "hello", ContentHash: "abc", Status: types.StatusActive}
	require.NoError(t, s.Store(context.Background(), m))

	got, err := s.GetByContentHash(context.Background(), "ws1", "abc")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)

	_, err = s.GetByContentHash(context.Background(), "ws1", "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListPagination(t *testing.T) {
	s := memdb.New()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, s.Store(context.Background(), &types.Memory{
			ID: id, Workspace: "ws1", Content: id, Status: types.StatusActive,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	page, err := s.List(context.Background(), storage.ListOptions{WorkspaceID: "ws1", Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore)
}

func TestVectorSearchOrdersBySimilarity(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.Store(context.Background(), &types.Memory{
		ID: "close", Workspace: "ws1", Status: types.StatusActive, Embedding: []float32{1, 0},
	}))
	require.NoError(t, s.Store(context.Background(), &types.Memory{
		ID: "far", Workspace: "ws1", Status: types.StatusActive, Embedding: []float32{0, 1},
	}))

	results, err := s.VectorSearch(context.Background(), storage.SearchOptions{WorkspaceID: "ws1", Embedding: []float32{1, 0}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].ID)
}

func TestFullTextSearchCaseInsensitive(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.Store(context.Background(), &types.Memory{
		ID: "m1", Workspace: "ws1", Content: "The Quick Brown Fox", Status: types.StatusActive,
	}))

	results, err := s.FullTextSearch(context.Background(), storage.SearchOptions{WorkspaceID: "ws1", Query: "brown"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestIncrementAccessCount(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.Store(context.Background(), &types.Memory{ID: "m1", Workspace: "ws1", Status: types.StatusActive}))
	require.NoError(t, s.IncrementAccessCount(context.Background(), "ws1", "m1"))
	require.NoError(t, s.IncrementAccessCount(context.Background(), "ws1", "m1"))

	got, err := s.Get(context.Background(), "ws1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.AccessCount)
	assert.NotNil(t, got.LastAccessedAt)
}

func TestAssociationsDirectional(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.CreateAssociation(context.Background(), &types.Association{
		ID: "a1", WorkspaceID: "ws1", SourceID: "m1", TargetID: "m2", Relationship: "related_to",
	}))

	out, err := s.GetAssociations(context.Background(), "ws1", "m1", types.DirectionOutgoing)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	in, err := s.GetAssociations(context.Background(), "ws1", "m2", types.DirectionIncoming)
	require.NoError(t, err)
	assert.Len(t, in, 1)

	none, err := s.GetAssociations(context.Background(), "ws1", "m2", types.DirectionOutgoing)
	require.NoError(t, err)
	assert.Len(t, none, 0)
}

func TestAssociationExists(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.CreateAssociation(context.Background(), &types.Association{
		ID: "a1", WorkspaceID: "ws1", SourceID: "m1", TargetID: "m2", Relationship: "related_to",
	}))

	exists, err := s.AssociationExists(context.Background(), "ws1", "m1", "m2", "related_to")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.AssociationExists(context.Background(), "ws1", "m1", "m2", "causes")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWorkspaceAndContextRoundTrip(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.UpsertWorkspace(context.Background(), &types.Workspace{TenantID: "t1", ID: "ws1", Name: "First"}))
	got, err := s.GetWorkspace(context.Background(), "t1", "ws1")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)

	require.NoError(t, s.UpsertContext(context.Background(), &types.Context{WorkspaceID: "ws1", ID: "c1", Name: "Ctx"}))
	gotCtx, err := s.GetContext(context.Background(), "ws1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ctx", gotCtx.Name)
}

func TestSessionExpiryCleanup(t *testing.T) {
	s := memdb.New()
	past := time.Now().Add(-time.Hour)
	require.NoError(t, s.CreateSession(context.Background(), &types.Session{ID: "s1", ExpiresAt: past}))
	require.NoError(t, s.SetWorkingMemory(context.Background(), &types.WorkingMemory{SessionID: "s1", Key: "k", Value: "v"}))

	n, err := s.DeleteExpiredSessions(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetSession(context.Background(), "s1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetWorkingMemory(context.Background(), "s1", "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWorkingMemoryCRUD(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.SetWorkingMemory(context.Background(), &types.WorkingMemory{SessionID: "s1", Key: "k1", Value: "v1"}))
	got, err := s.GetWorkingMemory(context.Background(), "s1", "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Value)

	list, err := s.ListWorkingMemory(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteWorkingMemory(context.Background(), "s1", "k1"))
	_, err = s.GetWorkingMemory(context.Background(), "s1", "k1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestContradictionResolve(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.CreateContradiction(context.Background(), &types.ContradictionRecord{
		ID: "c1", WorkspaceID: "ws1", MemoryAID: "m1", MemoryBID: "m2",
	}))

	unresolved, err := s.GetUnresolvedContradictions(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Len(t, unresolved, 1)

	require.NoError(t, s.ResolveContradiction(context.Background(), "ws1", "c1", types.ResolutionKeepA, "", time.Now()))

	unresolved, err = s.GetUnresolvedContradictions(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Len(t, unresolved, 0)
}

func TestListSessionsFiltersByWorkspace(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.CreateSession(context.Background(), &types.Session{ID: "s1", WorkspaceID: "ws1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.CreateSession(context.Background(), &types.Session{ID: "s2", WorkspaceID: "ws2", ExpiresAt: time.Now().Add(time.Hour)}))

	list, err := s.ListSessions(context.Background(), "ws1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
}

func TestUpdateSessionExpiryExtendsWindow(t *testing.T) {
	s := memdb.New()
	original := time.Now().Add(time.Minute)
	require.NoError(t, s.CreateSession(context.Background(), &types.Session{ID: "s1", ExpiresAt: original}))

	extended := original.Add(time.Hour)
	require.NoError(t, s.UpdateSessionExpiry(context.Background(), "s1", extended))

	got, err := s.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(extended))
}

func TestDeleteSessionRemovesRegardlessOfExpiry(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.CreateSession(context.Background(), &types.Session{ID: "s1", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.SetWorkingMemory(context.Background(), &types.WorkingMemory{SessionID: "s1", Key: "k", Value: "v"}))

	require.NoError(t, s.DeleteSession(context.Background(), "s1"))

	_, err := s.GetSession(context.Background(), "s1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetWorkingMemory(context.Background(), "s1", "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListExpiredSessionsRespectsLimitAndCutoff(t *testing.T) {
	s := memdb.New()
	now := time.Now()
	require.NoError(t, s.CreateSession(context.Background(), &types.Session{ID: "expired1", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateSession(context.Background(), &types.Session{ID: "expired2", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.CreateSession(context.Background(), &types.Session{ID: "live", ExpiresAt: now.Add(time.Hour)}))

	expired, err := s.ListExpiredSessions(context.Background(), now, 1)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	expired, err = s.ListExpiredSessions(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Len(t, expired, 2)
}

func TestListAllWorkspacesSpansTenants(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.UpsertWorkspace(context.Background(), &types.Workspace{TenantID: "t1", ID: "ws1"}))
	require.NoError(t, s.UpsertWorkspace(context.Background(), &types.Workspace{TenantID: "t2", ID: "ws2"}))

	all, err := s.ListAllWorkspaces(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestArchiveAndListForDecay(t *testing.T) {
	s := memdb.New()
	require.NoError(t, s.Store(context.Background(), &types.Memory{ID: "m1", Workspace: "ws1", Status: types.StatusActive}))

	toDecay, err := s.ListForDecay(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Len(t, toDecay, 1)

	require.NoError(t, s.Archive(context.Background(), "ws1", []string{"m1"}))

	toDecay, err = s.ListForDecay(context.Background(), "ws1")
	require.NoError(t, err)
	assert.Len(t, toDecay, 0)
}
