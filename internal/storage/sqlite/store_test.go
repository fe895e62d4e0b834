package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := &types.Memory{
		ID:          "mem-1",
		TenantID:    "tenant-a",
		Workspace:   "ws-1",
		ContextID:   "ctx-1",
		Content:     "the deploy key rotates every 90 days",
		ContentHash: "hash-1",
		Type:        types.MemoryTypeSemantic,
		Subtype:     types.MemorySubtypeFact,
		Importance:  0.7,
		Status:      types.StatusActive,
		Tags:        []string{"ops", "security"},
		Metadata:    map[string]interface{}{"origin": "chat"},
		Embedding:   []float32{0.1, 0.2, 0.3},
	}

	if err := store.Store(ctx, mem); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	got, err := store.Get(ctx, "ws-1", "mem-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Content != mem.Content {
		t.Errorf("Content: got %q, want %q", got.Content, mem.Content)
	}
	if got.Subtype != types.MemorySubtypeFact {
		t.Errorf("Subtype: got %q, want %q", got.Subtype, types.MemorySubtypeFact)
	}
	if len(got.Tags) != 2 {
		t.Errorf("Tags: got %v, want 2 entries", got.Tags)
	}
	if len(got.Embedding) != 3 {
		t.Fatalf("Embedding: got %d dims, want 3", len(got.Embedding))
	}
	if got.Embedding[1] != float32(0.2) {
		t.Errorf("Embedding[1]: got %v, want 0.2", got.Embedding[1])
	}
}

func TestGetWrongWorkspaceNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := &types.Memory{ID: "mem-1", Workspace: "ws-1", Content: "x", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	if err := store.Store(ctx, mem); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	_, err := store.Get(ctx, "ws-2", "mem-1")
	if err != storage.ErrNotFound {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteIsSoft(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := &types.Memory{ID: "mem-1", Workspace: "ws-1", Content: "x", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	if err := store.Store(ctx, mem); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if err := store.Delete(ctx, "ws-1", "mem-1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := store.Get(ctx, "ws-1", "mem-1"); err != storage.ErrNotFound {
		t.Errorf("Get() after soft delete = %v, want ErrNotFound", err)
	}
	listed, err := store.List(ctx, storage.ListOptions{WorkspaceID: "ws-1", IncludeDeleted: true})
	if err != nil {
		t.Fatalf("List(IncludeDeleted) after soft delete failed: %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("List(IncludeDeleted): got %d items, want 1", len(listed.Items))
	}
	got := listed.Items[0]
	if got.Status != types.StatusDeleted {
		t.Errorf("Status: got %q, want %q", got.Status, types.StatusDeleted)
	}
	if got.DeletedAt == nil {
		t.Error("DeletedAt: got nil, want set")
	}

	if err := store.Purge(ctx, "ws-1", "mem-1"); err != nil {
		t.Fatalf("Purge() failed: %v", err)
	}
	if _, err := store.Get(ctx, "ws-1", "mem-1"); err != storage.ErrNotFound {
		t.Errorf("Get() after purge = %v, want ErrNotFound", err)
	}
}

func TestGetByIDIgnoresWorkspace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := &types.Memory{
		ID:          "mem-byid",
		Workspace:   "ws-1",
		Content:     "reachable by bare id",
		ContentHash: "hash-byid",
		Type:        types.MemoryTypeSemantic,
		Status:      types.StatusActive,
	}
	if err := store.Store(ctx, mem); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	got, err := store.GetByID(ctx, "mem-byid")
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if got.Workspace != "ws-1" {
		t.Fatalf("GetByID() workspace = %q, want ws-1", got.Workspace)
	}

	if _, err := store.GetByID(ctx, "missing"); err != storage.ErrNotFound {
		t.Fatalf("GetByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestGetByContentHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := &types.Memory{ID: "mem-1", Workspace: "ws-1", Content: "x", ContentHash: "abc123", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	if err := store.Store(ctx, mem); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	got, err := store.GetByContentHash(ctx, "ws-1", "abc123")
	if err != nil {
		t.Fatalf("GetByContentHash() failed: %v", err)
	}
	if got.ID != "mem-1" {
		t.Errorf("ID: got %q, want mem-1", got.ID)
	}

	if _, err := store.GetByContentHash(ctx, "ws-1", "nope"); err != storage.ErrNotFound {
		t.Errorf("GetByContentHash() error = %v, want ErrNotFound", err)
	}
}

func TestListPaginationAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		mem := &types.Memory{
			ID: "mem-" + string(rune('a'+i)), Workspace: "ws-1", Content: "x",
			Type: types.MemoryTypeSemantic, Status: types.StatusActive,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Store(ctx, mem); err != nil {
			t.Fatalf("Store() failed: %v", err)
		}
	}

	opts := storage.ListOptions{WorkspaceID: "ws-1", Page: 1, Limit: 2, SortBy: "created_at", SortOrder: "asc"}
	opts.Normalize()
	page1, err := store.List(ctx, opts)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if page1.Total != 5 {
		t.Errorf("Total: got %d, want 5", page1.Total)
	}
	if len(page1.Items) != 2 {
		t.Fatalf("Items: got %d, want 2", len(page1.Items))
	}
	if page1.Items[0].ID != "mem-a" {
		t.Errorf("Items[0].ID: got %q, want mem-a", page1.Items[0].ID)
	}
	if !page1.HasMore {
		t.Error("HasMore: got false, want true")
	}
}

func TestVectorSearchOrdersBySimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	memories := []struct {
		id  string
		vec []float32
	}{
		{"mem-close", []float32{1, 0, 0}},
		{"mem-far", []float32{0, 1, 0}},
		{"mem-mid", []float32{0.7, 0.7, 0}},
	}
	for _, m := range memories {
		mem := &types.Memory{ID: m.id, Workspace: "ws-1", Content: "x", Type: types.MemoryTypeSemantic, Status: types.StatusActive, Embedding: m.vec}
		if err := store.Store(ctx, mem); err != nil {
			t.Fatalf("Store() failed: %v", err)
		}
	}

	opts := storage.SearchOptions{WorkspaceID: "ws-1", Embedding: []float32{1, 0, 0}, Limit: 10}
	results, err := store.VectorSearch(ctx, opts)
	if err != nil {
		t.Fatalf("VectorSearch() failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results: got %d, want 3", len(results))
	}
	if results[0].ID != "mem-close" {
		t.Errorf("results[0].ID: got %q, want mem-close", results[0].ID)
	}
	if results[len(results)-1].ID != "mem-far" {
		t.Errorf("results[last].ID: got %q, want mem-far", results[len(results)-1].ID)
	}
}

func TestFullTextSearchMatchesContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem1 := &types.Memory{ID: "mem-1", Workspace: "ws-1", Content: "the rotation policy for deploy keys", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	mem2 := &types.Memory{ID: "mem-2", Workspace: "ws-1", Content: "unrelated content about lunch", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	if err := store.Store(ctx, mem1); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if err := store.Store(ctx, mem2); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	results, err := store.FullTextSearch(ctx, storage.SearchOptions{WorkspaceID: "ws-1", Query: "rotation deploy", Limit: 10})
	if err != nil {
		t.Fatalf("FullTextSearch() failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results: got %d, want 1", len(results))
	}
	if results[0].ID != "mem-1" {
		t.Errorf("results[0].ID: got %q, want mem-1", results[0].ID)
	}
}

func TestIncrementAccessCountAndUpdateTiers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := &types.Memory{ID: "mem-1", Workspace: "ws-1", Content: "x", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
	if err := store.Store(ctx, mem); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	if err := store.IncrementAccessCount(ctx, "ws-1", "mem-1"); err != nil {
		t.Fatalf("IncrementAccessCount() failed: %v", err)
	}
	if err := store.IncrementAccessCount(ctx, "ws-1", "mem-1"); err != nil {
		t.Fatalf("IncrementAccessCount() failed: %v", err)
	}
	if err := store.UpdateTiers(ctx, "ws-1", "mem-1", "short", "longer summary"); err != nil {
		t.Fatalf("UpdateTiers() failed: %v", err)
	}

	got, err := store.Get(ctx, "ws-1", "mem-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.AccessCount != 2 {
		t.Errorf("AccessCount: got %d, want 2", got.AccessCount)
	}
	if got.Abstract != "short" || got.Overview != "longer summary" {
		t.Errorf("tiers: got abstract=%q overview=%q", got.Abstract, got.Overview)
	}
	if got.LastAccessedAt == nil {
		t.Error("LastAccessedAt: got nil, want set")
	}
}

func TestArchiveAndListForDecayAndApplyDecay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem1 := &types.Memory{ID: "mem-1", Workspace: "ws-1", Content: "x", Type: types.MemoryTypeSemantic, Status: types.StatusActive, DecayFactor: 1.0}
	mem2 := &types.Memory{ID: "mem-2", Workspace: "ws-1", Content: "x", Type: types.MemoryTypeSemantic, Status: types.StatusActive, Pinned: true, DecayFactor: 1.0}
	for _, m := range []*types.Memory{mem1, mem2} {
		if err := store.Store(ctx, m); err != nil {
			t.Fatalf("Store() failed: %v", err)
		}
	}

	forDecay, err := store.ListForDecay(ctx, "ws-1")
	if err != nil {
		t.Fatalf("ListForDecay() failed: %v", err)
	}
	if len(forDecay) != 1 || forDecay[0].ID != "mem-1" {
		t.Fatalf("ListForDecay(): got %+v, want only mem-1 (pinned excluded)", forDecay)
	}

	if err := store.ApplyDecay(ctx, "ws-1", map[string]float64{"mem-1": 0.5}); err != nil {
		t.Fatalf("ApplyDecay() failed: %v", err)
	}
	got, err := store.Get(ctx, "ws-1", "mem-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.DecayFactor != 0.5 {
		t.Errorf("DecayFactor: got %v, want 0.5", got.DecayFactor)
	}

	if err := store.Archive(ctx, "ws-1", []string{"mem-2"}); err != nil {
		t.Fatalf("Archive() failed: %v", err)
	}
	got2, err := store.Get(ctx, "ws-1", "mem-2")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got2.Status != types.StatusArchived {
		t.Errorf("Status: got %q, want archived", got2.Status)
	}
}

func TestAssociationsDirectionalAndExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"mem-a", "mem-b"} {
		mem := &types.Memory{ID: id, Workspace: "ws-1", Content: "x", Type: types.MemoryTypeSemantic, Status: types.StatusActive}
		if err := store.Store(ctx, mem); err != nil {
			t.Fatalf("Store() failed: %v", err)
		}
	}

	assoc := &types.Association{ID: "assoc-1", WorkspaceID: "ws-1", SourceID: "mem-a", TargetID: "mem-b", Relationship: "causes", Strength: 0.9}
	if err := store.CreateAssociation(ctx, assoc); err != nil {
		t.Fatalf("CreateAssociation() failed: %v", err)
	}

	outgoing, err := store.GetAssociations(ctx, "ws-1", "mem-a", types.DirectionOutgoing)
	if err != nil {
		t.Fatalf("GetAssociations(outgoing) failed: %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].TargetID != "mem-b" {
		t.Fatalf("GetAssociations(outgoing): got %+v", outgoing)
	}

	incoming, err := store.GetAssociations(ctx, "ws-1", "mem-a", types.DirectionIncoming)
	if err != nil {
		t.Fatalf("GetAssociations(incoming) failed: %v", err)
	}
	if len(incoming) != 0 {
		t.Errorf("GetAssociations(incoming): got %d, want 0", len(incoming))
	}

	exists, err := store.AssociationExists(ctx, "ws-1", "mem-a", "mem-b", "causes")
	if err != nil {
		t.Fatalf("AssociationExists() failed: %v", err)
	}
	if !exists {
		t.Error("AssociationExists(): got false, want true")
	}

	if err := store.DeleteAssociation(ctx, "ws-1", "assoc-1"); err != nil {
		t.Fatalf("DeleteAssociation() failed: %v", err)
	}
	exists, err = store.AssociationExists(ctx, "ws-1", "mem-a", "mem-b", "causes")
	if err != nil {
		t.Fatalf("AssociationExists() failed: %v", err)
	}
	if exists {
		t.Error("AssociationExists() after delete: got true, want false")
	}
}

func TestWorkspaceAndContextRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ws := &types.Workspace{TenantID: "tenant-a", ID: "ws-1", Name: "Project X", Settings: types.DefaultWorkspaceSettings()}
	if err := store.UpsertWorkspace(ctx, ws); err != nil {
		t.Fatalf("UpsertWorkspace() failed: %v", err)
	}

	got, err := store.GetWorkspace(ctx, "tenant-a", "ws-1")
	if err != nil {
		t.Fatalf("GetWorkspace() failed: %v", err)
	}
	if got.Settings.EmbeddingDimensions != 1536 {
		t.Errorf("EmbeddingDimensions: got %d, want 1536", got.Settings.EmbeddingDimensions)
	}

	list, err := store.ListWorkspaces(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("ListWorkspaces() failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListWorkspaces(): got %d, want 1", len(list))
	}

	c := &types.Context{WorkspaceID: "ws-1", ID: "ctx-1", Name: "thread-1"}
	if err := store.UpsertContext(ctx, c); err != nil {
		t.Fatalf("UpsertContext() failed: %v", err)
	}
	gotCtx, err := store.GetContext(ctx, "ws-1", "ctx-1")
	if err != nil {
		t.Fatalf("GetContext() failed: %v", err)
	}
	if gotCtx.Name != "thread-1" {
		t.Errorf("Name: got %q, want thread-1", gotCtx.Name)
	}

	contexts, err := store.ListContexts(ctx, "ws-1")
	if err != nil {
		t.Fatalf("ListContexts() failed: %v", err)
	}
	if len(contexts) != 1 {
		t.Fatalf("ListContexts(): got %d, want 1", len(contexts))
	}
}

func TestSessionLifecycleAndWorkingMemory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	sess := &types.Session{ID: "sess-1", TenantID: "tenant-a", WorkspaceID: "ws-1", ContextID: "ctx-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if got.IsCommitted() {
		t.Error("IsCommitted(): got true, want false before commit")
	}

	if err := store.CommitSession(ctx, "sess-1", now); err != nil {
		t.Fatalf("CommitSession() failed: %v", err)
	}
	got, err = store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if !got.IsCommitted() {
		t.Error("IsCommitted(): got false, want true after commit")
	}

	wm := &types.WorkingMemory{SessionID: "sess-1", Key: "goal", Value: "ship the feature"}
	if err := store.SetWorkingMemory(ctx, wm); err != nil {
		t.Fatalf("SetWorkingMemory() failed: %v", err)
	}
	gotWM, err := store.GetWorkingMemory(ctx, "sess-1", "goal")
	if err != nil {
		t.Fatalf("GetWorkingMemory() failed: %v", err)
	}
	if gotWM.Value != "ship the feature" {
		t.Errorf("Value: got %q, want %q", gotWM.Value, "ship the feature")
	}

	list, err := store.ListWorkingMemory(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListWorkingMemory() failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListWorkingMemory(): got %d, want 1", len(list))
	}

	if err := store.DeleteWorkingMemory(ctx, "sess-1", "goal"); err != nil {
		t.Fatalf("DeleteWorkingMemory() failed: %v", err)
	}
	if _, err := store.GetWorkingMemory(ctx, "sess-1", "goal"); err != storage.ErrNotFound {
		t.Errorf("GetWorkingMemory() after delete = %v, want ErrNotFound", err)
	}

	expired := &types.Session{ID: "sess-2", TenantID: "tenant-a", WorkspaceID: "ws-1", ContextID: "ctx-1", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	if err := store.CreateSession(ctx, expired); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	n, err := store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpiredSessions(): got %d, want 1", n)
	}
	if _, err := store.GetSession(ctx, "sess-2"); err != storage.ErrNotFound {
		t.Errorf("GetSession() after expiry cleanup = %v, want ErrNotFound", err)
	}
}

func TestListSessionsFiltersByWorkspace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateSession(ctx, &types.Session{ID: "s1", WorkspaceID: "ws-a", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if err := store.CreateSession(ctx, &types.Session{ID: "s2", WorkspaceID: "ws-b", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	list, err := store.ListSessions(ctx, "ws-a")
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "s1" {
		t.Errorf("ListSessions(): got %+v, want only s1", list)
	}
}

func TestUpdateSessionExpiryPersists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateSession(ctx, &types.Session{ID: "s1", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	extended := now.Add(2 * time.Hour)
	if err := store.UpdateSessionExpiry(ctx, "s1", extended); err != nil {
		t.Fatalf("UpdateSessionExpiry() failed: %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if !got.ExpiresAt.Equal(extended) {
		t.Errorf("ExpiresAt: got %v, want %v", got.ExpiresAt, extended)
	}
}

func TestDeleteSessionRemovesRegardlessOfExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateSession(ctx, &types.Session{ID: "s1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if err := store.SetWorkingMemory(ctx, &types.WorkingMemory{SessionID: "s1", Key: "k", Value: "v"}); err != nil {
		t.Fatalf("SetWorkingMemory() failed: %v", err)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession() failed: %v", err)
	}
	if _, err := store.GetSession(ctx, "s1"); err != storage.ErrNotFound {
		t.Errorf("GetSession() after delete = %v, want ErrNotFound", err)
	}
	if _, err := store.GetWorkingMemory(ctx, "s1", "k"); err != storage.ErrNotFound {
		t.Errorf("GetWorkingMemory() after delete = %v, want ErrNotFound", err)
	}
}

func TestListExpiredSessionsRespectsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateSession(ctx, &types.Session{ID: "expired1", CreatedAt: now, ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if err := store.CreateSession(ctx, &types.Session{ID: "expired2", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if err := store.CreateSession(ctx, &types.Session{ID: "live", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	limited, err := store.ListExpiredSessions(ctx, now, 1)
	if err != nil {
		t.Fatalf("ListExpiredSessions() failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("ListExpiredSessions(limit=1): got %d, want 1", len(limited))
	}

	all, err := store.ListExpiredSessions(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListExpiredSessions() failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListExpiredSessions(limit=10): got %d, want 2", len(all))
	}
}

func TestListAllWorkspacesSpansTenants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertWorkspace(ctx, &types.Workspace{TenantID: "t1", ID: "ws1"}); err != nil {
		t.Fatalf("UpsertWorkspace() failed: %v", err)
	}
	if err := store.UpsertWorkspace(ctx, &types.Workspace{TenantID: "t2", ID: "ws2"}); err != nil {
		t.Fatalf("UpsertWorkspace() failed: %v", err)
	}

	all, err := store.ListAllWorkspaces(ctx)
	if err != nil {
		t.Fatalf("ListAllWorkspaces() failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListAllWorkspaces(): got %d, want 2", len(all))
	}
}

func TestContradictionResolve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := &types.ContradictionRecord{
		ID: "cx-1", WorkspaceID: "ws-1", MemoryAID: "mem-a", MemoryBID: "mem-b",
		ContradictionType: types.ContradictionNegation, Confidence: 0.8, DetectionMethod: "negation_pattern",
	}
	if err := store.CreateContradiction(ctx, c); err != nil {
		t.Fatalf("CreateContradiction() failed: %v", err)
	}

	unresolved, err := store.GetUnresolvedContradictions(ctx, "ws-1")
	if err != nil {
		t.Fatalf("GetUnresolvedContradictions() failed: %v", err)
	}
	if len(unresolved) != 1 {
		t.Fatalf("GetUnresolvedContradictions(): got %d, want 1", len(unresolved))
	}

	now := time.Now()
	if err := store.ResolveContradiction(ctx, "ws-1", "cx-1", types.ResolutionMerge, "merged text", now); err != nil {
		t.Fatalf("ResolveContradiction() failed: %v", err)
	}

	unresolved, err = store.GetUnresolvedContradictions(ctx, "ws-1")
	if err != nil {
		t.Fatalf("GetUnresolvedContradictions() failed: %v", err)
	}
	if len(unresolved) != 0 {
		t.Errorf("GetUnresolvedContradictions() after resolve: got %d, want 0", len(unresolved))
	}
}
