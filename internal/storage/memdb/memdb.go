// Package memdb is a pure in-memory implementation of storage.Store, used
// for tests and the storage_backend=memory configuration option. It
// satisfies the same storage.Store contract the sqlite and postgres
// backends do, guarded throughout by a single sync.RWMutex.
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memvault/memvault/internal/embedding"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Store is an in-memory storage.Store.
type Store struct {
	mu sync.RWMutex

	memories       map[string]*types.Memory // id -> memory
	associations   map[string]*types.Association
	workspaces     map[string]*types.Workspace // tenantID/id -> workspace
	contexts       map[string]*types.Context   // workspaceID/id -> context
	sessions       map[string]*types.Session
	workingMemory  map[string]map[string]*types.WorkingMemory // sessionID -> key -> wm
	contradictions map[string]*types.ContradictionRecord
}

// New builds an empty in-memory store.
func New() *Store {
	return &Store{
		memories:       make(map[string]*types.Memory),
		associations:   make(map[string]*types.Association),
		workspaces:     make(map[string]*types.Workspace),
		contexts:       make(map[string]*types.Context),
		sessions:       make(map[string]*types.Session),
		workingMemory:  make(map[string]map[string]*types.WorkingMemory),
		contradictions: make(map[string]*types.ContradictionRecord),
	}
}

func wsKey(tenantID, id string) string     { return tenantID + "/" + id }
func ctxKey(workspaceID, id string) string { return workspaceID + "/" + id }

// --- MemoryStore ---

func (s *Store) Store(ctx context.Context, memory *types.Memory) error {
	if memory == nil || memory.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memories {
		if m.ID != memory.ID && m.Workspace == memory.Workspace &&
			m.ContentHash != "" && m.ContentHash == memory.ContentHash &&
			m.Status != types.StatusDeleted {
			return storage.ErrAlreadyExists
		}
	}
	cp := *memory
	s.memories[memory.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, workspaceID, id string) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok || m.Workspace != workspaceID || m.Status == types.StatusDeleted {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok || m.Status == types.StatusDeleted {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) GetByContentHash(ctx context.Context, workspaceID, contentHash string) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memories {
		if m.Workspace == workspaceID && m.ContentHash == contentHash && m.Status != types.StatusDeleted {
			cp := *m
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []types.Memory
	for _, m := range s.memories {
		if opts.WorkspaceID != "" && m.Workspace != opts.WorkspaceID {
			continue
		}
		if opts.ContextID != "" && m.ContextID != opts.ContextID {
			continue
		}
		if opts.Type != "" && string(m.Type) != opts.Type {
			continue
		}
		if opts.Subtype != "" && string(m.Subtype) != opts.Subtype {
			continue
		}
		if opts.Status != "" && string(m.Status) != opts.Status {
			continue
		}
		if !opts.IncludeDeleted && m.Status == types.StatusDeleted {
			continue
		}
		if opts.Pinned != nil && m.Pinned != *opts.Pinned {
			continue
		}
		if !opts.CreatedAfter.IsZero() && !m.CreatedAt.After(opts.CreatedAfter) {
			continue
		}
		if !opts.CreatedBefore.IsZero() && !m.CreatedAt.Before(opts.CreatedBefore) {
			continue
		}
		matched = append(matched, *m)
	}

	sortMemories(matched, opts.SortBy, opts.SortOrder)

	total := len(matched)
	start := opts.Offset()
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	return &storage.PaginatedResult[types.Memory]{
		Items:    matched[start:end],
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  end < total,
	}, nil
}

func sortMemories(items []types.Memory, sortBy, order string) {
	ascending := func(i, j int) bool {
		switch sortBy {
		case "updated_at":
			return items[i].UpdatedAt.Before(items[j].UpdatedAt)
		case "importance":
			return items[i].Importance < items[j].Importance
		case "access_count":
			return items[i].AccessCount < items[j].AccessCount
		default:
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
	}
	if order == "asc" {
		sort.SliceStable(items, ascending)
		return
	}
	sort.SliceStable(items, func(i, j int) bool { return ascending(j, i) })
}

func (s *Store) Delete(ctx context.Context, workspaceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok || m.Workspace != workspaceID {
		return storage.ErrNotFound
	}
	now := time.Now()
	m.Status = types.StatusDeleted
	m.DeletedAt = &now
	return nil
}

func (s *Store) Purge(ctx context.Context, workspaceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok || m.Workspace != workspaceID {
		return storage.ErrNotFound
	}
	delete(s.memories, id)
	return nil
}

func (s *Store) UpdateTiers(ctx context.Context, workspaceID, id, abstract, overview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok || m.Workspace != workspaceID {
		return storage.ErrNotFound
	}
	m.Abstract = abstract
	m.Overview = overview
	m.UpdatedAt = time.Now()
	return nil
}

func (s *Store) IncrementAccessCount(ctx context.Context, workspaceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok || m.Workspace != workspaceID {
		return storage.ErrNotFound
	}
	m.AccessCount++
	now := time.Now()
	m.LastAccessedAt = &now
	return nil
}

// matchesSearchFilters applies the optional type/subtype/tag predicates a
// search can carry.
func matchesSearchFilters(m *types.Memory, opts storage.SearchOptions) bool {
	if opts.ContextID != "" && m.ContextID != opts.ContextID {
		return false
	}
	if len(opts.Types) > 0 && !containsString(opts.Types, string(m.Type)) {
		return false
	}
	if len(opts.Subtypes) > 0 && !containsString(opts.Subtypes, string(m.Subtype)) {
		return false
	}
	for _, tag := range opts.Tags {
		if !containsString(m.Tags, tag) {
			return false
		}
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func (s *Store) VectorSearch(ctx context.Context, opts storage.SearchOptions) ([]storage.ScoredMemoryID, error) {
	opts.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []storage.ScoredMemoryID
	for _, m := range s.memories {
		if m.Workspace != opts.WorkspaceID || m.Status == types.StatusDeleted {
			continue
		}
		if m.Status == types.StatusArchived && !opts.IncludeArchived {
			continue
		}
		if !matchesSearchFilters(m, opts) {
			continue
		}
		if !m.HasEmbedding() {
			continue
		}
		score := embedding.CosineSimilarity(opts.Embedding, m.Embedding)
		scored = append(scored, storage.ScoredMemoryID{ID: m.ID, Score: score})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}
	return scored, nil
}

func (s *Store) FullTextSearch(ctx context.Context, opts storage.SearchOptions) ([]storage.ScoredMemoryID, error) {
	opts.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []storage.ScoredMemoryID
	for _, m := range s.memories {
		if m.Workspace != opts.WorkspaceID || m.Status == types.StatusDeleted {
			continue
		}
		if m.Status == types.StatusArchived && !opts.IncludeArchived {
			continue
		}
		if !matchesSearchFilters(m, opts) {
			continue
		}
		if containsFold(m.Content, opts.Query) {
			scored = append(scored, storage.ScoredMemoryID{ID: m.ID, Score: 1.0})
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].ID < scored[j].ID })
	if len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}
	return scored, nil
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	h, n := []rune(haystack), []rune(needle)
	toLower := func(rs []rune) []rune {
		out := make([]rune, len(rs))
		for i, r := range rs {
			if r >= 'A' && r <= 'Z' {
				r = r - 'A' + 'a'
			}
			out[i] = r
		}
		return out
	}
	h, n = toLower(h), toLower(n)
	if len(n) > len(h) {
		return false
	}
	for i := 0; i+len(n) <= len(h); i++ {
		match := true
		for j := range n {
			if h[i+j] != n[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (s *Store) GetRecent(ctx context.Context, workspaceID string, limit int) ([]types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Memory
	for _, m := range s.memories {
		if m.Workspace == workspaceID && m.Status == types.StatusActive {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListForDecay(ctx context.Context, workspaceID string) ([]types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Memory
	for _, m := range s.memories {
		if m.Workspace == workspaceID && m.Status == types.StatusActive && !m.Pinned {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *Store) ApplyDecay(ctx context.Context, workspaceID string, updates map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, factor := range updates {
		if m, ok := s.memories[id]; ok && m.Workspace == workspaceID {
			m.DecayFactor = factor
		}
	}
	return nil
}

func (s *Store) Archive(ctx context.Context, workspaceID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if m, ok := s.memories[id]; ok && m.Workspace == workspaceID {
			m.Status = types.StatusArchived
			m.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

// --- AssociationStore ---

func (s *Store) CreateAssociation(ctx context.Context, assoc *types.Association) error {
	if assoc == nil || assoc.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.associations {
		if a.ID != assoc.ID && a.WorkspaceID == assoc.WorkspaceID &&
			a.SourceID == assoc.SourceID && a.TargetID == assoc.TargetID &&
			a.Relationship == assoc.Relationship {
			return storage.ErrAlreadyExists
		}
	}
	cp := *assoc
	s.associations[assoc.ID] = &cp
	return nil
}

func (s *Store) GetAssociations(ctx context.Context, workspaceID, memoryID string, direction types.Direction) ([]types.Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Association
	for _, a := range s.associations {
		if a.WorkspaceID != workspaceID {
			continue
		}
		switch direction {
		case types.DirectionOutgoing:
			if a.SourceID == memoryID {
				out = append(out, *a)
			}
		case types.DirectionIncoming:
			if a.TargetID == memoryID {
				out = append(out, *a)
			}
		default:
			if a.SourceID == memoryID || a.TargetID == memoryID {
				out = append(out, *a)
			}
		}
	}
	return out, nil
}

func (s *Store) DeleteAssociation(ctx context.Context, workspaceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.associations[id]
	if !ok || a.WorkspaceID != workspaceID {
		return storage.ErrNotFound
	}
	delete(s.associations, id)
	return nil
}

func (s *Store) AssociationExists(ctx context.Context, workspaceID, sourceID, targetID, relationship string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.associations {
		if a.WorkspaceID == workspaceID && a.SourceID == sourceID && a.TargetID == targetID && a.Relationship == relationship {
			return true, nil
		}
	}
	return false, nil
}

// --- WorkspaceStore ---

func (s *Store) GetWorkspace(ctx context.Context, tenantID, id string) (*types.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[wsKey(tenantID, id)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *Store) UpsertWorkspace(ctx context.Context, ws *types.Workspace) error {
	if ws == nil || ws.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ws
	s.workspaces[wsKey(ws.TenantID, ws.ID)] = &cp
	return nil
}

func (s *Store) ListWorkspaces(ctx context.Context, tenantID string) ([]types.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Workspace
	for _, w := range s.workspaces {
		if w.TenantID == tenantID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (s *Store) ListAllWorkspaces(ctx context.Context) ([]types.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Workspace, 0, len(s.workspaces))
	for _, w := range s.workspaces {
		out = append(out, *w)
	}
	return out, nil
}

func (s *Store) GetContext(ctx context.Context, workspaceID, id string) (*types.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[ctxKey(workspaceID, id)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) UpsertContext(ctx context.Context, c *types.Context) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.contexts[ctxKey(c.WorkspaceID, c.ID)] = &cp
	return nil
}

func (s *Store) ListContexts(ctx context.Context, workspaceID string) ([]types.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Context
	for _, c := range s.contexts {
		if c.WorkspaceID == workspaceID {
			out = append(out, *c)
		}
	}
	return out, nil
}

// --- SessionStore ---

func (s *Store) CreateSession(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) ListSessions(ctx context.Context, workspaceID string) ([]types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Session
	for _, sess := range s.sessions {
		if sess.WorkspaceID == workspaceID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *Store) UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	sess.ExpiresAt = expiresAt
	return nil
}

func (s *Store) CommitSession(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	sess.CommittedAt = &at
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.workingMemory, id)
	return nil
}

func (s *Store) ListExpiredSessions(ctx context.Context, now time.Time, limit int) ([]types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Session
	for _, sess := range s.sessions {
		if sess.IsExpired(now) {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, id)
			delete(s.workingMemory, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) SetWorkingMemory(ctx context.Context, wm *types.WorkingMemory) error {
	if wm == nil || wm.SessionID == "" || wm.Key == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workingMemory[wm.SessionID] == nil {
		s.workingMemory[wm.SessionID] = make(map[string]*types.WorkingMemory)
	}
	cp := *wm
	s.workingMemory[wm.SessionID][wm.Key] = &cp
	return nil
}

func (s *Store) GetWorkingMemory(ctx context.Context, sessionID, key string) (*types.WorkingMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKey, ok := s.workingMemory[sessionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	wm, ok := byKey[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *wm
	return &cp, nil
}

func (s *Store) ListWorkingMemory(ctx context.Context, sessionID string) ([]types.WorkingMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.WorkingMemory
	for _, wm := range s.workingMemory[sessionID] {
		out = append(out, *wm)
	}
	return out, nil
}

func (s *Store) DeleteWorkingMemory(ctx context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.workingMemory[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := byKey[key]; !ok {
		return storage.ErrNotFound
	}
	delete(byKey, key)
	return nil
}

// --- ContradictionStore ---

func (s *Store) CreateContradiction(ctx context.Context, c *types.ContradictionRecord) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.contradictions[c.ID] = &cp
	return nil
}

func (s *Store) GetUnresolvedContradictions(ctx context.Context, workspaceID string) ([]types.ContradictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ContradictionRecord
	for _, c := range s.contradictions {
		if c.WorkspaceID == workspaceID && c.IsUnresolved() {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *Store) ResolveContradiction(ctx context.Context, workspaceID, id string, resolution types.ContradictionResolution, mergedContent string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contradictions[id]
	if !ok || c.WorkspaceID != workspaceID {
		return storage.ErrNotFound
	}
	c.Resolution = resolution
	c.MergedContent = mergedContent
	c.ResolvedAt = &at
	return nil
}

var _ storage.Store = (*Store)(nil)
