package storage

import (
	"context"
	"time"

	"github.com/memvault/memvault/pkg/types"
)

// MemoryStore provides CRUD, search, and access-tracking operations over
// memories.
type MemoryStore interface {
	// Store creates or updates a memory (upsert semantics, keyed by ID).
	Store(ctx context.Context, memory *types.Memory) error

	// Get retrieves a memory by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, workspaceID, id string) (*types.Memory, error)

	// GetByID retrieves a memory by ID alone, without a workspace filter
	// (ids are globally unique within a store). Returns ErrNotFound if
	// absent.
	GetByID(ctx context.Context, id string) (*types.Memory, error)

	// GetByContentHash looks up a memory by its exact content hash within a
	// workspace, supporting SKIP-band deduplication. Returns ErrNotFound when
	// no exact match exists.
	GetByContentHash(ctx context.Context, workspaceID, contentHash string) (*types.Memory, error)

	// List retrieves memories with pagination and filtering.
	List(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Memory], error)

	// Delete soft-deletes a memory (sets status to deleted).
	Delete(ctx context.Context, workspaceID, id string) error

	// Purge hard-deletes a memory, permanently.
	Purge(ctx context.Context, workspaceID, id string) error

	// UpdateTiers sets the abstract/overview summary tiers.
	UpdateTiers(ctx context.Context, workspaceID, id, abstract, overview string) error

	// IncrementAccessCount atomically bumps access_count and
	// last_accessed_at. Returns ErrNotFound if the memory does not exist.
	IncrementAccessCount(ctx context.Context, workspaceID, id string) error

	// VectorSearch returns the closest memories to the query embedding by
	// cosine similarity, scoped to a workspace (and optionally a context),
	// highest similarity first.
	VectorSearch(ctx context.Context, opts SearchOptions) ([]ScoredMemoryID, error)

	// FullTextSearch returns memories matching the query text.
	FullTextSearch(ctx context.Context, opts SearchOptions) ([]ScoredMemoryID, error)

	// GetRecent returns the most recently created memories in a workspace,
	// newest first, used by briefing assembly.
	GetRecent(ctx context.Context, workspaceID string, limit int) ([]types.Memory, error)

	// ListForDecay returns active memories eligible for decay/archive
	// evaluation (age, access_count, importance thresholds applied by the
	// caller, not the query, so behavior stays testable independent of SQL).
	ListForDecay(ctx context.Context, workspaceID string) ([]types.Memory, error)

	// ApplyDecay persists a batch of decay_factor updates in one round-trip.
	ApplyDecay(ctx context.Context, workspaceID string, updates map[string]float64) error

	// Archive transitions a set of memories to archived status.
	Archive(ctx context.Context, workspaceID string, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// AssociationStore manages the directed, typed edges between memories.
type AssociationStore interface {
	CreateAssociation(ctx context.Context, assoc *types.Association) error
	GetAssociations(ctx context.Context, workspaceID, memoryID string, direction types.Direction) ([]types.Association, error)
	DeleteAssociation(ctx context.Context, workspaceID, id string) error
	// AssociationExists reports whether an edge already links source->target
	// with the given relationship, used to make auto-association idempotent.
	AssociationExists(ctx context.Context, workspaceID, sourceID, targetID, relationship string) (bool, error)
}

// WorkspaceStore manages workspace and context namespacing.
type WorkspaceStore interface {
	GetWorkspace(ctx context.Context, tenantID, id string) (*types.Workspace, error)
	UpsertWorkspace(ctx context.Context, ws *types.Workspace) error
	ListWorkspaces(ctx context.Context, tenantID string) ([]types.Workspace, error)
	// ListAllWorkspaces returns every workspace across every tenant, used by
	// decay_all_workspaces to sweep the whole deployment.
	ListAllWorkspaces(ctx context.Context) ([]types.Workspace, error)

	GetContext(ctx context.Context, workspaceID, id string) (*types.Context, error)
	UpsertContext(ctx context.Context, c *types.Context) error
	ListContexts(ctx context.Context, workspaceID string) ([]types.Context, error)
}

// SessionStore manages TTL-bounded sessions and their working memory.
type SessionStore interface {
	CreateSession(ctx context.Context, s *types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	ListSessions(ctx context.Context, workspaceID string) ([]types.Session, error)
	// UpdateSessionExpiry persists a new sliding-window expiry for touch_session.
	UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error
	CommitSession(ctx context.Context, id string, at time.Time) error
	// DeleteSession removes a single session (and its working memory)
	// regardless of expiry, used by the explicit delete_session operation.
	DeleteSession(ctx context.Context, id string) error
	// ListExpiredSessions returns up to limit sessions whose expiry has
	// already passed, across every workspace, used by the session cleanup
	// task to find candidates needing a pre-delete commit attempt.
	ListExpiredSessions(ctx context.Context, now time.Time, limit int) ([]types.Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)

	SetWorkingMemory(ctx context.Context, wm *types.WorkingMemory) error
	GetWorkingMemory(ctx context.Context, sessionID, key string) (*types.WorkingMemory, error)
	ListWorkingMemory(ctx context.Context, sessionID string) ([]types.WorkingMemory, error)
	DeleteWorkingMemory(ctx context.Context, sessionID, key string) error
}

// ContradictionStore manages detected inconsistencies between memories.
type ContradictionStore interface {
	CreateContradiction(ctx context.Context, c *types.ContradictionRecord) error
	GetUnresolvedContradictions(ctx context.Context, workspaceID string) ([]types.ContradictionRecord, error)
	ResolveContradiction(ctx context.Context, workspaceID, id string, resolution types.ContradictionResolution, mergedContent string, at time.Time) error
}

// Store is the full composite a caller depends on: every backend
// (sqlite, postgres, memdb) implements all of it.
type Store interface {
	MemoryStore
	AssociationStore
	WorkspaceStore
	SessionStore
	ContradictionStore
}
