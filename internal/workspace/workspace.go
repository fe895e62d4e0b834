// Package workspace manages tenant-scoped workspace/context namespacing:
// creation, lookup, and the reserved `_default`/`_global` workspaces and
// `_default` context every tenant must have on connect. It is a registry
// with get-or-create semantics, in the shape of "named workspaces sharing
// one already-open backend".
package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/memvault/memvault/internal/ontology"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Service provides workspace/context CRUD and reserved-namespace
// provisioning over storage.WorkspaceStore.
type Service struct {
	store storage.WorkspaceStore
}

// New builds a Service.
func New(store storage.WorkspaceStore) *Service {
	return &Service{store: store}
}

// CreateWorkspace creates (or idempotently re-upserts) a workspace with the
// given settings, auto-provisioning its `_default` context.
func (s *Service) CreateWorkspace(ctx context.Context, tenantID, id, name string, settings types.WorkspaceSettings) (*types.Workspace, error) {
	if id == "" {
		return nil, storage.ErrInvalidInput
	}
	now := time.Now()
	ws := &types.Workspace{
		TenantID:  tenantID,
		ID:        id,
		Name:      name,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.UpsertWorkspace(ctx, ws); err != nil {
		return nil, fmt.Errorf("workspace: create %s/%s: %w", tenantID, id, err)
	}
	if err := s.ensureDefaultContext(ctx, id); err != nil {
		return nil, err
	}
	return ws, nil
}

// GetWorkspace fetches a workspace by (tenant, id).
func (s *Service) GetWorkspace(ctx context.Context, tenantID, id string) (*types.Workspace, error) {
	return s.store.GetWorkspace(ctx, tenantID, id)
}

// ListWorkspaces lists every workspace for a tenant.
func (s *Service) ListWorkspaces(ctx context.Context, tenantID string) ([]types.Workspace, error) {
	return s.store.ListWorkspaces(ctx, tenantID)
}

// UpdateSettings replaces an existing workspace's settings with the given
// ones; fields are not merged with the previous settings.
func (s *Service) UpdateSettings(ctx context.Context, tenantID, id string, settings types.WorkspaceSettings) (*types.Workspace, error) {
	ws, err := s.store.GetWorkspace(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	ws.Settings = settings
	ws.UpdatedAt = time.Now()
	if err := s.store.UpsertWorkspace(ctx, ws); err != nil {
		return nil, fmt.Errorf("workspace: update settings %s/%s: %w", tenantID, id, err)
	}
	return ws, nil
}

// GetContext fetches a context within a workspace.
func (s *Service) GetContext(ctx context.Context, workspaceID, id string) (*types.Context, error) {
	return s.store.GetContext(ctx, workspaceID, id)
}

// CreateContext creates a context within a workspace. Name must be
// non-empty, matching the invariant that `(workspace_id, name)` is unique
// and meaningful.
func (s *Service) CreateContext(ctx context.Context, workspaceID, id, name string) (*types.Context, error) {
	if id == "" || name == "" {
		return nil, storage.ErrInvalidInput
	}
	now := time.Now()
	c := &types.Context{WorkspaceID: workspaceID, ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.store.UpsertContext(ctx, c); err != nil {
		return nil, fmt.Errorf("workspace: create context %s/%s: %w", workspaceID, id, err)
	}
	return c, nil
}

// ListContexts lists every context in a workspace.
func (s *Service) ListContexts(ctx context.Context, workspaceID string) ([]types.Context, error) {
	return s.store.ListContexts(ctx, workspaceID)
}

func (s *Service) ensureDefaultContext(ctx context.Context, workspaceID string) error {
	if _, err := s.store.GetContext(ctx, workspaceID, types.DefaultContextID); err == nil {
		return nil
	} else if err != storage.ErrNotFound {
		return fmt.Errorf("workspace: check default context for %s: %w", workspaceID, err)
	}
	now := time.Now()
	c := &types.Context{WorkspaceID: workspaceID, ID: types.DefaultContextID, Name: "Default", CreatedAt: now, UpdatedAt: now}
	if err := s.store.UpsertContext(ctx, c); err != nil {
		return fmt.Errorf("workspace: provision default context for %s: %w", workspaceID, err)
	}
	return nil
}

// EnsureReserved provisions the reserved `_default` and `_global`
// workspaces for a tenant, and their `_default` contexts, if they don't
// already exist. Idempotent: existing workspaces (and their settings) are
// left untouched, so it is safe to run on every connect.
func (s *Service) EnsureReserved(ctx context.Context, tenantID string) error {
	for _, id := range []string{types.DefaultWorkspaceID, types.GlobalWorkspaceID} {
		if _, err := s.store.GetWorkspace(ctx, tenantID, id); err == nil {
			if ctxErr := s.ensureDefaultContext(ctx, id); ctxErr != nil {
				return ctxErr
			}
			continue
		} else if err != storage.ErrNotFound {
			return fmt.Errorf("workspace: check reserved workspace %s: %w", id, err)
		}
		if _, err := s.CreateWorkspace(ctx, tenantID, id, id, types.DefaultWorkspaceSettings()); err != nil {
			return fmt.Errorf("workspace: provision reserved workspace %s: %w", id, err)
		}
	}
	return nil
}

// relationshipCategories lists every category the ontology groups labels
// into, in the same order types.RelationshipCategory declares them.
var relationshipCategories = []types.RelationshipCategory{
	types.CategoryHierarchical, types.CategoryCausal, types.CategoryTemporal,
	types.CategorySimilarity, types.CategoryLearning, types.CategoryRefinement,
	types.CategoryReference, types.CategorySolution, types.CategoryContext,
	types.CategoryWorkflow, types.CategoryQuality,
}

// Describe returns the read-only schema introspection payload for a
// workspace: its own settings alongside the live set of memory types and
// the full relationship ontology, so callers can discover what labels and
// memory types are valid without hard-coding the closed
// vocabularies client-side.
func (s *Service) Describe(ctx context.Context, tenantID, workspaceID string) (*types.WorkspaceSchema, error) {
	ws, err := s.store.GetWorkspace(ctx, tenantID, workspaceID)
	if err != nil {
		return nil, err
	}
	byCategory := make(map[types.RelationshipCategory][]string, len(relationshipCategories))
	for _, cat := range relationshipCategories {
		if labels := ontology.GetRelationshipsByCategory(cat); len(labels) > 0 {
			byCategory[cat] = labels
		}
	}
	return &types.WorkspaceSchema{
		Workspace:               *ws,
		MemoryTypes:             types.ValidMemoryTypes,
		RelationshipLabels:      ontology.AllLabels(),
		RelationshipsByCategory: byCategory,
	}, nil
}
