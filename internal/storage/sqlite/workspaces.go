package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

func (s *Store) GetWorkspace(ctx context.Context, tenantID, id string) (*types.Workspace, error) {
	var w types.Workspace
	var settingsJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT tenant_id, id, name, settings, created_at, updated_at FROM workspaces WHERE tenant_id = ? AND id = ?",
		tenantID, id,
	).Scan(&w.TenantID, &w.ID, &w.Name, &settingsJSON, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get workspace: %w", err)
	}
	if err := unmarshalJSON(settingsJSON, &w.Settings); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal workspace settings: %w", err)
	}
	return &w, nil
}

func (s *Store) UpsertWorkspace(ctx context.Context, ws *types.Workspace) error {
	if ws == nil || ws.ID == "" {
		return storage.ErrInvalidInput
	}
	settingsJSON, err := marshalJSON(ws.Settings)
	if err != nil {
		return fmt.Errorf("sqlite: marshal workspace settings: %w", err)
	}
	now := time.Now()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = now
	}
	ws.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workspaces (tenant_id, id, name, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			settings = excluded.settings,
			updated_at = excluded.updated_at
	`, ws.TenantID, ws.ID, ws.Name, settingsJSON, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: upsert workspace: %w", err)
	}
	return nil
}

func (s *Store) ListWorkspaces(ctx context.Context, tenantID string) ([]types.Workspace, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tenant_id, id, name, settings, created_at, updated_at FROM workspaces WHERE tenant_id = ?", tenantID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list workspaces: %w", err)
	}
	defer rows.Close()
	return scanWorkspaceRows(rows)
}

func (s *Store) ListAllWorkspaces(ctx context.Context) ([]types.Workspace, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tenant_id, id, name, settings, created_at, updated_at FROM workspaces")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list all workspaces: %w", err)
	}
	defer rows.Close()
	return scanWorkspaceRows(rows)
}

func scanWorkspaceRows(rows *sql.Rows) ([]types.Workspace, error) {
	var out []types.Workspace
	for rows.Next() {
		var w types.Workspace
		var settingsJSON sql.NullString
		if err := rows.Scan(&w.TenantID, &w.ID, &w.Name, &settingsJSON, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan workspace: %w", err)
		}
		if err := unmarshalJSON(settingsJSON, &w.Settings); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal workspace settings: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) GetContext(ctx context.Context, workspaceID, id string) (*types.Context, error) {
	var c types.Context
	err := s.db.QueryRowContext(ctx,
		"SELECT workspace_id, id, name, created_at, updated_at FROM contexts WHERE workspace_id = ? AND id = ?",
		workspaceID, id,
	).Scan(&c.WorkspaceID, &c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get context: %w", err)
	}
	return &c, nil
}

func (s *Store) UpsertContext(ctx context.Context, c *types.Context) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contexts (workspace_id, id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at
	`, c.WorkspaceID, c.ID, c.Name, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: upsert context: %w", err)
	}
	return nil
}

func (s *Store) ListContexts(ctx context.Context, workspaceID string) ([]types.Context, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT workspace_id, id, name, created_at, updated_at FROM contexts WHERE workspace_id = ?", workspaceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list contexts: %w", err)
	}
	defer rows.Close()

	var out []types.Context
	for rows.Next() {
		var c types.Context
		if err := rows.Scan(&c.WorkspaceID, &c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan context: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
