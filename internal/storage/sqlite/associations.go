package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

func (s *Store) CreateAssociation(ctx context.Context, assoc *types.Association) error {
	if assoc == nil || assoc.ID == "" {
		return storage.ErrInvalidInput
	}
	metadataJSON, err := marshalJSON(assoc.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal association metadata: %w", err)
	}
	if assoc.CreatedAt.IsZero() {
		assoc.CreatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO associations (id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			strength = excluded.strength,
			metadata = excluded.metadata
	`, assoc.ID, assoc.WorkspaceID, assoc.SourceID, assoc.TargetID, assoc.Relationship, assoc.Strength, metadataJSON, assoc.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("sqlite: create association: %w", err)
	}
	return nil
}

func (s *Store) GetAssociations(ctx context.Context, workspaceID, memoryID string, direction types.Direction) ([]types.Association, error) {
	var query string
	switch direction {
	case types.DirectionOutgoing:
		query = "SELECT id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at FROM associations WHERE workspace_id = ? AND source_id = ?"
	case types.DirectionIncoming:
		query = "SELECT id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at FROM associations WHERE workspace_id = ? AND target_id = ?"
	default:
		query = "SELECT id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at FROM associations WHERE workspace_id = ? AND (source_id = ? OR target_id = ?)"
	}

	var args []interface{}
	if direction == types.DirectionBoth {
		args = []interface{}{workspaceID, memoryID, memoryID}
	} else {
		args = []interface{}{workspaceID, memoryID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get associations: %w", err)
	}
	defer rows.Close()

	var out []types.Association
	for rows.Next() {
		var a types.Association
		var metadataJSON sql.NullString
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.SourceID, &a.TargetID, &a.Relationship, &a.Strength, &metadataJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan association: %w", err)
		}
		if err := unmarshalJSON(metadataJSON, &a.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal association metadata: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAssociation(ctx context.Context, workspaceID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM associations WHERE id = ? AND workspace_id = ?", id, workspaceID)
	return rowsAffectedOrNotFound(result, err, "sqlite: delete association")
}

func (s *Store) AssociationExists(ctx context.Context, workspaceID, sourceID, targetID, relationship string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM associations WHERE workspace_id = ? AND source_id = ? AND target_id = ? AND relationship = ?",
		workspaceID, sourceID, targetID, relationship,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: association exists: %w", err)
	}
	return count > 0, nil
}
