package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

func (s *Store) CreateContradiction(ctx context.Context, c *types.ContradictionRecord) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contradictions (id, workspace_id, memory_a_id, memory_b_id, contradiction_type, confidence, detection_method, detected_at, resolved_at, resolution, merged_content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.WorkspaceID, c.MemoryAID, c.MemoryBID, string(c.ContradictionType), c.Confidence, c.DetectionMethod,
		c.DetectedAt, nullableTime(c.ResolvedAt), nullableString(string(c.Resolution)), nullableString(c.MergedContent))
	if err != nil {
		return fmt.Errorf("sqlite: create contradiction: %w", err)
	}
	return nil
}

func (s *Store) GetUnresolvedContradictions(ctx context.Context, workspaceID string) ([]types.ContradictionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, memory_a_id, memory_b_id, contradiction_type, confidence, detection_method, detected_at, resolved_at, resolution, merged_content
		FROM contradictions
		WHERE workspace_id = ? AND resolved_at IS NULL
		ORDER BY detected_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get unresolved contradictions: %w", err)
	}
	defer rows.Close()

	var out []types.ContradictionRecord
	for rows.Next() {
		var c types.ContradictionRecord
		var contradictionType string
		var resolution sql.NullString
		var resolvedAt sql.NullTime
		var mergedContent sql.NullString
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.MemoryAID, &c.MemoryBID, &contradictionType, &c.Confidence,
			&c.DetectionMethod, &c.DetectedAt, &resolvedAt, &resolution, &mergedContent); err != nil {
			return nil, fmt.Errorf("sqlite: scan contradiction: %w", err)
		}
		c.ContradictionType = types.ContradictionType(contradictionType)
		if resolution.Valid {
			c.Resolution = types.ContradictionResolution(resolution.String)
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			c.ResolvedAt = &t
		}
		if mergedContent.Valid {
			c.MergedContent = mergedContent.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ResolveContradiction(ctx context.Context, workspaceID, id string, resolution types.ContradictionResolution, mergedContent string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contradictions SET resolved_at = ?, resolution = ?, merged_content = ?
		WHERE id = ? AND workspace_id = ?
	`, at, string(resolution), nullableString(mergedContent), id, workspaceID)
	return rowsAffectedOrNotFound(result, err, "sqlite: resolve contradiction")
}
