package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

func (s *Store) CreateSession(ctx context.Context, sess *types.Session) error {
	if sess == nil || sess.ID == "" {
		return storage.ErrInvalidInput
	}
	metadataJSON, err := marshalJSON(sess.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal session metadata: %w", err)
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, tenant_id, workspace_id, context_id, auto_commit, committed_at, created_at, expires_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.TenantID, sess.WorkspaceID, sess.ContextID, boolToInt(sess.AutoCommit),
		nullableTime(sess.CommittedAt), sess.CreatedAt, sess.ExpiresAt, metadataJSON)
	if err != nil {
		return fmt.Errorf("sqlite: create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var sess types.Session
	var committedAt sql.NullTime
	var autoCommit int
	var metadataJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, tenant_id, workspace_id, context_id, auto_commit, committed_at, created_at, expires_at, metadata FROM sessions WHERE id = ?",
		id,
	).Scan(&sess.ID, &sess.TenantID, &sess.WorkspaceID, &sess.ContextID, &autoCommit, &committedAt, &sess.CreatedAt, &sess.ExpiresAt, &metadataJSON)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get session: %w", err)
	}
	sess.AutoCommit = autoCommit != 0
	if committedAt.Valid {
		t := committedAt.Time
		sess.CommittedAt = &t
	}
	if err := unmarshalJSON(metadataJSON, &sess.Metadata); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal session metadata: %w", err)
	}
	return &sess, nil
}

func (s *Store) ListSessions(ctx context.Context, workspaceID string) ([]types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, tenant_id, workspace_id, context_id, auto_commit, committed_at, created_at, expires_at, metadata FROM sessions WHERE workspace_id = ?",
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer rows.Close()

	var out []types.Session
	for rows.Next() {
		var sess types.Session
		var committedAt sql.NullTime
		var autoCommit int
		var metadataJSON sql.NullString
		if err := rows.Scan(&sess.ID, &sess.TenantID, &sess.WorkspaceID, &sess.ContextID, &autoCommit,
			&committedAt, &sess.CreatedAt, &sess.ExpiresAt, &metadataJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		sess.AutoCommit = autoCommit != 0
		if committedAt.Valid {
			t := committedAt.Time
			sess.CommittedAt = &t
		}
		if err := unmarshalJSON(metadataJSON, &sess.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal session metadata: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) ListExpiredSessions(ctx context.Context, now time.Time, limit int) ([]types.Session, error) {
	query := "SELECT id, tenant_id, workspace_id, context_id, auto_commit, committed_at, created_at, expires_at, metadata FROM sessions WHERE expires_at < ? ORDER BY expires_at ASC"
	args := []interface{}{now}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list expired sessions: %w", err)
	}
	defer rows.Close()

	var out []types.Session
	for rows.Next() {
		var sess types.Session
		var committedAt sql.NullTime
		var autoCommit int
		var metadataJSON sql.NullString
		if err := rows.Scan(&sess.ID, &sess.TenantID, &sess.WorkspaceID, &sess.ContextID, &autoCommit,
			&committedAt, &sess.CreatedAt, &sess.ExpiresAt, &metadataJSON); err != nil {
			return nil, fmt.Errorf("sqlite: scan expired session: %w", err)
		}
		sess.AutoCommit = autoCommit != 0
		if committedAt.Valid {
			t := committedAt.Time
			sess.CommittedAt = &t
		}
		if err := unmarshalJSON(metadataJSON, &sess.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal session metadata: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	result, err := s.db.ExecContext(ctx, "UPDATE sessions SET expires_at = ? WHERE id = ?", expiresAt, id)
	return rowsAffectedOrNotFound(result, err, "sqlite: update session expiry")
}

func (s *Store) CommitSession(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, "UPDATE sessions SET committed_at = ? WHERE id = ?", at, id)
	return rowsAffectedOrNotFound(result, err, "sqlite: commit session")
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: delete session begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM working_memory WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete session working memory: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err := rowsAffectedOrNotFound(result, err, "sqlite: delete session"); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete expired sessions begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id FROM sessions WHERE expires_at < ?", now)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete expired sessions select: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM working_memory WHERE session_id = ?", id); err != nil {
			return 0, fmt.Errorf("sqlite: delete expired working memory: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("sqlite: delete expired session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: delete expired sessions commit: %w", err)
	}
	return len(ids), nil
}

func (s *Store) SetWorkingMemory(ctx context.Context, wm *types.WorkingMemory) error {
	if wm == nil || wm.SessionID == "" || wm.Key == "" {
		return storage.ErrInvalidInput
	}
	now := time.Now()
	if wm.CreatedAt.IsZero() {
		wm.CreatedAt = now
	}
	wm.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO working_memory (session_id, key, value, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, wm.SessionID, wm.Key, wm.Value, nullableTime(wm.ExpiresAt), wm.CreatedAt, wm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: set working memory: %w", err)
	}
	return nil
}

func (s *Store) GetWorkingMemory(ctx context.Context, sessionID, key string) (*types.WorkingMemory, error) {
	var wm types.WorkingMemory
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, key, value, expires_at, created_at, updated_at FROM working_memory WHERE session_id = ? AND key = ?",
		sessionID, key,
	).Scan(&wm.SessionID, &wm.Key, &wm.Value, &expiresAt, &wm.CreatedAt, &wm.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get working memory: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		wm.ExpiresAt = &t
	}
	return &wm, nil
}

func (s *Store) ListWorkingMemory(ctx context.Context, sessionID string) ([]types.WorkingMemory, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, key, value, expires_at, created_at, updated_at FROM working_memory WHERE session_id = ?", sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list working memory: %w", err)
	}
	defer rows.Close()

	var out []types.WorkingMemory
	for rows.Next() {
		var wm types.WorkingMemory
		var expiresAt sql.NullTime
		if err := rows.Scan(&wm.SessionID, &wm.Key, &wm.Value, &expiresAt, &wm.CreatedAt, &wm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan working memory: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			wm.ExpiresAt = &t
		}
		out = append(out, wm)
	}
	return out, rows.Err()
}

func (s *Store) DeleteWorkingMemory(ctx context.Context, sessionID, key string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM working_memory WHERE session_id = ? AND key = ?", sessionID, key)
	return rowsAffectedOrNotFound(result, err, "sqlite: delete working memory")
}
