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

const memoryColumns = `
	id, tenant_id, workspace_id, context_id,
	content, content_hash,
	type, subtype, category,
	importance, decay_factor, access_count,
	abstract, overview,
	status, pinned,
	source_memory_id,
	tags, metadata, embedding,
	created_at, updated_at, last_accessed_at, deleted_at
`

func (s *Store) Store(ctx context.Context, memory *types.Memory) error {
	if memory == nil || memory.ID == "" {
		return storage.ErrInvalidInput
	}

	tagsJSON, err := marshalJSON(memory.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: marshal tags: %w", err)
	}
	metadataJSON, err := marshalJSON(memory.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}
	if memory.UpdatedAt.IsZero() {
		memory.UpdatedAt = time.Now()
	}
	if memory.Status == "" {
		memory.Status = types.StatusActive
	}

	var embeddingBlob []byte
	if memory.HasEmbedding() {
		embeddingBlob = packEmbedding(memory.Embedding)
	}

	query := fmt.Sprintf(`
		INSERT INTO memories (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			workspace_id = excluded.workspace_id,
			context_id = excluded.context_id,
			content = excluded.content,
			content_hash = excluded.content_hash,
			type = excluded.type,
			subtype = excluded.subtype,
			category = excluded.category,
			importance = excluded.importance,
			decay_factor = excluded.decay_factor,
			access_count = excluded.access_count,
			abstract = excluded.abstract,
			overview = excluded.overview,
			status = excluded.status,
			pinned = excluded.pinned,
			source_memory_id = excluded.source_memory_id,
			tags = excluded.tags,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at,
			last_accessed_at = excluded.last_accessed_at,
			deleted_at = excluded.deleted_at
	`, memoryColumns)

	_, err = s.db.ExecContext(ctx, query,
		memory.ID, memory.TenantID, memory.Workspace, memory.ContextID,
		memory.Content, memory.ContentHash,
		string(memory.Type), nullableString(string(memory.Subtype)), nullableString(memory.Category),
		memory.Importance, memory.DecayFactor, memory.AccessCount,
		nullableString(memory.Abstract), nullableString(memory.Overview),
		string(memory.Status), boolToInt(memory.Pinned),
		nullableString(memory.SourceMemoryID),
		tagsJSON, metadataJSON, embeddingBlob,
		memory.CreatedAt, memory.UpdatedAt, nullableTime(memory.LastAccessedAt), nullableTime(memory.DeletedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") && strings.Contains(err.Error(), "content_hash") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("sqlite: store memory: %w", err)
	}
	return nil
}

func scanMemory(scanner interface {
	Scan(dest ...interface{}) error
}) (*types.Memory, error) {
	var m types.Memory
	var subtype, category, abstract, overview, sourceMemoryID sql.NullString
	var tagsJSON, metadataJSON sql.NullString
	var embeddingBlob []byte
	var lastAccessedAt, deletedAt sql.NullTime
	var pinned int

	err := scanner.Scan(
		&m.ID, &m.TenantID, &m.Workspace, &m.ContextID,
		&m.Content, &m.ContentHash,
		&m.Type, &subtype, &category,
		&m.Importance, &m.DecayFactor, &m.AccessCount,
		&abstract, &overview,
		&m.Status, &pinned,
		&sourceMemoryID,
		&tagsJSON, &metadataJSON, &embeddingBlob,
		&m.CreatedAt, &m.UpdatedAt, &lastAccessedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Subtype = types.MemorySubtype(subtype.String)
	m.Category = category.String
	m.Abstract = abstract.String
	m.Overview = overview.String
	m.Pinned = pinned != 0
	m.SourceMemoryID = sourceMemoryID.String

	if err := unmarshalJSON(tagsJSON, &m.Tags); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal tags: %w", err)
	}
	if err := unmarshalJSON(metadataJSON, &m.Metadata); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal metadata: %w", err)
	}
	vec, err := unpackEmbedding(embeddingBlob)
	if err != nil {
		return nil, err
	}
	m.Embedding = vec

	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		m.LastAccessedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		m.DeletedAt = &t
	}

	return &m, nil
}

func (s *Store) Get(ctx context.Context, workspaceID, id string) (*types.Memory, error) {
	query := fmt.Sprintf("SELECT %s FROM memories WHERE id = ? AND workspace_id = ? AND deleted_at IS NULL", memoryColumns)
	row := s.db.QueryRowContext(ctx, query, id, workspaceID)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memory: %w", err)
	}
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*types.Memory, error) {
	query := fmt.Sprintf("SELECT %s FROM memories WHERE id = ? AND deleted_at IS NULL", memoryColumns)
	row := s.db.QueryRowContext(ctx, query, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memory by id: %w", err)
	}
	return m, nil
}

func (s *Store) GetByContentHash(ctx context.Context, workspaceID, contentHash string) (*types.Memory, error) {
	query := fmt.Sprintf("SELECT %s FROM memories WHERE workspace_id = ? AND content_hash = ? AND deleted_at IS NULL LIMIT 1", memoryColumns)
	row := s.db.QueryRowContext(ctx, query, workspaceID, contentHash)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memory by hash: %w", err)
	}
	return m, nil
}

func (s *Store) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	var conditions []string
	var args []interface{}

	if opts.WorkspaceID != "" {
		conditions = append(conditions, "workspace_id = ?")
		args = append(args, opts.WorkspaceID)
	}
	if opts.ContextID != "" {
		conditions = append(conditions, "context_id = ?")
		args = append(args, opts.ContextID)
	}
	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.Type)
	}
	if opts.Subtype != "" {
		conditions = append(conditions, "subtype = ?")
		args = append(args, opts.Subtype)
	}
	if opts.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, opts.Status)
	}
	if opts.Pinned != nil {
		conditions = append(conditions, "pinned = ?")
		args = append(args, boolToInt(*opts.Pinned))
	}
	if !opts.CreatedAfter.IsZero() {
		conditions = append(conditions, "created_at > ?")
		args = append(args, opts.CreatedAfter)
	}
	if !opts.CreatedBefore.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, opts.CreatedBefore)
	}
	if !opts.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s FROM memories%s ORDER BY %s %s LIMIT ? OFFSET ?",
		memoryColumns, whereClause, opts.SortBy, opts.SortOrder)
	queryArgs := append(append([]interface{}{}, args...), opts.Limit, opts.Offset())

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list memories: %w", err)
	}
	defer rows.Close()

	var items []types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan memory: %w", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate memories: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM memories" + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: count memories: %w", err)
	}

	return &storage.PaginatedResult[types.Memory]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(items) < total,
	}, nil
}

func (s *Store) Delete(ctx context.Context, workspaceID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE memories SET status = ?, deleted_at = ? WHERE id = ? AND workspace_id = ? AND deleted_at IS NULL",
		string(types.StatusDeleted), time.Now(), id, workspaceID,
	)
	return rowsAffectedOrNotFound(result, err, "sqlite: delete memory")
}

func (s *Store) Purge(ctx context.Context, workspaceID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ? AND workspace_id = ?", id, workspaceID)
	return rowsAffectedOrNotFound(result, err, "sqlite: purge memory")
}

func (s *Store) UpdateTiers(ctx context.Context, workspaceID, id, abstract, overview string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE memories SET abstract = ?, overview = ?, updated_at = ? WHERE id = ? AND workspace_id = ?",
		nullableString(abstract), nullableString(overview), time.Now(), id, workspaceID,
	)
	return rowsAffectedOrNotFound(result, err, "sqlite: update tiers")
}

func (s *Store) IncrementAccessCount(ctx context.Context, workspaceID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ? AND workspace_id = ? AND deleted_at IS NULL",
		time.Now(), id, workspaceID,
	)
	return rowsAffectedOrNotFound(result, err, "sqlite: increment access count")
}

func (s *Store) GetRecent(ctx context.Context, workspaceID string, limit int) ([]types.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM memories WHERE workspace_id = ? AND status = ? AND deleted_at IS NULL ORDER BY created_at DESC LIMIT ?", memoryColumns)
	rows, err := s.db.QueryContext(ctx, query, workspaceID, string(types.StatusActive), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get recent: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *Store) ListForDecay(ctx context.Context, workspaceID string) ([]types.Memory, error) {
	query := fmt.Sprintf("SELECT %s FROM memories WHERE workspace_id = ? AND status = ? AND pinned = 0 AND deleted_at IS NULL", memoryColumns)
	rows, err := s.db.QueryContext(ctx, query, workspaceID, string(types.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list for decay: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func scanMemories(rows *sql.Rows) ([]types.Memory, error) {
	var out []types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan memory: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ApplyDecay(ctx context.Context, workspaceID string, updates map[string]float64) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: apply decay begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE memories SET decay_factor = ? WHERE id = ? AND workspace_id = ?")
	if err != nil {
		return fmt.Errorf("sqlite: apply decay prepare: %w", err)
	}
	defer stmt.Close()

	for id, factor := range updates {
		if _, err := stmt.ExecContext(ctx, factor, id, workspaceID); err != nil {
			return fmt.Errorf("sqlite: apply decay exec: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Archive(ctx context.Context, workspaceID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, string(types.StatusArchived), time.Now())
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, workspaceID)

	query := fmt.Sprintf("UPDATE memories SET status = ?, updated_at = ? WHERE id IN (%s) AND workspace_id = ?", placeholders)
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: archive memories: %w", err)
	}
	return nil
}

func rowsAffectedOrNotFound(result sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
