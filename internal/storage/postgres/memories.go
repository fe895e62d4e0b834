package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

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
		return fmt.Errorf("postgres: marshal tags: %w", err)
	}
	metadataJSON, err := marshalJSON(memory.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata: %w", err)
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

	const query = `
		INSERT INTO memories (` + memoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
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
	`

	_, err = s.db.ExecContext(ctx, query,
		memory.ID, memory.TenantID, memory.Workspace, memory.ContextID,
		memory.Content, memory.ContentHash,
		string(memory.Type), nullableString(string(memory.Subtype)), nullableString(memory.Category),
		memory.Importance, memory.DecayFactor, memory.AccessCount,
		nullableString(memory.Abstract), nullableString(memory.Overview),
		string(memory.Status), memory.Pinned,
		nullableString(memory.SourceMemoryID),
		tagsJSON, metadataJSON, embeddingBlob,
		memory.CreatedAt, memory.UpdatedAt, nullableTime(memory.LastAccessedAt), nullableTime(memory.DeletedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value") && strings.Contains(err.Error(), "content_hash") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: store memory: %w", err)
	}

	if s.pgvectorAvailable && memory.HasEmbedding() {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE memories SET embedding_vec = $1 WHERE id = $2",
			pgvector.NewVector(memory.Embedding), memory.ID,
		); err != nil {
			return fmt.Errorf("postgres: store embedding_vec: %w", err)
		}
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
	var pinned bool

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
	m.Pinned = pinned
	m.SourceMemoryID = sourceMemoryID.String

	if err := unmarshalJSON(tagsJSON, &m.Tags); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal tags: %w", err)
	}
	if err := unmarshalJSON(metadataJSON, &m.Metadata); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal metadata: %w", err)
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
	query := "SELECT " + memoryColumns + " FROM memories WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL"
	row := s.db.QueryRowContext(ctx, query, id, workspaceID)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get memory: %w", err)
	}
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*types.Memory, error) {
	query := "SELECT " + memoryColumns + " FROM memories WHERE id = $1 AND deleted_at IS NULL"
	row := s.db.QueryRowContext(ctx, query, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get memory by id: %w", err)
	}
	return m, nil
}

func (s *Store) GetByContentHash(ctx context.Context, workspaceID, contentHash string) (*types.Memory, error) {
	query := "SELECT " + memoryColumns + " FROM memories WHERE workspace_id = $1 AND content_hash = $2 AND deleted_at IS NULL LIMIT 1"
	row := s.db.QueryRowContext(ctx, query, workspaceID, contentHash)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get memory by hash: %w", err)
	}
	return m, nil
}

func (s *Store) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if opts.WorkspaceID != "" {
		conditions = append(conditions, "workspace_id = "+arg(opts.WorkspaceID))
	}
	if opts.ContextID != "" {
		conditions = append(conditions, "context_id = "+arg(opts.ContextID))
	}
	if opts.Type != "" {
		conditions = append(conditions, "type = "+arg(opts.Type))
	}
	if opts.Subtype != "" {
		conditions = append(conditions, "subtype = "+arg(opts.Subtype))
	}
	if opts.Status != "" {
		conditions = append(conditions, "status = "+arg(opts.Status))
	}
	if opts.Pinned != nil {
		conditions = append(conditions, "pinned = "+arg(*opts.Pinned))
	}
	if !opts.CreatedAfter.IsZero() {
		conditions = append(conditions, "created_at > "+arg(opts.CreatedAfter))
	}
	if !opts.CreatedBefore.IsZero() {
		conditions = append(conditions, "created_at < "+arg(opts.CreatedBefore))
	}
	if !opts.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}
	countArgs := append([]interface{}{}, args...)

	limitPlaceholder := arg(opts.Limit)
	offsetPlaceholder := arg(opts.Offset())

	query := fmt.Sprintf("SELECT %s FROM memories%s ORDER BY %s %s LIMIT %s OFFSET %s",
		memoryColumns, whereClause, opts.SortBy, opts.SortOrder, limitPlaceholder, offsetPlaceholder)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list memories: %w", err)
	}
	defer rows.Close()

	var items []types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan memory: %w", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate memories: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM memories" + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: count memories: %w", err)
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
		"UPDATE memories SET status = $1, deleted_at = $2 WHERE id = $3 AND workspace_id = $4 AND deleted_at IS NULL",
		string(types.StatusDeleted), time.Now(), id, workspaceID,
	)
	return rowsAffectedOrNotFound(result, err, "postgres: delete memory")
}

func (s *Store) Purge(ctx context.Context, workspaceID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = $1 AND workspace_id = $2", id, workspaceID)
	return rowsAffectedOrNotFound(result, err, "postgres: purge memory")
}

func (s *Store) UpdateTiers(ctx context.Context, workspaceID, id, abstract, overview string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE memories SET abstract = $1, overview = $2, updated_at = $3 WHERE id = $4 AND workspace_id = $5",
		nullableString(abstract), nullableString(overview), time.Now(), id, workspaceID,
	)
	return rowsAffectedOrNotFound(result, err, "postgres: update tiers")
}

func (s *Store) IncrementAccessCount(ctx context.Context, workspaceID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE memories SET access_count = access_count + 1, last_accessed_at = $1 WHERE id = $2 AND workspace_id = $3 AND deleted_at IS NULL",
		time.Now(), id, workspaceID,
	)
	return rowsAffectedOrNotFound(result, err, "postgres: increment access count")
}

func (s *Store) GetRecent(ctx context.Context, workspaceID string, limit int) ([]types.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + memoryColumns + " FROM memories WHERE workspace_id = $1 AND status = $2 AND deleted_at IS NULL ORDER BY created_at DESC LIMIT $3"
	rows, err := s.db.QueryContext(ctx, query, workspaceID, string(types.StatusActive), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: get recent: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *Store) ListForDecay(ctx context.Context, workspaceID string) ([]types.Memory, error) {
	query := "SELECT " + memoryColumns + " FROM memories WHERE workspace_id = $1 AND status = $2 AND pinned = FALSE AND deleted_at IS NULL"
	rows, err := s.db.QueryContext(ctx, query, workspaceID, string(types.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("postgres: list for decay: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func scanMemories(rows *sql.Rows) ([]types.Memory, error) {
	var out []types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan memory: %w", err)
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
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "UPDATE memories SET decay_factor = $1 WHERE id = $2 AND workspace_id = $3")
		if err != nil {
			return fmt.Errorf("postgres: apply decay prepare: %w", err)
		}
		defer stmt.Close()

		for id, factor := range updates {
			if _, err := stmt.ExecContext(ctx, factor, id, workspaceID); err != nil {
				return fmt.Errorf("postgres: apply decay exec: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Archive(ctx context.Context, workspaceID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+3)
	args = append(args, string(types.StatusArchived), time.Now())
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+3)
		args = append(args, id)
	}
	args = append(args, workspaceID)

	query := fmt.Sprintf("UPDATE memories SET status = $1, updated_at = $2 WHERE id IN (%s) AND workspace_id = $%d",
		strings.Join(placeholders, ","), len(ids)+3)
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: archive memories: %w", err)
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
