package postgres

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/memvault/memvault/internal/embedding"
	"github.com/memvault/memvault/internal/storage"
)

// vectorSearchMaxCandidates bounds the brute-force fallback scan used when
// pgvector isn't installed on the target server, matching the sqlite
// backend's bound.
const vectorSearchMaxCandidates = 5000

// searchFilterSQL renders the type/subtype/tag predicates shared by every
// search path, numbering placeholders from len(args)+1 so it composes with
// whatever predicates the caller already bound. Tags live in a JSONB array
// of normalized strings, so @> containment is an exact per-tag match.
func searchFilterSQL(opts storage.SearchOptions, args []interface{}) (string, []interface{}) {
	var sb strings.Builder
	appendIn := func(column string, values []string) {
		sb.WriteString(" AND " + column + " IN (")
		for i, v := range values {
			if i > 0 {
				sb.WriteString(", ")
			}
			args = append(args, v)
			sb.WriteString("$" + strconv.Itoa(len(args)))
		}
		sb.WriteString(")")
	}
	if len(opts.Types) > 0 {
		appendIn("type", opts.Types)
	}
	if len(opts.Subtypes) > 0 {
		appendIn("subtype", opts.Subtypes)
	}
	for _, tag := range opts.Tags {
		args = append(args, `["`+tag+`"]`)
		sb.WriteString(" AND tags @> $" + strconv.Itoa(len(args)) + "::jsonb")
	}
	return sb.String(), args
}

func (s *Store) VectorSearch(ctx context.Context, opts storage.SearchOptions) ([]storage.ScoredMemoryID, error) {
	opts.Normalize()
	if s.pgvectorAvailable {
		return s.vectorSearchNative(ctx, opts)
	}
	return s.vectorSearchBruteForce(ctx, opts)
}

// vectorSearchNative uses the ivfflat index via pgvector's cosine distance
// operator (<=>).
func (s *Store) vectorSearchNative(ctx context.Context, opts storage.SearchOptions) ([]storage.ScoredMemoryID, error) {
	vec := pgvector.NewVector(opts.Embedding)

	query := "SELECT id, embedding_vec <=> $1 AS distance FROM memories WHERE embedding_vec IS NOT NULL AND deleted_at IS NULL AND workspace_id = $2"
	args := []interface{}{vec, opts.WorkspaceID}
	if !opts.IncludeArchived {
		query += " AND status != 'archived'"
	}
	if opts.ContextID != "" {
		query += " AND context_id = $3"
		args = append(args, opts.ContextID)
	}
	filterSQL, filteredArgs := searchFilterSQL(opts, args)
	query += filterSQL
	args = filteredArgs
	query += fmt.Sprintf(" ORDER BY distance ASC LIMIT $%d", len(args)+1)
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search: %w", err)
	}
	defer rows.Close()

	var scored []storage.ScoredMemoryID
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("postgres: vector search scan: %w", err)
		}
		scored = append(scored, storage.ScoredMemoryID{ID: id, Score: 1.0 - distance})
	}
	return scored, rows.Err()
}

// vectorSearchBruteForce mirrors the sqlite backend's Go-side cosine scan
// for servers without the pgvector extension.
func (s *Store) vectorSearchBruteForce(ctx context.Context, opts storage.SearchOptions) ([]storage.ScoredMemoryID, error) {
	query := "SELECT id, embedding FROM memories WHERE workspace_id = $1 AND deleted_at IS NULL AND embedding IS NOT NULL"
	args := []interface{}{opts.WorkspaceID}
	if !opts.IncludeArchived {
		query += " AND status != 'archived'"
	}
	if opts.ContextID != "" {
		query += " AND context_id = $2"
		args = append(args, opts.ContextID)
	}
	filterSQL, filteredArgs := searchFilterSQL(opts, args)
	query += filterSQL
	args = filteredArgs
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, vectorSearchMaxCandidates)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search (fallback): %w", err)
	}
	defer rows.Close()

	var scored []storage.ScoredMemoryID
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("postgres: vector search scan: %w", err)
		}
		vec, err := unpackEmbedding(blob)
		if err != nil {
			return nil, err
		}
		score := embedding.CosineSimilarity(opts.Embedding, vec)
		scored = append(scored, storage.ScoredMemoryID{ID: id, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}
	return scored, nil
}

// FullTextSearch uses PostgreSQL tsvector/plainto_tsquery matching, kept in
// sync via the content_tsv trigger in schema.go.
func (s *Store) FullTextSearch(ctx context.Context, opts storage.SearchOptions) ([]storage.ScoredMemoryID, error) {
	opts.Normalize()
	if strings.TrimSpace(opts.Query) == "" {
		return nil, nil
	}

	query := `
		SELECT id, ts_rank(content_tsv, plainto_tsquery('english', $1)) AS rank
		FROM memories
		WHERE content_tsv @@ plainto_tsquery('english', $1) AND workspace_id = $2 AND deleted_at IS NULL
	`
	args := []interface{}{opts.Query, opts.WorkspaceID}
	if !opts.IncludeArchived {
		query += " AND status != 'archived'"
	}
	if opts.ContextID != "" {
		query += " AND context_id = $" + strconv.Itoa(len(args)+1)
		args = append(args, opts.ContextID)
	}
	filterSQL, filteredArgs := searchFilterSQL(opts, args)
	query += filterSQL
	args = filteredArgs
	query += fmt.Sprintf(" ORDER BY rank DESC LIMIT $%d", len(args)+1)
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: full text search %q: %w", opts.Query, err)
	}
	defer rows.Close()

	var scored []storage.ScoredMemoryID
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("postgres: full text search scan: %w", err)
		}
		scored = append(scored, storage.ScoredMemoryID{ID: id, Score: rank})
	}
	return scored, rows.Err()
}
