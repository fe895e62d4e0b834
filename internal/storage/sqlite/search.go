package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/memvault/memvault/internal/embedding"
	"github.com/memvault/memvault/internal/storage"
)

// vectorSearchMaxCandidates caps how many embeddings are loaded into memory
// for a brute-force cosine scan (no vector index on sqlite, unlike
// postgres's ivfflat), newest first.
const vectorSearchMaxCandidates = 5000

// searchFilterSQL renders the type/subtype/tag predicates shared by vector
// and full-text search. col prefixes column names for queries that alias the
// memories table. Tags are stored as a JSON array of normalized strings, so
// a substring match on the quoted tag is exact.
func searchFilterSQL(opts storage.SearchOptions, col string) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}
	appendIn := func(column string, values []string) {
		sb.WriteString(" AND " + col + column + " IN (")
		for i, v := range values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			args = append(args, v)
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
		sb.WriteString(" AND " + col + "tags LIKE ?")
		args = append(args, `%"`+tag+`"%`)
	}
	return sb.String(), args
}

func (s *Store) VectorSearch(ctx context.Context, opts storage.SearchOptions) ([]storage.ScoredMemoryID, error) {
	opts.Normalize()

	query := "SELECT id, embedding FROM memories WHERE workspace_id = ? AND deleted_at IS NULL AND embedding IS NOT NULL"
	args := []interface{}{opts.WorkspaceID}
	if !opts.IncludeArchived {
		query += " AND status != 'archived'"
	}
	if opts.ContextID != "" {
		query += " AND context_id = ?"
		args = append(args, opts.ContextID)
	}
	filterSQL, filterArgs := searchFilterSQL(opts, "")
	query += filterSQL
	args = append(args, filterArgs...)
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, vectorSearchMaxCandidates)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: vector search: %w", err)
	}
	defer rows.Close()

	var scored []storage.ScoredMemoryID
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("sqlite: vector search scan: %w", err)
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

// FullTextSearch uses the memories_fts FTS5 virtual table kept in sync via
// triggers (schema.go). FTS5 rank is negative; more negative is a better
// match, so results are exposed as 1/(1+rank_distance) style scores by
// ordinal position to keep the returned score monotonic and bounded.
func (s *Store) FullTextSearch(ctx context.Context, opts storage.SearchOptions) ([]storage.ScoredMemoryID, error) {
	opts.Normalize()

	if strings.TrimSpace(opts.Query) == "" {
		return nil, nil
	}

	ftsQuery := sanitiseFTSQuery(opts.Query)

	query := `
		SELECT m.id
		FROM memories_fts fts
		JOIN memories m ON m.rowid = fts.rowid
		WHERE memories_fts MATCH ? AND m.workspace_id = ? AND m.deleted_at IS NULL
	`
	args := []interface{}{ftsQuery, opts.WorkspaceID}
	if !opts.IncludeArchived {
		query += " AND m.status != 'archived'"
	}
	if opts.ContextID != "" {
		query += " AND m.context_id = ?"
		args = append(args, opts.ContextID)
	}
	filterSQL, filterArgs := searchFilterSQL(opts, "m.")
	query += filterSQL
	args = append(args, filterArgs...)
	query += " ORDER BY rank LIMIT ?"
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: full text search MATCH %q: %w", opts.Query, err)
	}
	defer rows.Close()

	var scored []storage.ScoredMemoryID
	rank := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: full text search scan: %w", err)
		}
		rank++
		scored = append(scored, storage.ScoredMemoryID{ID: id, Score: 1.0 / float64(rank)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return scored, nil
}
