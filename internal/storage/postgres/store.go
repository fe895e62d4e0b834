// Package postgres implements storage.Store on top of PostgreSQL, using
// lib/pq for the driver and pgvector-go for native vector search when the
// pgvector extension is available.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/memvault/memvault/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL. Vector search
// degrades gracefully to a Go-side cosine scan when the pgvector extension
// isn't installed on the target server.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

var _ storage.Store = (*Store)(nil)

// New opens a PostgreSQL connection pool, applies the base schema, and
// attempts to enable pgvector. A server without pgvector still gets
// full-text search and a brute-force vector fallback: degrade, don't fail
// outright.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{db: db}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available, vector search will use a brute-force fallback: %v", err)
		s.pgvectorAvailable = false
	} else {
		s.pgvectorAvailable = true
		if _, err := db.Exec(MigrationPgvector); err != nil {
			log.Printf("postgres: pgvector migration failed, vector search will use a brute-force fallback: %v", err)
			s.pgvectorAvailable = false
		}
	}

	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
