package postgres

// Schema is applied on connect; every statement is idempotent so repeated
// connects against an already-migrated database are safe.
const Schema = `
CREATE TABLE IF NOT EXISTS workspaces (
	tenant_id  TEXT NOT NULL,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL,
	settings   JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS contexts (
	workspace_id TEXT NOT NULL,
	id           TEXT NOT NULL,
	name         TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (workspace_id, id)
);

CREATE TABLE IF NOT EXISTS memories (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	workspace_id     TEXT NOT NULL,
	context_id       TEXT NOT NULL DEFAULT '',

	content          TEXT NOT NULL,
	content_hash     TEXT NOT NULL DEFAULT '',

	type             TEXT NOT NULL,
	subtype          TEXT,
	category         TEXT,

	importance       DOUBLE PRECISION NOT NULL DEFAULT 0,
	decay_factor     DOUBLE PRECISION NOT NULL DEFAULT 1,
	access_count     INTEGER NOT NULL DEFAULT 0,

	abstract         TEXT,
	overview         TEXT,

	status           TEXT NOT NULL DEFAULT 'active',
	pinned           BOOLEAN NOT NULL DEFAULT FALSE,

	source_memory_id TEXT,

	tags             JSONB,
	metadata         JSONB,
	embedding        BYTEA,
	content_tsv      TSVECTOR,

	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	last_accessed_at TIMESTAMPTZ,
	deleted_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_memories_workspace_deleted ON memories (workspace_id, deleted_at);
CREATE INDEX IF NOT EXISTS idx_memories_context ON memories (context_id);
CREATE UNIQUE INDEX IF NOT EXISTS uniq_memories_content_hash ON memories (workspace_id, content_hash) WHERE deleted_at IS NULL AND content_hash != '';
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories (workspace_id, created_at);
CREATE INDEX IF NOT EXISTS idx_memories_tsv ON memories USING GIN (content_tsv);

CREATE OR REPLACE FUNCTION memories_tsv_trigger() RETURNS trigger AS $$
BEGIN
	NEW.content_tsv := to_tsvector('english', COALESCE(NEW.content, ''));
	RETURN NEW;
END
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS memories_tsv_update ON memories;
CREATE TRIGGER memories_tsv_update BEFORE INSERT OR UPDATE OF content ON memories
	FOR EACH ROW EXECUTE FUNCTION memories_tsv_trigger();

CREATE TABLE IF NOT EXISTS associations (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	relationship TEXT NOT NULL,
	strength     DOUBLE PRECISION NOT NULL DEFAULT 0,
	metadata     JSONB,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_associations_edge ON associations (workspace_id, source_id, target_id, relationship);
CREATE INDEX IF NOT EXISTS idx_associations_source ON associations (workspace_id, source_id);
CREATE INDEX IF NOT EXISTS idx_associations_target ON associations (workspace_id, target_id);

CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	context_id   TEXT NOT NULL,
	auto_commit  BOOLEAN NOT NULL DEFAULT FALSE,
	committed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL,
	metadata     JSONB
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at);

CREATE TABLE IF NOT EXISTS working_memory (
	session_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS contradictions (
	id                 TEXT PRIMARY KEY,
	workspace_id       TEXT NOT NULL,
	memory_a_id        TEXT NOT NULL,
	memory_b_id        TEXT NOT NULL,
	contradiction_type TEXT NOT NULL,
	confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
	detection_method   TEXT NOT NULL DEFAULT '',
	detected_at        TIMESTAMPTZ NOT NULL,
	resolved_at        TIMESTAMPTZ,
	resolution         TEXT,
	merged_content     TEXT
);

CREATE INDEX IF NOT EXISTS idx_contradictions_unresolved ON contradictions (workspace_id, resolved_at);
`

// MigrationPgvector adds a native vector column once the pgvector extension
// is confirmed available, so a server without the extension still gets
// the rest of the schema.
const MigrationPgvector = `
ALTER TABLE memories ADD COLUMN IF NOT EXISTS embedding_vec vector;
CREATE INDEX IF NOT EXISTS idx_memories_embedding_vec_cosine ON memories
	USING ivfflat (embedding_vec vector_cosine_ops) WITH (lists = 100);
`
