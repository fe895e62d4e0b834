package sqlite

// Schema is the full SQLite DDL for the engine's domain model:
// workspaces/contexts/memories/associations/sessions/working_memory/
// contradictions, plus the memories_fts virtual table and its sync
// triggers.
const Schema = `
CREATE TABLE IF NOT EXISTS workspaces (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	settings TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS contexts (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (workspace_id, id)
);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	context_id TEXT NOT NULL,

	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,

	type TEXT NOT NULL,
	subtype TEXT,
	category TEXT,

	importance REAL NOT NULL DEFAULT 0.5,
	decay_factor REAL NOT NULL DEFAULT 1.0,
	access_count INTEGER NOT NULL DEFAULT 0,

	abstract TEXT,
	overview TEXT,

	status TEXT NOT NULL DEFAULT 'active',
	pinned INTEGER NOT NULL DEFAULT 0,

	source_memory_id TEXT,

	tags TEXT,
	metadata TEXT,

	embedding BLOB,

	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP,
	deleted_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memories_workspace ON memories(workspace_id, deleted_at);
CREATE INDEX IF NOT EXISTS idx_memories_context ON memories(context_id);
CREATE UNIQUE INDEX IF NOT EXISTS uniq_memories_hash ON memories(workspace_id, content_hash) WHERE deleted_at IS NULL AND content_hash != '';
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(workspace_id, created_at);

CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	content,
	content='memories',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memories_fts_insert AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_delete AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_update AFTER UPDATE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
	INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TABLE IF NOT EXISTS associations (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	relationship TEXT NOT NULL,
	strength REAL NOT NULL DEFAULT 1.0,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_associations_edge ON associations(workspace_id, source_id, target_id, relationship);
CREATE INDEX IF NOT EXISTS idx_associations_source ON associations(workspace_id, source_id);
CREATE INDEX IF NOT EXISTS idx_associations_target ON associations(workspace_id, target_id);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	context_id TEXT NOT NULL,
	auto_commit INTEGER NOT NULL DEFAULT 0,
	committed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS working_memory (
	session_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	expires_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS contradictions (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	memory_a_id TEXT NOT NULL,
	memory_b_id TEXT NOT NULL,
	contradiction_type TEXT NOT NULL,
	confidence REAL NOT NULL,
	detection_method TEXT,
	detected_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP,
	resolution TEXT,
	merged_content TEXT
);

CREATE INDEX IF NOT EXISTS idx_contradictions_workspace ON contradictions(workspace_id, resolved_at);
`
