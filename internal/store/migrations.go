package store

import (
	"database/sql"
	"fmt"

	"ainews/internal/logger"
)

// Migration is one versioned schema change. Statements run in order inside
// a single transaction; the version row is recorded on success.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

const schemaV1 = `
CREATE TABLE sources (
	id            TEXT PRIMARY KEY,
	config        TEXT NOT NULL,
	last_fetch_at TEXT,
	last_error    TEXT,
	error_count   INTEGER NOT NULL DEFAULT 0,
	enabled       INTEGER NOT NULL DEFAULT 1,
	created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);

CREATE TABLE items (
	id            TEXT PRIMARY KEY,
	source_id     TEXT NOT NULL REFERENCES sources(id),
	external_id   TEXT,
	url           TEXT NOT NULL,
	url_canonical TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL,
	content       TEXT,
	author        TEXT,
	published_at  TEXT NOT NULL,
	ingested_at   TEXT NOT NULL,
	category      TEXT NOT NULL,
	language      TEXT NOT NULL,
	metadata      TEXT,
	snapshot_path TEXT,
	UNIQUE(source_id, external_id)
);

CREATE INDEX idx_items_source    ON items(source_id, published_at DESC);
CREATE INDEX idx_items_category  ON items(category, published_at DESC);
CREATE INDEX idx_items_published ON items(published_at DESC);

CREATE TABLE metrics (
	item_id          TEXT PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
	score            REAL NOT NULL,
	score_authority  REAL,
	score_recency    REAL,
	score_popularity REAL,
	score_relevance  REAL,
	dup_penalty      REAL,
	cluster_id       TEXT,
	summary_json     TEXT,
	computed_at      TEXT
);

CREATE INDEX idx_metrics_score ON metrics(score DESC);

CREATE TABLE digests (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	date             TEXT NOT NULL,
	section          TEXT NOT NULL,
	content_markdown TEXT NOT NULL,
	content_json     TEXT NOT NULL,
	generated_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
	UNIQUE(date, section)
);

CREATE TABLE schema_version (
	version     INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);

CREATE VIRTUAL TABLE items_fts USING fts5(
	title,
	content,
	content='items',
	content_rowid='rowid',
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER items_fts_insert AFTER INSERT ON items BEGIN
	INSERT INTO items_fts(rowid, title, content)
	VALUES (new.rowid, new.title, coalesce(new.content, ''));
END;

CREATE TRIGGER items_fts_delete AFTER DELETE ON items BEGIN
	INSERT INTO items_fts(items_fts, rowid, title, content)
	VALUES ('delete', old.rowid, old.title, coalesce(old.content, ''));
END;

CREATE TRIGGER items_fts_update AFTER UPDATE ON items BEGIN
	INSERT INTO items_fts(items_fts, rowid, title, content)
	VALUES ('delete', old.rowid, old.title, coalesce(old.content, ''));
	INSERT INTO items_fts(rowid, title, content)
	VALUES (new.rowid, new.title, coalesce(new.content, ''));
END;
`

// migrations is the ordered migration log. Append only; never edit an
// applied version.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: sources, items, metrics, digests, FTS5, indexes",
		Statements:  []string{schemaV1},
	},
	{
		Version:     2,
		Description: "Add items.fetch_batch_id for tracking ingest runs",
		Statements: []string{
			"ALTER TABLE items ADD COLUMN fetch_batch_id TEXT;",
			"CREATE INDEX IF NOT EXISTS idx_items_batch ON items(fetch_batch_id);",
		},
	},
}

// currentVersion reads MAX(version) from schema_version. A missing table
// means a fresh database, i.e. version 0.
func currentVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to probe schema_version: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

// applyMigrations brings the database up to the latest schema version.
// Each pending migration runs in its own transaction; the whole call is
// idempotent. Returns the final version.
func applyMigrations(db *sql.DB) (int, error) {
	current, err := currentVersion(db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return current, &StorageError{Op: "migrate", Err: err}
		}
		if err := runMigration(tx, m); err != nil {
			_ = tx.Rollback()
			return current, fmt.Errorf("migration v%d (%s) failed: %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return current, &StorageError{Op: "migrate", Err: err}
		}

		current = m.Version
		applied++
		logger.Info("Applied migration", "version", m.Version, "description", m.Description)
	}

	if applied == 0 {
		logger.Debug("Schema up to date", "version", current)
	}
	return current, nil
}

func runMigration(tx *sql.Tx, m Migration) error {
	for _, stmt := range m.Statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := tx.Exec(
		"INSERT INTO schema_version (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	)
	return err
}
