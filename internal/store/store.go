package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// schemaVersion is bumped on incompatible schema changes. Databases written
// by a different version are rejected, not migrated.
const schemaVersion = 1

// Store is the single-writer persistence handle.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open opens (or creates) the database at path. An in-memory store is
// created when path is empty. The database file is guarded by a sibling
// lock file so two processes never share a writer.
func Open(path string) (*Store, error) {
	var dsn string
	var fileLock *flock.Flock

	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		fileLock = flock.New(path + ".lock")
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire store lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("store at %s is locked by another process", path)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: the store serializes all access anyway and SQLite
	// prefers one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: path, lock: fileLock}
	if err := s.init(); err != nil {
		_ = db.Close()
		if fileLock != nil {
			_ = fileLock.Unlock()
		}
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := s.checkSchemaVersion(); err != nil {
		return err
	}
	return s.createSchema()
}

// checkSchemaVersion rejects databases written by an incompatible version.
func (s *Store) checkSchemaVersion() error {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("query schema: %w", err)
	}
	if count == 0 {
		return nil // fresh database
	}
	var version int
	if err := s.db.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("incompatible database schema version %d (want %d); rebuild the database", version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		root_path  TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS files (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id     TEXT NOT NULL REFERENCES projects(id),
		path           TEXT NOT NULL,
		abs_path       TEXT NOT NULL,
		line_count     INTEGER NOT NULL DEFAULT 0,
		mtime          TIMESTAMP,
		has_docstring  INTEGER NOT NULL DEFAULT 0,
		deleted        INTEGER NOT NULL DEFAULT 0,
		dataset_id     TEXT NOT NULL DEFAULT '',
		needs_chunking INTEGER NOT NULL DEFAULT 0,
		UNIQUE(project_id, path)
	);

	CREATE TABLE IF NOT EXISTS classes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		project_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		line       INTEGER NOT NULL,
		docstring  TEXT NOT NULL DEFAULT '',
		bases      TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_classes_name ON classes(name);
	CREATE INDEX IF NOT EXISTS idx_classes_file ON classes(file_id);

	CREATE TABLE IF NOT EXISTS functions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		project_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		line       INTEGER NOT NULL,
		args       TEXT NOT NULL DEFAULT '[]',
		docstring  TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(file_id);

	CREATE TABLE IF NOT EXISTS methods (
		id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		class_id               INTEGER NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		file_id                INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		project_id             TEXT NOT NULL,
		name                   TEXT NOT NULL,
		line                   INTEGER NOT NULL,
		args                   TEXT NOT NULL DEFAULT '[]',
		docstring              TEXT NOT NULL DEFAULT '',
		is_abstract            INTEGER NOT NULL DEFAULT 0,
		body_is_noop           INTEGER NOT NULL DEFAULT 0,
		raises_not_implemented INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_methods_class ON methods(class_id);
	CREATE INDEX IF NOT EXISTS idx_methods_file ON methods(file_id);

	CREATE TABLE IF NOT EXISTS imports (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		project_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		module     TEXT NOT NULL DEFAULT '',
		kind       TEXT NOT NULL,
		line       INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(file_id);

	CREATE TABLE IF NOT EXISTS usages (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id      INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		project_id   TEXT NOT NULL,
		line         INTEGER NOT NULL,
		kind         TEXT NOT NULL,
		target_name  TEXT NOT NULL,
		target_class TEXT NOT NULL DEFAULT '',
		context      TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_usages_target ON usages(target_name);
	CREATE INDEX IF NOT EXISTS idx_usages_file ON usages(file_id);

	CREATE TABLE IF NOT EXISTS code_content (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id     INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		project_id  TEXT NOT NULL,
		entity_kind TEXT NOT NULL,
		entity_name TEXT NOT NULL,
		entity_id   INTEGER NOT NULL DEFAULT 0,
		content     TEXT NOT NULL,
		docstring   TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_code_content_file ON code_content(file_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS code_content_fts USING fts5(
		entity_name, content, docstring,
		content='code_content', content_rowid='id'
	);
	CREATE TRIGGER IF NOT EXISTS code_content_ai AFTER INSERT ON code_content BEGIN
		INSERT INTO code_content_fts(rowid, entity_name, content, docstring)
		VALUES (new.id, new.entity_name, new.content, new.docstring);
	END;
	CREATE TRIGGER IF NOT EXISTS code_content_ad AFTER DELETE ON code_content BEGIN
		INSERT INTO code_content_fts(code_content_fts, rowid, entity_name, content, docstring)
		VALUES ('delete', old.id, old.entity_name, old.content, old.docstring);
	END;

	CREATE TABLE IF NOT EXISTS code_chunks (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		chunk_uuid       TEXT NOT NULL UNIQUE,
		file_id          INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		project_id       TEXT NOT NULL,
		class_id         INTEGER NOT NULL DEFAULT 0,
		function_id      INTEGER NOT NULL DEFAULT 0,
		method_id        INTEGER NOT NULL DEFAULT 0,
		line             INTEGER NOT NULL DEFAULT 0,
		node_type        TEXT NOT NULL DEFAULT '',
		source_type      TEXT NOT NULL,
		ordinal          INTEGER NOT NULL DEFAULT 0,
		text             TEXT NOT NULL,
		binding_level    INTEGER NOT NULL,
		embedding_model  TEXT,
		embedding_vector TEXT,
		vector_id        INTEGER,
		bm25_score       REAL,
		dataset_id       TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file ON code_chunks(file_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_project ON code_chunks(project_id, dataset_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_vector ON code_chunks(project_id, vector_id);

	CREATE TABLE IF NOT EXISTS issues (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id     INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		project_id  TEXT NOT NULL,
		class_id    INTEGER NOT NULL DEFAULT 0,
		method_id   INTEGER NOT NULL DEFAULT 0,
		function_id INTEGER NOT NULL DEFAULT 0,
		kind        TEXT NOT NULL,
		message     TEXT NOT NULL,
		line        INTEGER NOT NULL DEFAULT 0,
		metadata    TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_issues_file ON issues(file_id);

	CREATE TABLE IF NOT EXISTS ast_snapshots (
		file_id    INTEGER PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
		project_id TEXT NOT NULL,
		tree       TEXT NOT NULL,
		hash       TEXT NOT NULL,
		mtime      TIMESTAMP NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec(`INSERT INTO schema_version(version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}
	return nil
}

// Close closes the database and releases the file lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Close()
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}

// Path returns the database file path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// withTx runs fn inside a transaction under the store mutex.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// locked serializes a read or single-statement write.
func (s *Store) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
