// Package store persists manuscript documents in SQLite.
//
// Tables:
//   - documents: one row per chapter with the cached flattened content,
//     aggregate word count and content hash
//   - sections: the current section list of each document
//   - versions: append-only snapshots, one per saved content hash
//
// A document with a documents row but no sections rows is legacy flat
// content that has not been migrated yet.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"manuscript/internal/logging"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a document or version does not exist.
var ErrNotFound = errors.New("not found")

// Options tunes the store. Zero values select the defaults.
type Options struct {
	BusyTimeout time.Duration
	// MaxVersions caps the stored snapshots per document; 0 keeps all.
	MaxVersions int
}

// LocalStore is the SQLite-backed document store.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	opts   Options
}

// NewLocalStore initializes the SQLite database at the given path.
// Use ":memory:" for a throwaway database.
func NewLocalStore(path string, opts Options) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Initializing LocalStore at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	pragmas := []string{
		"PRAGMA busy_timeout = " + strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			logging.StoreDebug("Failed to apply %q: %v", p, err)
		}
	}

	store := &LocalStore{db: db, dbPath: path, opts: opts}
	if err := store.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := store.ensureContentHashes(); err != nil {
		logging.Get(logging.CategoryStore).Warn("Content hash backfill had issues: %v", err)
	}

	logging.Store("LocalStore ready")
	return store, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			word_count INTEGER NOT NULL DEFAULT 0,
			content_hash TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sections (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			ord INTEGER NOT NULL,
			word_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(document_id, ord)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id);`,
		`CREATE TABLE IF NOT EXISTS versions (
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			content_hash TEXT NOT NULL,
			content TEXT NOT NULL,
			sections_json TEXT NOT NULL DEFAULT '[]',
			word_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			PRIMARY KEY(document_id, number)
		);`,
		`CREATE TABLE IF NOT EXISTS schema_versions (
			version INTEGER NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	logging.Store("Closing LocalStore database connection")
	return s.db.Close()
}

// GetDB returns the underlying SQL database connection.
func (s *LocalStore) GetDB() *sql.DB {
	return s.db
}

// Path returns the database path the store was opened with.
func (s *LocalStore) Path() string {
	return s.dbPath
}

// ContentHash fingerprints flattened chapter text. Saves whose hash matches
// the latest version do not create a new version.
func ContentHash(content string) string {
	return strconv.FormatUint(xxhash.Sum64String(content), 16)
}

// ensureContentHashes fills content_hash for rows written before the column
// existed.
func (s *LocalStore) ensureContentHashes() error {
	timer := logging.StartTimer(logging.CategoryStore, "ensureContentHashes")
	defer timer.Stop()

	rows, err := s.db.Query("SELECT id, content FROM documents WHERE content_hash = ''")
	if err != nil {
		return fmt.Errorf("failed to query missing hashes: %w", err)
	}
	type pending struct{ id, content string }
	var missing []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.content); err != nil {
			continue
		}
		missing = append(missing, p)
	}
	rows.Close()

	if len(missing) == 0 {
		return nil
	}
	logging.Store("Backfilling content_hash for %d documents", len(missing))

	for _, p := range missing {
		if _, err := s.db.Exec("UPDATE documents SET content_hash = ? WHERE id = ?", ContentHash(p.content), p.id); err != nil {
			return fmt.Errorf("failed to backfill hash for %s: %w", p.id, err)
		}
	}
	return nil
}
