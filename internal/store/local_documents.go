package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"manuscript/internal/logging"
	"manuscript/internal/section"
)

// =============================================================================
// DOCUMENTS
// =============================================================================

// DocumentSummary is one row of ListDocuments.
type DocumentSummary struct {
	ID        string
	Title     string
	WordCount int
	Sections  int
	Versions  int
	UpdatedAt time.Time
}

// Legacy reports whether the document still holds unmigrated flat content.
func (d DocumentSummary) Legacy() bool {
	return d.Sections == 0
}

// SaveResult describes the outcome of SaveDocument.
type SaveResult struct {
	Hash string
	// Version is the snapshot number written, or 0 when the content hash
	// matched the latest version and no snapshot was added.
	Version int64
}

// Saved reports whether a new version was written.
func (r SaveResult) Saved() bool {
	return r.Version > 0
}

// SaveDocument replaces the stored sections of doc in one transaction and
// appends a version when the flattened content changed.
func (s *LocalStore) SaveDocument(ctx context.Context, doc section.Document) (SaveResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SaveDocument")
	defer timer.Stop()

	if len(doc.Sections) == 0 {
		return SaveResult{}, fmt.Errorf("save document %s: no sections", doc.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := SaveResult{Hash: ContentHash(doc.Content)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertDocument(ctx, tx, doc, result.Hash); err != nil {
		return SaveResult{}, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE document_id = ?", doc.ID); err != nil {
		return SaveResult{}, fmt.Errorf("failed to clear sections: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sections
		(id, document_id, title, content, ord, word_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to prepare section insert: %w", err)
	}
	defer stmt.Close()
	for _, sec := range doc.Sections {
		if _, err := stmt.ExecContext(ctx, sec.ID, doc.ID, sec.Title, sec.Content, sec.Order,
			sec.WordCount, sec.CreatedAt.UTC(), sec.UpdatedAt.UTC()); err != nil {
			return SaveResult{}, fmt.Errorf("failed to insert section %s: %w", sec.ID, err)
		}
	}

	latest, number, err := latestVersion(ctx, tx, doc.ID)
	if err != nil {
		return SaveResult{}, err
	}
	if latest != result.Hash {
		result.Version = number + 1
		if err := insertVersion(ctx, tx, doc, result); err != nil {
			return SaveResult{}, err
		}
		if err := s.pruneVersions(ctx, tx, doc.ID); err != nil {
			return SaveResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("failed to commit: %w", err)
	}

	if result.Saved() {
		logging.StoreDebug("Saved %s: %d sections, version %d (hash %s)", doc.ID, len(doc.Sections), result.Version, result.Hash)
	} else {
		logging.StoreDebug("Saved %s: %d sections, content unchanged", doc.ID, len(doc.Sections))
	}
	return result, nil
}

// SaveLegacyDocument stores flat content without sections, the shape
// documents had before sectioning existed. Existing sections of the
// document are removed.
func (s *LocalStore) SaveLegacyDocument(ctx context.Context, doc section.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertDocument(ctx, tx, doc, ContentHash(doc.Content)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("failed to clear sections: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.StoreDebug("Saved legacy document %s (%d words)", doc.ID, doc.WordCount)
	return nil
}

func upsertDocument(ctx context.Context, tx *sql.Tx, doc section.Document, hash string) error {
	updated := doc.UpdatedAt.UTC()
	_, err := tx.ExecContext(ctx, `INSERT INTO documents
		(id, title, content, word_count, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			word_count = excluded.word_count,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Content, doc.WordCount, hash, updated, updated)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// LoadDocument reads a document and its sections. Legacy documents come
// back with Content set and no sections.
func (s *LocalStore) LoadDocument(ctx context.Context, id string) (section.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc section.Document
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, content, word_count, updated_at FROM documents WHERE id = ?", id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.WordCount, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return section.Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return section.Document{}, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	doc.UpdatedAt = doc.UpdatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `SELECT id, title, content, ord, word_count, created_at, updated_at
		FROM sections WHERE document_id = ? ORDER BY ord`, id)
	if err != nil {
		return section.Document{}, fmt.Errorf("failed to load sections of %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var sec section.Section
		if err := rows.Scan(&sec.ID, &sec.Title, &sec.Content, &sec.Order, &sec.WordCount, &sec.CreatedAt, &sec.UpdatedAt); err != nil {
			return section.Document{}, fmt.Errorf("failed to scan section: %w", err)
		}
		sec.CreatedAt = sec.CreatedAt.UTC()
		sec.UpdatedAt = sec.UpdatedAt.UTC()
		doc.Sections = append(doc.Sections, sec)
	}
	if err := rows.Err(); err != nil {
		return section.Document{}, fmt.Errorf("failed to read sections of %s: %w", id, err)
	}
	return doc, nil
}

// DocumentHash returns the stored content hash of a document.
func (s *LocalStore) DocumentHash(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT content_hash FROM documents WHERE id = ?", id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read hash of %s: %w", id, err)
	}
	return hash, nil
}

// ListDocuments returns a summary of every document, most recently updated
// first.
func (s *LocalStore) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT d.id, d.title, d.word_count, d.updated_at,
			(SELECT COUNT(*) FROM sections s WHERE s.document_id = d.id),
			(SELECT COUNT(*) FROM versions v WHERE v.document_id = d.id)
		FROM documents d ORDER BY d.updated_at DESC, d.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		if err := rows.Scan(&d.ID, &d.Title, &d.WordCount, &d.UpdatedAt, &d.Sections, &d.Versions); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.UpdatedAt = d.UpdatedAt.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document with its sections and versions.
func (s *LocalStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM versions WHERE document_id = ?",
		"DELETE FROM sections WHERE document_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete document %s: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// =============================================================================
// VERSIONS
// =============================================================================

// Version is a stored snapshot of a document.
type Version struct {
	DocumentID string
	Number     int64
	Hash       string
	Content    string
	Sections   []section.Section
	WordCount  int
	CreatedAt  time.Time
}

func latestVersion(ctx context.Context, tx *sql.Tx, docID string) (hash string, number int64, err error) {
	err = tx.QueryRowContext(ctx,
		"SELECT content_hash, number FROM versions WHERE document_id = ? ORDER BY number DESC LIMIT 1", docID,
	).Scan(&hash, &number)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to read latest version of %s: %w", docID, err)
	}
	return hash, number, nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, doc section.Document, r SaveResult) error {
	data, err := json.Marshal(doc.Sections)
	if err != nil {
		return fmt.Errorf("failed to encode sections: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO versions
		(document_id, number, content_hash, content, sections_json, word_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, r.Version, r.Hash, doc.Content, string(data), doc.WordCount, doc.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert version %d of %s: %w", r.Version, doc.ID, err)
	}
	return nil
}

// pruneVersions drops the oldest snapshots beyond MaxVersions.
func (s *LocalStore) pruneVersions(ctx context.Context, tx *sql.Tx, docID string) error {
	if s.opts.MaxVersions <= 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM versions WHERE document_id = ? AND number <= (
		SELECT MAX(number) FROM versions WHERE document_id = ?) - ?`,
		docID, docID, s.opts.MaxVersions)
	if err != nil {
		return fmt.Errorf("failed to prune versions of %s: %w", docID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logging.StoreDebug("Pruned %d old versions of %s", n, docID)
	}
	return nil
}

// ListVersions returns the snapshots of a document, oldest first, without
// their section lists.
func (s *LocalStore) ListVersions(ctx context.Context, docID string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT number, content_hash, content, word_count, created_at
		FROM versions WHERE document_id = ? ORDER BY number`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", docID, err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v := Version{DocumentID: docID}
		if err := rows.Scan(&v.Number, &v.Hash, &v.Content, &v.WordCount, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		v.CreatedAt = v.CreatedAt.UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVersion loads one snapshot with its section list. A negative number
// counts back from the latest version (-1 is the latest).
func (s *LocalStore) GetVersion(ctx context.Context, docID string, number int64) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT number, content_hash, content, sections_json, word_count, created_at
		FROM versions WHERE document_id = ? AND number = ?`
	args := []interface{}{docID, number}
	if number < 0 {
		query = `SELECT number, content_hash, content, sections_json, word_count, created_at
			FROM versions WHERE document_id = ? ORDER BY number DESC LIMIT 1 OFFSET ?`
		args = []interface{}{docID, -number - 1}
	}

	v := Version{DocumentID: docID}
	var sectionsJSON string
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&v.Number, &v.Hash, &v.Content, &sectionsJSON, &v.WordCount, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, fmt.Errorf("version %d of %s: %w", number, docID, ErrNotFound)
	}
	if err != nil {
		return Version{}, fmt.Errorf("failed to load version %d of %s: %w", number, docID, err)
	}
	v.CreatedAt = v.CreatedAt.UTC()
	if err := json.Unmarshal([]byte(sectionsJSON), &v.Sections); err != nil {
		return Version{}, fmt.Errorf("failed to decode sections of version %d: %w", v.Number, err)
	}
	return v, nil
}
