// Package chapter orchestrates document editing on top of the section core.
//
// The section and diff packages are pure; Service is the caller that loads
// documents from the store, serializes writes per document, applies section
// operations and persists the result. Legacy flat documents are migrated the
// first time they are opened.
package chapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"manuscript/internal/diff"
	"manuscript/internal/logging"
	"manuscript/internal/section"
	"manuscript/internal/store"

	"github.com/google/uuid"
)

// Store is the persistence the service needs. *store.LocalStore implements it.
type Store interface {
	SaveDocument(ctx context.Context, doc section.Document) (store.SaveResult, error)
	SaveLegacyDocument(ctx context.Context, doc section.Document) error
	LoadDocument(ctx context.Context, id string) (section.Document, error)
	ListDocuments(ctx context.Context) ([]store.DocumentSummary, error)
	ListVersions(ctx context.Context, docID string) ([]store.Version, error)
	GetVersion(ctx context.Context, docID string, number int64) (store.Version, error)
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	MaxWords      int
	DiffMode      diff.Mode
	Concurrency   int           // parallel section alignments in DiffSections
	SlowThreshold time.Duration // warn when one alignment takes longer
	Now           func() time.Time
	NewID         func() string
}

// Service edits documents held in a Store.
type Service struct {
	store         Store
	sectionizer   *section.Sectionizer
	engine        *diff.Engine
	concurrency   int
	slowThreshold time.Duration
	now           func() time.Time
	newID         func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // key: document id
}

// NewService creates a Service over st.
func NewService(st Store, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = 250 * time.Millisecond
	}
	return &Service{
		store: st,
		sectionizer: section.New(section.Options{
			MaxWords: opts.MaxWords,
			Now:      opts.Now,
			NewID:    opts.NewID,
		}),
		engine:        diff.NewEngine(opts.DiffMode),
		concurrency:   opts.Concurrency,
		slowThreshold: opts.SlowThreshold,
		now:           opts.Now,
		newID:         opts.NewID,
		locks:         map[string]*sync.Mutex{},
	}
}

// MaxWords returns the auto-split threshold in effect.
func (s *Service) MaxWords() int {
	return s.sectionizer.MaxWords()
}

// Engine returns the alignment engine used for version comparison.
func (s *Service) Engine() *diff.Engine {
	return s.engine
}

// GetLock retrieves or creates the write lock of a document.
func (s *Service) GetLock(docID string) *sync.Mutex {
	s.mu.Lock()
	l := s.locks[docID]
	if l == nil {
		l = &sync.Mutex{}
		s.locks[docID] = l
	}
	s.mu.Unlock()
	return l
}

// =============================================================================
// DOCUMENT LIFECYCLE
// =============================================================================

// Import stores content as document id, generating an id when empty. With
// legacy set the content is stored flat and migrated on first Open;
// otherwise it is sectioned immediately.
func (s *Service) Import(ctx context.Context, id, title, content string, legacy bool) (section.Document, error) {
	if id == "" {
		id = s.newID()
	}
	l := s.GetLock(id)
	l.Lock()
	defer l.Unlock()

	if legacy {
		doc := section.LegacyDocument(id, title, content, s.now())
		if err := s.store.SaveLegacyDocument(ctx, doc); err != nil {
			return section.Document{}, fmt.Errorf("import %s: %w", id, err)
		}
		logging.Chapter("Imported %s as legacy content (%d words)", id, doc.WordCount)
		logging.AuditForDocument(id).Import(title, 0, doc.WordCount)
		return doc, nil
	}

	doc := section.NewDocument(id, title, s.sectionizer.Migrate(content), s.now())
	if _, err := s.save(ctx, doc); err != nil {
		return section.Document{}, fmt.Errorf("import %s: %w", id, err)
	}
	logging.Chapter("Imported %s: %d sections, %d words", id, len(doc.Sections), doc.WordCount)
	logging.AuditForDocument(id).Import(title, len(doc.Sections), doc.WordCount)
	return doc, nil
}

// Open loads a document, migrating legacy flat content into sections and
// persisting the result the first time.
func (s *Service) Open(ctx context.Context, id string) (section.Document, error) {
	l := s.GetLock(id)
	l.Lock()
	defer l.Unlock()
	return s.open(ctx, id)
}

// open is Open without locking; callers hold the document lock.
func (s *Service) open(ctx context.Context, id string) (section.Document, error) {
	doc, err := s.store.LoadDocument(ctx, id)
	if err != nil {
		return section.Document{}, err
	}
	if !doc.NeedsMigration() {
		return doc, nil
	}

	timer := logging.StartTimer(logging.CategorySections, "migrate "+id)
	migrated := doc.WithSections(s.sectionizer.Migrate(doc.Content), s.now())
	timer.Stop()

	if _, err := s.save(ctx, migrated); err != nil {
		return section.Document{}, fmt.Errorf("migrate %s: %w", id, err)
	}
	logging.Sections("Migrated legacy document %s into %d sections", id, len(migrated.Sections))
	logging.AuditForDocument(id).Migrate(migrated.WordCount, len(migrated.Sections))
	return migrated, nil
}

// Documents lists stored documents.
func (s *Service) Documents(ctx context.Context) ([]store.DocumentSummary, error) {
	return s.store.ListDocuments(ctx)
}

// Export returns the flattened text of a document.
func (s *Service) Export(ctx context.Context, id string) (string, error) {
	doc, err := s.Open(ctx, id)
	if err != nil {
		return "", err
	}
	logging.AuditForDocument(id).Log(logging.AuditEvent{
		EventType: logging.AuditDocumentExport,
		Success:   true,
		Fields:    map[string]interface{}{"words": doc.WordCount},
	})
	return doc.Content, nil
}

// History lists the stored versions of a document, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]store.Version, error) {
	return s.store.ListVersions(ctx, id)
}

// =============================================================================
// SECTION EDITS
// =============================================================================

// Edit is the outcome of a section content edit.
type Edit struct {
	Document section.Document
	// Created lists the sections split off the edited one, in order.
	Created []section.Section
	Save    store.SaveResult
}

// Split reports whether the edit produced new sections.
func (e Edit) Split() bool {
	return len(e.Created) > 0
}

// EditSection replaces the content of a section, splitting it when it grows
// past the word limit. Writing content identical to the current content is
// a no-op.
func (s *Service) EditSection(ctx context.Context, docID, sectionID, content string) (Edit, error) {
	l := s.GetLock(docID)
	l.Lock()
	defer l.Unlock()

	doc, err := s.open(ctx, docID)
	if err != nil {
		return Edit{}, err
	}
	current, ok := doc.Section(sectionID)
	if !ok {
		return Edit{}, fmt.Errorf("edit %s/%s: %w", docID, sectionID, section.ErrSectionNotFound)
	}
	if current.Content == content {
		logging.ChapterDebug("Edit of %s/%s unchanged, skipping", docID, sectionID)
		return Edit{Document: doc}, nil
	}

	sections, err := s.sectionizer.UpdateContent(doc.Sections, sectionID, content)
	if err != nil {
		return Edit{}, err
	}

	edit := Edit{Document: doc.WithSections(sections, s.now())}
	existing := make(map[string]bool, len(doc.Sections))
	for _, sec := range doc.Sections {
		existing[sec.ID] = true
	}
	for _, sec := range edit.Document.Sections {
		if !existing[sec.ID] {
			edit.Created = append(edit.Created, sec)
		}
	}

	if edit.Save, err = s.save(ctx, edit.Document); err != nil {
		return Edit{}, fmt.Errorf("edit %s/%s: %w", docID, sectionID, err)
	}

	if edit.Split() {
		logging.Sections("Section %s of %s split into %d sections", sectionID, docID, len(edit.Created)+1)
	}
	logging.AuditForDocument(docID).SectionEdit(sectionID, edit.Document.WordCount, len(edit.Created))
	return edit, nil
}

// RenameSection changes a section title.
func (s *Service) RenameSection(ctx context.Context, docID, sectionID, title string) (section.Document, error) {
	doc, err := s.mutate(ctx, docID, logging.AuditSectionRename, sectionID, func(sections []section.Section) ([]section.Section, error) {
		return s.sectionizer.UpdateTitle(sections, sectionID, title)
	})
	return doc, err
}

// AddSection appends an empty section and returns it.
func (s *Service) AddSection(ctx context.Context, docID string) (section.Document, section.Section, error) {
	var added section.Section
	doc, err := s.mutate(ctx, docID, logging.AuditSectionAdd, "", func(sections []section.Section) ([]section.Section, error) {
		var out []section.Section
		out, added = s.sectionizer.Add(sections)
		return out, nil
	})
	return doc, added, err
}

// DeleteSection removes a section. Removing the last section fails with
// section.ErrPreconditionFailed.
func (s *Service) DeleteSection(ctx context.Context, docID, sectionID string) (section.Document, error) {
	return s.mutate(ctx, docID, logging.AuditSectionDelete, sectionID, func(sections []section.Section) ([]section.Section, error) {
		return s.sectionizer.Delete(sections, sectionID)
	})
}

// ReplaceContent redistributes edited flat text over the existing sections.
// The section count is kept; pieces over the limit are reported by
// OverLimit rather than split.
func (s *Service) ReplaceContent(ctx context.Context, docID, content string) (section.Document, error) {
	return s.mutate(ctx, docID, logging.AuditDocumentReplace, "", func(sections []section.Section) ([]section.Section, error) {
		return s.sectionizer.Unflatten(content, sections), nil
	})
}

// OverLimit lists the sections of a document above the word limit.
func (s *Service) OverLimit(doc section.Document) []section.Section {
	return doc.OverLimit(s.MaxWords())
}

// mutate applies op to the sections of a document under its lock and saves
// the result.
func (s *Service) mutate(ctx context.Context, docID string, event logging.AuditEventType, sectionID string,
	op func([]section.Section) ([]section.Section, error)) (section.Document, error) {
	l := s.GetLock(docID)
	l.Lock()
	defer l.Unlock()

	audit := logging.AuditForDocument(docID)

	doc, err := s.open(ctx, docID)
	if err != nil {
		return section.Document{}, err
	}
	sections, err := op(doc.Sections)
	if err != nil {
		audit.SectionOp(event, sectionID, err)
		if errors.Is(err, section.ErrPreconditionFailed) {
			logging.Get(logging.CategoryChapter).Warn("%s on %s refused: %v", event, docID, err)
		}
		return section.Document{}, err
	}

	doc = doc.WithSections(sections, s.now())
	if _, err := s.save(ctx, doc); err != nil {
		return section.Document{}, fmt.Errorf("%s %s: %w", event, docID, err)
	}
	audit.SectionOp(event, sectionID, nil)
	return doc, nil
}

// save validates and persists doc.
func (s *Service) save(ctx context.Context, doc section.Document) (store.SaveResult, error) {
	if err := doc.Validate(); err != nil {
		logging.Get(logging.CategoryChapter).Error("Refusing to save %s: %v", doc.ID, err)
		return store.SaveResult{}, err
	}

	start := time.Now()
	res, err := s.store.SaveDocument(ctx, doc)
	if err != nil {
		return store.SaveResult{}, err
	}
	logging.AuditForDocument(doc.ID).VersionSaved(res.Version, res.Hash, time.Since(start))

	if over := doc.OverLimit(s.MaxWords()); len(over) > 0 {
		logging.Get(logging.CategorySections).Warn("%s has %d sections over %d words", doc.ID, len(over), s.MaxWords())
	}
	return res, nil
}
