package section

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"manuscript/internal/tokenize"
)

// Document is a chapter: its sections plus the cached flattened text and
// aggregate word count. Content is always Flatten(Sections) and WordCount
// the sum of section word counts, except for legacy documents that have
// Content but no sections yet.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Sections  []Section `json:"sections"`
	Content   string    `json:"content"`
	WordCount int       `json:"word_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument builds a document from a section list.
func NewDocument(id, title string, sections []Section, at time.Time) Document {
	return Document{ID: id, Title: title}.WithSections(sections, at)
}

// LegacyDocument builds a document that only has flat content. It must be
// migrated before section operations apply.
func LegacyDocument(id, title, content string, at time.Time) Document {
	return Document{
		ID:        id,
		Title:     title,
		Content:   content,
		WordCount: tokenize.Count(content),
		UpdatedAt: at,
	}
}

// WithSections returns a copy of d holding sections, with Content and
// WordCount regenerated.
func (d Document) WithSections(sections []Section, at time.Time) Document {
	d.Sections = Sorted(sections)
	d.Content = Flatten(d.Sections)
	d.WordCount = TotalWords(d.Sections)
	d.UpdatedAt = at
	return d
}

// NeedsMigration reports whether d still holds legacy flat content.
func (d Document) NeedsMigration() bool {
	return len(d.Sections) == 0
}

// Section looks up a section by id.
func (d Document) Section(id string) (Section, bool) {
	for _, s := range d.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// SectionAt returns the section with the given order.
func (d Document) SectionAt(order int) (Section, bool) {
	for _, s := range d.Sections {
		if s.Order == order {
			return s, true
		}
	}
	return Section{}, false
}

// OverLimit lists the sections holding more than max words.
func (d Document) OverLimit(max int) []Section {
	var over []Section
	for _, s := range d.Sections {
		if s.OverLimit(max) {
			over = append(over, s)
		}
	}
	return over
}

// ErrInvalid wraps every invariant violation reported by Validate.
var ErrInvalid = errors.New("invalid section list")

// Validate checks the section list invariants: at least one section, unique
// ids, orders forming 0..N-1 and fresh word counts.
func Validate(sections []Section) error {
	if len(sections) == 0 {
		return fmt.Errorf("%w: no sections", ErrInvalid)
	}

	var problems []string
	ids := make(map[string]bool, len(sections))
	orders := make([]bool, len(sections))
	for _, s := range sections {
		if ids[s.ID] {
			problems = append(problems, fmt.Sprintf("duplicate id %q", s.ID))
		}
		ids[s.ID] = true

		switch {
		case s.Order < 0 || s.Order >= len(sections):
			problems = append(problems, fmt.Sprintf("section %q has order %d outside 0..%d", s.ID, s.Order, len(sections)-1))
		case orders[s.Order]:
			problems = append(problems, fmt.Sprintf("order %d used twice", s.Order))
		default:
			orders[s.Order] = true
		}

		if n := tokenize.Count(s.Content); n != s.WordCount {
			problems = append(problems, fmt.Sprintf("section %q word count %d, content has %d", s.ID, s.WordCount, n))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks the document's sections and its cached fields.
func (d Document) Validate() error {
	if err := Validate(d.Sections); err != nil {
		return err
	}
	if want := Flatten(d.Sections); d.Content != want {
		return fmt.Errorf("%w: cached content is stale", ErrInvalid)
	}
	if want := TotalWords(d.Sections); d.WordCount != want {
		return fmt.Errorf("%w: cached word count %d, sections sum to %d", ErrInvalid, d.WordCount, want)
	}
	return nil
}
