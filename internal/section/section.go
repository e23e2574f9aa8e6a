// Package section keeps a chapter split into bounded-size sections.
//
// Every operation takes a snapshot of the section list and returns a new
// one; inputs are never modified. After any mutating operation:
//   - Order values form the contiguous sequence 0..N-1.
//   - Every WordCount matches its Content.
//   - A list produced by Migrate, UpdateContent, Add or Delete has at least
//     one section.
//
// Callers are responsible for serializing writes per document; nothing here
// locks.
package section

import (
	"errors"
	"sort"
	"time"

	"manuscript/internal/tokenize"

	"github.com/google/uuid"
)

// DefaultMaxWords is the auto-split threshold.
const DefaultMaxWords = 2000

// Separator joins section contents in the flattened chapter text.
const Separator = "\n\n"

var (
	// ErrPreconditionFailed is returned when deleting the last section.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrSectionNotFound is returned for ids absent from the list.
	ErrSectionNotFound = errors.New("section not found")
)

// Section is one bounded chunk of a chapter.
type Section struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Order     int       `json:"order" yaml:"order"`
	WordCount int       `json:"word_count" yaml:"word_count"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// OverLimit reports whether the section holds more than max words.
func (s Section) OverLimit(max int) bool {
	return max > 0 && s.WordCount > max
}

// Options configures a Sectionizer. Zero values select the defaults.
type Options struct {
	MaxWords int
	Now      func() time.Time
	NewID    func() string
}

// Sectionizer implements the section operations with a fixed word limit,
// clock and id source.
type Sectionizer struct {
	maxWords int
	now      func() time.Time
	newID    func() string
}

// New creates a Sectionizer.
func New(opts Options) *Sectionizer {
	s := &Sectionizer{
		maxWords: opts.MaxWords,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if s.maxWords <= 0 {
		s.maxWords = DefaultMaxWords
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// MaxWords returns the auto-split threshold.
func (s *Sectionizer) MaxWords() int {
	return s.maxWords
}

// Sorted returns a copy of sections ordered by Order.
func Sorted(sections []Section) []Section {
	out := append([]Section(nil), sections...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// TotalWords sums the cached word counts.
func TotalWords(sections []Section) int {
	n := 0
	for _, s := range sections {
		n += s.WordCount
	}
	return n
}

func indexOf(sections []Section, id string) int {
	for i, s := range sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func countWords(content string) int {
	return tokenize.Count(content)
}
