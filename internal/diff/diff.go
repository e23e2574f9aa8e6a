// Package diff aligns two versions of a text at word granularity.
//
// Both inputs are split into whitespace-preserving tokens and aligned on a
// longest common subsequence. The result is two parallel streams: the old
// stream holds every old token classified Same or Removed, the new stream
// every new token classified Same or Added. Replacements are always a
// Removed+Added pair; there is no "changed" classification.
package diff

import (
	"sync"
	"sync/atomic"

	"manuscript/internal/tokenize"

	"github.com/cespare/xxhash/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Kind classifies a token in a diff stream.
type Kind int

const (
	Same    Kind = iota // Present in both versions
	Added               // Only in the new version
	Removed             // Only in the old version
)

func (k Kind) String() string {
	switch k {
	case Same:
		return "same"
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Entry is one token of a diff stream.
type Entry struct {
	Text string
	Kind Kind
}

// Result holds the old and new streams of an alignment.
// Same entries appear in both streams in the same relative order.
type Result struct {
	Old []Entry
	New []Entry
}

// OldText reassembles the old input from the old stream.
func (r Result) OldText() string {
	return join(r.Old)
}

// NewText reassembles the new input from the new stream.
func (r Result) NewText() string {
	return join(r.New)
}

// Changed reports whether any token was added or removed.
func (r Result) Changed() bool {
	for _, e := range r.Old {
		if e.Kind != Same {
			return true
		}
	}
	for _, e := range r.New {
		if e.Kind != Same {
			return true
		}
	}
	return false
}

func (r Result) clone() Result {
	return Result{
		Old: append([]Entry(nil), r.Old...),
		New: append([]Entry(nil), r.New...),
	}
}

func join(entries []Entry) string {
	n := 0
	for _, e := range entries {
		n += len(e.Text)
	}
	buf := make([]byte, 0, n)
	for _, e := range entries {
		buf = append(buf, e.Text...)
	}
	return string(buf)
}

// Mode selects the alignment algorithm.
type Mode int

const (
	// ModeHeuristic is the LCS-anchored merge with nearest-reappearance
	// lookahead. Its output is fully deterministic and reproducible.
	ModeHeuristic Mode = iota
	// ModeOptimal computes a minimal edit script (Myers) over the same tokens.
	ModeOptimal
)

func (m Mode) String() string {
	if m == ModeOptimal {
		return "optimal"
	}
	return "heuristic"
}

// ParseMode maps a config string to a Mode. Unknown values fall back to
// ModeHeuristic.
func ParseMode(s string) Mode {
	if s == "optimal" {
		return ModeOptimal
	}
	return ModeHeuristic
}

// cacheLimit bounds the number of memoized results per engine.
const cacheLimit = 256

// Engine aligns texts and memoizes results for identical input pairs.
// An Engine is safe for concurrent use.
type Engine struct {
	mode  Mode
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map // cacheKey -> Result
	size  atomic.Int64
}

type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates an engine using the given alignment mode.
func NewEngine(mode Mode) *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // no timeout, always finish the minimal script
	return &Engine{
		mode: mode,
		dmp:  dmp,
	}
}

// DefaultEngine is the heuristic engine used by the package-level Align.
var DefaultEngine = NewEngine(ModeHeuristic)

// Mode returns the engine's alignment mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Align compares oldText with newText. It is total: empty inputs produce
// empty or all-Added / all-Removed streams.
func (e *Engine) Align(oldText, newText string) Result {
	key := cacheKey{xxhash.Sum64String(oldText), xxhash.Sum64String(newText)}
	if cached, ok := e.cache.Load(key); ok {
		return cached.(Result).clone()
	}

	oldTokens := tokenize.Tokens(oldText)
	newTokens := tokenize.Tokens(newText)

	var res Result
	if e.mode == ModeOptimal {
		res = alignOptimal(e.dmp, oldTokens, newTokens)
	} else {
		res = alignHeuristic(oldTokens, newTokens)
	}

	if e.size.Add(1) > cacheLimit {
		e.ClearCache()
		e.size.Store(1)
	}
	e.cache.Store(key, res)
	return res.clone()
}

// ClearCache drops all memoized results.
func (e *Engine) ClearCache() {
	e.cache.Range(func(k, _ any) bool {
		e.cache.Delete(k)
		return true
	})
	e.size.Store(0)
}

// Align compares two texts with DefaultEngine.
func Align(oldText, newText string) Result {
	return DefaultEngine.Align(oldText, newText)
}
