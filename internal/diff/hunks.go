package diff

import (
	"unicode"
	"unicode/utf8"

	"manuscript/internal/tokenize"
)

// Op is one entry of the unified stream together with its token positions.
// OldPos and NewPos are the 0-based token indexes the entry occupies, or for
// entries absent from a side, the index at which it would be inserted.
type Op struct {
	Entry
	OldPos int
	NewPos int
}

// Hunk is a run of changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Ops      []Op
}

// Unified merges the two streams into one. Between consecutive Same entries
// the Removed entries come first, then the Added ones.
func Unified(r Result) []Op {
	ops := make([]Op, 0, len(r.Old)+len(r.New))
	i, j := 0, 0
	for i < len(r.Old) || j < len(r.New) {
		for i < len(r.Old) && r.Old[i].Kind != Same {
			ops = append(ops, Op{Entry: r.Old[i], OldPos: i, NewPos: j})
			i++
		}
		for j < len(r.New) && r.New[j].Kind != Same {
			ops = append(ops, Op{Entry: r.New[j], OldPos: i, NewPos: j})
			j++
		}
		if i < len(r.Old) && j < len(r.New) {
			ops = append(ops, Op{Entry: r.Old[i], OldPos: i, NewPos: j})
			i++
			j++
		} else {
			// Only unmatched Same entries could remain, which a well-formed
			// Result never has.
			for ; i < len(r.Old); i++ {
				ops = append(ops, Op{Entry: r.Old[i], OldPos: i, NewPos: j})
			}
			for ; j < len(r.New); j++ {
				ops = append(ops, Op{Entry: r.New[j], OldPos: i, NewPos: j})
			}
		}
	}
	return ops
}

// Hunks groups the unified stream into hunks, keeping up to context tokens of
// unchanged text around every change. Changes separated by at most 2*context
// unchanged tokens share a hunk. Identical inputs produce no hunks.
func Hunks(r Result, context int) []Hunk {
	if context < 0 {
		context = 0
	}
	ops := Unified(r)

	var hunks []Hunk
	start, end := -1, -1 // op range [start, end) of the hunk being built
	flush := func() {
		if start < 0 {
			return
		}
		h := Hunk{
			OldStart: ops[start].OldPos,
			NewStart: ops[start].NewPos,
			Ops:      ops[start:end],
		}
		for _, op := range h.Ops {
			if op.Kind != Added {
				h.OldCount++
			}
			if op.Kind != Removed {
				h.NewCount++
			}
		}
		hunks = append(hunks, h)
		start, end = -1, -1
	}

	for idx, op := range ops {
		if op.Kind == Same {
			continue
		}
		lo := idx - context
		if lo < 0 {
			lo = 0
		}
		if start >= 0 && lo > end {
			flush()
		}
		if start < 0 {
			start = lo
		}
		end = idx + 1 + context
		if end > len(ops) {
			end = len(ops)
		}
	}
	flush()
	return hunks
}

// Coalesce groups a stream for display: a whitespace entry directly after a
// word entry of the same kind is folded into it. "The", " " (both Same)
// becomes "The ". Concatenating the result still reproduces the input text.
func Coalesce(stream []Entry) []Entry {
	out := make([]Entry, 0, len(stream))
	for _, e := range stream {
		if n := len(out); n > 0 && out[n-1].Kind == e.Kind && tokenize.IsSpace(e.Text) && !endsInSpace(out[n-1].Text) {
			out[n-1].Text += e.Text
			continue
		}
		out = append(out, e)
	}
	return out
}

func endsInSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}

// Stats counts words, not whitespace tokens, by classification.
type Stats struct {
	Added     int
	Removed   int
	Unchanged int
}

// Summarize computes Stats for a result.
func Summarize(r Result) Stats {
	var s Stats
	for _, e := range r.Old {
		if tokenize.IsSpace(e.Text) {
			continue
		}
		switch e.Kind {
		case Same:
			s.Unchanged++
		case Removed:
			s.Removed++
		}
	}
	for _, e := range r.New {
		if e.Kind == Added && !tokenize.IsSpace(e.Text) {
			s.Added++
		}
	}
	return s
}
