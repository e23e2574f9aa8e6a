// Package tokenize provides the whitespace-based tokenizer shared by the
// diff aligner and the sectionizer.
//
// Two views of the same text are exposed:
//   - Tokens: alternating runs of whitespace and non-whitespace. Joining the
//     tokens reproduces the input byte for byte.
//   - Words: the non-whitespace runs only, used for word counts and chunking.
//
// Whitespace is anything unicode.IsSpace accepts, which is also what
// strings.Fields splits on, so Count(s) == len(strings.Fields(s)).
package tokenize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is the byte range [Start, End) of one word inside a string.
type Span struct {
	Start int
	End   int
}

// Tokens splits s into maximal whitespace and non-whitespace runs.
func Tokens(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, len(s)/4+1)
	start := 0
	inSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i == 0 {
			inSpace = space
			continue
		}
		if space != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
			inSpace = space
		}
	}
	tokens = append(tokens, s[start:])
	return tokens
}

// IsSpace reports whether tok is a whitespace token.
// The empty string is not a whitespace token.
func IsSpace(tok string) bool {
	if tok == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsSpace(r)
}

// Words returns the non-whitespace runs of s.
func Words(s string) []string {
	return strings.Fields(s)
}

// Count returns the number of words in s.
func Count(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

// Spans returns the byte ranges of every word in s, in order.
func Spans(s string) []Span {
	var spans []Span
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, Span{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(s)})
	}
	return spans
}

// Chunk splits s into pieces of at most max words each, never inside a word.
// Each piece is the original substring from its first word to its last word,
// so whitespace between words of the same piece (paragraph breaks included)
// survives. Whitespace between pieces is dropped. A string without words
// yields no pieces. max <= 0 means a single piece.
func Chunk(s string, max int) []string {
	spans := Spans(s)
	if len(spans) == 0 {
		return nil
	}
	if max <= 0 || len(spans) <= max {
		return []string{s[spans[0].Start:spans[len(spans)-1].End]}
	}

	chunks := make([]string, 0, (len(spans)+max-1)/max)
	for lo := 0; lo < len(spans); lo += max {
		hi := lo + max
		if hi > len(spans) {
			hi = len(spans)
		}
		chunks = append(chunks, s[spans[lo].Start:spans[hi-1].End])
	}
	return chunks
}

// Split divides the words of s into n contiguous pieces of ceil(words/n)
// words each; trailing pieces may be shorter or empty. Like Chunk, pieces keep
// their internal whitespace. n <= 0 yields nil.
func Split(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	pieces := make([]string, n)
	spans := Spans(s)
	if len(spans) == 0 {
		return pieces
	}

	per := (len(spans) + n - 1) / n
	for i := 0; i < n; i++ {
		lo := i * per
		if lo >= len(spans) {
			break
		}
		hi := lo + per
		if hi > len(spans) {
			hi = len(spans)
		}
		pieces[i] = s[spans[lo].Start:spans[hi-1].End]
	}
	return pieces
}
