package diff

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// interner maps each distinct token to a private rune so diffmatchpatch can
// diff token sequences as if they were strings.
type interner struct {
	ids    map[string]rune
	tokens []string
}

// Surrogate code points are not valid in Go strings, so indexes at or past
// surrogateLo are shifted over the surrogate block.
const (
	surrogateLo   = 0xD800
	surrogateSpan = 0x800
)

func (in *interner) runes(tokens []string) []rune {
	out := make([]rune, len(tokens))
	for i, tok := range tokens {
		r, ok := in.ids[tok]
		if !ok {
			r = rune(len(in.tokens) + 1)
			if r >= surrogateLo {
				r += surrogateSpan
			}
			in.ids[tok] = r
			in.tokens = append(in.tokens, tok)
		}
		out[i] = r
	}
	return out
}

func (in *interner) token(r rune) string {
	if r >= surrogateLo+surrogateSpan {
		r -= surrogateSpan
	}
	return in.tokens[r-1]
}

// alignOptimal produces a minimal edit script over the token sequences.
// Within a replaced region diffmatchpatch may emit the insert before the
// delete; the streams are per side, so that order does not matter.
func alignOptimal(dmp *diffmatchpatch.DiffMatchPatch, a, b []string) Result {
	in := &interner{ids: make(map[string]rune, len(a)+len(b))}
	ra := in.runes(a)
	rb := in.runes(b)

	res := Result{
		Old: make([]Entry, 0, len(a)),
		New: make([]Entry, 0, len(b)),
	}
	for _, d := range dmp.DiffMainRunes(ra, rb, false) {
		for _, r := range d.Text {
			tok := in.token(r)
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				res.Old = append(res.Old, Entry{Text: tok, Kind: Same})
				res.New = append(res.New, Entry{Text: tok, Kind: Same})
			case diffmatchpatch.DiffDelete:
				res.Old = append(res.Old, Entry{Text: tok, Kind: Removed})
			case diffmatchpatch.DiffInsert:
				res.New = append(res.New, Entry{Text: tok, Kind: Added})
			}
		}
	}
	return res
}
