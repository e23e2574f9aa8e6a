package ui

import (
	"fmt"
	"strings"
	"unicode"

	"manuscript/internal/chapter"
	"manuscript/internal/diff"
	"manuscript/internal/tokenize"

	"github.com/charmbracelet/lipgloss"
)

// Change markers in the style of `git diff --word-diff=plain`. They are
// written even when colors are available so output stays readable in pipes.
const (
	removedOpen  = "[-"
	removedClose = "-]"
	addedOpen    = "{+"
	addedClose   = "+}"
)

// DiffView renders word-level alignments.
type DiffView struct {
	Styles   Styles
	Width    int
	Context  int // unchanged tokens kept around each change
	OldLabel string
	NewLabel string

	// When true, hunks whose changes are whitespace only are hidden.
	IgnoreWhitespace bool
}

// NewDiffView creates a diff view
func NewDiffView(styles Styles, width, context int) *DiffView {
	if width <= 0 {
		width = 100
	}
	if context < 0 {
		context = 0
	}
	return &DiffView{
		Styles:   styles,
		Width:    width,
		Context:  context,
		OldLabel: "old",
		NewLabel: "new",
	}
}

// Inline renders the result as a single stream grouped into hunks, removed
// words marked [-like this-] and added words {+like this+}.
func (d *DiffView) Inline(r diff.Result) string {
	hunks := diff.Hunks(r, d.Context)

	var sb strings.Builder
	shown := 0
	for _, h := range hunks {
		if d.IgnoreWhitespace && whitespaceOnly(h) {
			continue
		}
		if shown > 0 {
			sb.WriteString("\n")
			sb.WriteString(d.Styles.Muted.Render("…"))
			sb.WriteString("\n")
		}
		sb.WriteString(d.renderHunkHeader(h))
		sb.WriteString("\n")
		sb.WriteString(d.renderStream(opEntries(h.Ops)))
		sb.WriteString("\n")
		shown++
	}

	if shown == 0 {
		return d.Styles.Muted.Render("(no changes)") + "\n"
	}
	return sb.String()
}

// SideBySide renders the old stream on the left and the new stream on the
// right, each wrapped to half the view width.
func (d *DiffView) SideBySide(r diff.Result) string {
	colWidth := (d.Width - 3) / 2
	if colWidth < 20 {
		colWidth = 20
	}

	left := d.Styles.ColHeader.Render(d.OldLabel) + "\n" + d.renderStream(r.Old)
	right := d.Styles.ColHeader.Render(d.NewLabel) + "\n" + d.renderStream(r.New)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		d.Styles.Column.Width(colWidth).Render(left),
		d.Styles.Body.Width(colWidth).PaddingLeft(1).Render(right),
	) + "\n"
}

// Header renders the --- / +++ lines.
func (d *DiffView) Header() string {
	return d.Styles.Muted.Render(fmt.Sprintf("--- %s\n+++ %s", d.OldLabel, d.NewLabel)) + "\n"
}

// Stats renders word counts for a result.
func (d *DiffView) Stats(s diff.Stats) string {
	return fmt.Sprintf("%s %s %s",
		d.Styles.Success.Render(fmt.Sprintf("+%d", s.Added)),
		d.Styles.Error.Render(fmt.Sprintf("-%d", s.Removed)),
		d.Styles.Muted.Render(fmt.Sprintf("=%d words", s.Unchanged)),
	)
}

// Sections renders a section-by-section comparison. Unchanged sections get
// a single summary line.
func (d *DiffView) Sections(diffs []chapter.SectionDiff) string {
	if len(diffs) == 0 {
		return d.Styles.Muted.Render("(no sections)") + "\n"
	}

	var sb strings.Builder
	for i, sd := range diffs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(d.renderSectionHeader(sd))
		sb.WriteString("\n")
		if sd.Status == chapter.SectionUnchanged {
			continue
		}
		sb.WriteString(d.Inline(sd.Result))
	}
	return sb.String()
}

func (d *DiffView) renderSectionHeader(sd chapter.SectionDiff) string {
	var status lipgloss.Style
	switch sd.Status {
	case chapter.SectionAdded:
		status = d.Styles.Success
	case chapter.SectionRemoved:
		status = d.Styles.Error
	case chapter.SectionChanged:
		status = d.Styles.Warning
	default:
		status = d.Styles.Muted
	}
	title := sd.Title
	if title == "" {
		title = sd.ID
	}
	return fmt.Sprintf("%s %s  %s",
		d.Styles.Title.Render("§ "+title),
		status.Render("("+string(sd.Status)+")"),
		d.Stats(sd.Stats))
}

// renderHunkHeader uses 1-based token positions.
func (d *DiffView) renderHunkHeader(h diff.Hunk) string {
	return d.Styles.HunkHead.Render(fmt.Sprintf("@@ -%d,%d +%d,%d @@",
		h.OldStart+1, h.OldCount, h.NewStart+1, h.NewCount))
}

func (d *DiffView) renderStream(stream []diff.Entry) string {
	var sb strings.Builder
	for _, e := range diff.Coalesce(stream) {
		switch e.Kind {
		case diff.Removed:
			sb.WriteString(mark(e.Text, removedOpen, removedClose, d.Styles.Removed))
		case diff.Added:
			sb.WriteString(mark(e.Text, addedOpen, addedClose, d.Styles.Added))
		default:
			sb.WriteString(d.Styles.Same.Render(e.Text))
		}
	}
	return sb.String()
}

// mark wraps text in markers, leaving trailing whitespace outside them.
func mark(text, open, close string, style lipgloss.Style) string {
	word := strings.TrimRightFunc(text, unicode.IsSpace)
	if word == "" {
		return style.Render(open + text + close)
	}
	return style.Render(open+word+close) + text[len(word):]
}

func opEntries(ops []diff.Op) []diff.Entry {
	out := make([]diff.Entry, len(ops))
	for i, op := range ops {
		out[i] = op.Entry
	}
	return out
}

func whitespaceOnly(h diff.Hunk) bool {
	for _, op := range h.Ops {
		if op.Kind != diff.Same && !tokenize.IsSpace(op.Text) {
			return false
		}
	}
	return true
}
