package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"manuscript/internal/section"
	"manuscript/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// SectionList renders the sections of a document with their word counts,
// flagging any section above maxWords.
func SectionList(s Styles, doc section.Document, maxWords int) string {
	var sb strings.Builder
	sb.WriteString(s.Title.Render(doc.Title))
	sb.WriteString("  ")
	sb.WriteString(s.Muted.Render(fmt.Sprintf("%s · %d words · %d sections", doc.ID, doc.WordCount, len(doc.Sections))))
	sb.WriteString("\n")

	if doc.NeedsMigration() {
		sb.WriteString(s.Warning.Render("legacy document: open it to split into sections"))
		sb.WriteString("\n")
		return sb.String()
	}

	over := 0
	rows := make([][]string, 0, len(doc.Sections))
	for _, sec := range doc.Sections {
		words := strconv.Itoa(sec.WordCount)
		if sec.OverLimit(maxWords) {
			words += " !"
			over++
		}
		rows = append(rows, []string{strconv.Itoa(sec.Order + 1), sec.Title, words, sec.ID})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Divider).
		Headers("#", "TITLE", "WORDS", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Bold.Padding(0, 1)
			}
			if col == 2 && row >= 0 && row < len(doc.Sections) && doc.Sections[row].OverLimit(maxWords) {
				return s.Warning.Padding(0, 1)
			}
			if col == 3 {
				return s.Muted.Padding(0, 1)
			}
			return s.Body.Padding(0, 1)
		})
	sb.WriteString(t.Render())
	sb.WriteString("\n")

	if over > 0 {
		sb.WriteString(s.Badge.Render("OVER LIMIT"))
		sb.WriteString(" ")
		sb.WriteString(s.Warning.Render(fmt.Sprintf("%d section(s) above %d words; edit them to split", over, maxWords)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// DocumentList renders document summaries.
func DocumentList(s Styles, docs []store.DocumentSummary) string {
	if len(docs) == 0 {
		return s.Muted.Render("(no documents)") + "\n"
	}
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		sections := strconv.Itoa(d.Sections)
		if d.Legacy() {
			sections = "legacy"
		}
		rows = append(rows, []string{d.ID, d.Title, strconv.Itoa(d.WordCount), sections,
			strconv.Itoa(d.Versions), d.UpdatedAt.Format(time.DateTime)})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Divider).
		Headers("ID", "TITLE", "WORDS", "SECTIONS", "VERSIONS", "UPDATED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Bold.Padding(0, 1)
			}
			return s.Body.Padding(0, 1)
		})
	return t.Render() + "\n"
}

// History renders the versions of a document, oldest first.
func History(s Styles, versions []store.Version) string {
	if len(versions) == 0 {
		return s.Muted.Render("(no versions)") + "\n"
	}
	var sb strings.Builder
	for _, v := range versions {
		fmt.Fprintf(&sb, "%s  %s  %s  %s\n",
			s.Title.Render(fmt.Sprintf("v%d", v.Number)),
			s.Muted.Render(v.CreatedAt.Format(time.DateTime)),
			s.Body.Render(fmt.Sprintf("%d words", v.WordCount)),
			s.Muted.Render(shortHash(v.Hash)))
	}
	return sb.String()
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
