package ui

import (
	"fmt"
	"strings"

	"manuscript/internal/section"

	"github.com/charmbracelet/glamour"
)

// DocumentMarkdown renders a document as markdown: the title as a level one
// heading and each section under its own level two heading.
func DocumentMarkdown(doc section.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", doc.Title)
	if doc.NeedsMigration() {
		sb.WriteString(strings.TrimSpace(doc.Content))
		sb.WriteString("\n")
		return sb.String()
	}
	for _, sec := range doc.Sections {
		fmt.Fprintf(&sb, "## %s\n\n", sec.Title)
		if body := strings.TrimSpace(sec.Content); body != "" {
			sb.WriteString(body)
			sb.WriteString("\n\n")
		} else {
			sb.WriteString("_(empty)_\n\n")
		}
	}
	return sb.String()
}

// NewMarkdownRenderer creates a glamour renderer. style is "auto" or a
// built-in style name (dark, light, notty, ascii); width <= 0 selects 80.
func NewMarkdownRenderer(style string, width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = 80
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStylePath(style)
	}
	r, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r, nil
}

// RenderDocument renders doc through glamour.
func RenderDocument(doc section.Document, style string, width int) (string, error) {
	r, err := NewMarkdownRenderer(style, width)
	if err != nil {
		return "", err
	}
	out, err := r.Render(DocumentMarkdown(doc))
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", doc.ID, err)
	}
	return out, nil
}
