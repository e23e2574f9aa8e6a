// Package ui renders manuscript data for the terminal: word-level diffs,
// section lists, markdown previews and a scrolling pager.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	// Light Mode Colors (Default)
	LightForeground = lipgloss.Color("#1f2933")
	LightPrimary    = lipgloss.Color("#243b53")
	LightAccent     = lipgloss.Color("#8BC34A")
	LightMuted      = lipgloss.Color("#7b8794")
	LightBorder     = lipgloss.Color("#cbd2d9")
	LightAddedBg    = lipgloss.Color("#e3f9e5")
	LightRemovedBg  = lipgloss.Color("#ffe3e3")

	// Dark Mode Colors
	DarkForeground = lipgloss.Color("#f2f2f2")
	DarkPrimary    = lipgloss.Color("#8BC34A")
	DarkAccent     = lipgloss.Color("#4db6ac")
	DarkMuted      = lipgloss.Color("#7b8794")
	DarkBorder     = lipgloss.Color("#2a3850")
	DarkAddedBg    = lipgloss.Color("#052e16")
	DarkRemovedBg  = lipgloss.Color("#2d0a0a")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#22c55e")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
)

// Theme holds the current color scheme
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	AddedBg    lipgloss.Color
	RemovedBg  lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		AddedBg:    LightAddedBg,
		RemovedBg:  LightRemovedBg,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		AddedBg:    DarkAddedBg,
		RemovedBg:  DarkRemovedBg,
		IsDark:     true,
	}
}

// DetectTheme picks a theme. A non-nil darkMode wins; otherwise COLORFGBG
// is consulted and light mode is the fallback.
func DetectTheme(darkMode *bool) Theme {
	if darkMode != nil {
		if *darkMode {
			return DarkTheme()
		}
		return LightTheme()
	}

	// Format is usually "foreground;background"; background 0-6 and 8 are dark.
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		parts := strings.Split(colorTerm, ";")
		if bgIdx, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
				return DarkTheme()
			}
		}
	}
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Diff
	Added     lipgloss.Style
	Removed   lipgloss.Style
	Same      lipgloss.Style
	HunkHead  lipgloss.Style
	Column    lipgloss.Style
	ColHeader lipgloss.Style

	// Components
	Divider lipgloss.Style
	Badge   lipgloss.Style
	Footer  lipgloss.Style
}

// NewStyles creates styles for theme. Styles are bound to r so output
// intended for a pipe or a test buffer carries no escape codes; a nil r
// uses the default renderer on stdout.
func NewStyles(theme Theme, r *lipgloss.Renderer) Styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Styles{
		Theme: theme,

		Title: r.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Subtitle: r.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Body: r.NewStyle().
			Foreground(theme.Foreground),

		Muted: r.NewStyle().
			Foreground(theme.Muted),

		Bold: r.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Success: r.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: r.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: r.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: r.NewStyle().
			Foreground(Info),

		Added: r.NewStyle().
			Foreground(Success).
			Background(theme.AddedBg),

		Removed: r.NewStyle().
			Foreground(Destructive).
			Background(theme.RemovedBg).
			Strikethrough(true),

		Same: r.NewStyle().
			Foreground(theme.Foreground),

		HunkHead: r.NewStyle().
			Foreground(Info),

		Column: r.NewStyle().
			Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(theme.Border),

		ColHeader: r.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			Underline(true),

		Divider: r.NewStyle().
			Foreground(theme.Border),

		Badge: r.NewStyle().
			Background(Warning).
			Foreground(lipgloss.Color("#000000")).
			Padding(0, 1).
			Bold(true),

		Footer: r.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for the detected theme on stdout.
func DefaultStyles(darkMode *bool) Styles {
	return NewStyles(DetectTheme(darkMode), nil)
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	if width < 1 {
		width = 1
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
