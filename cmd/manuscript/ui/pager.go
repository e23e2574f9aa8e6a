package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	pagerHeaderHeight = 2
	pagerFooterHeight = 1
)

// PagerModel scrolls long output in the terminal.
type PagerModel struct {
	viewport viewport.Model
	styles   Styles
	title    string
	content  string
	ready    bool
	width    int
}

// NewPagerModel creates a pager over content.
func NewPagerModel(styles Styles, title, content string) PagerModel {
	vp := viewport.New(80, 20)
	vp.SetContent(content)
	return PagerModel{
		viewport: vp,
		styles:   styles,
		title:    title,
		content:  content,
		width:    80,
	}
}

// Init implements tea.Model.
func (m PagerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m PagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := msg.Height - pagerHeaderHeight - pagerFooterHeight
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m PagerModel) View() string {
	header := m.styles.Title.Render(m.title) + "\n" + m.styles.RenderDivider(m.width)
	footer := m.styles.Footer.Render(fmt.Sprintf("%3.f%%  ↑/↓ scroll · g/G top/bottom · q quit", m.viewport.ScrollPercent()*100))
	return strings.Join([]string{header, m.viewport.View(), footer}, "\n")
}

// RunPager shows content in a full screen pager until the user quits.
func RunPager(styles Styles, title, content string) error {
	p := tea.NewProgram(
		NewPagerModel(styles, title, content),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}
