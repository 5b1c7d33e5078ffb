package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsetup/internal/theme"
)

// Layout holds the terminal dimensions and the fixed bar heights around
// the active screen.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the active screen,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// RenderHeader renders the top bar with the application title on the left
// and the current step on the right.
func (l Layout) RenderHeader(title string, step string) string {
	return l.fill(theme.HeaderStyle, theme.HeaderStyle.Render(title), theme.HeaderStyle.Render(step))
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	return l.fill(theme.StatusBarStyle, theme.StatusBarStyle.Render(hints), "")
}

func (l Layout) fill(style lipgloss.Style, left, right string) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar. The content is centered in
// the space between the bars.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	body := lipgloss.Place(
		l.ContentWidth(),
		l.ContentHeight(),
		lipgloss.Center,
		lipgloss.Center,
		content,
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		body,
		statusBar,
	)
}
