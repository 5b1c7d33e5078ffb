// Package help renders the keyboard shortcut overlay toggled with f1.
package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/theme"
)

const (
	title = "Atajos de teclado"
	steps = "1. Dirección de correo y contraseña\n" +
		"2. Búsqueda automática de la configuración\n" +
		"3. Contraseña, inicio de sesión OAuth o configuración manual"
)

// CloseMsg is sent when the overlay is dismissed.
type CloseMsg struct{}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   k,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update closes the overlay on f1 or esc.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Help, m.keys.Back) {
		return m, func() tea.Msg { return CloseMsg{} }
	}
	return m, nil
}

// View renders the shortcut table and the wizard steps.
func (m Model) View() string {
	content := lipgloss.JoinVertical(
		lipgloss.Left,
		theme.TitleStyle.Render(title),
		m.help.View(m.keys),
		"",
		theme.HelpStyle.Render(steps),
	)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
