// Package welcome renders the onboarding screen shown before account
// setup.
package welcome

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/theme"
)

const (
	logo = `  ___    _              __  __         _        _    _
 | __|__| |_  _ __ __ _|  \/  |__ _ __| |_ _ _(_)__| |
 | _|/ _  | || / _/ _' | |\/| / _' / _' | '_| / _' |
 |___\__,_|\_,_\__\__,_|_|  |_\__,_\__,_|_| |_\__,_|`

	welcomeMessage = "Configure su cuenta de correo de EducaMadrid para empezar."
	startLabel     = "Comenzar"
)

// StartClickedMsg is sent when the user chooses to begin account setup.
type StartClickedMsg struct{}

// Model is the welcome screen.
type Model struct {
	title  string
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates the welcome screen for an application title.
func New(title string, k *keys.KeyMap, width, height int) Model {
	return Model{
		title:  title,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the welcome screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Next) {
		return m, func() tea.Msg { return StartClickedMsg{} }
	}
	return m, nil
}

// View renders the logo, title, message and start action.
func (m Model) View() string {
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		theme.LogoStyle.Render(logo),
		"",
		theme.TitleStyle.Render(m.title),
		welcomeMessage,
		"",
		theme.PrimaryButtonStyle.Render(startLabel),
	)

	return theme.PanelStyle.Render(content)
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
