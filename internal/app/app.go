// Package app is the root Bubble Tea model of the setup wizard. It routes
// between the welcome screen, account setup, the help overlay and the
// final summary.
package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/setup"
	"github.com/nhle/mailsetup/internal/theme"
	"github.com/nhle/mailsetup/internal/ui"
	setupview "github.com/nhle/mailsetup/internal/ui/autodiscovery"
	helpview "github.com/nhle/mailsetup/internal/ui/help"
	"github.com/nhle/mailsetup/internal/ui/welcome"
)

const defaultTitle = "Correo EducaMadrid"

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewSetup
	ViewHelp
	ViewDone
)

// Options configures the root model.
type Options struct {
	Title string

	// SkipWelcome starts directly at account setup; leaving setup then
	// quits instead of returning to the welcome screen.
	SkipWelcome bool
}

// Model is the root Bubble Tea model that manages view routing and layout.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	title        string
	skipWelcome  bool

	welcome      welcome.Model
	setupView    setupview.Model
	helpView     helpview.Model
	setupStarted bool

	result *setup.AutoDiscoveryUIResult
	ready  bool
}

// New creates the root model around a running setup view-model.
func New(vm setupview.ViewModel, signIn setupview.SignIn, opts Options) Model {
	k := keys.DefaultKeyMap()
	title := opts.Title
	if title == "" {
		title = defaultTitle
	}

	m := Model{
		currentView: ViewWelcome,
		keys:        k,
		title:       title,
		skipWelcome: opts.SkipWelcome,
		welcome:     welcome.New(title, k, 80, 24),
		setupView:   setupview.New(vm, signIn, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		layout:      ui.NewLayout(80, 24),
	}
	if opts.SkipWelcome {
		m.currentView = ViewSetup
		m.setupStarted = true
	}
	return m
}

// Init starts the setup screen when it is the first view.
func (m Model) Init() tea.Cmd {
	if m.currentView == ViewSetup {
		return m.setupView.Init()
	}
	return nil
}

// Result returns the outcome of account setup, or nil when the wizard was
// left before it completed.
func (m Model) Result() *setup.AutoDiscoveryUIResult {
	return m.result
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.welcome.SetSize(contentWidth, contentHeight)
		m.setupView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		return m, nil

	case welcome.StartClickedMsg:
		m.currentView = ViewSetup
		if m.setupStarted {
			return m, nil
		}
		return m, m.startSetup()

	case setupview.NavigateBackMsg:
		if m.skipWelcome {
			return m, tea.Quit
		}
		m.currentView = ViewWelcome
		return m, nil

	case setupview.NavigateNextMsg:
		result := msg.Result
		m.result = &result
		m.currentView = ViewDone
		return m, nil

	case helpview.CloseMsg:
		m.currentView = m.previousView
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help) && m.currentView != ViewHelp:
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case m.currentView == ViewDone && key.Matches(msg, m.keys.Next, m.keys.Back):
			return m, tea.Quit
		}
	}

	if _, isKey := msg.(tea.KeyMsg); !isKey || m.currentView == ViewSetup {
		// Setup keeps listening to its view-model while other screens show.
		var cmd tea.Cmd
		m.setupView, cmd = m.setupView.Update(msg)
		if m.currentView == ViewSetup {
			return m, cmd
		}
		return m.updateActiveView(msg, cmd)
	}

	return m.updateActiveView(msg, nil)
}

func (m *Model) startSetup() tea.Cmd {
	m.setupStarted = true
	return m.setupView.Init()
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg, pending tea.Cmd) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	if pending == nil {
		return m, cmd
	}
	return m, tea.Batch(pending, cmd)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Cargando..."
	}

	header := m.layout.RenderHeader(m.title, m.stepTitle())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewSetup:
		return m.setupView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewDone:
		return m.doneView()
	default:
		return m.welcome.View()
	}
}

func (m Model) stepTitle() string {
	switch m.currentView {
	case ViewSetup:
		return m.setupView.StepTitle()
	case ViewHelp:
		return "Ayuda"
	case ViewDone:
		return "Completado"
	default:
		return "Bienvenida"
	}
}

func (m Model) keyHints() string {
	switch m.currentView {
	case ViewSetup:
		return m.setupView.KeyHints()
	case ViewHelp:
		return theme.HelpStyle.Render("esc: cerrar")
	case ViewDone:
		return theme.HelpStyle.Render("enter: salir")
	default:
		return theme.HelpStyle.Render("enter: comenzar • f1: ayuda • ctrl+c: salir")
	}
}

func (m Model) doneView() string {
	if m.result == nil {
		return ""
	}

	config := "manual"
	if m.result.IsAutomaticConfig {
		config = "automática"
	}
	protocol := "sin determinar"
	if m.result.IncomingProtocolType == model.IncomingProtocolIMAP {
		protocol = "IMAP"
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		theme.SuccessStyle.Render("Cuenta preparada"),
		"",
		fmt.Sprintf("Configuración: %s", config),
		fmt.Sprintf("Protocolo de entrada: %s", protocol),
		"",
		theme.HelpStyle.Render("Use «mailsetup verify» para comprobar la conexión."),
	)
	return theme.PanelStyle.Render(content)
}
