// Package autodiscovery is the account setup screen: email and password
// entry, the discovery spinner and error views, the discovered settings
// with their approval, and the OAuth sign-in hand-off.
package autodiscovery

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/oauth"
	"github.com/nhle/mailsetup/internal/setup"
	"github.com/nhle/mailsetup/internal/ui/component"
)

const signInPollInterval = 200 * time.Millisecond

// NavigateNextMsg is sent when setup continues to the next wizard step.
type NavigateNextMsg struct {
	Result setup.AutoDiscoveryUIResult
}

// NavigateBackMsg is sent when the user leaves setup.
type NavigateBackMsg struct{}

// stateChangedMsg signals that the view-model published a new state.
type stateChangedMsg struct{}

type effectMsg struct {
	effect setup.Effect
}

type signInDoneMsg struct {
	result oauth.Result
}

type signInTickMsg struct{}

// ViewModel is the state machine behind the screen.
type ViewModel interface {
	Dispatch(e setup.Event)
	State() setup.State
	Updates() <-chan setup.State
	Effects() <-chan setup.Effect
	Done() <-chan struct{}
}

// SignIn runs the OAuth authorization for the OAUTH step.
type SignIn interface {
	State() oauth.State
	SignIn(ctx context.Context) oauth.Result
}

type focus int

const (
	focusNone focus = iota
	focusEmail
	focusPassword
	focusApproval
)

// Model is the Bubble Tea model of the setup screen.
type Model struct {
	vm     ViewModel
	signIn SignIn
	keys   *keys.KeyMap

	state setup.State

	email    component.TextField
	password component.TextField
	focus    focus

	approval *huh.Form
	approved *bool

	spinner spinner.Model

	signingIn    bool
	cancelSignIn context.CancelFunc
	oauthState   oauth.State

	width, height int
}

// New creates the setup screen bound to a running view-model.
func New(vm ViewModel, signIn SignIn, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		vm:       vm,
		signIn:   signIn,
		keys:     k,
		email:    component.NewEmailAddressInput(),
		password: component.NewPasswordInput(),
		spinner:  sp,
		width:    width,
		height:   height,
	}
	m.syncState()
	m.resetFocus()
	return m
}

// Init starts listening for view-model updates and effects.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForUpdate(m.vm),
		waitForEffect(m.vm),
	)
}

func waitForUpdate(vm ViewModel) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-vm.Updates():
			return stateChangedMsg{}
		case <-vm.Done():
			return nil
		}
	}
}

func waitForEffect(vm ViewModel) tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-vm.Effects():
			return effectMsg{effect: e}
		case <-vm.Done():
			return nil
		}
	}
}

func signInTick() tea.Cmd {
	return tea.Tick(signInPollInterval, func(time.Time) tea.Msg { return signInTickMsg{} })
}

// navigationMsg translates a view-model effect into the message the
// router handles.
func navigationMsg(effect setup.Effect) tea.Msg {
	switch e := effect.(type) {
	case setup.NavigateNext:
		return NavigateNextMsg{Result: e.Result}
	case setup.NavigateBack:
		return NavigateBackMsg{}
	default:
		return nil
	}
}

// Update handles messages for the setup screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case stateChangedMsg:
		return m, tea.Batch(m.syncState(), waitForUpdate(m.vm))

	case effectMsg:
		nav := navigationMsg(msg.effect)
		return m, tea.Batch(
			func() tea.Msg { return nav },
			waitForEffect(m.vm),
		)

	case spinner.TickMsg:
		if m.state.IsLoading || m.signingIn {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case signInTickMsg:
		if !m.signingIn {
			return m, nil
		}
		m.oauthState = m.signIn.State()
		return m, signInTick()

	case signInDoneMsg:
		m.signingIn = false
		m.cancelSignIn = nil
		m.oauthState = m.signIn.State()
		m.vm.Dispatch(setup.OnOAuthResult{Result: msg.result})
		return m, m.syncState()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusApproval && m.approval != nil {
		return m.updateApproval(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.focus == focusApproval && m.approval != nil &&
		!key.Matches(msg, m.keys.Back, m.keys.FocusNext, m.keys.FocusPrev) {
		return m.updateApproval(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		if m.signingIn {
			m.cancelSignIn()
			return m, nil
		}
		if m.focus == focusApproval {
			return m, m.focusOn(focusPassword)
		}
		return m.dispatch(setup.OnBackClicked{})

	case m.state.IsLoading || m.signingIn:
		return m, nil

	case m.state.Error != setup.ErrorNone:
		if key.Matches(msg, m.keys.Retry) {
			return m.dispatch(setup.OnRetryClicked{})
		}
		return m, nil

	case key.Matches(msg, m.keys.Next):
		return m.onNext()

	case key.Matches(msg, m.keys.EditConfig):
		if m.state.ConfigStep == setup.StepEmailAddress {
			return m, nil
		}
		return m.dispatch(setup.OnEditConfigurationClicked{})

	case key.Matches(msg, m.keys.ToggleMask):
		m.password.ToggleMask()
		return m, nil

	case key.Matches(msg, m.keys.FocusNext):
		return m, m.cycleFocus(1)

	case key.Matches(msg, m.keys.FocusPrev):
		return m, m.cycleFocus(-1)
	}

	return m.updateFocusedField(msg)
}

func (m Model) onNext() (Model, tea.Cmd) {
	switch {
	case m.state.ConfigStep == setup.StepOAuth:
		return m.startSignIn()
	case m.focus == focusEmail:
		return m, m.focusOn(focusPassword)
	default:
		return m.dispatch(setup.OnNextClicked{})
	}
}

func (m Model) dispatch(e setup.Event) (Model, tea.Cmd) {
	m.vm.Dispatch(e)
	return m, m.syncState()
}

func (m Model) updateFocusedField(msg tea.KeyMsg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusEmail:
		before := m.email.Value()
		m.email, cmd = m.email.Update(msg)
		if value := m.email.Value(); value != before {
			m.vm.Dispatch(setup.EmailAddressChanged{EmailAddress: value})
			return m, tea.Batch(cmd, m.syncState())
		}
	case focusPassword:
		before := m.password.Value()
		m.password, cmd = m.password.Update(msg)
		if value := m.password.Value(); value != before {
			m.vm.Dispatch(setup.PasswordChanged{Password: value})
			return m, tea.Batch(cmd, m.syncState())
		}
	}
	return m, cmd
}

func (m Model) startSignIn() (Model, tea.Cmd) {
	if m.signIn == nil {
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.signingIn = true
	m.cancelSignIn = cancel
	signIn := m.signIn

	return m, tea.Batch(
		func() tea.Msg {
			defer cancel()
			return signInDoneMsg{result: signIn.SignIn(ctx)}
		},
		signInTick(),
		m.spinner.Tick,
	)
}

// syncState copies the latest view-model state into the widgets.
func (m *Model) syncState() tea.Cmd {
	prev := m.state
	m.state = m.vm.State()
	s := m.state

	m.email.SetValue(s.EmailAddress.Value)
	m.email.SetError(s.EmailAddress.ErrorMessage())
	m.email.SetEnabled(s.ConfigStep == setup.StepEmailAddress && !s.IsLoading)

	m.password.SetValue(s.Password.Value)
	m.password.SetError(s.Password.ErrorMessage())
	m.password.SetEnabled(s.ConfigStep != setup.StepOAuth && !s.IsLoading)

	var cmds []tea.Cmd
	if s.IsLoading && !prev.IsLoading {
		cmds = append(cmds, m.spinner.Tick)
	}

	needsApproval := s.ConfigStep == setup.StepPassword && !s.IsTrusted()
	switch {
	case !needsApproval:
		m.approval = nil
		m.approved = nil
	case m.approval == nil || s.ConfigStep != prev.ConfigStep:
		m.buildApproval()
		cmds = append(cmds, m.approval.Init())
	}

	if s.ConfigStep != prev.ConfigStep || s.IsLoading != prev.IsLoading || s.Error != prev.Error {
		cmds = append(cmds, m.resetFocus())
	}

	return tea.Batch(cmds...)
}

func (m *Model) buildApproval() {
	approved := m.state.ConfigurationApproved.Value
	m.approved = &approved
	m.approval = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("¿Desea usar esta configuración?").
				Description("Los ajustes no proceden de una fuente verificada.").
				Affirmative("Sí").
				Negative("No").
				Value(m.approved),
		),
	).WithShowHelp(false).WithWidth(approvalWidth(m.width))
}

func approvalWidth(width int) int {
	return min(max(width-8, 20), 60)
}

func (m Model) updateApproval(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.approval.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.approval = f
	}

	switch m.approval.State {
	case huh.StateCompleted:
		m.vm.Dispatch(setup.ResultApprovalChanged{Confirmed: *m.approved})
		syncCmd := m.syncState()
		m.buildApproval()
		return m, tea.Batch(syncCmd, m.approval.Init(), m.focusOn(focusPassword))
	case huh.StateAborted:
		m.buildApproval()
		return m, tea.Batch(m.approval.Init(), m.focusOn(focusPassword))
	}

	return m, cmd
}

// focusTargets lists the focusable widgets of the current step in order.
func (m Model) focusTargets() []focus {
	if m.state.IsLoading || m.state.Error != setup.ErrorNone {
		return nil
	}
	switch m.state.ConfigStep {
	case setup.StepEmailAddress:
		return []focus{focusEmail, focusPassword}
	case setup.StepPassword:
		if m.approval != nil {
			return []focus{focusPassword, focusApproval}
		}
		return []focus{focusPassword}
	case setup.StepManualSetup:
		return []focus{focusPassword}
	default:
		return nil
	}
}

func (m *Model) resetFocus() tea.Cmd {
	targets := m.focusTargets()
	if len(targets) == 0 {
		return m.focusOn(focusNone)
	}
	return m.focusOn(targets[0])
}

func (m *Model) cycleFocus(delta int) tea.Cmd {
	targets := m.focusTargets()
	if len(targets) == 0 {
		return nil
	}
	idx := 0
	for i, t := range targets {
		if t == m.focus {
			idx = i
		}
	}
	idx = (idx + delta + len(targets)) % len(targets)
	return m.focusOn(targets[idx])
}

func (m *Model) focusOn(f focus) tea.Cmd {
	m.focus = f
	m.email.Blur()
	m.password.Blur()
	switch f {
	case focusEmail:
		return m.email.Focus()
	case focusPassword:
		return m.password.Focus()
	}
	return nil
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	fieldWidth := min(max(width-16, 20), 50)
	m.email = m.email.WithWidth(fieldWidth)
	m.password = m.password.WithWidth(fieldWidth)
	if m.approval != nil {
		m.approval = m.approval.WithWidth(approvalWidth(width))
	}
}

// State returns the state currently rendered.
func (m Model) State() setup.State {
	return m.state
}
