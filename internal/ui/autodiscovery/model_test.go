package autodiscovery

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	discovery "github.com/nhle/mailsetup/internal/autodiscovery"
	"github.com/nhle/mailsetup/internal/keys"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/oauth"
	"github.com/nhle/mailsetup/internal/setup"
	"github.com/nhle/mailsetup/internal/validation"
)

type nopRepository struct{}

func (nopRepository) SetState(context.Context, model.AccountState) error { return nil }
func (nopRepository) Clear(context.Context) error                        { return nil }

type nopOAuth struct{}

func (nopOAuth) InitState(oauth.State) {}

type fakeSignIn struct {
	result oauth.Result
}

func (f fakeSignIn) State() oauth.State { return oauth.State{} }

func (f fakeSignIn) SignIn(context.Context) oauth.Result { return f.result }

func newScreen(t *testing.T, result discovery.Result) (Model, *setup.ViewModel) {
	t.Helper()

	vm := setup.NewViewModel(
		validation.New("educa.madrid.org"),
		discovery.Func(func(context.Context, string) discovery.Result { return result }),
		nopRepository{},
		nopOAuth{},
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-vm.Done()
	})
	vm.Start(ctx)

	return New(vm, fakeSignIn{result: oauth.Canceled{}}, keys.DefaultKeyMap(), 100, 40), vm
}

func typeText(m Model, text string) Model {
	for _, r := range text {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func press(m Model, t tea.KeyType) Model {
	m, _ = m.Update(tea.KeyMsg{Type: t})
	return m
}

// settle waits for the lookup to finish and delivers the state change.
func settle(t *testing.T, m Model, vm *setup.ViewModel) Model {
	t.Helper()
	require.Eventually(t, func() bool { return !vm.State().IsLoading }, time.Second, 5*time.Millisecond)
	m, _ = m.Update(stateChangedMsg{})
	return m
}

func imapSettings(trusted bool) discovery.Settings {
	return discovery.Settings{
		IncomingServerSettings: model.ImapServerSettings{
			Hostname:            "imap.educa.madrid.org",
			Port:                993,
			ConnectionSecurity:  model.SecurityTLS,
			AuthenticationTypes: []model.AuthenticationType{model.AuthPasswordCleartext},
			Username:            "ana@educa.madrid.org",
		},
		IsTrusted: trusted,
		Source:    "autoconfig",
	}
}

func TestModel_TypingDispatchesChanges(t *testing.T) {
	m, vm := newScreen(t, discovery.NoUsableSettingsFound{})

	m = typeText(m, "ana@educa.madrid.org")
	m = press(m, tea.KeyTab)
	m = typeText(m, "secret")

	state := vm.State()
	assert.Equal(t, "ana@educa.madrid.org", state.EmailAddress.Value)
	assert.Equal(t, "secret", state.Password.Value)
	assert.Equal(t, state, m.State())
}

func TestModel_EnterOnEmailMovesToPassword(t *testing.T) {
	m, vm := newScreen(t, discovery.NoUsableSettingsFound{})

	m = typeText(m, "ana@educa.madrid.org")
	m = press(m, tea.KeyEnter)

	assert.Equal(t, focusPassword, m.focus)
	assert.Equal(t, setup.StepEmailAddress, vm.State().ConfigStep)
}

func TestModel_ValidationErrorShown(t *testing.T) {
	m, _ := newScreen(t, discovery.NoUsableSettingsFound{})

	m = typeText(m, "ana@gmail.com")
	m = press(m, tea.KeyTab)
	m = press(m, tea.KeyEnter)

	assert.NotEmpty(t, m.State().EmailAddress.ErrorMessage())
	assert.Contains(t, m.View(), "educa.madrid.org")
}

func TestModel_DiscoveryLeadsToPasswordStep(t *testing.T) {
	m, vm := newScreen(t, imapSettings(true))

	m = typeText(m, "ana@educa.madrid.org")
	m = press(m, tea.KeyTab)
	m = typeText(m, "secret")
	m = press(m, tea.KeyEnter)
	m = settle(t, m, vm)

	assert.Equal(t, setup.StepPassword, m.State().ConfigStep)
	assert.Nil(t, m.approval)

	view := m.View()
	assert.Contains(t, view, "imap.educa.madrid.org:993")
	assert.Contains(t, view, trustedLabel)
	assert.Equal(t, "Contraseña", m.StepTitle())
}

func TestModel_UntrustedSettingsAskForApproval(t *testing.T) {
	m, vm := newScreen(t, imapSettings(false))

	m = typeText(m, "ana@educa.madrid.org")
	m = press(m, tea.KeyTab)
	m = typeText(m, "secret")
	m = press(m, tea.KeyEnter)
	m = settle(t, m, vm)

	require.NotNil(t, m.approval)
	assert.Contains(t, m.View(), untrustedLabel)

	m = press(m, tea.KeyEnter)
	assert.NotEmpty(t, vm.State().ConfigurationApproved.ErrorMessage())

	select {
	case e := <-vm.Effects():
		t.Fatalf("unexpected effect %#v", e)
	default:
	}
}

func TestModel_ManualSetup(t *testing.T) {
	m, vm := newScreen(t, discovery.NoUsableSettingsFound{})

	m = typeText(m, "ana@educa.madrid.org")
	m = press(m, tea.KeyTab)
	m = typeText(m, "secret")
	m = press(m, tea.KeyEnter)
	m = settle(t, m, vm)

	assert.Equal(t, setup.StepManualSetup, m.State().ConfigStep)
	assert.Contains(t, m.View(), "No se encontró")

	m = press(m, tea.KeyEnter)

	select {
	case e := <-vm.Effects():
		assert.Equal(t, setup.NavigateNext{Result: setup.AutoDiscoveryUIResult{}}, e)
	case <-time.After(time.Second):
		t.Fatal("expected navigate next")
	}
}

func TestModel_ErrorAndRetry(t *testing.T) {
	m, vm := newScreen(t, discovery.NetworkError{})

	m = typeText(m, "ana@educa.madrid.org")
	m = press(m, tea.KeyTab)
	m = typeText(m, "secret")
	m = press(m, tea.KeyEnter)
	m = settle(t, m, vm)

	assert.Equal(t, setup.ErrorNetwork, m.State().Error)
	assert.Contains(t, m.View(), networkMessage)
	assert.NotContains(t, m.View(), nextLabel)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = settle(t, m, vm)

	assert.Equal(t, setup.ErrorNetwork, m.State().Error)
}

func TestModel_BackOnEmptyScreenNavigatesBack(t *testing.T) {
	m, vm := newScreen(t, discovery.NoUsableSettingsFound{})

	press(m, tea.KeyEsc)

	select {
	case e := <-vm.Effects():
		assert.Equal(t, NavigateBackMsg{}, navigationMsg(e))
	case <-time.After(time.Second):
		t.Fatal("expected navigate back")
	}
}

func TestModel_OAuthStep(t *testing.T) {
	settings := imapSettings(true)
	imap := settings.IncomingServerSettings.(model.ImapServerSettings)
	imap.AuthenticationTypes = []model.AuthenticationType{model.AuthOAuth2}
	settings.IncomingServerSettings = imap

	m, vm := newScreen(t, settings)

	m = typeText(m, "ana@educa.madrid.org")
	m = press(m, tea.KeyTab)
	m = typeText(m, "secret")
	m = press(m, tea.KeyEnter)
	m = settle(t, m, vm)

	require.Equal(t, setup.StepOAuth, m.State().ConfigStep)
	assert.NotContains(t, m.View(), nextLabel)
	assert.Contains(t, m.View(), signInLabel)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.signingIn)

	m, _ = m.Update(signInDoneMsg{result: oauth.Success{AuthorizationState: "{}"}})
	assert.False(t, m.signingIn)
	assert.Equal(t, "{}", vm.State().AuthorizationState)

	select {
	case e := <-vm.Effects():
		assert.Equal(t, NavigateNextMsg{Result: setup.AutoDiscoveryUIResult{
			IsAutomaticConfig:    true,
			IncomingProtocolType: model.IncomingProtocolIMAP,
		}}, navigationMsg(e))
	case <-time.After(time.Second):
		t.Fatal("expected navigate next")
	}
}

func TestModel_ToggleMask(t *testing.T) {
	m, _ := newScreen(t, discovery.NoUsableSettingsFound{})

	m = press(m, tea.KeyTab)
	m = typeText(m, "secret")
	assert.NotContains(t, m.View(), "secret")

	m = press(m, tea.KeyCtrlT)
	assert.Contains(t, m.View(), "secret")
}

func TestNavigationMsg_Unknown(t *testing.T) {
	assert.Nil(t, navigationMsg(nil))
}
