package setup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nhle/mailsetup/internal/autodiscovery"
	"github.com/nhle/mailsetup/internal/input"
	"github.com/nhle/mailsetup/internal/logging"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/oauth"
	"github.com/nhle/mailsetup/internal/validation"
)

const effectBuffer = 8

type envelope struct {
	event   Event
	handled chan struct{}
}

// ViewModel is the auto-discovery state machine. A single goroutine,
// started by Start, owns the state and handles events one at a time.
// Readers observe it through State and Updates; navigation signals arrive
// on Effects.
type ViewModel struct {
	validator  Validator
	discovery  autodiscovery.GetAutoDiscovery
	repository AccountStateRepository
	oauth      OAuthViewModel
	logger     *zap.Logger

	events  chan envelope
	updates chan State
	effects chan Effect
	done    chan struct{}
	started atomic.Bool

	mu       sync.RWMutex
	snapshot State

	// Owned by the loop goroutine.
	ctx          context.Context
	state        State
	seq          uint64
	cancelLookup context.CancelFunc
	lookups      sync.WaitGroup
}

// NewViewModel creates a view-model in the initial state. Call Start before
// dispatching events.
func NewViewModel(
	validator Validator,
	discovery autodiscovery.GetAutoDiscovery,
	repository AccountStateRepository,
	oauthViewModel OAuthViewModel,
) *ViewModel {
	initial := NewState()
	return &ViewModel{
		validator:  validator,
		discovery:  discovery,
		repository: repository,
		oauth:      oauthViewModel,
		logger:     logging.Named("setup"),
		events:     make(chan envelope),
		updates:    make(chan State, 1),
		effects:    make(chan Effect, effectBuffer),
		done:       make(chan struct{}),
		snapshot:   initial,
		state:      initial,
	}
}

// Start runs the event loop until ctx is done. In-flight lookups are
// canceled on exit. Only the first call has an effect.
func (vm *ViewModel) Start(ctx context.Context) {
	if !vm.started.CompareAndSwap(false, true) {
		return
	}
	vm.ctx = ctx
	go vm.run()
}

// Done is closed once the event loop has exited.
func (vm *ViewModel) Done() <-chan struct{} {
	return vm.done
}

// Dispatch sends an event and waits until it has been handled. Events
// dispatched before Start or after the loop has exited are dropped.
func (vm *ViewModel) Dispatch(e Event) {
	if !vm.started.Load() {
		vm.logger.Error("event dispatched before Start", zap.String("event", fmt.Sprintf("%T", e)))
		return
	}

	env := envelope{event: e, handled: make(chan struct{})}
	select {
	case vm.events <- env:
	case <-vm.done:
		return
	}
	select {
	case <-env.handled:
	case <-vm.done:
	}
}

// InitState replaces the whole state.
func (vm *ViewModel) InitState(state State) {
	vm.Dispatch(initState{state: state})
}

// State returns the latest state snapshot.
func (vm *ViewModel) State() State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.snapshot
}

// Updates delivers the latest state after each transition. Intermediate
// states are dropped when the reader falls behind.
func (vm *ViewModel) Updates() <-chan State {
	return vm.updates
}

// Effects delivers navigation signals, each exactly once.
func (vm *ViewModel) Effects() <-chan Effect {
	return vm.effects
}

func (vm *ViewModel) run() {
	defer close(vm.done)
	for {
		select {
		case <-vm.ctx.Done():
			vm.cancelInFlight()
			vm.lookups.Wait()
			return
		case env := <-vm.events:
			vm.handle(env.event)
			if env.handled != nil {
				close(env.handled)
			}
		}
	}
}

func (vm *ViewModel) handle(e Event) {
	switch e := e.(type) {
	case EmailAddressChanged:
		vm.changeEmailAddress(e.EmailAddress)
	case PasswordChanged:
		vm.updateState(func(s State) State {
			s.Password = s.Password.UpdateValue(e.Password)
			return s
		})
	case ResultApprovalChanged:
		vm.updateState(func(s State) State {
			s.ConfigurationApproved = s.ConfigurationApproved.UpdateValue(e.Confirmed)
			return s
		})
	case OnOAuthResult:
		vm.onOAuthResult(e.Result)
	case OnNextClicked:
		vm.onNext()
	case OnBackClicked:
		vm.onBack()
	case OnRetryClicked:
		vm.onRetry()
	case OnEditConfigurationClicked:
		vm.navigateNext(false)
	case initState:
		vm.cancelInFlight()
		vm.updateState(func(State) State { return e.state })
	case discoveryResult:
		vm.onDiscoveryResult(e)
	default:
		vm.logger.Warn("unhandled event", zap.Any("event", e))
	}
}

func (vm *ViewModel) updateState(fn func(State) State) {
	vm.state = fn(vm.state)

	vm.mu.Lock()
	vm.snapshot = vm.state
	vm.mu.Unlock()

	select {
	case <-vm.updates:
	default:
	}
	select {
	case vm.updates <- vm.state:
	default:
	}
}

func (vm *ViewModel) emit(effect Effect) {
	select {
	case vm.effects <- effect:
	default:
		vm.logger.Warn("effect dropped, no reader", zap.Any("effect", effect))
	}
}

func (vm *ViewModel) changeEmailAddress(emailAddress string) {
	vm.cancelInFlight()
	if err := vm.repository.Clear(vm.ctx); err != nil {
		vm.logger.Error("failed to clear account state", zap.Error(err))
	}
	vm.updateState(func(State) State {
		s := NewState()
		s.EmailAddress = s.EmailAddress.UpdateValue(emailAddress)
		return s
	})
}

func (vm *ViewModel) onNext() {
	if vm.state.IsLoading {
		return
	}
	switch vm.state.ConfigStep {
	case StepEmailAddress:
		vm.submitEmail()
	case StepPassword, StepManualSetup:
		vm.submitPassword()
	case StepOAuth:
		// Sign-in completes through OnOAuthResult.
	}
}

func (vm *ViewModel) submitEmail() {
	emailErr := vm.validator.ValidateEmailAddress(vm.state.EmailAddress.Value)
	switch validation.KindOf(emailErr) {
	case validation.KindBlankEmail, validation.KindInvalidDomain:
		vm.updateState(func(s State) State {
			s.EmailAddress = s.EmailAddress.UpdateError(emailErr)
			return s
		})
		return
	}

	passwordErr := vm.validator.ValidatePassword(vm.state.Password.Value)
	vm.updateState(func(s State) State {
		s.EmailAddress = s.EmailAddress.UpdateFromValidation(emailErr)
		s.Password = s.Password.UpdateFromValidation(passwordErr)
		return s
	})

	if emailErr == nil && passwordErr == nil {
		vm.startLookup()
	}
}

func (vm *ViewModel) submitPassword() {
	s := vm.state
	emailErr := vm.validator.ValidateEmailAddress(s.EmailAddress.Value)
	passwordErr := vm.validator.ValidatePassword(s.Password.Value)
	approvalErr := vm.validator.ValidateConfigurationApproval(s.ConfigurationApproved.Value, s.IsTrusted())

	vm.updateState(func(s State) State {
		s.EmailAddress = s.EmailAddress.UpdateFromValidation(emailErr)
		s.Password = s.Password.UpdateFromValidation(passwordErr)
		s.ConfigurationApproved = s.ConfigurationApproved.UpdateFromValidation(approvalErr)
		return s
	})

	if emailErr == nil && passwordErr == nil && approvalErr == nil {
		vm.navigateNext(vm.state.AutoDiscoverySettings != nil)
	}
}

func (vm *ViewModel) onRetry() {
	if vm.state.IsLoading {
		return
	}
	vm.updateState(func(s State) State {
		s.Error = ErrorNone
		return s
	})
	vm.startLookup()
}

func (vm *ViewModel) onBack() {
	switch vm.state.ConfigStep {
	case StepEmailAddress:
		switch {
		case vm.state.IsLoading:
			vm.cancelInFlight()
			vm.updateState(func(s State) State {
				s.IsLoading = false
				return s
			})
		case vm.state.Error != ErrorNone:
			vm.updateState(func(s State) State {
				s.Error = ErrorNone
				return s
			})
		default:
			vm.emit(NavigateBack{})
		}
	case StepOAuth, StepPassword, StepManualSetup:
		vm.updateState(func(s State) State {
			s.ConfigStep = StepEmailAddress
			s.Password = input.StringField{}
			s.IsNextButtonVisible = true
			return s
		})
	}
}

func (vm *ViewModel) onOAuthResult(result oauth.Result) {
	if success, ok := result.(oauth.Success); ok {
		vm.updateState(func(s State) State {
			s.AuthorizationState = success.AuthorizationState
			return s
		})
		vm.navigateNext(true)
		return
	}

	vm.updateState(func(s State) State {
		s.AuthorizationState = ""
		return s
	})
}

func (vm *ViewModel) navigateNext(isAutomaticConfig bool) {
	if err := vm.repository.SetState(vm.ctx, toAccountState(vm.state, isAutomaticConfig)); err != nil {
		vm.logger.Error("failed to save account state", zap.Error(err))
	}

	var settings model.IncomingServerSettings
	if vm.state.AutoDiscoverySettings != nil {
		settings = vm.state.AutoDiscoverySettings.IncomingServerSettings
	}
	vm.emit(NavigateNext{Result: mapToUIResult(isAutomaticConfig, settings)})
}

// startLookup supersedes any in-flight lookup and runs a new one for the
// current email address.
func (vm *ViewModel) startLookup() {
	vm.cancelInFlight()

	ctx, cancel := context.WithCancel(vm.ctx)
	vm.cancelLookup = cancel
	seq := vm.seq
	emailAddress := vm.state.EmailAddress.Value
	loopCtx := vm.ctx

	vm.updateState(func(s State) State {
		s.IsLoading = true
		return s
	})

	vm.logger.Debug("starting auto-discovery", zap.Uint64("seq", seq))

	vm.lookups.Add(1)
	go func() {
		defer vm.lookups.Done()
		result := vm.discovery.Execute(ctx, emailAddress)
		select {
		case vm.events <- envelope{event: discoveryResult{seq: seq, result: result}}:
		case <-loopCtx.Done():
		}
	}()
}

// cancelInFlight cancels the running lookup, if any, and invalidates its
// result.
func (vm *ViewModel) cancelInFlight() {
	if vm.cancelLookup != nil {
		vm.cancelLookup()
		vm.cancelLookup = nil
	}
	vm.seq++
}

func (vm *ViewModel) onDiscoveryResult(e discoveryResult) {
	if e.seq != vm.seq {
		vm.logger.Debug("dropping stale auto-discovery result", zap.Uint64("seq", e.seq))
		return
	}
	if vm.cancelLookup != nil {
		vm.cancelLookup()
		vm.cancelLookup = nil
	}

	switch r := e.result.(type) {
	case autodiscovery.NoUsableSettingsFound:
		vm.updateState(func(s State) State {
			s.IsLoading = false
			s.AutoDiscoverySettings = nil
			s.ConfigStep = StepManualSetup
			return s
		})
	case autodiscovery.Settings:
		vm.onSettings(r)
	case autodiscovery.NetworkError:
		vm.logger.Warn("auto-discovery network error", zap.Error(r.Err))
		vm.setError(ErrorNetwork)
	case autodiscovery.UnexpectedException:
		vm.logger.Error("auto-discovery failed", zap.Error(r.Err))
		vm.setError(ErrorUnknown)
	default:
		vm.logger.Error("unknown auto-discovery result", zap.Any("result", r))
		vm.setError(ErrorUnknown)
	}
}

func (vm *ViewModel) onSettings(settings autodiscovery.Settings) {
	isOAuth := false
	switch server := settings.IncomingServerSettings.(type) {
	case model.DemoServerSettings:
	case model.ImapServerSettings:
		isOAuth = server.PrefersOAuth()
		if isOAuth {
			vm.oauth.InitState(oauth.State{
				Hostname:     server.Hostname,
				EmailAddress: vm.state.EmailAddress.Value,
			})
		}
	default:
		vm.logger.Error("unsupported server settings", zap.Any("settings", server))
		vm.setError(ErrorUnknown)
		return
	}

	step := StepPassword
	if isOAuth {
		step = StepOAuth
	}
	vm.updateState(func(s State) State {
		s.IsLoading = false
		s.AutoDiscoverySettings = &settings
		s.ConfigStep = step
		s.IsNextButtonVisible = !isOAuth
		return s
	})
}

func (vm *ViewModel) setError(err Error) {
	vm.updateState(func(s State) State {
		s.IsLoading = false
		s.Error = err
		return s
	})
}
