// Package setup implements the auto-discovery step of the account setup
// wizard: the user enters an email address and password, server settings
// are looked up, and the wizard moves on to password sign-in, OAuth or
// manual setup.
package setup

import (
	"context"

	"github.com/nhle/mailsetup/internal/autodiscovery"
	"github.com/nhle/mailsetup/internal/input"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/oauth"
)

// ConfigStep is the part of the wizard currently shown.
type ConfigStep int

const (
	StepEmailAddress ConfigStep = iota
	StepPassword
	StepOAuth
	StepManualSetup
)

func (s ConfigStep) String() string {
	switch s {
	case StepEmailAddress:
		return "EMAIL_ADDRESS"
	case StepPassword:
		return "PASSWORD"
	case StepOAuth:
		return "OAUTH"
	case StepManualSetup:
		return "MANUAL_SETUP"
	default:
		return "UNKNOWN"
	}
}

// Error is a screen-level failure of the discovery lookup.
type Error int

const (
	ErrorNone Error = iota
	ErrorNetwork
	ErrorUnknown
)

func (e Error) String() string {
	switch e {
	case ErrorNone:
		return "none"
	case ErrorNetwork:
		return "network"
	case ErrorUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// State is the complete screen state. It is replaced wholesale on every
// transition.
type State struct {
	EmailAddress input.StringField
	Password     input.StringField

	ConfigStep ConfigStep

	// AutoDiscoverySettings is nil until a lookup returns usable settings.
	AutoDiscoverySettings *autodiscovery.Settings

	ConfigurationApproved input.BoolField

	IsLoading           bool
	Error               Error
	IsNextButtonVisible bool

	// AuthorizationState is the serialized OAuth token set after a
	// successful sign-in.
	AuthorizationState string
}

// NewState returns the initial state: email step, empty fields.
func NewState() State {
	return State{
		ConfigStep:          StepEmailAddress,
		IsNextButtonVisible: true,
	}
}

// IsTrusted reports whether the discovered settings can be used without
// the user's approval.
func (s State) IsTrusted() bool {
	return s.AutoDiscoverySettings == nil || s.AutoDiscoverySettings.IsTrusted
}

// Event is a user or system input to the view-model.
type Event interface {
	isEvent()
}

type (
	EmailAddressChanged struct {
		EmailAddress string
	}

	PasswordChanged struct {
		Password string
	}

	ResultApprovalChanged struct {
		Confirmed bool
	}

	OnOAuthResult struct {
		Result oauth.Result
	}

	OnNextClicked              struct{}
	OnBackClicked              struct{}
	OnRetryClicked             struct{}
	OnEditConfigurationClicked struct{}

	initState struct {
		state State
	}

	discoveryResult struct {
		seq    uint64
		result autodiscovery.Result
	}
)

func (EmailAddressChanged) isEvent()        {}
func (PasswordChanged) isEvent()            {}
func (ResultApprovalChanged) isEvent()      {}
func (OnOAuthResult) isEvent()              {}
func (OnNextClicked) isEvent()              {}
func (OnBackClicked) isEvent()              {}
func (OnRetryClicked) isEvent()             {}
func (OnEditConfigurationClicked) isEvent() {}
func (initState) isEvent()                  {}
func (discoveryResult) isEvent()            {}

// Effect is a one-shot signal to the hosting screen.
type Effect interface {
	isEffect()
}

// NavigateBack leaves the wizard towards the previous screen.
type NavigateBack struct{}

// NavigateNext continues to the next wizard step.
type NavigateNext struct {
	Result AutoDiscoveryUIResult
}

func (NavigateBack) isEffect() {}
func (NavigateNext) isEffect() {}

// AutoDiscoveryUIResult tells the next step how the account was configured.
type AutoDiscoveryUIResult struct {
	IsAutomaticConfig bool

	// IncomingProtocolType is empty when no IMAP settings were discovered.
	IncomingProtocolType model.IncomingProtocolType
}

// Validator checks user input. A nil error means valid.
type Validator interface {
	ValidateEmailAddress(value string) error
	ValidatePassword(value string) error
	ValidateConfigurationApproval(isApproved, isAutoDiscoveryTrusted bool) error
}

// AccountStateRepository persists the account being set up.
type AccountStateRepository interface {
	SetState(ctx context.Context, state model.AccountState) error
	Clear(ctx context.Context) error
}

// OAuthViewModel is the sign-in view-model shown at the OAuth step.
type OAuthViewModel interface {
	InitState(state oauth.State)
}
