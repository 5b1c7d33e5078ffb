// Package oauth drives the OAuth 2.0 sign-in offered when a discovered IMAP
// server prefers OAuth2 authentication.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/nhle/mailsetup/internal/logging"
	"github.com/nhle/mailsetup/internal/model"
)

// ErrUnsupportedHost is returned when no OAuth provider is configured for
// the IMAP hostname.
var ErrUnsupportedHost = errors.New("no OAuth provider configured for host")

// ErrAccessDenied is returned when the user declines the authorization.
var ErrAccessDenied = errors.New("authorization denied")

// Provider is an OAuth 2.0 authorization server serving a set of IMAP
// hostnames.
type Provider struct {
	Name         string
	Hostnames    []string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	RedirectPort int
}

// ProvidersFromConfig converts configured providers.
func ProvidersFromConfig(cfgs []model.OAuthProviderConfig) []Provider {
	providers := make([]Provider, 0, len(cfgs))
	for _, c := range cfgs {
		providers = append(providers, Provider{
			Name:         c.Name,
			Hostnames:    c.Hostnames,
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			AuthURL:      c.AuthURL,
			TokenURL:     c.TokenURL,
			Scopes:       c.Scopes,
			RedirectPort: c.RedirectPort,
		})
	}
	return providers
}

func (p Provider) serves(hostname string) bool {
	for _, h := range p.Hostnames {
		if strings.EqualFold(h, hostname) {
			return true
		}
	}
	return false
}

// State is what the sign-in view renders.
type State struct {
	Hostname     string
	EmailAddress string

	// Provider is nil when the host has no configured provider.
	Provider *Provider

	IsLoading bool

	// AuthorizationURL is set while waiting for the user to authorize in
	// a browser.
	AuthorizationURL string

	Error error
}

// Result is the outcome of a sign-in: Success, Canceled or Failure.
type Result interface {
	isResult()
}

// Success carries the serialized token set.
type Success struct {
	AuthorizationState string
}

// Canceled means the user aborted or declined the authorization.
type Canceled struct{}

// Failure means the sign-in could not complete.
type Failure struct {
	Err error
}

func (Success) isResult()  {}
func (Canceled) isResult() {}
func (Failure) isResult()  {}

// Authorizer runs an authorization flow and returns the issued token.
// onURL is called with the URL the user must open.
type Authorizer interface {
	Authorize(ctx context.Context, provider Provider, loginHint string, onURL func(string)) (*oauth2.Token, error)
}

// ViewModel holds the sign-in state for one wizard run. It is safe for
// concurrent use: SignIn runs off the UI goroutine while State is polled.
type ViewModel struct {
	mu         sync.Mutex
	state      State
	providers  []Provider
	authorizer Authorizer
	logger     *zap.Logger
}

// NewViewModel creates a sign-in view-model.
func NewViewModel(providers []Provider, authorizer Authorizer) *ViewModel {
	return &ViewModel{
		providers:  providers,
		authorizer: authorizer,
		logger:     logging.Named("oauth"),
	}
}

// InitState resets the sign-in for a host and address and resolves the
// provider serving the host.
func (vm *ViewModel) InitState(state State) {
	state.Provider = nil
	state.IsLoading = false
	state.AuthorizationURL = ""
	state.Error = nil

	for i := range vm.providers {
		if vm.providers[i].serves(state.Hostname) {
			p := vm.providers[i]
			state.Provider = &p
			break
		}
	}

	vm.mu.Lock()
	vm.state = state
	vm.mu.Unlock()
}

// State returns a snapshot of the current sign-in state.
func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

func (vm *ViewModel) update(fn func(State) State) {
	vm.mu.Lock()
	vm.state = fn(vm.state)
	vm.mu.Unlock()
}

// SignIn runs the authorization flow for the current host. It blocks until
// the user completes or aborts the flow, or ctx is done.
func (vm *ViewModel) SignIn(ctx context.Context) Result {
	current := vm.State()
	if current.Provider == nil {
		err := fmt.Errorf("%w: %s", ErrUnsupportedHost, current.Hostname)
		vm.update(func(s State) State {
			s.Error = err
			return s
		})
		return Failure{Err: err}
	}

	vm.update(func(s State) State {
		s.IsLoading = true
		s.Error = nil
		return s
	})

	token, err := vm.authorizer.Authorize(ctx, *current.Provider, current.EmailAddress, func(url string) {
		vm.update(func(s State) State {
			s.AuthorizationURL = url
			return s
		})
	})

	result := vm.toResult(token, err)

	vm.update(func(s State) State {
		s.IsLoading = false
		s.AuthorizationURL = ""
		if f, ok := result.(Failure); ok {
			s.Error = f.Err
		}
		return s
	})

	return result
}

func (vm *ViewModel) toResult(token *oauth2.Token, err error) Result {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrAccessDenied):
		vm.logger.Info("sign-in canceled", zap.Error(err))
		return Canceled{}
	case err != nil:
		vm.logger.Warn("sign-in failed", zap.Error(err))
		return Failure{Err: err}
	}

	state, err := MarshalAuthorizationState(token)
	if err != nil {
		return Failure{Err: err}
	}
	return Success{AuthorizationState: state}
}

// MarshalAuthorizationState serializes a token for storage.
func MarshalAuthorizationState(token *oauth2.Token) (string, error) {
	if token == nil || token.AccessToken == "" {
		return "", errors.New("authorization returned no access token")
	}
	data, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("encoding authorization state: %w", err)
	}
	return string(data), nil
}

// ParseAuthorizationState restores a token serialized by
// MarshalAuthorizationState.
func ParseAuthorizationState(state string) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal([]byte(state), &token); err != nil {
		return nil, fmt.Errorf("decoding authorization state: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("authorization state has no access token")
	}
	return &token, nil
}
