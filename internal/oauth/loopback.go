package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const callbackPath = "/callback"

// LoopbackAuthorizer runs the authorization-code flow with PKCE, receiving
// the redirect on a short-lived HTTP listener bound to 127.0.0.1.
type LoopbackAuthorizer struct{}

type callbackResult struct {
	code string
	err  error
}

// Authorize implements Authorizer.
func (LoopbackAuthorizer) Authorize(
	ctx context.Context,
	provider Provider,
	loginHint string,
	onURL func(string),
) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", provider.RedirectPort))
	if err != nil {
		return nil, fmt.Errorf("listening for OAuth callback: %w", err)
	}

	cfg := &oauth2.Config{
		ClientID:     provider.ClientID,
		ClientSecret: provider.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  provider.AuthURL,
			TokenURL: provider.TokenURL,
		},
		RedirectURL: "http://" + ln.Addr().String() + callbackPath,
		Scopes:      provider.Scopes,
	}

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		res := parseCallback(r, state)
		if res.err != nil {
			http.Error(w, "No se pudo completar el inicio de sesión.", http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Inicio de sesión completado. Puede cerrar esta ventana.")
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	onURL(cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("login_hint", loginHint),
	))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		token, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code: %w", err)
		}
		return token, nil
	}
}

func parseCallback(r *http.Request, state string) callbackResult {
	q := r.URL.Query()

	if q.Get("state") != state {
		return callbackResult{err: errors.New("OAuth callback state mismatch")}
	}

	switch e := q.Get("error"); e {
	case "":
	case "access_denied":
		return callbackResult{err: ErrAccessDenied}
	default:
		return callbackResult{err: fmt.Errorf("authorization server returned %q: %s", e, q.Get("error_description"))}
	}

	code := q.Get("code")
	if code == "" {
		return callbackResult{err: errors.New("OAuth callback without code")}
	}
	return callbackResult{code: code}
}
