// Package imapcheck confirms that a saved account can log in to its IMAP
// server.
package imapcheck

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"go.uber.org/zap"

	"github.com/nhle/mailsetup/internal/logging"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/oauth"
)

const dialTimeout = 15 * time.Second

// ErrNoServer is returned for accounts without IMAP settings.
var ErrNoServer = errors.New("account has no IMAP server settings")

// AuthError indicates the server rejected the credentials.
type AuthError struct {
	Username string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %s", e.Username, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Report summarizes a successful check.
type Report struct {
	Address       string
	Mechanism     string
	Capabilities  []string
	InboxMessages uint32
}

// Checker logs in to IMAP servers.
type Checker struct {
	// TLSConfig overrides the client TLS configuration; ServerName is
	// filled in from the hostname when empty.
	TLSConfig *tls.Config

	logger *zap.Logger
}

// New creates a Checker.
func New() *Checker {
	return &Checker{logger: logging.Named("imapcheck")}
}

// Verify connects to the account's server, authenticates with the stored
// OAuth token or password, and selects INBOX.
func (c *Checker) Verify(ctx context.Context, account model.AccountState) (*Report, error) {
	settings, ok := account.IncomingServerSettings.(model.ImapServerSettings)
	if !ok {
		return nil, ErrNoServer
	}

	client, err := c.connect(ctx, settings)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	report := &Report{Address: net.JoinHostPort(settings.Hostname, strconv.Itoa(settings.Port))}

	report.Mechanism, err = c.authenticate(client, settings, account)
	if err != nil {
		return nil, err
	}

	caps, err := client.Capability().Wait()
	if err != nil {
		return nil, fmt.Errorf("reading capabilities: %w", ctxErr(ctx, err))
	}
	for capability := range caps {
		report.Capabilities = append(report.Capabilities, string(capability))
	}
	sort.Strings(report.Capabilities)

	data, err := client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", ctxErr(ctx, err))
	}
	report.InboxMessages = data.NumMessages

	if err := client.Logout().Wait(); err != nil {
		c.logger.Debug("logout failed", zap.Error(err))
	}

	return report, nil
}

func (c *Checker) connect(ctx context.Context, settings model.ImapServerSettings) (*imapclient.Client, error) {
	addr := net.JoinHostPort(settings.Hostname, strconv.Itoa(settings.Port))
	dialer := &net.Dialer{Timeout: dialTimeout}

	tlsConfig := &tls.Config{}
	if c.TLSConfig != nil {
		tlsConfig = c.TLSConfig.Clone()
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = settings.Hostname
	}
	options := &imapclient.Options{TLSConfig: tlsConfig}

	c.logger.Debug("connecting",
		zap.String("addr", addr),
		zap.String("security", string(settings.ConnectionSecurity)),
	)

	switch settings.ConnectionSecurity {
	case model.SecurityTLS:
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
		}
		return imapclient.New(conn, options), nil
	case model.SecurityStartTLS:
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
		}
		client, err := imapclient.NewStartTLS(conn, options)
		if err != nil {
			return nil, fmt.Errorf("starting TLS with %s: %w", addr, err)
		}
		return client, nil
	case model.SecurityNone:
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
		}
		return imapclient.New(conn, options), nil
	default:
		return nil, fmt.Errorf("unsupported connection security %q", settings.ConnectionSecurity)
	}
}

func (c *Checker) authenticate(
	client *imapclient.Client,
	settings model.ImapServerSettings,
	account model.AccountState,
) (string, error) {
	username := settings.Username
	if username == "" {
		username = account.EmailAddress
	}

	if account.AuthorizationState != "" {
		token, err := oauth.ParseAuthorizationState(account.AuthorizationState)
		if err != nil {
			return "", err
		}
		saslClient := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: username,
			Token:    token.AccessToken,
			Host:     settings.Hostname,
			Port:     settings.Port,
		})
		if err := client.Authenticate(saslClient); err != nil {
			return "", &AuthError{Username: username, Message: err.Error()}
		}
		return sasl.OAuthBearer, nil
	}

	if account.Password == "" {
		return "", &AuthError{Username: username, Message: "no password stored"}
	}
	if err := client.Login(username, account.Password).Wait(); err != nil {
		return "", &AuthError{Username: username, Message: err.Error()}
	}
	return "LOGIN", nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
