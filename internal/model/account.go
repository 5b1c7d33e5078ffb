package model

import "time"

// IncomingProtocolType identifies the protocol used to read mail.
type IncomingProtocolType string

const (
	IncomingProtocolIMAP IncomingProtocolType = "imap"
)

// AuthenticationType is a login mechanism offered by an incoming server.
type AuthenticationType string

const (
	AuthPasswordCleartext AuthenticationType = "password_cleartext"
	AuthPasswordEncrypted AuthenticationType = "password_encrypted"
	AuthOAuth2            AuthenticationType = "oauth2"
)

// ConnectionSecurity describes how the connection to a server is protected.
type ConnectionSecurity string

const (
	SecurityNone     ConnectionSecurity = "none"
	SecurityStartTLS ConnectionSecurity = "starttls"
	SecurityTLS      ConnectionSecurity = "tls"
)

// IncomingServerSettings is the closed set of server configurations an
// auto-discovery lookup can produce: ImapServerSettings or
// DemoServerSettings.
type IncomingServerSettings interface {
	incomingServerSettings()
}

// ImapServerSettings describes a discovered IMAP server.
type ImapServerSettings struct {
	Hostname           string               `json:"hostname" yaml:"hostname"`
	Port               int                  `json:"port" yaml:"port"`
	ConnectionSecurity ConnectionSecurity   `json:"connection_security" yaml:"connection_security"`
	// AuthenticationTypes is ordered by preference; the first entry decides
	// whether the wizard uses OAuth or a password.
	AuthenticationTypes []AuthenticationType `json:"authentication_types" yaml:"authentication_types"`
	Username            string               `json:"username" yaml:"username"`
}

func (ImapServerSettings) incomingServerSettings() {}

// PrefersOAuth reports whether the preferred authentication is OAuth 2.0.
func (s ImapServerSettings) PrefersOAuth() bool {
	return len(s.AuthenticationTypes) > 0 && s.AuthenticationTypes[0] == AuthOAuth2
}

// DemoServerSettings marks an account backed by the built-in demo
// provider; no real server is contacted.
type DemoServerSettings struct{}

func (DemoServerSettings) incomingServerSettings() {}

// AccountState is the in-progress account setup handed to later wizard
// steps once auto-discovery completes.
type AccountState struct {
	// ID is assigned by the repository on first save.
	ID string

	EmailAddress string

	// Password is a secret and is never written to the database.
	Password string

	// IncomingServerSettings is nil when no usable settings were found.
	IncomingServerSettings IncomingServerSettings

	// AuthorizationState is the serialized OAuth token set; a secret.
	AuthorizationState string

	IsAutomaticConfig bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
