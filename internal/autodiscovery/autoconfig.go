package autodiscovery

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nhle/mailsetup/internal/model"
)

// clientConfig mirrors the parts of the Thunderbird autoconfig format
// (config-v1.1.xml) that describe incoming servers.
type clientConfig struct {
	XMLName       xml.Name `xml:"clientConfig"`
	EmailProvider struct {
		ID              string           `xml:"id,attr"`
		Domains         []string         `xml:"domain"`
		IncomingServers []incomingServer `xml:"incomingServer"`
	} `xml:"emailProvider"`
}

type incomingServer struct {
	Type            string   `xml:"type,attr"`
	Hostname        string   `xml:"hostname"`
	Port            string   `xml:"port"`
	SocketType      string   `xml:"socketType"`
	Username        string   `xml:"username"`
	Authentications []string `xml:"authentication"`
}

// parseAutoconfig extracts the first usable IMAP server from an autoconfig
// document. It returns errNoSettings when the document is valid but offers
// nothing usable.
func parseAutoconfig(r io.Reader, emailAddress string) (*model.ImapServerSettings, error) {
	var cfg clientConfig
	if err := xml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding autoconfig document: %w", err)
	}

	for _, srv := range cfg.EmailProvider.IncomingServers {
		if !strings.EqualFold(srv.Type, "imap") {
			continue
		}

		settings, ok := imapFromAutoconfig(srv, emailAddress)
		if ok {
			return settings, nil
		}
	}

	return nil, errNoSettings
}

func imapFromAutoconfig(srv incomingServer, emailAddress string) (*model.ImapServerSettings, bool) {
	hostname := expandPlaceholders(strings.TrimSpace(srv.Hostname), emailAddress)
	if hostname == "" {
		return nil, false
	}

	security, ok := securityFromSocketType(srv.SocketType)
	if !ok {
		return nil, false
	}

	port, err := strconv.Atoi(strings.TrimSpace(srv.Port))
	if err != nil || port <= 0 || port > 65535 {
		port = defaultIMAPPort(security)
	}

	var authTypes []model.AuthenticationType
	for _, a := range srv.Authentications {
		if t, ok := authFromAutoconfig(a); ok && !containsAuth(authTypes, t) {
			authTypes = append(authTypes, t)
		}
	}
	if len(authTypes) == 0 {
		return nil, false
	}

	return &model.ImapServerSettings{
		Hostname:            hostname,
		Port:                port,
		ConnectionSecurity:  security,
		AuthenticationTypes: authTypes,
		Username:            expandPlaceholders(strings.TrimSpace(srv.Username), emailAddress),
	}, true
}

func securityFromSocketType(socketType string) (model.ConnectionSecurity, bool) {
	switch strings.ToUpper(strings.TrimSpace(socketType)) {
	case "SSL", "TLS":
		return model.SecurityTLS, true
	case "STARTTLS":
		return model.SecurityStartTLS, true
	case "PLAIN", "":
		return model.SecurityNone, true
	default:
		return "", false
	}
}

func authFromAutoconfig(value string) (model.AuthenticationType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "password-cleartext", "plain":
		return model.AuthPasswordCleartext, true
	case "password-encrypted", "secure":
		return model.AuthPasswordEncrypted, true
	case "oauth2":
		return model.AuthOAuth2, true
	default:
		return "", false
	}
}

func containsAuth(list []model.AuthenticationType, t model.AuthenticationType) bool {
	for _, a := range list {
		if a == t {
			return true
		}
	}
	return false
}

func defaultIMAPPort(security model.ConnectionSecurity) int {
	if security == model.SecurityTLS {
		return 993
	}
	return 143
}

// expandPlaceholders substitutes the autoconfig address placeholders.
func expandPlaceholders(value, emailAddress string) string {
	local, domain := splitAddress(emailAddress)
	r := strings.NewReplacer(
		"%EMAILADDRESS%", emailAddress,
		"%EMAILLOCALPART%", local,
		"%EMAILDOMAIN%", domain,
	)
	return r.Replace(value)
}

// splitAddress returns the local part and lowercased domain of an address.
func splitAddress(emailAddress string) (string, string) {
	at := strings.LastIndex(emailAddress, "@")
	if at < 0 {
		return emailAddress, ""
	}
	return emailAddress[:at], strings.ToLower(emailAddress[at+1:])
}
