// Package autodiscovery infers mail server settings from an email address.
//
// A lookup queries, concurrently, the provider's own autoconfig documents,
// the Thunderbird ISP database and RFC 6186 DNS SRV records, then picks the
// most authoritative usable IMAP configuration. Settings fetched over HTTPS
// are trusted; everything else needs the user's approval before use.
package autodiscovery

import (
	"context"

	"github.com/nhle/mailsetup/internal/model"
)

// Result is the outcome of a discovery lookup: one of
// NoUsableSettingsFound, Settings, NetworkError or UnexpectedException.
type Result interface {
	isResult()
}

// NoUsableSettingsFound means every source answered but none offered a
// supported IMAP configuration.
type NoUsableSettingsFound struct{}

// Settings carries a discovered configuration.
type Settings struct {
	IncomingServerSettings model.IncomingServerSettings

	// IsTrusted is set when the settings came from an authenticated source.
	IsTrusted bool

	// Source names the lookup that produced the settings.
	Source string
}

// NetworkError means no source could be reached.
type NetworkError struct {
	Err error
}

// UnexpectedException means a source answered with something that could
// not be used, e.g. a malformed document.
type UnexpectedException struct {
	Err error
}

func (NoUsableSettingsFound) isResult() {}
func (Settings) isResult()              {}
func (NetworkError) isResult()          {}
func (UnexpectedException) isResult()   {}

func (e NetworkError) Error() string {
	if e.Err == nil {
		return "network error"
	}
	return "network error: " + e.Err.Error()
}

func (e UnexpectedException) Error() string {
	if e.Err == nil {
		return "unexpected error"
	}
	return "unexpected error: " + e.Err.Error()
}

// GetAutoDiscovery looks up server settings for an email address.
type GetAutoDiscovery interface {
	Execute(ctx context.Context, emailAddress string) Result
}

// Func adapts a plain function to GetAutoDiscovery.
type Func func(ctx context.Context, emailAddress string) Result

// Execute calls f.
func (f Func) Execute(ctx context.Context, emailAddress string) Result {
	return f(ctx, emailAddress)
}
