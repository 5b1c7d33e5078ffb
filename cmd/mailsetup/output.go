package main

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nhle/mailsetup/internal/autodiscovery"
	"github.com/nhle/mailsetup/internal/model"
)

type discoveryOutput struct {
	EmailAddress string                    `yaml:"email_address"`
	Result       string                    `yaml:"result"`
	Protocol     string                    `yaml:"protocol,omitempty"`
	Trusted      *bool                     `yaml:"trusted,omitempty"`
	Source       string                    `yaml:"source,omitempty"`
	Imap         *model.ImapServerSettings `yaml:"imap,omitempty"`
	Error        string                    `yaml:"error,omitempty"`
}

func newDiscoveryOutput(email string, result autodiscovery.Result) discoveryOutput {
	out := discoveryOutput{EmailAddress: email}

	switch r := result.(type) {
	case autodiscovery.Settings:
		out.Result = "settings"
		out.Trusted = &r.IsTrusted
		out.Source = r.Source
		out.Protocol, out.Imap = describeSettings(r.IncomingServerSettings)
	case autodiscovery.NoUsableSettingsFound:
		out.Result = "no_usable_settings"
	case autodiscovery.NetworkError:
		out.Result = "network_error"
		out.Error = r.Error()
	case autodiscovery.UnexpectedException:
		out.Result = "unexpected_error"
		out.Error = r.Error()
	default:
		out.Result = "unknown"
	}
	return out
}

type accountOutput struct {
	ID                string                    `yaml:"id"`
	EmailAddress      string                    `yaml:"email_address"`
	Protocol          string                    `yaml:"protocol,omitempty"`
	Imap              *model.ImapServerSettings `yaml:"imap,omitempty"`
	IsAutomaticConfig bool                      `yaml:"is_automatic_config"`
	HasPassword       bool                      `yaml:"has_password"`
	HasAuthorization  bool                      `yaml:"has_authorization"`
	CreatedAt         time.Time                 `yaml:"created_at"`
	UpdatedAt         time.Time                 `yaml:"updated_at"`
}

// newAccountOutput reports secrets by presence only.
func newAccountOutput(account *model.AccountState) accountOutput {
	out := accountOutput{
		ID:                account.ID,
		EmailAddress:      account.EmailAddress,
		IsAutomaticConfig: account.IsAutomaticConfig,
		HasPassword:       account.Password != "",
		HasAuthorization:  account.AuthorizationState != "",
		CreatedAt:         account.CreatedAt,
		UpdatedAt:         account.UpdatedAt,
	}
	out.Protocol, out.Imap = describeSettings(account.IncomingServerSettings)
	return out
}

func describeSettings(settings model.IncomingServerSettings) (string, *model.ImapServerSettings) {
	switch s := settings.(type) {
	case model.ImapServerSettings:
		return string(model.IncomingProtocolIMAP), &s
	case model.DemoServerSettings:
		return "demo", nil
	default:
		return "", nil
	}
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}
