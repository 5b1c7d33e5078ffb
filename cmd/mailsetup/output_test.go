package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nhle/mailsetup/internal/autodiscovery"
	"github.com/nhle/mailsetup/internal/model"
)

func TestNewDiscoveryOutput(t *testing.T) {
	imap := model.ImapServerSettings{
		Hostname:            "imap.educa.madrid.org",
		Port:                993,
		ConnectionSecurity:  model.SecurityTLS,
		AuthenticationTypes: []model.AuthenticationType{model.AuthPasswordCleartext},
		Username:            "ana@educa.madrid.org",
	}

	tests := []struct {
		name     string
		result   autodiscovery.Result
		want     string
		protocol string
		hasError bool
	}{
		{"imap", autodiscovery.Settings{IncomingServerSettings: imap, IsTrusted: true, Source: "autoconfig"}, "settings", "imap", false},
		{"demo", autodiscovery.Settings{IncomingServerSettings: model.DemoServerSettings{}}, "settings", "demo", false},
		{"none", autodiscovery.NoUsableSettingsFound{}, "no_usable_settings", "", false},
		{"network", autodiscovery.NetworkError{Err: errors.New("dial tcp: timeout")}, "network_error", "", true},
		{"unexpected", autodiscovery.UnexpectedException{}, "unexpected_error", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newDiscoveryOutput("ana@educa.madrid.org", tt.result)
			assert.Equal(t, tt.want, out.Result)
			assert.Equal(t, tt.protocol, out.Protocol)
			assert.Equal(t, tt.hasError, out.Error != "")
		})
	}
}

func TestPrintYAML_Discovery(t *testing.T) {
	out := newDiscoveryOutput("ana@educa.madrid.org", autodiscovery.Settings{
		IncomingServerSettings: model.ImapServerSettings{
			Hostname:            "imap.educa.madrid.org",
			Port:                993,
			ConnectionSecurity:  model.SecurityTLS,
			AuthenticationTypes: []model.AuthenticationType{model.AuthOAuth2},
			Username:            "ana@educa.madrid.org",
		},
		IsTrusted: true,
		Source:    "autoconfig",
	})

	var buf bytes.Buffer
	require.NoError(t, printYAML(&buf, out))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "settings", decoded["result"])
	assert.Equal(t, true, decoded["trusted"])

	imap, ok := decoded["imap"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "imap.educa.madrid.org", imap["hostname"])
	assert.Equal(t, 993, imap["port"])
	assert.Equal(t, []any{"oauth2"}, imap["authentication_types"])
}

func TestNewAccountOutput_HidesSecrets(t *testing.T) {
	now := time.Now()
	out := newAccountOutput(&model.AccountState{
		ID:                 "id-1",
		EmailAddress:       "ana@educa.madrid.org",
		Password:           "secret",
		AuthorizationState: "",
		IsAutomaticConfig:  true,
		CreatedAt:          now,
		UpdatedAt:          now,
	})

	assert.True(t, out.HasPassword)
	assert.False(t, out.HasAuthorization)
	assert.Empty(t, out.Protocol)
	assert.Nil(t, out.Imap)

	var buf bytes.Buffer
	require.NoError(t, printYAML(&buf, out))
	assert.NotContains(t, buf.String(), "secret")
}
