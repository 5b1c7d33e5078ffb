package imapcheck

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsetup/internal/model"
)

// startServer runs an in-memory IMAP server without TLS and returns its
// settings for user "ana".
func startServer(t *testing.T) model.ImapServerSettings {
	t.Helper()

	mem := imapmemserver.New()
	user := imapmemserver.NewUser("ana", "secret")
	require.NoError(t, user.Create("INBOX", nil))
	mem.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	return model.ImapServerSettings{
		Hostname:            host,
		Port:                portNum,
		ConnectionSecurity:  model.SecurityNone,
		AuthenticationTypes: []model.AuthenticationType{model.AuthPasswordCleartext},
		Username:            "ana",
	}
}

func TestVerify_Password(t *testing.T) {
	settings := startServer(t)

	report, err := New().Verify(context.Background(), model.AccountState{
		EmailAddress:           "ana@educa.madrid.org",
		Password:               "secret",
		IncomingServerSettings: settings,
	})
	require.NoError(t, err)

	assert.Equal(t, "LOGIN", report.Mechanism)
	assert.Equal(t, uint32(0), report.InboxMessages)
	assert.Contains(t, report.Capabilities, string(imap.CapIMAP4rev2))
}

func TestVerify_WrongPassword(t *testing.T) {
	settings := startServer(t)

	_, err := New().Verify(context.Background(), model.AccountState{
		Password:               "wrong",
		IncomingServerSettings: settings,
	})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestVerify_NoPassword(t *testing.T) {
	settings := startServer(t)

	_, err := New().Verify(context.Background(), model.AccountState{IncomingServerSettings: settings})
	assert.True(t, IsAuthError(err))
}

func TestVerify_NoServer(t *testing.T) {
	_, err := New().Verify(context.Background(), model.AccountState{
		IncomingServerSettings: model.DemoServerSettings{},
	})
	assert.ErrorIs(t, err, ErrNoServer)

	_, err = New().Verify(context.Background(), model.AccountState{})
	assert.ErrorIs(t, err, ErrNoServer)
}

func TestVerify_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, err = New().Verify(context.Background(), model.AccountState{
		Password: "secret",
		IncomingServerSettings: model.ImapServerSettings{
			Hostname:           "127.0.0.1",
			Port:               port,
			ConnectionSecurity: model.SecurityTLS,
		},
	})
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
}

func TestVerify_InvalidAuthorizationState(t *testing.T) {
	settings := startServer(t)

	_, err := New().Verify(context.Background(), model.AccountState{
		AuthorizationState:     "garbage",
		IncomingServerSettings: settings,
	})
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
}
