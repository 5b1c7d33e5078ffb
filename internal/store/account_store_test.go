package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsetup/internal/credential"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/store"
	"github.com/nhle/mailsetup/tests/testutil"
)

var imapSettings = model.ImapServerSettings{
	Hostname:            "imap.educa.madrid.org",
	Port:                993,
	ConnectionSecurity:  model.SecurityTLS,
	AuthenticationTypes: []model.AuthenticationType{model.AuthOAuth2, model.AuthPasswordCleartext},
	Username:            "ana@educa.madrid.org",
}

func TestSQLiteStore_GetStateEmpty(t *testing.T) {
	s, _ := testutil.NewTestStore(t)

	_, err := s.GetState(context.Background())
	assert.ErrorIs(t, err, store.ErrNoState)
}

func TestSQLiteStore_SetGetImap(t *testing.T) {
	ctx := context.Background()
	s, secrets := testutil.NewTestStore(t)

	err := s.SetState(ctx, model.AccountState{
		EmailAddress:           "ana@educa.madrid.org",
		Password:               "secret",
		IncomingServerSettings: imapSettings,
		AuthorizationState:     `{"access_token":"t"}`,
		IsAutomaticConfig:      true,
	})
	require.NoError(t, err)

	got, err := s.GetState(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "ana@educa.madrid.org", got.EmailAddress)
	assert.Equal(t, "secret", got.Password)
	assert.Equal(t, imapSettings, got.IncomingServerSettings)
	assert.Equal(t, `{"access_token":"t"}`, got.AuthorizationState)
	assert.True(t, got.IsAutomaticConfig)
	assert.False(t, got.CreatedAt.IsZero())

	password, err := secrets.Get(got.ID + "/password")
	require.NoError(t, err)
	assert.Equal(t, "secret", password)
}

func TestSQLiteStore_SetStateKeepsID(t *testing.T) {
	ctx := context.Background()
	s, secrets := testutil.NewTestStore(t)

	require.NoError(t, s.SetState(ctx, model.AccountState{
		EmailAddress:       "ana@educa.madrid.org",
		Password:           "secret",
		AuthorizationState: "token",
	}))
	first, err := s.GetState(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SetState(ctx, model.AccountState{
		EmailAddress:           "ana@educa.madrid.org",
		IncomingServerSettings: model.DemoServerSettings{},
	}))
	second, err := s.GetState(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.Equal(t, model.DemoServerSettings{}, second.IncomingServerSettings)
	assert.Empty(t, second.Password)
	assert.Empty(t, second.AuthorizationState)

	_, err = secrets.Get(first.ID + "/password")
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestSQLiteStore_NewIDDropsPreviousSecrets(t *testing.T) {
	ctx := context.Background()
	s, secrets := testutil.NewTestStore(t)

	require.NoError(t, s.SetState(ctx, model.AccountState{ID: "one", EmailAddress: "a@educa.madrid.org", Password: "p1"}))
	require.NoError(t, s.SetState(ctx, model.AccountState{ID: "two", EmailAddress: "b@educa.madrid.org", Password: "p2"}))

	_, err := secrets.Get("one/password")
	assert.ErrorIs(t, err, credential.ErrNotFound)

	got, err := s.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", got.ID)
	assert.Equal(t, "p2", got.Password)
}

func TestSQLiteStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, secrets := testutil.NewTestStore(t)

	require.NoError(t, s.Clear(ctx))

	require.NoError(t, s.SetState(ctx, model.AccountState{
		ID:                 "acc",
		EmailAddress:       "ana@educa.madrid.org",
		Password:           "secret",
		AuthorizationState: "token",
	}))
	require.NoError(t, s.Clear(ctx))

	_, err := s.GetState(ctx)
	assert.ErrorIs(t, err, store.ErrNoState)
	_, err = secrets.Get("acc/password")
	assert.ErrorIs(t, err, credential.ErrNotFound)
	_, err = secrets.Get("acc/authorization")
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestSQLiteStore_NoSettings(t *testing.T) {
	ctx := context.Background()
	s, _ := testutil.NewTestStore(t)

	require.NoError(t, s.SetState(ctx, model.AccountState{EmailAddress: "ana@educa.madrid.org"}))

	got, err := s.GetState(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.IncomingServerSettings)
}

func TestSQLiteStore_WithoutSecretStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.SetState(ctx, model.AccountState{EmailAddress: "ana@educa.madrid.org", Password: "secret"}))

	got, err := s.GetState(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Password)
}

func TestSQLiteStore_ReopenKeepsSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "account.db")
	secrets := testutil.NewSecretStore()

	s, err := store.NewSQLiteStore(path, secrets)
	require.NoError(t, err)
	require.NoError(t, s.SetState(ctx, model.AccountState{EmailAddress: "ana@educa.madrid.org", Password: "secret"}))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path, secrets)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	version, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	got, err := s.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Password)
}

func TestSQLiteStore_FileKeyringPasswordOnly(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(":memory:", testutil.NewFileSecretStore(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	account := model.AccountState{
		ID:                     "acc",
		EmailAddress:           "ana@educa.madrid.org",
		Password:               "secret",
		IncomingServerSettings: imapSettings,
	}
	require.NoError(t, s.SetState(ctx, account))
	require.NoError(t, s.SetState(ctx, account))

	got, err := s.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Password)
	assert.Empty(t, got.AuthorizationState)

	require.NoError(t, s.Clear(ctx))
	_, err = s.GetState(ctx)
	assert.ErrorIs(t, err, store.ErrNoState)
}
