package testutil

import (
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/mailsetup/internal/credential"
	"github.com/nhle/mailsetup/internal/store"
)

// NewSecretStore returns a credential store backed by an in-memory keyring.
func NewSecretStore() *credential.Store {
	return credential.New(keyring.NewArrayKeyring(nil))
}

// NewFileSecretStore returns a credential store backed by the encrypted-file
// keyring in a temporary directory.
func NewFileSecretStore(t *testing.T) *credential.Store {
	t.Helper()

	ring, err := keyring.Open(keyring.Config{
		ServiceName:      "mailsetup-test",
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: keyring.FixedStringPrompt("test"),
	})
	if err != nil {
		t.Fatalf("opening file keyring: %v", err)
	}
	return credential.New(ring)
}

// NewTestStore creates an in-memory SQLiteStore with all migrations applied
// and secrets kept in memory. It automatically closes the store when the
// test completes.
func NewTestStore(t *testing.T) (*store.SQLiteStore, *credential.Store) {
	t.Helper()

	secrets := NewSecretStore()
	s, err := store.NewSQLiteStore(":memory:", secrets)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s, secrets
}
