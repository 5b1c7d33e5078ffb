// Package store persists the account being set up. Server settings live in
// SQLite; the password and OAuth authorization state live in a SecretStore.
package store

import (
	"context"
	"errors"

	"github.com/nhle/mailsetup/internal/model"
)

// ErrNoState is returned by GetState when no account has been saved.
var ErrNoState = errors.New("no account state saved")

// AccountStore defines the persistence interface for the in-progress
// account.
type AccountStore interface {
	// SetState replaces the saved account. An empty ID keeps the ID of the
	// account already saved, or assigns a new one.
	SetState(ctx context.Context, state model.AccountState) error
	GetState(ctx context.Context) (*model.AccountState, error)
	Clear(ctx context.Context) error
}

// SecretStore keeps secret values by key. Get returns an error wrapping
// credential.ErrNotFound for missing keys.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
