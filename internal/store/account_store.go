package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/mailsetup/internal/credential"
	"github.com/nhle/mailsetup/internal/model"
)

const (
	protocolNone = ""
	protocolIMAP = "imap"
	protocolDemo = "demo"
)

// accountRow mirrors the account_state table.
type accountRow struct {
	Slot                int       `db:"slot"`
	ID                  string    `db:"id"`
	EmailAddress        string    `db:"email_address"`
	Protocol            string    `db:"protocol"`
	Hostname            string    `db:"hostname"`
	Port                int       `db:"port"`
	ConnectionSecurity  string    `db:"connection_security"`
	AuthenticationTypes string    `db:"authentication_types"`
	Username            string    `db:"username"`
	IsAutomaticConfig   int       `db:"is_automatic_config"`
	HasAuthorization    int       `db:"has_authorization"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func passwordKey(id string) string      { return id + "/password" }
func authorizationKey(id string) string { return id + "/authorization" }

// SetState saves the account, replacing any previous one.
func (s *SQLiteStore) SetState(ctx context.Context, state model.AccountState) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var previous accountRow
	err = tx.GetContext(ctx, &previous, "SELECT * FROM account_state WHERE slot = 1")
	hasPrevious := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading account state: %w", err)
	}

	now := time.Now().UTC()
	createdAt := now
	if state.ID == "" && hasPrevious {
		state.ID = previous.ID
	}
	if state.ID == "" {
		state.ID = uuid.New().String()
	}
	if hasPrevious && previous.ID == state.ID {
		createdAt = previous.CreatedAt
	}

	row, err := toRow(state)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO account_state (
			slot, id, email_address, protocol,
			hostname, port, connection_security, authentication_types, username,
			is_automatic_config, has_authorization,
			created_at, updated_at
		) VALUES (
			1, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?,
			?, ?
		)`,
		row.ID, row.EmailAddress, row.Protocol,
		row.Hostname, row.Port, row.ConnectionSecurity, row.AuthenticationTypes, row.Username,
		row.IsAutomaticConfig, row.HasAuthorization,
		createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("saving account %s: %w", state.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing account %s: %w", state.ID, err)
	}

	if hasPrevious && previous.ID != state.ID {
		s.deleteSecrets(previous.ID)
	}
	if err := s.putSecret(passwordKey(state.ID), state.Password); err != nil {
		return err
	}
	return s.putSecret(authorizationKey(state.ID), state.AuthorizationState)
}

// GetState returns the saved account with its secrets, or ErrNoState.
func (s *SQLiteStore) GetState(ctx context.Context) (*model.AccountState, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM account_state WHERE slot = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("reading account state: %w", err)
	}

	state, err := fromRow(row)
	if err != nil {
		return nil, err
	}

	if state.Password, err = s.getSecret(passwordKey(row.ID)); err != nil {
		return nil, err
	}
	if row.HasAuthorization != 0 {
		if state.AuthorizationState, err = s.getSecret(authorizationKey(row.ID)); err != nil {
			return nil, err
		}
	}

	return &state, nil
}

// Clear removes the saved account and its secrets.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	var id string
	err := s.db.GetContext(ctx, &id, "SELECT id FROM account_state WHERE slot = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading account state: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM account_state"); err != nil {
		return fmt.Errorf("clearing account state: %w", err)
	}

	s.deleteSecrets(id)
	return nil
}

func (s *SQLiteStore) putSecret(key, value string) error {
	if s.secrets == nil {
		return nil
	}
	if value == "" {
		return s.secrets.Delete(key)
	}
	return s.secrets.Set(key, value)
}

func (s *SQLiteStore) getSecret(key string) (string, error) {
	if s.secrets == nil {
		return "", nil
	}
	value, err := s.secrets.Get(key)
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) deleteSecrets(id string) {
	if s.secrets == nil {
		return
	}
	for _, key := range []string{passwordKey(id), authorizationKey(id)} {
		if err := s.secrets.Delete(key); err != nil {
			s.logger.Warn("failed to delete secret", zap.String("key", key), zap.Error(err))
		}
	}
}

func toRow(state model.AccountState) (accountRow, error) {
	row := accountRow{
		ID:                  state.ID,
		EmailAddress:        state.EmailAddress,
		Protocol:            protocolNone,
		AuthenticationTypes: "[]",
		IsAutomaticConfig:   boolToInt(state.IsAutomaticConfig),
		HasAuthorization:    boolToInt(state.AuthorizationState != ""),
	}

	switch settings := state.IncomingServerSettings.(type) {
	case nil:
	case model.DemoServerSettings:
		row.Protocol = protocolDemo
	case model.ImapServerSettings:
		authTypes, err := json.Marshal(settings.AuthenticationTypes)
		if err != nil {
			return accountRow{}, fmt.Errorf("marshaling authentication types: %w", err)
		}
		row.Protocol = protocolIMAP
		row.Hostname = settings.Hostname
		row.Port = settings.Port
		row.ConnectionSecurity = string(settings.ConnectionSecurity)
		row.AuthenticationTypes = string(authTypes)
		row.Username = settings.Username
	default:
		return accountRow{}, fmt.Errorf("unsupported server settings %T", settings)
	}

	return row, nil
}

func fromRow(row accountRow) (model.AccountState, error) {
	state := model.AccountState{
		ID:                row.ID,
		EmailAddress:      row.EmailAddress,
		IsAutomaticConfig: row.IsAutomaticConfig != 0,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}

	switch row.Protocol {
	case protocolNone:
	case protocolDemo:
		state.IncomingServerSettings = model.DemoServerSettings{}
	case protocolIMAP:
		imap := model.ImapServerSettings{
			Hostname:           row.Hostname,
			Port:               row.Port,
			ConnectionSecurity: model.ConnectionSecurity(row.ConnectionSecurity),
			Username:           row.Username,
		}
		if err := json.Unmarshal([]byte(row.AuthenticationTypes), &imap.AuthenticationTypes); err != nil {
			return model.AccountState{}, fmt.Errorf("unmarshaling authentication types: %w", err)
		}
		state.IncomingServerSettings = imap
	default:
		return model.AccountState{}, fmt.Errorf("unknown protocol %q", row.Protocol)
	}

	return state, nil
}
