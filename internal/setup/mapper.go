package setup

import (
	"github.com/nhle/mailsetup/internal/model"
)

func toAccountState(s State, isAutomaticConfig bool) model.AccountState {
	account := model.AccountState{
		EmailAddress:       s.EmailAddress.Value,
		Password:           s.Password.Value,
		AuthorizationState: s.AuthorizationState,
		IsAutomaticConfig:  isAutomaticConfig,
	}
	if s.AutoDiscoverySettings != nil {
		account.IncomingServerSettings = s.AutoDiscoverySettings.IncomingServerSettings
	}
	return account
}

func mapToUIResult(isAutomaticConfig bool, settings model.IncomingServerSettings) AutoDiscoveryUIResult {
	result := AutoDiscoveryUIResult{IsAutomaticConfig: isAutomaticConfig}
	if _, ok := settings.(model.ImapServerSettings); ok {
		result.IncomingProtocolType = model.IncomingProtocolIMAP
	}
	return result
}
