package validation

import (
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"
)

// DefaultRequiredDomain is the organizational domain every account address
// must belong to.
const DefaultRequiredDomain = "educa.madrid.org"

const (
	msgBlankEmail       = "Introduzca su dirección de correo electrónico para continuar."
	msgInvalidDomain    = "La dirección de correo electrónico proporcionada no pertenece a EducaMadrid: @%s"
	msgMalformedEmail   = "La dirección de correo electrónico introducida no es válida."
	msgBlankPassword    = "Introduzca su contraseña para continuar."
	msgApprovalRequired = "Confirme que la configuración encontrada es correcta para continuar."
)

// Validator holds the account-setup field checks. All methods are pure and
// safe for concurrent use.
type Validator struct {
	requiredDomain string
}

// New creates a Validator that only accepts addresses under requiredDomain.
// An empty requiredDomain disables the domain check.
func New(requiredDomain string) *Validator {
	return &Validator{
		requiredDomain: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(requiredDomain), "@")),
	}
}

// RequiredDomain returns the domain suffix enforced by ValidateEmailAddress.
func (v *Validator) RequiredDomain() string {
	return v.requiredDomain
}

// ValidateEmailAddress checks, in order, that the address is not blank,
// belongs to the required domain, and is a bare RFC 5322 addr-spec.
func (v *Validator) ValidateEmailAddress(value string) error {
	if strings.TrimSpace(value) == "" {
		return &Error{Kind: KindBlankEmail, Message: msgBlankEmail}
	}

	if v.requiredDomain != "" &&
		!strings.HasSuffix(strings.ToLower(value), "@"+v.requiredDomain) {
		return &Error{
			Kind:    KindInvalidDomain,
			Message: fmt.Sprintf(msgInvalidDomain, v.requiredDomain),
		}
	}

	// Display names and angle brackets are rejected; only the address itself
	// is accepted.
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Name != "" || addr.Address != value {
		return &Error{Kind: KindMalformedEmail, Message: msgMalformedEmail}
	}

	return nil
}

// ValidatePassword fails for an empty or whitespace-only password.
func (v *Validator) ValidatePassword(value string) error {
	if strings.TrimSpace(value) == "" {
		return &Error{Kind: KindBlankPassword, Message: msgBlankPassword}
	}
	return nil
}

// ValidateConfigurationApproval succeeds when the discovered settings are
// trusted, or when the user explicitly approved untrusted ones.
func (v *Validator) ValidateConfigurationApproval(isApproved, isAutoDiscoveryTrusted bool) error {
	if isAutoDiscoveryTrusted || isApproved {
		return nil
	}
	return &Error{Kind: KindApprovalRequired, Message: msgApprovalRequired}
}
