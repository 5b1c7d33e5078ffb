package component

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsetup/internal/theme"
)

const (
	emailAddressLabel = "Dirección de correo electrónico"
	passwordLabel     = "Contraseña"
)

// NewEmailAddressInput is the email field of the setup wizard.
func NewEmailAddressInput() TextField {
	return NewEmailTextField(emailAddressLabel).WithRequired(true)
}

// NewPasswordInput is the password field of the setup wizard.
func NewPasswordInput() TextField {
	return NewPasswordTextField(passwordLabel).WithRequired(true)
}

// InputLayout stacks a rendered field above its error message. The error
// line is omitted when errorMessage is empty.
func InputLayout(field string, errorMessage string) string {
	if errorMessage == "" {
		return field
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		field,
		theme.ErrorStyle.Render(errorMessage),
	)
}
