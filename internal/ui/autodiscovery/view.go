package autodiscovery

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	discovery "github.com/nhle/mailsetup/internal/autodiscovery"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/setup"
	"github.com/nhle/mailsetup/internal/theme"
)

const (
	titleAddAccount = "Añadir cuenta"
	loadingMessage  = "Buscando la configuración de su cuenta…"
	networkMessage  = "No se pudo conectar con el servidor. Compruebe su conexión a Internet."
	unknownMessage  = "Se produjo un error inesperado al buscar la configuración."
	manualMessage   = "No se encontró ninguna configuración para esta dirección. Introduzca su contraseña para configurarla manualmente."
	demoMessage     = "Cuenta de demostración: no se contactará con ningún servidor."
	oauthMessage    = "Esta cuenta inicia sesión en el navegador."
	oauthWaiting    = "Abra esta dirección en su navegador para autorizar el acceso:"
	trustedLabel    = "Configuración verificada"
	untrustedLabel  = "Configuración no verificada"
	signInLabel     = "Iniciar sesión"
	nextLabel       = "Siguiente"
	backLabel       = "Atrás"
	retryLabel      = "Reintentar"
)

// StepTitle returns the header text for the current step.
func (m Model) StepTitle() string {
	switch {
	case m.state.IsLoading:
		return "Buscando configuración"
	case m.state.Error != setup.ErrorNone:
		return "Error"
	}
	switch m.state.ConfigStep {
	case setup.StepPassword:
		return "Contraseña"
	case setup.StepOAuth:
		return "Inicio de sesión"
	case setup.StepManualSetup:
		return "Configuración manual"
	default:
		return "Dirección de correo"
	}
}

// View renders the screen for the current state.
func (m Model) View() string {
	var body string
	switch {
	case m.state.IsLoading:
		body = m.loadingView()
	case m.state.Error != setup.ErrorNone:
		body = m.errorView()
	default:
		body = m.stepView()
	}

	return theme.PanelStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		theme.TitleStyle.Render(titleAddAccount),
		body,
		m.navigationView(),
	))
}

func (m Model) loadingView() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.email.View(),
		"",
		m.spinner.View()+" "+loadingMessage,
	)
}

func (m Model) errorView() string {
	message := unknownMessage
	if m.state.Error == setup.ErrorNetwork {
		message = networkMessage
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		theme.ErrorStyle.Render(message),
		"",
		theme.ButtonStyle.Render(retryLabel+" ("+m.keys.Retry.Help().Key+")"),
	)
}

func (m Model) stepView() string {
	switch m.state.ConfigStep {
	case setup.StepPassword:
		parts := []string{settingsView(m.state.AutoDiscoverySettings), "", m.password.View()}
		if m.approval != nil {
			parts = append(parts, "", m.approval.View())
			if msg := m.state.ConfigurationApproved.ErrorMessage(); msg != "" {
				parts = append(parts, theme.ErrorStyle.Render(msg))
			}
		}
		return lipgloss.JoinVertical(lipgloss.Left, parts...)

	case setup.StepOAuth:
		return lipgloss.JoinVertical(
			lipgloss.Left,
			settingsView(m.state.AutoDiscoverySettings),
			"",
			m.oauthView(),
		)

	case setup.StepManualSetup:
		return lipgloss.JoinVertical(
			lipgloss.Left,
			theme.WarningStyle.Render(manualMessage),
			"",
			m.email.View(),
			m.password.View(),
		)

	default:
		return lipgloss.JoinVertical(lipgloss.Left, m.email.View(), m.password.View())
	}
}

func (m Model) oauthView() string {
	if m.signingIn {
		lines := []string{m.spinner.View() + " " + oauthWaiting}
		if m.oauthState.AuthorizationURL != "" {
			lines = append(lines, theme.HelpStyle.Render(m.oauthState.AuthorizationURL))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines := []string{oauthMessage, "", theme.PrimaryButtonStyle.Render(signInLabel)}
	if m.oauthState.Error != nil {
		lines = append(lines, theme.ErrorStyle.Render(m.oauthState.Error.Error()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) navigationView() string {
	buttons := []string{theme.ButtonStyle.Render(backLabel)}
	if m.state.IsNextButtonVisible && !m.state.IsLoading && m.state.Error == setup.ErrorNone {
		buttons = append(buttons, theme.PrimaryButtonStyle.Render(nextLabel))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
}

// settingsView summarizes discovered settings.
func settingsView(s *discovery.Settings) string {
	if s == nil {
		return ""
	}

	var lines []string
	switch in := s.IncomingServerSettings.(type) {
	case model.DemoServerSettings:
		lines = append(lines, demoMessage)
	case model.ImapServerSettings:
		lines = append(lines,
			fmt.Sprintf("Servidor IMAP: %s:%d", in.Hostname, in.Port),
			"Seguridad: "+securityLabel(in.ConnectionSecurity),
			"Autenticación: "+authLabels(in.AuthenticationTypes),
			"Usuario: "+in.Username,
		)
	}

	trust := untrustedLabel
	if s.IsTrusted {
		trust = trustedLabel
	}
	if s.Source != "" {
		trust += " (" + s.Source + ")"
	}
	lines = append(lines, theme.TrustStyle(s.IsTrusted).Render(trust))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func securityLabel(s model.ConnectionSecurity) string {
	switch s {
	case model.SecurityTLS:
		return "SSL/TLS"
	case model.SecurityStartTLS:
		return "STARTTLS"
	default:
		return "ninguna"
	}
}

func authLabels(types []model.AuthenticationType) string {
	if len(types) == 0 {
		return "-"
	}
	labels := make([]string, 0, len(types))
	for _, t := range types {
		switch t {
		case model.AuthOAuth2:
			labels = append(labels, "OAuth 2.0")
		case model.AuthPasswordEncrypted:
			labels = append(labels, "contraseña cifrada")
		default:
			labels = append(labels, "contraseña")
		}
	}
	return strings.Join(labels, ", ")
}

// KeyHints returns the status bar hints for the current state.
func (m Model) KeyHints() string {
	var hints []string
	switch {
	case m.state.IsLoading || m.signingIn:
		hints = append(hints, "esc: cancelar")
	case m.state.Error != setup.ErrorNone:
		hints = append(hints, "ctrl+r: reintentar", "esc: atrás")
	default:
		if m.state.ConfigStep == setup.StepOAuth {
			hints = append(hints, "enter: iniciar sesión")
		} else if m.state.IsNextButtonVisible {
			hints = append(hints, "enter: siguiente", "tab: campo")
		}
		if m.state.ConfigStep != setup.StepEmailAddress {
			hints = append(hints, "ctrl+e: editar")
		}
		hints = append(hints, "esc: atrás")
	}
	hints = append(hints, "f1: ayuda")
	return theme.HelpStyle.Render(strings.Join(hints, " • "))
}
