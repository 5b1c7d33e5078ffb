package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Apply forces the light or dark palette. "auto" (or anything else) keeps
// the terminal's detected background.
func Apply(name string) {
	switch strings.ToLower(name) {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}
}

// HeaderStyle is used for the top bar with the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps a screen's content area.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// TitleStyle is used for screen titles.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	MarginBottom(1)

// LogoStyle renders the welcome screen logo.
var LogoStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// LabelStyle renders text field labels.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// FieldStyle is the outlined border of an unfocused text field.
var FieldStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

// FocusedFieldStyle outlines the text field that has focus.
var FocusedFieldStyle = FieldStyle.
	BorderForeground(ColorBlue)

// ErrorFieldStyle outlines a text field whose value failed validation.
var ErrorFieldStyle = FieldStyle.
	BorderForeground(ColorRed)

// DisabledFieldStyle renders a text field that does not accept input.
var DisabledFieldStyle = FieldStyle.
	Foreground(ColorSubtle)

// ErrorStyle renders validation and screen error messages.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed)

// SuccessStyle renders confirmations.
var SuccessStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// WarningStyle renders notices that need the user's attention.
var WarningStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// ButtonStyle renders an action.
var ButtonStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 2)

// PrimaryButtonStyle renders the main action of a screen.
var PrimaryButtonStyle = ButtonStyle.
	Bold(true).
	Background(ColorBlue)

// TrustStyle returns a color-coded style for the trust level of
// discovered settings.
func TrustStyle(trusted bool) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	if trusted {
		return base.Foreground(ColorGreen)
	}
	return base.Foreground(ColorYellow)
}
