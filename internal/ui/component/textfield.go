// Package component holds the wizard's design-system widgets: outlined
// text fields and the input molecules built from them.
package component

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsetup/internal/theme"
)

const defaultFieldWidth = 40

// TextField is an outlined single-line input with a label, an optional
// required marker and an error state.
type TextField struct {
	input    textinput.Model
	label    string
	required bool
	enabled  bool
	password bool
	revealed bool
	err      string
}

// NewTextFieldOutlined creates a plain outlined text field.
func NewTextFieldOutlined(label string) TextField {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Width = defaultFieldWidth
	ti.CharLimit = 254

	return TextField{
		input:   ti,
		label:   label,
		enabled: true,
	}
}

// NewEmailTextField creates an outlined field for an email address.
func NewEmailTextField(label string) TextField {
	f := NewTextFieldOutlined(label)
	f.input.Placeholder = "nombre@educa.madrid.org"
	return f
}

// NewPasswordTextField creates an outlined field whose value is masked
// until revealed with ToggleMask.
func NewPasswordTextField(label string) TextField {
	f := NewTextFieldOutlined(label)
	f.password = true
	f.input.EchoMode = textinput.EchoPassword
	f.input.EchoCharacter = '•'
	return f
}

// WithRequired marks the label as required.
func (f TextField) WithRequired(required bool) TextField {
	f.required = required
	return f
}

// WithWidth sets the width of the editable area.
func (f TextField) WithWidth(width int) TextField {
	f.input.Width = max(width, 1)
	return f
}

// Value returns the current text.
func (f TextField) Value() string {
	return f.input.Value()
}

// SetValue replaces the text without marking the field as edited.
func (f *TextField) SetValue(value string) {
	if f.input.Value() != value {
		f.input.SetValue(value)
	}
}

// SetError shows message under the field; an empty message clears it.
func (f *TextField) SetError(message string) {
	f.err = message
}

// Error returns the error shown under the field.
func (f TextField) Error() string {
	return f.err
}

// SetEnabled toggles whether the field accepts input.
func (f *TextField) SetEnabled(enabled bool) {
	f.enabled = enabled
	if !enabled {
		f.input.Blur()
	}
}

// Enabled reports whether the field accepts input.
func (f TextField) Enabled() bool {
	return f.enabled
}

// Focus gives the field keyboard focus.
func (f *TextField) Focus() tea.Cmd {
	if !f.enabled {
		return nil
	}
	return f.input.Focus()
}

// Blur removes keyboard focus.
func (f *TextField) Blur() {
	f.input.Blur()
}

// Focused reports whether the field has keyboard focus.
func (f TextField) Focused() bool {
	return f.input.Focused()
}

// ToggleMask shows or hides a password field's value.
func (f *TextField) ToggleMask() {
	if !f.password {
		return
	}
	f.revealed = !f.revealed
	if f.revealed {
		f.input.EchoMode = textinput.EchoNormal
	} else {
		f.input.EchoMode = textinput.EchoPassword
	}
}

// Revealed reports whether a password field shows its value.
func (f TextField) Revealed() bool {
	return f.revealed
}

// Update handles key input while the field is focused and enabled.
func (f TextField) Update(msg tea.Msg) (TextField, tea.Cmd) {
	if !f.enabled {
		return f, nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the label, the outlined input and the error line.
func (f TextField) View() string {
	label := f.label
	if f.required {
		label += "*"
	}
	if f.password && f.revealed {
		label += " (visible)"
	}

	style := theme.FieldStyle
	switch {
	case !f.enabled:
		style = theme.DisabledFieldStyle
	case f.err != "":
		style = theme.ErrorFieldStyle
	case f.input.Focused():
		style = theme.FocusedFieldStyle
	}

	field := lipgloss.JoinVertical(
		lipgloss.Left,
		theme.LabelStyle.Render(label),
		style.Width(f.input.Width+3).Render(f.input.View()),
	)

	return InputLayout(field, f.err)
}
