package component

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func typeText(f TextField, text string) TextField {
	for _, r := range text {
		f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return f
}

func TestTextField_TypingWhenFocused(t *testing.T) {
	f := NewEmailAddressInput()
	f.Focus()

	f = typeText(f, "ana@educa.madrid.org")

	assert.Equal(t, "ana@educa.madrid.org", f.Value())
	assert.True(t, f.Focused())
}

func TestTextField_DisabledIgnoresInput(t *testing.T) {
	f := NewTextFieldOutlined("Nombre")
	f.Focus()
	f.SetEnabled(false)

	f = typeText(f, "abc")

	assert.Empty(t, f.Value())
	assert.False(t, f.Focused())
	assert.Nil(t, f.Focus())
}

func TestTextField_ViewShowsLabelAndError(t *testing.T) {
	f := NewEmailAddressInput()
	f.SetError("Introduzca su dirección de correo electrónico para continuar.")

	view := f.View()

	assert.Contains(t, view, emailAddressLabel+"*")
	assert.Contains(t, view, "Introduzca su dirección")

	f.SetError("")
	assert.NotContains(t, f.View(), "Introduzca")
}

func TestTextField_PasswordMasked(t *testing.T) {
	f := NewPasswordInput()
	f.Focus()
	f = typeText(f, "secret")

	assert.NotContains(t, f.View(), "secret")
	assert.Equal(t, "secret", f.Value())

	f.ToggleMask()
	assert.True(t, f.Revealed())
	assert.Contains(t, f.View(), "secret")

	f.ToggleMask()
	assert.False(t, f.Revealed())
}

func TestTextField_ToggleMaskOnlyForPasswords(t *testing.T) {
	f := NewEmailAddressInput()
	f.ToggleMask()
	assert.False(t, f.Revealed())
}

func TestInputLayout(t *testing.T) {
	assert.Equal(t, "field", InputLayout("field", ""))

	out := InputLayout("field", "bad")
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "bad")
}
