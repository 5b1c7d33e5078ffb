package input

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestField_UpdateValueClearsError(t *testing.T) {
	f := StringField{Value: "old"}.UpdateError(errors.New("bad"))
	assert.True(t, f.HasError())

	updated := f.UpdateValue("new")

	assert.Equal(t, "new", updated.Value)
	assert.False(t, updated.HasError())
	assert.Empty(t, updated.ErrorMessage())

	// The original is unchanged.
	assert.Equal(t, "old", f.Value)
	assert.Equal(t, "bad", f.ErrorMessage())
}

func TestField_UpdateFromValidation(t *testing.T) {
	f := BoolField{Value: true}

	failed := f.UpdateFromValidation(errors.New("approval required"))
	assert.True(t, failed.Value)
	assert.Equal(t, "approval required", failed.ErrorMessage())

	passed := failed.UpdateFromValidation(nil)
	assert.True(t, passed.Value)
	assert.False(t, passed.HasError())
}

func TestField_ZeroValue(t *testing.T) {
	var f StringField

	assert.Empty(t, f.Value)
	assert.False(t, f.HasError())
}
