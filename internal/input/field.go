// Package input provides the value/error pair backing a single form field.
package input

// Field holds a form value together with the error from its most recent
// validation. A Field is a value: every update returns a new Field and
// leaves the receiver untouched.
type Field[T any] struct {
	Value T
	Error error
}

// StringField backs text inputs such as the email address and password.
type StringField = Field[string]

// BoolField backs toggles such as the configuration approval.
type BoolField = Field[bool]

// UpdateValue returns a copy holding value with the error cleared; a new
// value has not been validated yet.
func (f Field[T]) UpdateValue(value T) Field[T] {
	return Field[T]{Value: value}
}

// UpdateError returns a copy carrying err.
func (f Field[T]) UpdateError(err error) Field[T] {
	return Field[T]{Value: f.Value, Error: err}
}

// UpdateFromValidation applies a validation outcome: a nil err clears any
// previous error.
func (f Field[T]) UpdateFromValidation(err error) Field[T] {
	return f.UpdateError(err)
}

// HasError reports whether the last validation failed.
func (f Field[T]) HasError() bool {
	return f.Error != nil
}

// ErrorMessage returns the user-facing error text, or "" when valid.
func (f Field[T]) ErrorMessage() string {
	if f.Error == nil {
		return ""
	}
	return f.Error.Error()
}
