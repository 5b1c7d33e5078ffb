package validation

import "errors"

// Kind identifies why a field failed validation.
type Kind int

const (
	KindBlankEmail Kind = iota + 1
	KindInvalidDomain
	KindMalformedEmail
	KindBlankPassword
	KindApprovalRequired
)

func (k Kind) String() string {
	switch k {
	case KindBlankEmail:
		return "blank_email"
	case KindInvalidDomain:
		return "invalid_domain"
	case KindMalformedEmail:
		return "malformed_email"
	case KindBlankPassword:
		return "blank_password"
	case KindApprovalRequired:
		return "approval_required"
	default:
		return "unknown"
	}
}

// Error is a field validation failure carrying the message shown to the user.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsKind reports whether err (or any error in its chain) is a validation
// Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var vErr *Error
	if !errors.As(err, &vErr) {
		return false
	}
	return vErr.Kind == kind
}

// KindOf returns the validation kind of err, or 0 if err is not a
// validation Error.
func KindOf(err error) Kind {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Kind
	}
	return 0
}
