// Package errs is the ledger error taxonomy. Every failure returned by the use
// cases matches exactly one top-level kind with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrNotEligible         = errors.New("not eligible")
	ErrAmountExceedsLimit  = errors.New("amount exceeds limit")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrPersistence         = errors.New("persistence failure")
	ErrInvalidMember       = errors.New("invalid member")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
)

// Refinements keep their parent kind reachable through errors.Is.
var (
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidPeriod = fmt.Errorf("%w: invalid period", ErrValidation)
	ErrLoanNotActive = fmt.Errorf("%w: loan not active", ErrInvalidTransition)
)

// Error pairs a kind with a message meant for the end user.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// New returns an error of the given kind with a readable reason.
func New(kind error, reason string) error {
	return &Error{Kind: kind, Reason: reason}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to an underlying cause.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Err: cause}
}

// Reason returns the user-facing reason carried by err, or err.Error().
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsDomain reports whether err already belongs to the taxonomy.
func IsDomain(err error) bool {
	for _, k := range []error{
		ErrValidation, ErrInvalidTransition, ErrNotEligible, ErrAmountExceedsLimit,
		ErrConcurrencyConflict, ErrPersistence, ErrInvalidMember, ErrNotFound, ErrForbidden,
	} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
