package errors

import stderrors "errors"

// Fault classes. Every error returned by an engine operation wraps exactly one
// of these so transports can map it without string matching.
var (
	// ErrValidation marks malformed input: bad percentages, wrong token,
	// non-positive amounts, reduction epochs off the allowed grid.
	ErrValidation = stderrors.New("validation failed")
	// ErrPrecondition marks well-formed input that the current state rejects.
	ErrPrecondition = stderrors.New("precondition failed")
	// ErrInvariant marks an internal accounting fault. It is never recoverable
	// by reissuing the operation.
	ErrInvariant = stderrors.New("invariant violated")
	// ErrPermission marks a caller lacking the required role.
	ErrPermission = stderrors.New("permission denied")
)

type classified struct {
	class error
	msg   string
}

func (e *classified) Error() string { return e.msg }

func (e *classified) Unwrap() error { return e.class }

// Validation returns a sentinel in the validation class.
func Validation(msg string) error { return &classified{class: ErrValidation, msg: msg} }

// Precondition returns a sentinel in the state-precondition class.
func Precondition(msg string) error { return &classified{class: ErrPrecondition, msg: msg} }

// Invariant returns a sentinel in the invariant-violation class.
func Invariant(msg string) error { return &classified{class: ErrInvariant, msg: msg} }

// Permission returns a sentinel in the permission class.
func Permission(msg string) error { return &classified{class: ErrPermission, msg: msg} }

// Class reports which fault class err belongs to, or nil when it is not
// classified (storage and encoding failures).
func Class(err error) error {
	for _, class := range []error{ErrInvariant, ErrPermission, ErrValidation, ErrPrecondition} {
		if stderrors.Is(err, class) {
			return class
		}
	}
	return nil
}
