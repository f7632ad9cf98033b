// Package apperr defines the sentinel errors shared by the domain services.
// Handlers map these to HTTP statuses with errors.Is; everything else wraps
// them with fmt.Errorf("%w: ...") to add context.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a referenced user, comment, or target
	// resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is returned when a permission or visibility check
	// failed. Note that the access engine itself reports deny as a value;
	// services translate a deny into this error at the operation boundary.
	ErrAccessDenied = errors.New("access denied")

	// ErrValidation is returned for malformed input that reaches a service
	// despite upstream checks, and for malformed access-engine calls
	// (unknown resource kind, missing instance for an instance-scoped
	// relation).
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate is returned when an append-once action is repeated,
	// e.g. flagging the same comment twice.
	ErrDuplicate = errors.New("duplicate action")

	// ErrConflict is returned when a state transition is not permitted for
	// the current status.
	ErrConflict = errors.New("conflict")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAccessDenied reports whether err is or wraps ErrAccessDenied.
func IsAccessDenied(err error) bool { return errors.Is(err, ErrAccessDenied) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsDuplicate reports whether err is or wraps ErrDuplicate.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

// IsConflict reports whether err is or wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
