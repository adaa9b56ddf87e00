package records

import (
	"errors"
	"fmt"
)

// Sentinel failures the boundary maps to HTTP statuses.
var (
	// ErrNotFound means no record exists under the caller's key.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden means a fetched record's embedded owner does not match
	// the caller. Defense in depth; key construction should make it
	// unreachable.
	ErrForbidden = errors.New("record owned by another user")

	// ErrConflict means a terminal-state re-transition or a lost write
	// race detected by compare-and-swap.
	ErrConflict = errors.New("conflicting update")
)

// ValidationError identifies the offending request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
