/*
errors.go - Error taxonomy for the ledger engine

ERROR CATEGORIES:
  1. Validation      - bad input shape, rejected before any mutation
  2. SeasonNotWritable - action needs a state the season is not in
  3. InvalidBetState - settling/voiding a bet that is not pending
  4. Persistence     - constraint violation or storage failure; batch rolled back
  5. NotFound        - referenced record does not exist

Every structured error unwraps to its sentinel, so callers can branch with
errors.Is and still read details with errors.As.

USAGE:
    if errors.Is(err, ledger.ErrSeasonNotWritable) {
        // 409
    }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation        = errors.New("validation failed")
	ErrSeasonNotWritable = errors.New("season not writable")
	ErrInvalidBetState   = errors.New("invalid bet state")
	ErrPersistence       = errors.New("persistence failure")
	ErrNotFound          = errors.New("not found")

	// ErrDuplicate marks a uniqueness violation. It always arrives wrapped in
	// a PersistenceError.
	ErrDuplicate = errors.New("duplicate record")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SeasonNotWritableError is returned when an action needs a season state the
// season is not currently in.
type SeasonNotWritableError struct {
	SeasonID SeasonID
	State    SeasonState
	Action   Action
}

func (e *SeasonNotWritableError) Error() string {
	return fmt.Sprintf("season %s is %s: %s not allowed", e.SeasonID, e.State, e.Action)
}

func (e *SeasonNotWritableError) Unwrap() error { return ErrSeasonNotWritable }

type InvalidBetStateError struct {
	BetID  BetID
	Status BetStatus
}

func (e *InvalidBetStateError) Error() string {
	return fmt.Sprintf("bet %s is %s, expected pending", e.BetID, e.Status)
}

func (e *InvalidBetStateError) Unwrap() error { return ErrInvalidBetState }

// PersistenceError wraps a storage failure. It matches both ErrPersistence
// and whatever the underlying error matches (e.g. ErrDuplicate).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the request rather than
// the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSeasonNotWritable) ||
		errors.Is(err, ErrInvalidBetState)
}

// IsConflict returns true if the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSeasonNotWritable) ||
		errors.Is(err, ErrInvalidBetState) ||
		errors.Is(err, ErrDuplicate)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
