package common

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument covers violated preconditions on the request or on
	// the current state of a unit.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidTransition is an ErrInvalidArgument raised by the state
	// machines (bottle state, case integrity, exception resolution).
	ErrInvalidTransition = fmt.Errorf("%w: invalid transition", ErrInvalidArgument)

	ErrCommittedInventoryBlocked = errors.New("committed inventory cannot be consumed")
	ErrAuthorizationDenied       = errors.New("authorization denied")
	ErrValidationFailed          = errors.New("validation failed")

	// ErrStaleState is returned when a unit changed between read and write.
	ErrStaleState = errors.New("stale state")

	// ErrUnitLocked is returned when another operation holds the unit lock.
	ErrUnitLocked = errors.New("unit is locked by another operation")

	ErrRateLimited = errors.New("rate limit exceeded")
)

// Error codes exposed to API clients and batch results.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidArgument     = "INVALID_ARGUMENT"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeCommittedBlocked    = "COMMITTED_INVENTORY_BLOCKED"
	CodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeStaleState          = "STALE_STATE"
	CodeUnitLocked          = "UNIT_LOCKED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

// UnitError names the bottle or case a failure belongs to.
type UnitError struct {
	UnitType string
	UnitID   uuid.UUID
	Err      error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.UnitType, e.UnitID, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// NewUnitError wraps err unless it already names a unit.
func NewUnitError(unitType string, unitID uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnitError
	if errors.As(err, &ue) {
		return err
	}
	return &UnitError{UnitType: unitType, UnitID: unitID, Err: err}
}

// Invalidf builds an ErrInvalidArgument with a message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// InvalidTransitionf builds an ErrInvalidTransition with a message.
func InvalidTransitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// ValidationFailedf builds an ErrValidationFailed with a message.
func ValidationFailedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

// ErrorCode maps an error onto its client-facing code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrCommittedInventoryBlocked):
		return CodeCommittedBlocked
	case errors.Is(err, ErrAuthorizationDenied):
		return CodeAuthorizationDenied
	case errors.Is(err, ErrValidationFailed):
		return CodeValidationFailed
	case errors.Is(err, ErrStaleState):
		return CodeStaleState
	case errors.Is(err, ErrUnitLocked):
		return CodeUnitLocked
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// IsClientError returns true if the error is due to the request or the
// state of the addressed unit rather than infrastructure.
func IsClientError(err error) bool {
	return ErrorCode(err) != CodeInternal
}
