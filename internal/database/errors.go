package database

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the booking, payout or wallet owner does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition means a state machine precondition was violated.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotAuthorized means the caller is not the right actor for the action.
	ErrNotAuthorized = errors.New("actor not authorized for this action")

	// ErrInsufficientBalance means a posting would drive the balance negative.
	// Use AsInsufficientBalance to read the shortfall.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrConcurrentModification means an optimistic version check failed.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateBookingNumber means the generated booking number collided.
	ErrDuplicateBookingNumber = errors.New("booking number already exists")

	// ErrBookingSettled means settlement was already posted for the booking.
	ErrBookingSettled = errors.New("booking already settled")
)

// InsufficientBalanceError carries the amounts the UI needs to prompt a
// top-up. It matches ErrInsufficientBalance under errors.Is.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: required %d, available %d (shortfall %d)",
		e.Required, e.Available, e.Shortfall())
}

// Shortfall is the minimum top-up that would make the posting succeed.
func (e *InsufficientBalanceError) Shortfall() int64 {
	return e.Required - e.Available
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// AsInsufficientBalance extracts shortfall details when present.
func AsInsufficientBalance(err error) (*InsufficientBalanceError, bool) {
	var ibe *InsufficientBalanceError
	if errors.As(err, &ibe) {
		return ibe, true
	}
	return nil, false
}
