package scheduling

import (
	"errors"
	"fmt"
)

var (
	ErrSlotConflict       = errors.New("time slot is already booked")
	ErrInsufficientNotice = errors.New("insufficient notice for requested slot")
	ErrBeyondLeadTime     = errors.New("requested slot is beyond the booking horizon")
	ErrNoEligibleMember   = errors.New("no available team member for the requested slot")
)

// ValidationError rejects a request before any conflict check runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
