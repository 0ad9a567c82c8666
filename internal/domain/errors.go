package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrFlightNotFound        = errors.New("flight not found")
	ErrFlightNotBookable     = errors.New("flight is not open for booking")
	ErrInsufficientInventory = errors.New("not enough seats available")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrAlreadyCancelled      = errors.New("booking already cancelled")
	ErrDuplicateReference    = errors.New("booking reference already taken")
	ErrDuplicateFlightNumber = errors.New("flight number already exists")
	ErrCapacityBelowBooked   = errors.New("total seats below seats already booked")
	ErrFlightHasBookings     = errors.New("flight has bookings")
	ErrInventoryOverflow     = errors.New("release would exceed flight capacity")
	ErrCancellationClosed    = errors.New("booking can no longer be cancelled")
)

// ValidationError describes malformed input. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
