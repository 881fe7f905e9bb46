package database

import (
	"errors"
	"fmt"

	"velora/internal/pricing"
)

var (
	ErrDressNotFound  = errors.New("dress not found")
	ErrRentalNotFound = errors.New("rental not found")

	ErrInvalidDateRange = pricing.ErrInvalidDateRange

	ErrDatesUnavailable = errors.New("these dates are already booked")
	ErrPastDate         = fmt.Errorf("%w: start date is in the past", ErrDatesUnavailable)
	ErrDressUnavailable = fmt.Errorf("%w: dress is not available for rent", ErrDatesUnavailable)
	ErrDateTooFar       = errors.New("start date is too far in the future")

	ErrAlreadyCancelled       = errors.New("rental is already cancelled")
	ErrInvalidTransition      = errors.New("invalid rental status transition")
	ErrDepositNotPaid         = errors.New("deposit must be paid before the dress is handed over")
	ErrDressInUse             = errors.New("dress has rentals and cannot be deleted")
	ErrConcurrentModification = errors.New("rental was modified concurrently")
)
