package registrations

import (
	"errors"
	"fmt"

	"summitpass.id/app/internal/modules/catalog"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrTripNotFound           = catalog.ErrTripNotFound
	ErrTripClosed             = errors.New("trip is closed for registration")
	ErrQuotaExceeded          = errors.New("quota exceeded")
	ErrDuplicateRegistration  = errors.New("an active registration already exists for this trip")
	ErrNotFound               = errors.New("registration not found")
	ErrConfirmRequiresPayment = errors.New("cannot confirm a registration whose payment failed or expired")
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type QuotaExceededError struct {
	TripID    string
	Capacity  int
	Requested int
	Available int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: trip=%s requested=%d available=%d", e.TripID, e.Requested, e.Available)
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }
