package payments

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden          = errors.New("forbidden")
	ErrNotApproved        = errors.New("private trip is not approved")
	ErrNotPayable         = errors.New("registration is not payable")
	ErrAlreadyPaid        = errors.New("already paid")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTarget      = errors.New("exactly one of registration_id or private_trip_id is required")
	ErrIntentInProgress   = errors.New("payment is already being prepared")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrAmountMismatch     = errors.New("gross amount does not match payment amount")
	ErrMalformed          = errors.New("malformed notification")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")

	ErrRegistrationDeleted = errors.New("registration deleted before settlement; refund required")
)

// GatewayError wraps a gateway failure. Kind is ErrGatewayUnavailable or
// ErrGatewayRejected so callers can errors.Is on it.
type GatewayError struct {
	Kind       error
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%v (http %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
