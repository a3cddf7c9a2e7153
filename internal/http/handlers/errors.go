package handlers

import (
	"errors"

	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/modules/payments"
	"summitpass.id/app/internal/modules/registrations"
	"summitpass.id/app/internal/shared/apperr"
)

// AppError translates domain errors into apperr kinds with public messages.
// Anything unrecognised becomes a 500 with the cause kept for the log.
func AppError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	var ve *registrations.ValidationError
	var qe *registrations.QuotaExceededError
	switch {
	case errors.As(err, &ve):
		return apperr.InvalidErr("Please check the highlighted fields.", map[string]string{ve.Field: ve.Msg})
	case errors.As(err, &qe):
		return &apperr.AppError{
			Kind:      apperr.Conflict,
			PublicMsg: "Not enough slots left for this trip.",
			Fields:    map[string]string{"participant_count": availableMsg(qe.Available)},
			Err:       err,
		}

	case errors.Is(err, catalog.ErrTripNotFound):
		return apperr.NotFoundErr("Trip not found.")
	case errors.Is(err, catalog.ErrPrivateTripNotFound):
		return apperr.NotFoundErr("Private trip not found.")
	case errors.Is(err, registrations.ErrNotFound):
		return apperr.NotFoundErr("Registration not found.")
	case errors.Is(err, payments.ErrPaymentNotFound):
		return apperr.NotFoundErr("Payment not found.")

	case errors.Is(err, registrations.ErrTripClosed):
		return apperr.UnprocessableErr("This trip is no longer open for registration.")
	case errors.Is(err, registrations.ErrDuplicateRegistration):
		return apperr.ConflictErr("You already have an active registration for this trip.")
	case errors.Is(err, registrations.ErrConfirmRequiresPayment):
		return apperr.UnprocessableErr("A registration with a failed or expired payment cannot be confirmed.")
	case errors.Is(err, registrations.ErrNothingToUpdate):
		return apperr.InvalidErr("Nothing to update.", nil)

	case errors.Is(err, payments.ErrInvalidTarget):
		return apperr.InvalidErr("Send exactly one of registration_id or private_trip_id.", nil)
	case errors.Is(err, payments.ErrForbidden):
		return apperr.ForbiddenErr("You cannot pay for this booking.")
	case errors.Is(err, payments.ErrNotApproved):
		return apperr.UnprocessableErr("This private trip has not been approved yet.")
	case errors.Is(err, payments.ErrAlreadyPaid):
		return apperr.ConflictErr("This booking is already paid.")
	case errors.Is(err, payments.ErrIntentInProgress):
		return apperr.ConflictErr("A payment for this booking is being prepared. Please try again in a moment.")
	case errors.Is(err, payments.ErrNotPayable):
		return apperr.UnprocessableErr("This registration can no longer be paid. Please register again.")
	case errors.Is(err, payments.ErrInvalidAmount):
		return apperr.UnprocessableErr("This booking has no payable amount.")
	case errors.Is(err, payments.ErrGatewayUnavailable), errors.Is(err, payments.ErrGatewayRejected):
		return apperr.UnavailableErr("Payment is temporarily unavailable, please contact support.", err)
	}
	return apperr.Wrap(err)
}

func availableMsg(n int) string {
	if n <= 0 {
		return "No slots left."
	}
	if n == 1 {
		return "Only 1 slot left."
	}
	return "Only " + itoa(n) + " slots left."
}
