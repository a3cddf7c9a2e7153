package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutcomeResult tells the payment reconciler what happened to the registration.
type OutcomeResult struct {
	Registration Registration
	Changed      bool
	Confirmed    bool   // moved to confirmed by this call
	Note         string // set when an operator has to follow up (refund)
}

// ApplyPaymentOutcomeTx applies a terminal gateway outcome for orderID.
// outcome is PaymentPaid, PaymentFailed or PaymentExpired. It must run in the
// same transaction as the payment status transition it belongs to.
func (s *Service) ApplyPaymentOutcomeTx(ctx context.Context, tx *gorm.DB, registrationID, orderID string, outcome PaymentStatus) (OutcomeResult, error) {
	reg, err := s.LockTx(ctx, tx, registrationID)
	if err != nil {
		return OutcomeResult{}, err
	}

	switch outcome {
	case PaymentPaid:
		return s.applyPaid(ctx, tx, reg, orderID)
	case PaymentFailed, PaymentExpired:
		return s.applyUnpaid(ctx, tx, reg, orderID, outcome)
	default:
		return OutcomeResult{}, fmt.Errorf("unsupported payment outcome %q", outcome)
	}
}

func (s *Service) applyPaid(ctx context.Context, tx *gorm.DB, reg Registration, orderID string) (OutcomeResult, error) {
	if reg.PaymentStatus == PaymentPaid || reg.PaymentStatus == PaymentRefunded {
		// money for this registration was already received once
		note := fmt.Sprintf("duplicate settlement order_id=%s; refund required", orderID)
		s.logger.WarnContext(ctx, "settlement for already paid registration",
			"registration_id", reg.ID, "order_id", orderID)
		if err := s.appendNoteTx(ctx, tx, reg, "payment_duplicate", note); err != nil {
			return OutcomeResult{}, err
		}
		return OutcomeResult{Registration: reg, Note: note}, nil
	}

	toStatus := reg.RegistrationStatus
	if toStatus == StatusPending {
		toStatus = StatusConfirmed
	}

	if reg.PaymentStatus.Released() && reg.RegistrationStatus != StatusCancelled {
		// seats were handed back when the payment was marked failed/expired;
		// take them again before counting this registration as active
		trip, err := s.trips.GetTripTx(ctx, tx, reg.TripID)
		if err != nil {
			return OutcomeResult{}, err
		}
		if err := s.guard.ReserveTx(ctx, tx, trip, reg.ParticipantCount); err != nil {
			if !errors.Is(err, ErrQuotaExceeded) {
				return OutcomeResult{}, err
			}
			note := fmt.Sprintf("settled order_id=%s after seats were released; trip is full, refund required", orderID)
			s.logger.ErrorContext(ctx, "late settlement could not be seated",
				"registration_id", reg.ID, "order_id", orderID)
			if err := s.appendNoteTx(ctx, tx, reg, "payment_late", note); err != nil {
				return OutcomeResult{}, err
			}
			return OutcomeResult{Registration: reg, Note: note}, nil
		}
	}

	var note string
	if reg.RegistrationStatus == StatusCancelled {
		note = fmt.Sprintf("paid order_id=%s after cancellation; refund required", orderID)
	}

	now := time.Now()
	updates := map[string]any{
		"payment_status":      PaymentPaid,
		"registration_status": toStatus,
		"order_id":            orderID,
		"updated_at":          now,
	}
	if note != "" {
		updates["admin_notes"] = joinNote(reg.AdminNotes, note)
	}
	if err := tx.WithContext(ctx).Model(&Registration{}).
		Where("id = ?", reg.ID).
		Updates(updates).Error; err != nil {
		return OutcomeResult{}, err
	}

	if err := writeEvent(ctx, tx, reg, "system:payment", "payment_settled", toStatus, PaymentPaid, optional(note), now); err != nil {
		return OutcomeResult{}, err
	}

	confirmed := reg.RegistrationStatus != StatusConfirmed && toStatus == StatusConfirmed
	reg.PaymentStatus = PaymentPaid
	reg.RegistrationStatus = toStatus
	reg.OrderID = &orderID
	reg.UpdatedAt = now
	return OutcomeResult{Registration: reg, Changed: true, Confirmed: confirmed, Note: note}, nil
}

func (s *Service) applyUnpaid(ctx context.Context, tx *gorm.DB, reg Registration, orderID string, outcome PaymentStatus) (OutcomeResult, error) {
	if reg.PaymentStatus != PaymentPending {
		return OutcomeResult{Registration: reg}, nil
	}
	// a newer payment attempt owns this registration; a stale one failing
	// must not release its seats
	if reg.OrderID != nil && *reg.OrderID != orderID {
		return OutcomeResult{Registration: reg}, nil
	}

	now := time.Now()
	if err := tx.WithContext(ctx).Model(&Registration{}).
		Where("id = ? AND payment_status = ?", reg.ID, PaymentPending).
		Updates(map[string]any{
			"payment_status": outcome,
			"updated_at":     now,
		}).Error; err != nil {
		return OutcomeResult{}, err
	}
	if err := writeEvent(ctx, tx, reg, "system:payment", "payment_"+string(outcome), reg.RegistrationStatus, outcome, nil, now); err != nil {
		return OutcomeResult{}, err
	}

	reg.PaymentStatus = outcome
	reg.UpdatedAt = now
	return OutcomeResult{Registration: reg, Changed: true}, nil
}

func (s *Service) appendNoteTx(ctx context.Context, tx *gorm.DB, reg Registration, action, note string) error {
	now := time.Now()
	if err := tx.WithContext(ctx).Model(&Registration{}).
		Where("id = ?", reg.ID).
		Updates(map[string]any{
			"admin_notes": joinNote(reg.AdminNotes, note),
			"updated_at":  now,
		}).Error; err != nil {
		return err
	}
	return writeEvent(ctx, tx, reg, "system:payment", action, reg.RegistrationStatus, reg.PaymentStatus, &note, now)
}

func writeEvent(ctx context.Context, tx *gorm.DB, from Registration, actor, action string, toStatus Status, toPayment PaymentStatus, note *string, at time.Time) error {
	if note != nil && len(*note) > 255 {
		n := (*note)[:255]
		note = &n
	}
	ev := RegistrationEvent{
		ID:                uuid.NewString(),
		RegistrationID:    from.ID,
		Actor:             actor,
		Action:            action,
		FromStatus:        from.RegistrationStatus,
		ToStatus:          toStatus,
		FromPaymentStatus: from.PaymentStatus,
		ToPaymentStatus:   toPayment,
		Note:              note,
		CreatedAt:         at,
	}
	return tx.WithContext(ctx).Create(&ev).Error
}

func joinNote(existing *string, add string) string {
	if existing == nil || *existing == "" {
		return add
	}
	return *existing + "\n" + add
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
