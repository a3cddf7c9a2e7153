package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"summitpass.id/app/internal/db"
	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/modules/notify"
	"summitpass.id/app/internal/modules/registrations"
)

type RegistrationOutcomes interface {
	ApplyPaymentOutcomeTx(ctx context.Context, tx *gorm.DB, registrationID, orderID string, outcome registrations.PaymentStatus) (registrations.OutcomeResult, error)
}

type TripStore interface {
	GetTripTx(ctx context.Context, tx *gorm.DB, id string) (catalog.Trip, error)
	GetPrivateTripTx(ctx context.Context, tx *gorm.DB, id string) (catalog.PrivateTrip, error)
	LockPrivateTripTx(ctx context.Context, tx *gorm.DB, id string) (catalog.PrivateTrip, error)
	MarkPrivateTripPaidTx(ctx context.Context, tx *gorm.DB, id string, at time.Time) (bool, error)
}

type Enqueuer interface {
	EnqueueTx(ctx context.Context, tx *gorm.DB, ev notify.Event) error
}

type Archiver interface {
	Archive(ctx context.Context, orderID, source string, body []byte) (string, error)
}

// Reconciler applies one gateway observation to a payment and, when the
// observation moves the payment to a terminal status, to whatever the payment
// was for. Webhooks, status queries and the expiry sweep all go through Apply.
type Reconciler struct {
	db      *gorm.DB
	regs    RegistrationOutcomes
	trips   TripStore
	outbox  Enqueuer
	archive Archiver
	logger  *slog.Logger
}

func NewReconciler(gdb *gorm.DB, regs RegistrationOutcomes, trips TripStore, outbox Enqueuer) *Reconciler {
	return &Reconciler{db: gdb, regs: regs, trips: trips, outbox: outbox, logger: slog.Default()}
}

func (r *Reconciler) SetLogger(logger *slog.Logger) { r.logger = logger }

// SetArchive enables raw payload archiving. Archiving is best effort.
func (r *Reconciler) SetArchive(a Archiver) { r.archive = a }

type ApplyResult struct {
	Payment  Payment
	Previous Status
	Mapped   Status
	Outcome  Outcome
}

// Transitioned reports whether this call moved the payment.
func (a ApplyResult) Transitioned() bool { return a.Outcome == OutcomeApplied }

func (r *Reconciler) Apply(ctx context.Context, n Notification, src Source) (ApplyResult, error) {
	if strings.TrimSpace(n.OrderID) == "" {
		return ApplyResult{}, ErrMalformed
	}
	mapped := MapGatewayStatus(n.TransactionStatus, n.FraudStatus)

	var res ApplyResult
	var auditID string
	var mismatch bool

	err := db.WithTxRetry(ctx, r.db, 3, func(tx *gorm.DB) error {
		res = ApplyResult{Mapped: mapped}
		mismatch = false

		var p Payment
		if err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "order_id = ?", n.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		res.Payment = p
		res.Previous = p.Status
		now := time.Now()

		if n.GrossAmount != "" {
			amt, ok := ParseGrossAmount(n.GrossAmount)
			if !ok || amt != p.Amount {
				mismatch = true
				res.Outcome = OutcomeRejected
				var err error
				auditID, err = r.audit(ctx, tx, n, src, mapped, OutcomeRejected, ErrAmountMismatch, now)
				return err
			}
		}

		switch {
		case p.Status.Terminal():
			res.Outcome = OutcomeNoop
			if p.Status == StatusFailed && mapped == StatusSettlement {
				r.logger.ErrorContext(ctx, "settlement received for failed payment; refund required",
					"order_id", p.OrderID, "source", src)
			}

		case mapped == StatusPending:
			res.Outcome = OutcomeNoop
			if err := tx.WithContext(ctx).Model(&Payment{}).
				Where("id = ? AND status = ?", p.ID, StatusPending).
				Updates(observationUpdates(n, now)).Error; err != nil {
				return err
			}

		default:
			won, err := r.transition(ctx, tx, p, n, mapped, now)
			if err != nil {
				return err
			}
			if !won {
				res.Outcome = OutcomeNoop
				break
			}
			res.Outcome = OutcomeApplied
			res.Payment.Status = mapped
			res.Payment.GatewayStatus = optional(n.TransactionStatus)
			res.Payment.UpdatedAt = now
			if mapped == StatusSettlement {
				res.Payment.SettledAt = &now
			}
			if err := r.complete(ctx, tx, res.Payment, n, mapped, now); err != nil {
				return err
			}
		}

		var err error
		auditID, err = r.audit(ctx, tx, n, src, mapped, res.Outcome, nil, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			r.logger.WarnContext(ctx, "notification for unknown order", "order_id", n.OrderID, "source", src)
		}
		return ApplyResult{}, err
	}

	r.archiveRaw(ctx, n, src, auditID)

	if mismatch {
		r.logger.ErrorContext(ctx, "gross amount mismatch",
			"order_id", n.OrderID, "gross_amount", n.GrossAmount, "amount", res.Payment.Amount, "source", src)
		return res, ErrAmountMismatch
	}

	r.logger.InfoContext(ctx, "payment notification processed",
		"order_id", n.OrderID, "source", src, "transaction_status", n.TransactionStatus,
		"from", res.Previous, "mapped", mapped, "outcome", res.Outcome)
	return res, nil
}

// transition is the compare-and-set on status; only the winner completes.
func (r *Reconciler) transition(ctx context.Context, tx *gorm.DB, p Payment, n Notification, to Status, now time.Time) (bool, error) {
	updates := observationUpdates(n, now)
	updates["status"] = to
	if to == StatusSettlement {
		updates["settled_at"] = &now
		updates["error_message"] = nil
	} else {
		updates["error_message"] = truncate("gateway status: "+n.TransactionStatus, 250)
	}

	res := tx.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status = ?", p.ID, StatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Reconciler) complete(ctx context.Context, tx *gorm.DB, p Payment, n Notification, to Status, now time.Time) error {
	switch p.PaymentType {
	case TypeOpenTrip:
		if p.RegistrationID == nil {
			return fmt.Errorf("payment %s has no registration", p.OrderID)
		}
		outcome := registrations.PaymentPaid
		if to == StatusFailed {
			outcome = registrations.PaymentFailed
			if strings.EqualFold(n.TransactionStatus, "expire") {
				outcome = registrations.PaymentExpired
			}
		}
		out, err := r.regs.ApplyPaymentOutcomeTx(ctx, tx, *p.RegistrationID, p.OrderID, outcome)
		if errors.Is(err, registrations.ErrNotFound) {
			return r.orphaned(ctx, tx, p, to, now)
		}
		if err != nil {
			return err
		}
		if out.Note != "" {
			r.logger.WarnContext(ctx, "payment needs operator follow-up",
				"order_id", p.OrderID, "registration_id", out.Registration.ID, "note", out.Note)
		}
		if !out.Confirmed {
			return nil
		}
		trip, err := r.trips.GetTripTx(ctx, tx, out.Registration.TripID)
		if err != nil {
			return err
		}
		reg := out.Registration
		email := reg.ContactEmail
		if email == "" {
			email = p.CustomerEmail
		}
		return r.outbox.EnqueueTx(ctx, tx, notify.Event{
			Topic:     notify.TopicRegistrationConfirmed,
			DedupeKey: notify.TopicRegistrationConfirmed + ":" + reg.ID,
			Payload: notify.RegistrationConfirmed{
				RegistrationID:   reg.ID,
				TripID:           trip.ID,
				TripTitle:        trip.Title,
				ScheduleDate:     trip.ScheduleDate.Format("2006-01-02"),
				OrderID:          p.OrderID,
				ParticipantCount: reg.ParticipantCount,
				TotalPrice:       reg.TotalPrice,
				ContactName:      firstNonEmpty(reg.ContactName, p.CustomerName),
				ContactEmail:     email,
				ConfirmedAt:      now,
			},
		})

	case TypePrivateTrip:
		if to != StatusSettlement {
			return nil
		}
		if p.PrivateTripID == nil {
			return fmt.Errorf("payment %s has no private trip", p.OrderID)
		}
		changed, err := r.trips.MarkPrivateTripPaidTx(ctx, tx, *p.PrivateTripID, now)
		if err != nil {
			return err
		}
		if !changed {
			r.logger.WarnContext(ctx, "private trip already paid; refund required",
				"order_id", p.OrderID, "private_trip_id", *p.PrivateTripID)
			return nil
		}
		pt, err := r.trips.GetPrivateTripTx(ctx, tx, *p.PrivateTripID)
		if err != nil {
			return err
		}
		return r.outbox.EnqueueTx(ctx, tx, notify.Event{
			Topic:     notify.TopicPrivateTripPaid,
			DedupeKey: notify.TopicPrivateTripPaid + ":" + pt.ID,
			Payload: notify.PrivateTripPaid{
				PrivateTripID: pt.ID,
				UserID:        pt.UserID,
				Title:         pt.Title,
				OrderID:       p.OrderID,
				Amount:        p.Amount,
				CustomerName:  p.CustomerName,
				CustomerEmail: p.CustomerEmail,
				PaidAt:        now,
			},
		})
	}
	return fmt.Errorf("unknown payment type %q", p.PaymentType)
}

// orphaned handles a payment whose registration an admin has deleted. The
// payment still records what the gateway said; a settlement is flagged on the
// payment row for a refund.
func (r *Reconciler) orphaned(ctx context.Context, tx *gorm.DB, p Payment, to Status, now time.Time) error {
	if to != StatusSettlement {
		r.logger.WarnContext(ctx, "payment outcome for deleted registration",
			"order_id", p.OrderID, "registration_id", deref(p.RegistrationID), "status", to)
		return nil
	}
	r.logger.ErrorContext(ctx, "settlement for deleted registration; refund required",
		"order_id", p.OrderID, "registration_id", deref(p.RegistrationID))
	return tx.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"error_message": ErrRegistrationDeleted.Error(),
			"updated_at":    now,
		}).Error
}

func (r *Reconciler) audit(ctx context.Context, tx *gorm.DB, n Notification, src Source, mapped Status, outcome Outcome, cause error, now time.Time) (string, error) {
	row := PaymentNotification{
		ID:                uuid.NewString(),
		OrderID:           n.OrderID,
		Source:            src,
		TransactionStatus: truncate(n.TransactionStatus, 32),
		FraudStatus:       optional(n.FraudStatus),
		StatusCode:        optional(n.StatusCode),
		MappedStatus:      mapped,
		Outcome:           outcome,
		PayloadJSON:       rawJSON(n.Raw),
		ReceivedAt:        now,
		ProcessedAt:       &now,
	}
	if cause != nil {
		msg := truncate(cause.Error(), 250)
		row.Error = &msg
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}

func (r *Reconciler) archiveRaw(ctx context.Context, n Notification, src Source, auditID string) {
	if r.archive == nil || len(n.Raw) == 0 {
		return
	}
	key, err := r.archive.Archive(ctx, n.OrderID, string(src), n.Raw)
	if err != nil {
		r.logger.WarnContext(ctx, "payload archive failed", "order_id", n.OrderID, "err", err)
		return
	}
	if key == "" || auditID == "" {
		return
	}
	if err := r.db.WithContext(ctx).Model(&PaymentNotification{}).
		Where("id = ?", auditID).
		Update("archive_key", key).Error; err != nil {
		r.logger.WarnContext(ctx, "payload archive key not recorded", "order_id", n.OrderID, "err", err)
	}
}

// observationUpdates carries the gateway's latest view onto a pending payment.
func observationUpdates(n Notification, now time.Time) map[string]any {
	u := map[string]any{"updated_at": now}
	if n.TransactionStatus != "" {
		u["gateway_status"] = truncate(n.TransactionStatus, 32)
	}
	if n.TransactionID != "" {
		u["gateway_transaction_id"] = truncate(n.TransactionID, 64)
	}
	if n.PaymentType != "" {
		u["payment_method"] = truncate(n.PaymentType, 32)
	}
	if len(n.Raw) > 0 {
		u["raw_response"] = rawJSON(n.Raw)
	}
	return u
}

func rawJSON(b []byte) datatypes.JSON {
	if len(b) == 0 {
		return nil
	}
	return datatypes.JSON(b)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
