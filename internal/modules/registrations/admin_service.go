package registrations

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"summitpass.id/app/internal/db"
)

var ErrNothingToUpdate = errors.New("no fields to update")

type AdminService struct {
	db     *gorm.DB
	trips  TripReader
	guard  *Guard
	logger *slog.Logger
}

func NewAdminService(gdb *gorm.DB, trips TripReader, guard *Guard) *AdminService {
	return &AdminService{db: gdb, trips: trips, guard: guard, logger: slog.Default()}
}

func (s *AdminService) SetLogger(logger *slog.Logger) { s.logger = logger }

type UpdateStatusInput struct {
	RegistrationID     string
	ActorUserID        string // admin user id
	RegistrationStatus *Status
	PaymentStatus      *PaymentStatus
	AdminNotes         *string
}

// UpdateStatus applies a partial admin update. The admin wins over payment
// state except that confirmed is refused while the payment failed or expired.
func (s *AdminService) UpdateStatus(ctx context.Context, in UpdateStatusInput) (Registration, error) {
	if in.RegistrationStatus == nil && in.PaymentStatus == nil && in.AdminNotes == nil {
		return Registration{}, ErrNothingToUpdate
	}
	if in.RegistrationStatus != nil && !in.RegistrationStatus.Valid() {
		return Registration{}, &ValidationError{Field: "registration_status", Msg: "is not a known status"}
	}
	if in.PaymentStatus != nil && !in.PaymentStatus.Valid() {
		return Registration{}, &ValidationError{Field: "payment_status", Msg: "is not a known status"}
	}

	var out Registration
	err := db.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var reg Registration
		if err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&reg, "id = ?", in.RegistrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		to := reg
		if in.RegistrationStatus != nil {
			to.RegistrationStatus = *in.RegistrationStatus
		}
		if in.PaymentStatus != nil {
			to.PaymentStatus = *in.PaymentStatus
		}
		if to.RegistrationStatus == StatusConfirmed && to.PaymentStatus.Released() {
			return ErrConfirmRequiresPayment
		}

		// coming back from cancelled/released takes seats again
		if !reg.Active() && to.Active() {
			trip, err := s.trips.GetTripTx(ctx, tx, reg.TripID)
			if err != nil {
				return err
			}
			if err := s.guard.ReserveTx(ctx, tx, trip, reg.ParticipantCount); err != nil {
				return err
			}
		}

		now := time.Now()
		updates := map[string]any{
			"registration_status": to.RegistrationStatus,
			"payment_status":      to.PaymentStatus,
			"updated_at":          now,
		}
		var note *string
		if in.AdminNotes != nil {
			n := strings.TrimSpace(*in.AdminNotes)
			if n == "" {
				updates["admin_notes"] = nil
				to.AdminNotes = nil
			} else {
				updates["admin_notes"] = n
				to.AdminNotes = &n
				note = &n
			}
		}
		if err := tx.WithContext(ctx).
			Model(&Registration{}).
			Where("id = ?", reg.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		if err := writeEvent(ctx, tx, reg, "admin:"+in.ActorUserID, "admin_update",
			to.RegistrationStatus, to.PaymentStatus, note, now); err != nil {
			return err
		}

		to.UpdatedAt = now
		out = to
		return nil
	})
	if err != nil {
		return Registration{}, err
	}
	s.logger.InfoContext(ctx, "registration updated by admin",
		"registration_id", out.ID, "actor", in.ActorUserID,
		"registration_status", out.RegistrationStatus, "payment_status", out.PaymentStatus)
	return out, nil
}

// Delete hard-deletes a registration together with its audit rows.
func (s *AdminService) Delete(ctx context.Context, id, actorUserID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("registration_id = ?", id).Delete(&RegistrationEvent{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Registration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "registration deleted", "registration_id", id, "actor", actorUserID)
	return nil
}
