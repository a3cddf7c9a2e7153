package registrations

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"summitpass.id/app/internal/modules/catalog"
)

// Guard enforces trip capacity. Every method must run inside the transaction
// that writes the registration, so the count and the write commit together.
type Guard struct{}

func NewGuard() *Guard { return &Guard{} }

// ReserveTx locks the trip's quota row, then accepts requested seats iff
// active + requested <= capacity.
func (g *Guard) ReserveTx(ctx context.Context, tx *gorm.DB, trip catalog.Trip, requested int) error {
	if err := lockTrip(ctx, tx, trip.ID); err != nil {
		return err
	}

	existing, err := activeParticipants(ctx, tx, trip.ID)
	if err != nil {
		return err
	}

	available := trip.Capacity - existing
	if available < 0 {
		available = 0
	}
	if requested > available {
		return &QuotaExceededError{
			TripID:    trip.ID,
			Capacity:  trip.Capacity,
			Requested: requested,
			Available: available,
		}
	}
	return nil
}

// Remaining is a point-in-time read for display; it takes no lock.
func (g *Guard) Remaining(ctx context.Context, db *gorm.DB, trip catalog.Trip) (int, error) {
	existing, err := activeParticipants(ctx, db, trip.ID)
	if err != nil {
		return 0, err
	}
	if left := trip.Capacity - existing; left > 0 {
		return left, nil
	}
	return 0, nil
}

// lockTrip makes sure the trip has a quota row and takes its write lock.
// The UPDATE holds an exclusive row lock on InnoDB (the database write lock on
// SQLite) until commit, so concurrent reservers for the same trip queue here.
func lockTrip(ctx context.Context, tx *gorm.DB, tripID string) error {
	now := time.Now()

	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&TripQuotaLock{TripID: tripID, UpdatedAt: now}).Error; err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&TripQuotaLock{}).
		Where("trip_id = ?", tripID).
		Updates(map[string]any{
			"lock_version": gorm.Expr("lock_version + 1"),
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("quota lock for trip %s not acquired", tripID)
	}
	return nil
}

// activeParticipants sums seats held by registrations that are neither
// cancelled nor released by a failed/expired payment. Locking read: it must
// see rows committed after the transaction's snapshot was taken.
func activeParticipants(ctx context.Context, tx *gorm.DB, tripID string) (int, error) {
	var total int64
	err := tx.WithContext(ctx).
		Model(&Registration{}).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Select("COALESCE(SUM(participant_count), 0)").
		Where("trip_id = ? AND registration_status <> ? AND payment_status NOT IN ?",
			tripID, StatusCancelled, []PaymentStatus{PaymentFailed, PaymentExpired}).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}
