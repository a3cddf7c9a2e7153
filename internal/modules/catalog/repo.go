// Package catalog is the read side of the trip catalog. Trips are managed by
// the admin panel; this package only looks them up, plus the one write the
// payment flow needs on private trips.
package catalog

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTripNotFound        = errors.New("trip not found")
	ErrPrivateTripNotFound = errors.New("private trip not found")
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetTrip(ctx context.Context, id string) (Trip, error) {
	return r.GetTripTx(ctx, r.db, id)
}

// GetTripTx reads through the given handle, usually an open transaction.
func (r *Repo) GetTripTx(ctx context.Context, tx *gorm.DB, id string) (Trip, error) {
	var t Trip
	if err := tx.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Trip{}, ErrTripNotFound
		}
		return Trip{}, err
	}
	return t, nil
}

func (r *Repo) GetPrivateTrip(ctx context.Context, id string) (PrivateTrip, error) {
	return r.GetPrivateTripTx(ctx, r.db, id)
}

func (r *Repo) GetPrivateTripTx(ctx context.Context, tx *gorm.DB, id string) (PrivateTrip, error) {
	var p PrivateTrip
	if err := tx.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PrivateTrip{}, ErrPrivateTripNotFound
		}
		return PrivateTrip{}, err
	}
	return p, nil
}

// LockPrivateTripTx reads the private trip with a row lock held until tx ends.
func (r *Repo) LockPrivateTripTx(ctx context.Context, tx *gorm.DB, id string) (PrivateTrip, error) {
	var p PrivateTrip
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PrivateTrip{}, ErrPrivateTripNotFound
		}
		return PrivateTrip{}, err
	}
	return p, nil
}

// MarkPrivateTripPaidTx flips the payment sub-state. Already-paid trips are
// left untouched; the returned bool reports whether this call changed it.
func (r *Repo) MarkPrivateTripPaidTx(ctx context.Context, tx *gorm.DB, id string, at time.Time) (bool, error) {
	res := tx.WithContext(ctx).Model(&PrivateTrip{}).
		Where("id = ? AND payment_status = ?", id, PrivateUnpaid).
		Updates(map[string]any{
			"payment_status": PrivatePaid,
			"paid_at":        &at,
			"updated_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		var cnt int64
		if err := tx.WithContext(ctx).Model(&PrivateTrip{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
			return false, err
		}
		if cnt == 0 {
			return false, ErrPrivateTripNotFound
		}
		return false, nil
	}
	return true, nil
}

// ClosedForRegistration: trip already ran or its date is in the past.
func (t Trip) ClosedForRegistration(now time.Time) bool {
	if t.Executed {
		return true
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return t.ScheduleDate.Before(today)
}
