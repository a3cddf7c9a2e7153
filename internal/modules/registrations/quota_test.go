package registrations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreate_ConcurrentRequestsNeverOverbook(t *testing.T) {
	f := newPooledFixture(t)
	trip := f.seedTrip(t, 5, 250_000)

	const callers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, callers)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Create(context.Background(), CreateInput{
				TripID:           trip.ID,
				ParticipantCount: 2,
				Contact:          Contact{Name: "Hiker", Email: fmt.Sprintf("hiker%d@example.com", i)},
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, exceeded int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrQuotaExceeded):
			exceeded++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, callers-2, exceeded)

	left, err := NewGuard().Remaining(context.Background(), f.db, trip)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	// rejected reservations roll their lock bump back with them
	var lock TripQuotaLock
	require.NoError(t, f.db.First(&lock, "trip_id = ?", trip.ID).Error)
	assert.EqualValues(t, ok, lock.LockVersion)
}

func TestGuard_ReserveBumpsLockVersion(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 100_000)
	guard := NewGuard()

	version := func(tx *gorm.DB) int64 {
		var lock TripQuotaLock
		require.NoError(t, tx.First(&lock, "trip_id = ?", trip.ID).Error)
		return lock.LockVersion
	}

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, guard.ReserveTx(context.Background(), tx, trip, 1))
		assert.EqualValues(t, 1, version(tx))
		return nil
	}))
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, guard.ReserveTx(context.Background(), tx, trip, 1))
		assert.EqualValues(t, 2, version(tx))
		return nil
	}))
	assert.EqualValues(t, 2, version(f.db))
}

func TestGuard_ReleasedSeatsAreNotCounted(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 4, 100_000)

	expired := f.register(t, trip.ID, 2)
	cancelled := f.register(t, trip.ID, 1)
	f.register(t, trip.ID, 1)

	require.NoError(t, f.db.Model(&Registration{}).Where("id = ?", expired.ID).
		Update("payment_status", PaymentExpired).Error)
	require.NoError(t, f.db.Model(&Registration{}).Where("id = ?", cancelled.ID).
		Update("registration_status", StatusCancelled).Error)

	left, err := NewGuard().Remaining(context.Background(), f.db, trip)
	require.NoError(t, err)
	assert.Equal(t, 3, left)

	f.register(t, trip.ID, 3)
}

func TestGuard_ExceededCarriesAvailability(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 3, 100_000)
	f.register(t, trip.ID, 2)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return NewGuard().ReserveTx(context.Background(), tx, trip, 2)
	})
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 2, qe.Requested)
	assert.Equal(t, 1, qe.Available)
	assert.Equal(t, 3, qe.Capacity)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestGuard_LockRowIsReused(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 100_000)
	f.register(t, trip.ID, 1)
	f.register(t, trip.ID, 1)

	var lock TripQuotaLock
	require.NoError(t, f.db.First(&lock, "trip_id = ?", trip.ID).Error)
	assert.EqualValues(t, 2, lock.LockVersion)
}
