package registrations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/testutil"
)

type fixture struct {
	db    *gorm.DB
	svc   *Service
	admin *AdminService
	repo  *Repo
	trips *catalog.Repo
}

var fixtureModels = []any{
	&catalog.Trip{}, &catalog.PrivateTrip{},
	&Registration{}, &RegistrationEvent{}, &TripQuotaLock{},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return fixtureOn(testutil.NewDB(t, fixtureModels...))
}

// newPooledFixture runs on a database with several connections, for tests
// that need transactions to actually overlap.
func newPooledFixture(t *testing.T) *fixture {
	t.Helper()
	return fixtureOn(testutil.NewPooledDB(t, 4, fixtureModels...))
}

func fixtureOn(gdb *gorm.DB) *fixture {
	trips := catalog.NewRepo(gdb)
	guard := NewGuard()
	return &fixture{
		db:    gdb,
		svc:   NewService(gdb, trips, guard),
		admin: NewAdminService(gdb, trips, guard),
		repo:  NewRepo(gdb),
		trips: trips,
	}
}

func (f *fixture) seedTrip(t *testing.T, capacity int, price int64) catalog.Trip {
	t.Helper()
	now := time.Now()
	trip := catalog.Trip{
		ID:                  uuid.NewString(),
		DestinationID:       uuid.NewString(),
		Title:               "Rinjani summit",
		Capacity:            capacity,
		PricePerParticipant: price,
		ScheduleDate:        now.AddDate(0, 0, 14),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, f.db.Create(&trip).Error)
	return trip
}

func (f *fixture) register(t *testing.T, tripID string, seats int) Registration {
	t.Helper()
	reg, err := f.svc.Create(context.Background(), CreateInput{
		TripID:           tripID,
		ParticipantCount: seats,
		Contact: Contact{
			Name:  "Guest",
			Email: uuid.NewString()[:8] + "@example.com",
			Phone: "0812000000",
		},
	})
	require.NoError(t, err)
	return reg
}

func ptr[T any](v T) *T { return &v }
