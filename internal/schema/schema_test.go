package schema

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormschema "gorm.io/gorm/schema"

	"summitpass.id/app/internal/modules/users"
	"summitpass.id/app/internal/testutil"
)

func TestMigrate(t *testing.T) {
	gdb := testutil.NewDB(t)
	require.NoError(t, Migrate(context.Background(), gdb))
	// idempotent
	require.NoError(t, Migrate(context.Background(), gdb))

	for _, table := range []string{
		"users", "sessions", "trips", "private_trips", "trip_quota_locks",
		"registrations", "registration_events", "payments", "payment_notifications", "outbox_messages",
	} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}
}

func TestModels_TimestampsKeepMilliseconds(t *testing.T) {
	timeType := reflect.TypeOf(time.Time{})
	for _, m := range Models() {
		s, err := gormschema.Parse(m, &sync.Map{}, gormschema.NamingStrategy{})
		require.NoError(t, err)
		for _, f := range s.Fields {
			if f.IndirectFieldType != timeType || f.DataType == "date" {
				continue
			}
			assert.Equal(t, 3, f.Precision, "%s.%s", s.Table, f.DBName)
		}
	}
}

func TestTimestamps_ScanBackAsTime(t *testing.T) {
	gdb := testutil.NewDB(t)
	require.NoError(t, Migrate(context.Background(), gdb))

	u := users.User{ID: uuid.NewString(), Username: "rinjani", Email: "rinjani@example.com", Role: users.RoleMember}
	require.NoError(t, gdb.Create(&u).Error)

	got, err := users.NewRepo(gdb).Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
	assert.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Second)
}
