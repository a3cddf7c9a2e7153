// Package schema lists every table the service owns, in dependency order.
package schema

import (
	"context"

	"gorm.io/gorm"

	"summitpass.id/app/internal/http/middleware"
	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/modules/notify"
	"summitpass.id/app/internal/modules/payments"
	"summitpass.id/app/internal/modules/registrations"
	"summitpass.id/app/internal/modules/users"
)

func Models() []any {
	return []any{
		&users.User{},
		&middleware.Session{},
		&catalog.Trip{},
		&catalog.PrivateTrip{},
		&registrations.TripQuotaLock{},
		&registrations.Registration{},
		&registrations.RegistrationEvent{},
		&payments.Payment{},
		&payments.PaymentNotification{},
		&notify.OutboxMessage{},
	}
}

// Migrate creates or extends the tables. It never drops columns.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	return gdb.WithContext(ctx).AutoMigrate(Models()...)
}
