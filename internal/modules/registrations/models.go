package registrations

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentExpired  PaymentStatus = "expired"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentExpired, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

// Released reports whether seats held under this payment status were given back.
func (p PaymentStatus) Released() bool {
	return p == PaymentFailed || p == PaymentExpired
}

type Registration struct {
	ID                  string        `gorm:"type:char(36);primaryKey"`
	TripID              string        `gorm:"type:char(36);not null;index:ix_registrations_trip_status,priority:1"`
	UserID              *string       `gorm:"type:char(36);index:ix_registrations_user_id"`
	ParticipantCount    int           `gorm:"not null"`
	PricePerParticipant int64         `gorm:"not null"`
	TotalPrice          int64         `gorm:"not null"`
	ContactName         string        `gorm:"type:varchar(191);not null"`
	ContactEmail        string        `gorm:"type:varchar(255);not null;index:ix_registrations_contact_email"`
	ContactPhone        string        `gorm:"type:varchar(32);not null"`
	RegistrationStatus  Status        `gorm:"type:varchar(16);not null"`
	PaymentStatus       PaymentStatus `gorm:"type:varchar(16);not null;index:ix_registrations_trip_status,priority:2"`
	OrderID             *string       `gorm:"type:varchar(64)"`
	AdminNotes          *string       `gorm:"type:text"`
	CreatedAt           time.Time     `gorm:"precision:3;not null"`
	UpdatedAt           time.Time     `gorm:"precision:3;not null"`
}

func (Registration) TableName() string { return "registrations" }

// Active registrations hold seats against the trip's capacity.
func (r Registration) Active() bool {
	return r.RegistrationStatus != StatusCancelled && !r.PaymentStatus.Released()
}

// RegistrationEvent is the audit trail of status changes (admin or payment driven).
type RegistrationEvent struct {
	ID                string        `gorm:"type:char(36);primaryKey"`
	RegistrationID    string        `gorm:"type:char(36);not null;index:ix_registration_events_registration_id"`
	Actor             string        `gorm:"type:varchar(64);not null"`
	Action            string        `gorm:"type:varchar(32);not null"`
	FromStatus        Status        `gorm:"type:varchar(16);not null"`
	ToStatus          Status        `gorm:"type:varchar(16);not null"`
	FromPaymentStatus PaymentStatus `gorm:"type:varchar(16);not null"`
	ToPaymentStatus   PaymentStatus `gorm:"type:varchar(16);not null"`
	Note              *string       `gorm:"type:varchar(255)"`
	CreatedAt         time.Time     `gorm:"precision:3;not null"`
}

func (RegistrationEvent) TableName() string { return "registration_events" }

// TripQuotaLock is the per-trip row that serializes seat reservations.
type TripQuotaLock struct {
	TripID      string    `gorm:"type:char(36);primaryKey"`
	LockVersion int64     `gorm:"not null;default:0"`
	UpdatedAt   time.Time `gorm:"precision:3;not null"`
}

func (TripQuotaLock) TableName() string { return "trip_quota_locks" }
