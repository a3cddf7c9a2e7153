package notify

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TopicRegistrationConfirmed = "registration.confirmed"
	TopicPrivateTripPaid       = "private_trip.paid"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed" // gave up after maxAttempts
)

// OutboxMessage is written in the same transaction as the state change it
// announces and drained later by the Dispatcher.
type OutboxMessage struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Topic       string         `gorm:"type:varchar(64);not null"`
	DedupeKey   string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_outbox_messages_dedupe"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`
	Status      string         `gorm:"type:varchar(16);not null;index:ix_outbox_messages_status_available,priority:1"`
	Attempts    int            `gorm:"not null;default:0"`
	LastError   *string        `gorm:"type:varchar(255)"`
	AvailableAt time.Time      `gorm:"precision:3;not null;index:ix_outbox_messages_status_available,priority:2"`
	SentAt      *time.Time     `gorm:"precision:3"`
	CreatedAt   time.Time      `gorm:"precision:3;not null"`
	UpdatedAt   time.Time      `gorm:"precision:3;not null"`
}

func (OutboxMessage) TableName() string { return "outbox_messages" }

// RegistrationConfirmed is published once a paid registration is confirmed.
type RegistrationConfirmed struct {
	RegistrationID   string    `json:"registration_id"`
	TripID           string    `json:"trip_id"`
	TripTitle        string    `json:"trip_title"`
	ScheduleDate     string    `json:"schedule_date"`
	OrderID          string    `json:"order_id"`
	ParticipantCount int       `json:"participant_count"`
	TotalPrice       int64     `json:"total_price"`
	ContactName      string    `json:"contact_name"`
	ContactEmail     string    `json:"contact_email"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

// PrivateTripPaid is published once a private trip's payment settles.
type PrivateTripPaid struct {
	PrivateTripID string    `json:"private_trip_id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	OrderID       string    `json:"order_id"`
	Amount        int64     `json:"amount"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	PaidAt        time.Time `json:"paid_at"`
}
