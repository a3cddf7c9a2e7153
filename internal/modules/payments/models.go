package payments

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusSettlement Status = "settlement"
	StatusFailed     Status = "failed"
)

// Terminal statuses are absorbing: once reached, nothing moves a payment out.
func (s Status) Terminal() bool { return s == StatusSettlement || s == StatusFailed }

type Type string

const (
	TypeOpenTrip    Type = "open_trip"
	TypePrivateTrip Type = "private_trip"
)

type Payment struct {
	ID             string  `gorm:"type:char(36);primaryKey"`
	OrderID        string  `gorm:"type:varchar(64);not null;uniqueIndex:ux_payments_order_id"`
	PaymentType    Type    `gorm:"type:varchar(16);not null"`
	RegistrationID *string `gorm:"type:char(36);index:ix_payments_registration_id"`
	PrivateTripID  *string `gorm:"type:char(36);index:ix_payments_private_trip_id"`
	TripID         *string `gorm:"type:char(36)"`
	UserID         *string `gorm:"type:char(36);index:ix_payments_user_id"`

	ParticipantCount int    `gorm:"not null"`
	Amount           int64  `gorm:"not null"`
	Currency         string `gorm:"type:char(3);not null"`

	Status        Status  `gorm:"type:varchar(16);not null;index:ix_payments_status_created,priority:1"`
	GatewayStatus *string `gorm:"type:varchar(32)"`

	SnapToken            *string `gorm:"type:varchar(64)"`
	RedirectURL          *string `gorm:"type:varchar(255)"`
	GatewayTransactionID *string `gorm:"type:varchar(64)"`
	PaymentMethod        *string `gorm:"type:varchar(32)"`

	CustomerName  string `gorm:"type:varchar(191);not null"`
	CustomerEmail string `gorm:"type:varchar(255);not null"`

	RawResponse  datatypes.JSON `gorm:"type:json"`
	ErrorMessage *string        `gorm:"type:varchar(255)"`
	SettledAt    *time.Time     `gorm:"precision:3"`

	CreatedAt time.Time `gorm:"precision:3;not null;index:ix_payments_status_created,priority:2"`
	UpdatedAt time.Time `gorm:"precision:3;not null"`
}

func (Payment) TableName() string { return "payments" }

type Source string

const (
	SourceWebhook     Source = "webhook"
	SourceStatusQuery Source = "status_query"
	SourceSweep       Source = "expiry_sweep"
)

type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeNoop     Outcome = "noop"
	OutcomeRejected Outcome = "rejected"
)

// PaymentNotification is the audit row for every gateway observation that
// reached a known payment.
type PaymentNotification struct {
	ID                string         `gorm:"type:char(36);primaryKey"`
	OrderID           string         `gorm:"type:varchar(64);not null;index:ix_payment_notifications_order_id"`
	Source            Source         `gorm:"type:varchar(16);not null"`
	TransactionStatus string         `gorm:"type:varchar(32);not null"`
	FraudStatus       *string        `gorm:"type:varchar(32)"`
	StatusCode        *string        `gorm:"type:varchar(8)"`
	MappedStatus      Status         `gorm:"type:varchar(16);not null"`
	Outcome           Outcome        `gorm:"type:varchar(16);not null"`
	PayloadJSON       datatypes.JSON `gorm:"type:json"`
	ArchiveKey        *string        `gorm:"type:varchar(255)"`
	Error             *string        `gorm:"type:varchar(255)"`
	ReceivedAt        time.Time      `gorm:"precision:3;not null"`
	ProcessedAt       *time.Time     `gorm:"precision:3"`
}

func (PaymentNotification) TableName() string { return "payment_notifications" }
