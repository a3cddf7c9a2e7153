package catalog

import "time"

// Trip is one scheduled, capacity-bounded open trip instance.
type Trip struct {
	ID                  string    `gorm:"type:char(36);primaryKey"`
	DestinationID       string    `gorm:"type:char(36);not null;index:ix_trips_destination_id"`
	Title               string    `gorm:"type:varchar(191);not null"`
	Capacity            int       `gorm:"not null"`
	PricePerParticipant int64     `gorm:"not null"`
	ScheduleDate        time.Time `gorm:"type:date;not null"`
	Executed            bool      `gorm:"not null;default:false"`
	CreatedAt           time.Time `gorm:"precision:3;not null"`
	UpdatedAt           time.Time `gorm:"precision:3;not null"`
}

func (Trip) TableName() string { return "trips" }

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type PrivatePaymentStatus string

const (
	PrivateUnpaid PrivatePaymentStatus = "unpaid"
	PrivatePaid   PrivatePaymentStatus = "paid"
)

// PrivateTrip is a group's own trip; an admin sets the price and approves it
// before it can be paid.
type PrivateTrip struct {
	ID                  string               `gorm:"type:char(36);primaryKey"`
	UserID              string               `gorm:"type:char(36);not null;index:ix_private_trips_user_id"`
	DestinationID       string               `gorm:"type:char(36);not null"`
	Title               string               `gorm:"type:varchar(191);not null"`
	ScheduleDate        time.Time            `gorm:"type:date;not null"`
	ParticipantCount    int                  `gorm:"not null"`
	PricePerParticipant int64                `gorm:"not null"`
	ApprovalStatus      ApprovalStatus       `gorm:"type:varchar(16);not null;default:pending"`
	PaymentStatus       PrivatePaymentStatus `gorm:"type:varchar(16);not null;default:unpaid"`
	PaidAt              *time.Time           `gorm:"precision:3"`
	CreatedAt           time.Time            `gorm:"precision:3;not null"`
	UpdatedAt           time.Time            `gorm:"precision:3;not null"`
}

func (PrivateTrip) TableName() string { return "private_trips" }

func (p PrivateTrip) Approved() bool { return p.ApprovalStatus == ApprovalApproved }
