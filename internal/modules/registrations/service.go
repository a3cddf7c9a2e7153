package registrations

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"summitpass.id/app/internal/db"
	"summitpass.id/app/internal/modules/catalog"
)

// TripReader is the slice of the catalog this module needs.
type TripReader interface {
	GetTripTx(ctx context.Context, tx *gorm.DB, id string) (catalog.Trip, error)
}

type Service struct {
	db      *gorm.DB
	trips   TripReader
	guard   *Guard
	logger  *slog.Logger
	retries int
}

func NewService(gdb *gorm.DB, trips TripReader, guard *Guard) *Service {
	return &Service{db: gdb, trips: trips, guard: guard, logger: slog.Default(), retries: 3}
}

func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

type Contact struct {
	Name  string
	Email string
	Phone string
}

type CreateInput struct {
	TripID           string
	UserID           *string // nil for guest checkout
	ParticipantCount int
	Contact          Contact
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Registration, error) {
	if err := validateCreate(&in); err != nil {
		return Registration{}, err
	}

	// trips are read-only here; reading outside the transaction keeps the
	// quota lock its first statement, so concurrent reservers queue on it
	trip, err := s.trips.GetTripTx(ctx, s.db, in.TripID)
	if err != nil {
		return Registration{}, err
	}
	if trip.ClosedForRegistration(time.Now()) {
		return Registration{}, ErrTripClosed
	}

	var reg Registration
	err = db.WithTxRetry(ctx, s.db, s.retries, func(tx *gorm.DB) error {
		// lock + count + insert in one transaction
		if err := s.guard.ReserveTx(ctx, tx, trip, in.ParticipantCount); err != nil {
			return err
		}
		now := time.Now()
		if err := ensureNoActiveDuplicate(ctx, tx, trip.ID, in.UserID, in.Contact.Email); err != nil {
			return err
		}

		reg = Registration{
			ID:                  uuid.NewString(),
			TripID:              trip.ID,
			UserID:              in.UserID,
			ParticipantCount:    in.ParticipantCount,
			PricePerParticipant: trip.PricePerParticipant,
			TotalPrice:          trip.PricePerParticipant * int64(in.ParticipantCount),
			ContactName:         in.Contact.Name,
			ContactEmail:        in.Contact.Email,
			ContactPhone:        in.Contact.Phone,
			RegistrationStatus:  StatusPending,
			PaymentStatus:       PaymentPending,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		return tx.WithContext(ctx).Create(&reg).Error
	})
	if err != nil {
		var qe *QuotaExceededError
		if errors.As(err, &qe) {
			s.logger.InfoContext(ctx, "registration rejected: quota exceeded",
				"trip_id", qe.TripID, "requested", qe.Requested, "available", qe.Available)
		}
		return Registration{}, err
	}

	s.logger.InfoContext(ctx, "registration created",
		"registration_id", reg.ID, "trip_id", reg.TripID, "participants", reg.ParticipantCount, "total", reg.TotalPrice)
	return reg, nil
}

func validateCreate(in *CreateInput) error {
	in.TripID = strings.TrimSpace(in.TripID)
	in.Contact.Name = strings.TrimSpace(in.Contact.Name)
	in.Contact.Email = strings.ToLower(strings.TrimSpace(in.Contact.Email))
	in.Contact.Phone = strings.TrimSpace(in.Contact.Phone)

	if in.TripID == "" {
		return &ValidationError{Field: "trip_id", Msg: "is required"}
	}
	if in.ParticipantCount < 1 {
		return &ValidationError{Field: "participant_count", Msg: "must be at least 1"}
	}
	if in.UserID == nil && in.Contact.Email == "" {
		return &ValidationError{Field: "contact_email", Msg: "is required for guest registration"}
	}
	if in.Contact.Email != "" {
		if _, err := mail.ParseAddress(in.Contact.Email); err != nil {
			return &ValidationError{Field: "contact_email", Msg: "is not a valid email address"}
		}
	}
	return nil
}

// ensureNoActiveDuplicate: one non-terminal registration per user (or guest
// email) per trip. Runs under the trip's quota lock.
func ensureNoActiveDuplicate(ctx context.Context, tx *gorm.DB, tripID string, userID *string, email string) error {
	q := tx.WithContext(ctx).
		Model(&Registration{}).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("trip_id = ? AND registration_status IN ? AND payment_status NOT IN ?",
			tripID,
			[]Status{StatusPending, StatusConfirmed},
			[]PaymentStatus{PaymentFailed, PaymentExpired})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	} else {
		q = q.Where("user_id IS NULL AND contact_email = ?", email)
	}

	var cnt int64
	if err := q.Count(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return ErrDuplicateRegistration
	}
	return nil
}

// AttachOrderTx records the order id of the payment attempt that now owns
// the registration.
func (s *Service) AttachOrderTx(ctx context.Context, tx *gorm.DB, registrationID, orderID string) error {
	res := tx.WithContext(ctx).Model(&Registration{}).
		Where("id = ?", registrationID).
		Updates(map[string]any{"order_id": orderID, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LockTx loads a registration with a row lock.
func (s *Service) LockTx(ctx context.Context, tx *gorm.DB, id string) (Registration, error) {
	var reg Registration
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Registration{}, ErrNotFound
		}
		return Registration{}, err
	}
	return reg, nil
}
