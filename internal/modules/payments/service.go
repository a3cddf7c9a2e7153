package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/modules/registrations"
)

type RegistrationLocker interface {
	LockTx(ctx context.Context, tx *gorm.DB, id string) (registrations.Registration, error)
	AttachOrderTx(ctx context.Context, tx *gorm.DB, registrationID, orderID string) error
}

// Service is the payment intent manager: it creates a pending Payment and the
// gateway's hosted checkout for a registration or an approved private trip.
type Service struct {
	db        *gorm.DB
	gateway   Gateway
	regs      RegistrationLocker
	trips     TripStore
	currency  string
	timeout   time.Duration
	finishURL string
	logger    *slog.Logger
	now       func() time.Time
}

type Options struct {
	Currency  string
	Timeout   time.Duration
	FinishURL string
}

func NewService(gdb *gorm.DB, gw Gateway, regs RegistrationLocker, trips TripStore, opt Options) *Service {
	if opt.Currency == "" {
		opt.Currency = "IDR"
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 15 * time.Second
	}
	return &Service{
		db:        gdb,
		gateway:   gw,
		regs:      regs,
		trips:     trips,
		currency:  opt.Currency,
		timeout:   opt.Timeout,
		finishURL: opt.FinishURL,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

func (s *Service) SetLogger(logger *slog.Logger) { s.logger = logger }

type CreateIntentInput struct {
	RegistrationID string
	PrivateTripID  string
	ActorUserID    *string // nil for guests
	Customer       Customer
}

type CreateIntentResult struct {
	OrderID     string
	Token       string
	RedirectURL string
	Amount      int64
	Idempotent  bool
}

func (s *Service) CreateIntent(ctx context.Context, in CreateIntentInput) (CreateIntentResult, error) {
	in.RegistrationID = strings.TrimSpace(in.RegistrationID)
	in.PrivateTripID = strings.TrimSpace(in.PrivateTripID)
	if (in.RegistrationID == "") == (in.PrivateTripID == "") {
		return CreateIntentResult{}, ErrInvalidTarget
	}

	// Phase 1: validate, reuse or persist a pending payment
	var pay Payment
	var charge ChargeRequest
	var reused bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if in.RegistrationID != "" {
			pay, charge, reused, err = s.prepareOpenTrip(ctx, tx, in)
		} else {
			pay, charge, reused, err = s.preparePrivateTrip(ctx, tx, in)
		}
		return err
	})
	if err != nil {
		return CreateIntentResult{}, err
	}

	if reused {
		s.logger.InfoContext(ctx, "payment intent reused", "order_id", pay.OrderID)
		return CreateIntentResult{
			OrderID:     pay.OrderID,
			Token:       deref(pay.SnapToken),
			RedirectURL: deref(pay.RedirectURL),
			Amount:      pay.Amount,
			Idempotent:  true,
		}, nil
	}

	// Phase 2: gateway call outside any transaction
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	resp, gerr := s.gateway.CreateTransaction(gctx, charge)
	cancel()

	// Phase 3: record the outcome; the payment stays pending either way
	now := s.now()
	updates := map[string]any{"updated_at": now}
	if gerr != nil {
		updates["error_message"] = truncate(gerr.Error(), 250)
	} else {
		updates["snap_token"] = resp.Token
		updates["redirect_url"] = resp.RedirectURL
		updates["error_message"] = nil
		if len(resp.Raw) > 0 {
			updates["raw_response"] = datatypes.JSON(resp.Raw)
		}
	}
	if err := s.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status = ?", pay.ID, StatusPending).
		Updates(updates).Error; err != nil {
		return CreateIntentResult{}, err
	}

	if gerr != nil {
		s.logger.ErrorContext(ctx, "gateway create transaction failed", "order_id", pay.OrderID, "err", gerr)
		if !errors.Is(gerr, ErrGatewayUnavailable) && !errors.Is(gerr, ErrGatewayRejected) {
			return CreateIntentResult{}, &GatewayError{Kind: ErrGatewayUnavailable, Message: "create transaction", Err: gerr}
		}
		return CreateIntentResult{}, gerr
	}

	s.logger.InfoContext(ctx, "payment intent created",
		"order_id", pay.OrderID, "type", pay.PaymentType, "amount", pay.Amount)
	return CreateIntentResult{
		OrderID:     pay.OrderID,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		Amount:      pay.Amount,
	}, nil
}

func (s *Service) prepareOpenTrip(ctx context.Context, tx *gorm.DB, in CreateIntentInput) (Payment, ChargeRequest, bool, error) {
	reg, err := s.regs.LockTx(ctx, tx, in.RegistrationID)
	if err != nil {
		return Payment{}, ChargeRequest{}, false, err
	}
	if reg.UserID != nil && (in.ActorUserID == nil || *reg.UserID != *in.ActorUserID) {
		return Payment{}, ChargeRequest{}, false, ErrForbidden
	}
	switch {
	case reg.PaymentStatus == registrations.PaymentPaid:
		return Payment{}, ChargeRequest{}, false, ErrAlreadyPaid
	case reg.PaymentStatus != registrations.PaymentPending,
		reg.RegistrationStatus != registrations.StatusPending:
		return Payment{}, ChargeRequest{}, false, ErrNotPayable
	}

	amount := reg.PricePerParticipant * int64(reg.ParticipantCount)
	if amount <= 0 {
		return Payment{}, ChargeRequest{}, false, ErrInvalidAmount
	}

	if p, ok, err := s.latestReusable(ctx, tx, "registration_id = ?", reg.ID, amount); err != nil {
		return Payment{}, ChargeRequest{}, false, err
	} else if ok {
		// the reused attempt owns the registration again
		if reg.OrderID == nil || *reg.OrderID != p.OrderID {
			if err := s.regs.AttachOrderTx(ctx, tx, reg.ID, p.OrderID); err != nil {
				return Payment{}, ChargeRequest{}, false, err
			}
		}
		return p, ChargeRequest{}, true, nil
	}

	trip, err := s.trips.GetTripTx(ctx, tx, reg.TripID)
	if err != nil {
		return Payment{}, ChargeRequest{}, false, err
	}

	customer := Customer{
		FirstName: firstNonEmpty(reg.ContactName, in.Customer.FirstName),
		Email:     firstNonEmpty(reg.ContactEmail, in.Customer.Email),
		Phone:     firstNonEmpty(reg.ContactPhone, in.Customer.Phone),
	}
	pay, err := s.newPayment(TypeOpenTrip, amount, reg.ParticipantCount, customer)
	if err != nil {
		return Payment{}, ChargeRequest{}, false, err
	}
	pay.RegistrationID = &reg.ID
	pay.TripID = &reg.TripID
	pay.UserID = reg.UserID

	if err := tx.WithContext(ctx).Create(&pay).Error; err != nil {
		return Payment{}, ChargeRequest{}, false, err
	}
	if err := s.regs.AttachOrderTx(ctx, tx, reg.ID, pay.OrderID); err != nil {
		return Payment{}, ChargeRequest{}, false, err
	}

	return pay, s.chargeRequest(pay, customer, trip.ID, trip.Title, reg.PricePerParticipant, reg.ParticipantCount), false, nil
}

func (s *Service) preparePrivateTrip(ctx context.Context, tx *gorm.DB, in CreateIntentInput) (Payment, ChargeRequest, bool, error) {
	pt, err := s.trips.LockPrivateTripTx(ctx, tx, in.PrivateTripID)
	if err != nil {
		return Payment{}, ChargeRequest{}, false, err
	}
	if in.ActorUserID == nil || pt.UserID != *in.ActorUserID {
		return Payment{}, ChargeRequest{}, false, ErrForbidden
	}
	if !pt.Approved() {
		return Payment{}, ChargeRequest{}, false, ErrNotApproved
	}
	if pt.PaymentStatus == catalog.PrivatePaid {
		return Payment{}, ChargeRequest{}, false, ErrAlreadyPaid
	}

	amount := pt.PricePerParticipant * int64(pt.ParticipantCount)
	if amount <= 0 {
		return Payment{}, ChargeRequest{}, false, ErrInvalidAmount
	}

	if p, ok, err := s.latestReusable(ctx, tx, "private_trip_id = ?", pt.ID, amount); err != nil || ok {
		return p, ChargeRequest{}, ok, err
	}

	pay, err := s.newPayment(TypePrivateTrip, amount, pt.ParticipantCount, in.Customer)
	if err != nil {
		return Payment{}, ChargeRequest{}, false, err
	}
	pay.PrivateTripID = &pt.ID
	pay.UserID = &pt.UserID

	if err := tx.WithContext(ctx).Create(&pay).Error; err != nil {
		return Payment{}, ChargeRequest{}, false, err
	}
	return pay, s.chargeRequest(pay, in.Customer, pt.ID, pt.Title, pt.PricePerParticipant, pt.ParticipantCount), false, nil
}

// latestReusable returns the newest pending payment that already holds a
// gateway token for the same amount. A pending payment still waiting on its
// gateway call gives ErrIntentInProgress instead of a second transaction.
func (s *Service) latestReusable(ctx context.Context, tx *gorm.DB, where string, id string, amount int64) (Payment, bool, error) {
	var inFlight int64
	if err := tx.WithContext(ctx).Model(&Payment{}).
		Where(where, id).
		Where("status = ? AND snap_token IS NULL AND error_message IS NULL AND created_at > ?",
			StatusPending, s.now().Add(-s.timeout)).
		Count(&inFlight).Error; err != nil {
		return Payment{}, false, err
	}
	if inFlight > 0 {
		return Payment{}, false, ErrIntentInProgress
	}

	var p Payment
	err := tx.WithContext(ctx).
		Where(where, id).
		Where("status = ? AND snap_token IS NOT NULL AND amount = ?", StatusPending, amount).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Payment{}, false, nil
	}
	if err != nil {
		return Payment{}, false, err
	}
	return p, true, nil
}

func (s *Service) newPayment(t Type, amount int64, participants int, c Customer) (Payment, error) {
	now := s.now()
	orderID, err := NewOrderID(t, now)
	if err != nil {
		return Payment{}, err
	}
	return Payment{
		ID:               uuid.NewString(),
		OrderID:          orderID,
		PaymentType:      t,
		ParticipantCount: participants,
		Amount:           amount,
		Currency:         s.currency,
		Status:           StatusPending,
		CustomerName:     truncate(c.FirstName, 191),
		CustomerEmail:    truncate(c.Email, 255),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *Service) chargeRequest(p Payment, c Customer, itemID, itemName string, price int64, qty int) ChargeRequest {
	return ChargeRequest{
		OrderID:     p.OrderID,
		GrossAmount: p.Amount,
		Customer:    c,
		Items: []Item{{
			ID:       itemID,
			Name:     truncate(itemName, 50),
			Price:    price,
			Quantity: qty,
		}},
		FinishURL: s.finishURL,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
