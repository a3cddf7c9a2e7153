package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// ErrTransactionUnknown: the gateway has no transaction for the order id,
// usually because the customer never opened the checkout page.
var ErrTransactionUnknown = errors.New("gateway has no transaction for order")

type StatusService struct {
	db       *gorm.DB
	gateway  Gateway
	rec      *Reconciler
	throttle Throttle
	timeout  time.Duration
	logger   *slog.Logger
}

func NewStatusService(gdb *gorm.DB, gw Gateway, rec *Reconciler, throttle Throttle, timeout time.Duration) *StatusService {
	if throttle == nil {
		throttle = noThrottle{}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &StatusService{db: gdb, gateway: gw, rec: rec, throttle: throttle, timeout: timeout, logger: slog.Default()}
}

func (s *StatusService) SetLogger(logger *slog.Logger) { s.logger = logger }

type StatusResult struct {
	OrderID       string
	Status        Status
	Amount        int64
	PaymentType   Type
	TransactionID *string
	PaymentMethod *string
	UserID        *string
	Stale         bool // gateway could not be reached; Status is the last known local one
}

// Local returns the stored status without asking the gateway.
func (s *StatusService) Local(ctx context.Context, orderID string) (StatusResult, error) {
	p, err := s.load(ctx, orderID)
	if err != nil {
		return StatusResult{}, err
	}
	return toStatusResult(p, false), nil
}

func (s *StatusService) GetStatus(ctx context.Context, orderID string) (StatusResult, error) {
	p, err := s.load(ctx, orderID)
	if err != nil {
		return StatusResult{}, err
	}
	if p.Status.Terminal() || !s.throttle.Allow(ctx, orderID) {
		return toStatusResult(p, false), nil
	}

	n, err := s.query(ctx, orderID)
	switch {
	case errors.Is(err, ErrTransactionUnknown):
		return toStatusResult(p, false), nil
	case err != nil:
		s.logger.WarnContext(ctx, "gateway status lookup failed; serving local status", "order_id", orderID, "err", err)
		return toStatusResult(p, true), nil
	}

	res, err := s.rec.Apply(ctx, n, SourceStatusQuery)
	if err != nil {
		if errors.Is(err, ErrAmountMismatch) {
			return toStatusResult(res.Payment, false), nil
		}
		return StatusResult{}, err
	}

	fresh, err := s.load(ctx, orderID)
	if err != nil {
		return StatusResult{}, err
	}
	return toStatusResult(fresh, false), nil
}

type SweepReport struct {
	Checked int
	Settled int
	Failed  int
	Expired int
	Skipped int // gateway unreachable; retried on the next sweep
}

// ExpireStale re-checks pending payments created before olderThan ago. A
// payment still pending at the gateway is expired there first; it is failed
// locally only once the gateway confirms the expiry or has no record of it.
// Failing it releases its registration's seats.
func (s *StatusService) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (SweepReport, error) {
	if limit <= 0 {
		limit = 200
	}
	cutoff := time.Now().Add(-olderThan)

	var stale []Payment
	if err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&stale).Error; err != nil {
		return SweepReport{}, err
	}

	var rep SweepReport
	for _, p := range stale {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Checked++

		n, err := s.query(ctx, p.OrderID)
		switch {
		case errors.Is(err, ErrTransactionUnknown):
			s.expireLocally(ctx, &rep, p)
			continue
		case err != nil:
			s.logger.WarnContext(ctx, "sweep: gateway lookup failed", "order_id", p.OrderID, "err", err)
			rep.Skipped++
			continue
		}

		res, err := s.rec.Apply(ctx, n, SourceStatusQuery)
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep: apply failed", "order_id", p.OrderID, "err", err)
			rep.Skipped++
			continue
		}
		if res.Payment.Status.Terminal() {
			countTerminal(&rep, res)
			continue
		}

		expired, err := s.expireAtGateway(ctx, p.OrderID)
		switch {
		case errors.Is(err, ErrTransactionUnknown):
			s.expireLocally(ctx, &rep, p)
			continue
		case err != nil:
			// a 412 here usually means it settled meanwhile; the webhook or
			// the next sweep picks that up
			s.logger.WarnContext(ctx, "sweep: gateway expire failed", "order_id", p.OrderID, "err", err)
			rep.Skipped++
			continue
		}
		if MapGatewayStatus(expired.TransactionStatus, expired.FraudStatus) != StatusFailed {
			s.logger.WarnContext(ctx, "sweep: gateway did not expire transaction",
				"order_id", p.OrderID, "transaction_status", expired.TransactionStatus)
			rep.Skipped++
			continue
		}
		if expired.OrderID == "" {
			expired.OrderID = p.OrderID
		}
		res, err = s.rec.Apply(ctx, expired, SourceSweep)
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep: expire failed", "order_id", p.OrderID, "err", err)
			rep.Skipped++
			continue
		}
		countTerminal(&rep, res)
	}

	s.logger.InfoContext(ctx, "pending payment sweep finished",
		"checked", rep.Checked, "settled", rep.Settled, "failed", rep.Failed, "expired", rep.Expired, "skipped", rep.Skipped)
	return rep, nil
}

// expireLocally fails a payment the gateway has no transaction for.
func (s *StatusService) expireLocally(ctx context.Context, rep *SweepReport, p Payment) {
	res, err := s.rec.Apply(ctx, Notification{
		OrderID:           p.OrderID,
		GrossAmount:       FormatGrossAmount(p.Amount),
		TransactionStatus: "expire",
	}, SourceSweep)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep: expire failed", "order_id", p.OrderID, "err", err)
		rep.Skipped++
		return
	}
	countTerminal(rep, res)
}

func (s *StatusService) expireAtGateway(ctx context.Context, orderID string) (Notification, error) {
	ectx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gateway.ExpireTransaction(ectx, orderID)
}

func countTerminal(rep *SweepReport, res ApplyResult) {
	switch {
	case res.Payment.Status == StatusSettlement:
		rep.Settled++
	case res.Payment.Status == StatusFailed && deref(res.Payment.GatewayStatus) == "expire":
		rep.Expired++
	case res.Payment.Status == StatusFailed:
		rep.Failed++
	}
}

func (s *StatusService) query(ctx context.Context, orderID string) (Notification, error) {
	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gateway.TransactionStatus(qctx, orderID)
}

func (s *StatusService) load(ctx context.Context, orderID string) (Payment, error) {
	var p Payment
	if err := s.db.WithContext(ctx).First(&p, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

func toStatusResult(p Payment, stale bool) StatusResult {
	return StatusResult{
		OrderID:       p.OrderID,
		Status:        p.Status,
		Amount:        p.Amount,
		PaymentType:   p.PaymentType,
		TransactionID: p.GatewayTransactionID,
		PaymentMethod: p.PaymentMethod,
		UserID:        p.UserID,
		Stale:         stale,
	}
}
