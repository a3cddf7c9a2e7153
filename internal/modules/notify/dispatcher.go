package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"summitpass.id/app/internal/mailer"
)

type Dispatcher struct {
	db          *gorm.DB
	pub         Publisher
	mail        mailer.Service
	from        string
	fromName    string
	logger      *slog.Logger
	batch       int
	maxAttempts int
	lease       time.Duration
}

func NewDispatcher(db *gorm.DB, pub Publisher, mail mailer.Service, from, fromName string) *Dispatcher {
	return &Dispatcher{
		db:          db,
		pub:         pub,
		mail:        mail,
		from:        from,
		fromName:    fromName,
		logger:      slog.Default(),
		batch:       50,
		maxAttempts: 8,
		lease:       2 * time.Minute,
	}
}

func (d *Dispatcher) SetLogger(logger *slog.Logger) { d.logger = logger }

// Run drains the outbox every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if _, err := d.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.ErrorContext(ctx, "outbox dispatch failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RunOnce delivers the due messages and returns how many were sent.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	now := time.Now()

	var due []OutboxMessage
	if err := d.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", StatusPending, now).
		Order("created_at ASC").
		Limit(d.batch).
		Find(&due).Error; err != nil {
		return 0, err
	}

	sent := 0
	for _, m := range due {
		claimed, err := d.claim(ctx, m, now)
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue // another worker has it
		}

		if derr := d.deliver(ctx, m); derr != nil {
			if err := d.markFailed(ctx, m, derr); err != nil {
				return sent, err
			}
			continue
		}
		if err := d.markSent(ctx, m); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// claim pushes available_at forward so concurrent dispatchers skip the row
// while this one works on it.
func (d *Dispatcher) claim(ctx context.Context, m OutboxMessage, now time.Time) (bool, error) {
	res := d.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("id = ? AND status = ? AND available_at <= ?", m.ID, StatusPending, now).
		Updates(map[string]any{
			"available_at": now.Add(d.lease),
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *Dispatcher) deliver(ctx context.Context, m OutboxMessage) error {
	if err := d.pub.Publish(ctx, m.Topic, m.PayloadJSON); err != nil {
		return err
	}

	email, ok, err := renderEmail(m.Topic, m.PayloadJSON)
	if err != nil {
		return err
	}
	if !ok || d.mail == nil {
		return nil
	}
	email.From = d.from
	email.FromName = d.fromName
	return d.mail.Send(ctx, email)
}

func (d *Dispatcher) markSent(ctx context.Context, m OutboxMessage) error {
	now := time.Now()
	d.logger.InfoContext(ctx, "outbox message sent", "id", m.ID, "topic", m.Topic, "key", m.DedupeKey)
	return d.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"status":     StatusSent,
			"attempts":   m.Attempts + 1,
			"last_error": nil,
			"sent_at":    &now,
			"updated_at": now,
		}).Error
}

func (d *Dispatcher) markFailed(ctx context.Context, m OutboxMessage, cause error) error {
	now := time.Now()
	attempts := m.Attempts + 1
	msg := cause.Error()
	if len(msg) > 250 {
		msg = msg[:250]
	}

	status := StatusPending
	if attempts >= d.maxAttempts {
		status = StatusFailed
		d.logger.ErrorContext(ctx, "outbox message dropped", "id", m.ID, "topic", m.Topic, "attempts", attempts, "err", msg)
	} else {
		d.logger.WarnContext(ctx, "outbox delivery failed", "id", m.ID, "topic", m.Topic, "attempts", attempts, "err", msg)
	}

	return d.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"status":       status,
			"attempts":     attempts,
			"last_error":   msg,
			"available_at": now.Add(backoff(attempts)),
			"updated_at":   now,
		}).Error
}

// backoff: 30s, 1m, 2m, ... capped at 1h.
func backoff(attempt int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= time.Hour {
			return time.Hour
		}
	}
	return d
}
