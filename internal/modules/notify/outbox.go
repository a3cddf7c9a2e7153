// Package notify carries post-payment notifications out of the request path:
// services enqueue inside their transaction, a Dispatcher publishes to the
// broker and sends the confirmation email.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Event struct {
	Topic     string
	DedupeKey string // one message per key; re-enqueueing is a no-op
	Payload   any
}

type Outbox struct{}

func NewOutbox() *Outbox { return &Outbox{} }

// EnqueueTx stores the event in tx. It commits or rolls back with the caller.
func (o *Outbox) EnqueueTx(ctx context.Context, tx *gorm.DB, ev Event) error {
	if ev.Topic == "" || ev.DedupeKey == "" {
		return fmt.Errorf("notify: topic and dedupe key required")
	}
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("notify: marshal %s payload: %w", ev.Topic, err)
	}

	now := time.Now()
	msg := OutboxMessage{
		ID:          uuid.NewString(),
		Topic:       ev.Topic,
		DedupeKey:   ev.DedupeKey,
		PayloadJSON: datatypes.JSON(body),
		Status:      StatusPending,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&msg).Error
}
