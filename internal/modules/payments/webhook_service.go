package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

type WebhookService struct {
	rec       *Reconciler
	serverKey string
	logger    *slog.Logger
}

func NewWebhookService(rec *Reconciler, serverKey string) *WebhookService {
	return &WebhookService{rec: rec, serverKey: serverKey, logger: slog.Default()}
}

func (s *WebhookService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Handle verifies and applies one gateway notification. The signature is
// checked before anything is read from or written to the database.
func (s *WebhookService) Handle(ctx context.Context, rawBody []byte) (ApplyResult, error) {
	n, err := DecodeNotification(rawBody)
	if err != nil {
		s.logger.WarnContext(ctx, "webhook body rejected", "err", err, "bytes", len(rawBody))
		return ApplyResult{}, ErrMalformed
	}

	if !VerifySignature(n, s.serverKey) {
		s.logger.WarnContext(ctx, "webhook signature mismatch",
			"order_id", n.OrderID, "status_code", n.StatusCode, "transaction_status", n.TransactionStatus)
		return ApplyResult{}, ErrInvalidSignature
	}

	return s.rec.Apply(ctx, n, SourceWebhook)
}

// DecodeNotification parses a gateway notification body, keeping the raw bytes.
func DecodeNotification(rawBody []byte) (Notification, error) {
	var n Notification
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	if err := dec.Decode(&n); err != nil {
		return Notification{}, err
	}
	if strings.TrimSpace(n.OrderID) == "" || n.TransactionStatus == "" {
		return Notification{}, ErrMalformed
	}
	n.Raw = append([]byte(nil), rawBody...)
	return n, nil
}
