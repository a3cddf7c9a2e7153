package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"summitpass.id/app/internal/modules/payments"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	Logger     *slog.Logger
	WebhookSvc *payments.WebhookService
}

func NewWebhookHandler(logger *slog.Logger, svc *payments.WebhookService) *WebhookHandler {
	return &WebhookHandler{Logger: logger, WebhookSvc: svc}
}

// POST /webhooks/midtrans
// The gateway retries anything that is not 2xx, so only transient failures
// answer 5xx.
func (h *WebhookHandler) Midtrans(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	res, err := h.WebhookSvc.Handle(c.Request.Context(), body)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true, "outcome": res.Outcome})
	case errors.Is(err, payments.ErrInvalidSignature):
		c.Status(http.StatusUnauthorized)
	case errors.Is(err, payments.ErrMalformed):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "malformed notification"})
	case errors.Is(err, payments.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown order"})
	case errors.Is(err, payments.ErrAmountMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": "amount mismatch"})
	default:
		h.Logger.ErrorContext(c.Request.Context(), "webhook apply failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
	}
}
