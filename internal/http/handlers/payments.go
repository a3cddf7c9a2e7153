package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"summitpass.id/app/internal/http/middleware"
	"summitpass.id/app/internal/http/validation"
	"summitpass.id/app/internal/modules/payments"
	"summitpass.id/app/internal/shared/apperr"
)

type PaymentsHandler struct {
	Svc    *payments.Service
	Status *payments.StatusService
}

func NewPaymentsHandler(svc *payments.Service, status *payments.StatusService) *PaymentsHandler {
	return &PaymentsHandler{Svc: svc, Status: status}
}

type createPaymentInput struct {
	RegistrationID string `json:"registration_id" binding:"required_without=PrivateTripID"`
	PrivateTripID  string `json:"private_trip_id" binding:"required_without=RegistrationID"`
	CustomerName   string `json:"customer_name" binding:"max=191"`
	CustomerEmail  string `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone  string `json:"customer_phone" binding:"max=32"`
}

// POST /api/payments
func (h *PaymentsHandler) Create(c *gin.Context) {
	var in createPaymentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(apperr.InvalidErr("Please check the highlighted fields.", validation.FromBindError(err, &in)))
		return
	}

	customer := payments.Customer{FirstName: in.CustomerName, Email: in.CustomerEmail, Phone: in.CustomerPhone}
	if u, ok := middleware.CurrentUser(c); ok {
		if customer.FirstName == "" {
			customer.FirstName = u.Username
		}
		if customer.Email == "" {
			customer.Email = u.Email
		}
		if customer.Phone == "" && u.Phone != nil {
			customer.Phone = *u.Phone
		}
	}

	res, err := h.Svc.CreateIntent(c.Request.Context(), payments.CreateIntentInput{
		RegistrationID: in.RegistrationID,
		PrivateTripID:  in.PrivateTripID,
		ActorUserID:    actorID(c),
		Customer:       customer,
	})
	if err != nil {
		c.Error(AppError(err))
		return
	}

	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"order_id":     res.OrderID,
		"token":        res.Token,
		"redirect_url": res.RedirectURL,
		"amount":       res.Amount,
	})
}

// GET /api/payments/:order_id/status
// Visibility is checked on the stored row before the gateway is asked.
func (h *PaymentsHandler) GetStatus(c *gin.Context) {
	orderID := c.Param("order_id")
	local, err := h.Status.Local(c.Request.Context(), orderID)
	if err != nil {
		c.Error(AppError(err))
		return
	}
	if !canSee(c, local.UserID) {
		c.Error(AppError(payments.ErrPaymentNotFound))
		return
	}

	res, err := h.Status.GetStatus(c.Request.Context(), orderID)
	if err != nil {
		c.Error(AppError(err))
		return
	}
	c.JSON(http.StatusOK, toPaymentStatusJSON(res))
}
