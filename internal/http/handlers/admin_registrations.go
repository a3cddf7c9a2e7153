package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"summitpass.id/app/internal/http/middleware"
	"summitpass.id/app/internal/http/validation"
	"summitpass.id/app/internal/modules/registrations"
	"summitpass.id/app/internal/shared/apperr"
)

const adminPageSize = 30

type AdminRegistrationsHandler struct {
	Admin *registrations.AdminService
	Repo  *registrations.Repo
}

func NewAdminRegistrationsHandler(admin *registrations.AdminService, repo *registrations.Repo) *AdminRegistrationsHandler {
	return &AdminRegistrationsHandler{Admin: admin, Repo: repo}
}

// GET /api/admin/registrations?trip_id=&status=&payment_status=&q=&page=
func (h *AdminRegistrationsHandler) List(c *gin.Context) {
	page := parseInt(c.Query("page"), 1)
	res, err := h.Repo.AdminList(c.Request.Context(), registrations.AdminListParams{
		TripID:        c.Query("trip_id"),
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		Q:             c.Query("q"),
		Page:          page,
		PageSize:      adminPageSize,
	})
	if err != nil {
		c.Error(apperr.Wrap(err))
		return
	}

	items := make([]adminRegistrationJSON, 0, len(res.Items))
	for _, r := range res.Items {
		items = append(items, toAdminRegistrationJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"total":       res.Total,
		"page":        page,
		"total_pages": pagesFromTotal(res.Total, adminPageSize),
	})
}

// GET /api/admin/registrations/:id
func (h *AdminRegistrationsHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	reg, err := h.Repo.Get(ctx, c.Param("id"))
	if err != nil {
		c.Error(AppError(err))
		return
	}
	ev, err := h.Repo.Events(ctx, reg.ID)
	if err != nil {
		c.Error(apperr.Wrap(err))
		return
	}

	events := make([]eventJSON, 0, len(ev))
	for _, e := range ev {
		events = append(events, eventJSON{
			Actor:       e.Actor,
			Action:      e.Action,
			FromStatus:  string(e.FromStatus),
			ToStatus:    string(e.ToStatus),
			FromPayment: string(e.FromPaymentStatus),
			ToPayment:   string(e.ToPaymentStatus),
			Note:        e.Note,
			At:          e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"registration": toAdminRegistrationJSON(reg), "events": events})
}

type updateRegistrationInput struct {
	RegistrationStatus *string `json:"registration_status" binding:"omitempty,oneof=pending confirmed cancelled completed"`
	PaymentStatus      *string `json:"payment_status" binding:"omitempty,oneof=pending paid failed expired refunded"`
	AdminNotes         *string `json:"admin_notes" binding:"omitempty,max=2000"`
}

// PATCH /api/admin/registrations/:id
func (h *AdminRegistrationsHandler) Update(c *gin.Context) {
	var in updateRegistrationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(apperr.InvalidErr("Please check the highlighted fields.", validation.FromBindError(err, &in)))
		return
	}
	u, _ := middleware.CurrentUser(c)

	upd := registrations.UpdateStatusInput{
		RegistrationID: c.Param("id"),
		ActorUserID:    u.ID,
		AdminNotes:     in.AdminNotes,
	}
	if in.RegistrationStatus != nil {
		s := registrations.Status(strings.TrimSpace(*in.RegistrationStatus))
		upd.RegistrationStatus = &s
	}
	if in.PaymentStatus != nil {
		p := registrations.PaymentStatus(strings.TrimSpace(*in.PaymentStatus))
		upd.PaymentStatus = &p
	}

	reg, err := h.Admin.UpdateStatus(c.Request.Context(), upd)
	if err != nil {
		c.Error(AppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"registration": toAdminRegistrationJSON(reg)})
}

// DELETE /api/admin/registrations/:id
func (h *AdminRegistrationsHandler) Delete(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	if err := h.Admin.Delete(c.Request.Context(), c.Param("id"), u.ID); err != nil {
		c.Error(AppError(err))
		return
	}
	c.Status(http.StatusNoContent)
}
