package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"summitpass.id/app/internal/http/middleware"
	"summitpass.id/app/internal/http/validation"
	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/modules/registrations"
	"summitpass.id/app/internal/shared/apperr"
)

type RegistrationsHandler struct {
	DB    *gorm.DB
	Svc   *registrations.Service
	Repo  *registrations.Repo
	Trips *catalog.Repo
	Guard *registrations.Guard
}

func NewRegistrationsHandler(db *gorm.DB, svc *registrations.Service, repo *registrations.Repo, trips *catalog.Repo, guard *registrations.Guard) *RegistrationsHandler {
	return &RegistrationsHandler{DB: db, Svc: svc, Repo: repo, Trips: trips, Guard: guard}
}

type createRegistrationInput struct {
	TripID           string `json:"trip_id" binding:"required"`
	ParticipantCount int    `json:"participant_count" binding:"required,min=1,max=50"`
	ContactName      string `json:"contact_name" binding:"max=191"`
	ContactEmail     string `json:"contact_email" binding:"omitempty,email,max=255"`
	ContactPhone     string `json:"contact_phone" binding:"max=32"`
}

// POST /api/registrations
func (h *RegistrationsHandler) Create(c *gin.Context) {
	var in createRegistrationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(apperr.InvalidErr("Please check the highlighted fields.", validation.FromBindError(err, &in)))
		return
	}

	contact := registrations.Contact{Name: in.ContactName, Email: in.ContactEmail, Phone: in.ContactPhone}
	var userID *string
	if u, ok := middleware.CurrentUser(c); ok {
		userID = &u.ID
		// members may omit contact details they already gave us
		if strings.TrimSpace(contact.Name) == "" {
			contact.Name = u.Username
		}
		if strings.TrimSpace(contact.Email) == "" {
			contact.Email = u.Email
		}
		if strings.TrimSpace(contact.Phone) == "" && u.Phone != nil {
			contact.Phone = *u.Phone
		}
	}

	reg, err := h.Svc.Create(c.Request.Context(), registrations.CreateInput{
		TripID:           in.TripID,
		UserID:           userID,
		ParticipantCount: in.ParticipantCount,
		Contact:          contact,
	})
	if err != nil {
		c.Error(AppError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"registration": toRegistrationJSON(reg)})
}

// GET /api/registrations/:id
func (h *RegistrationsHandler) Get(c *gin.Context) {
	reg, err := h.Repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(AppError(err))
		return
	}
	if !canSee(c, reg.UserID) {
		// same answer as a missing id
		c.Error(AppError(registrations.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, gin.H{"registration": toRegistrationJSON(reg)})
}

// GET /api/me/registrations
func (h *RegistrationsHandler) Mine(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	page := parseInt(c.Query("page"), 1)
	size := parseInt(c.Query("page_size"), 20)

	res, err := h.Repo.ListByUser(c.Request.Context(), registrations.ListByUserParams{
		UserID: u.ID, Email: u.Email, Page: page, PageSize: size,
	})
	if err != nil {
		c.Error(apperr.Wrap(err))
		return
	}

	items := make([]registrationJSON, 0, len(res.Items))
	for _, r := range res.Items {
		items = append(items, toRegistrationJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"total":       res.Total,
		"page":        page,
		"total_pages": pagesFromTotal(res.Total, size),
	})
}

// GET /api/trips/:id/availability
func (h *RegistrationsHandler) Availability(c *gin.Context) {
	ctx := c.Request.Context()
	trip, err := h.Trips.GetTrip(ctx, c.Param("id"))
	if err != nil {
		c.Error(AppError(err))
		return
	}
	remaining, err := h.Guard.Remaining(ctx, h.DB, trip)
	if err != nil {
		c.Error(apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trip_id":   trip.ID,
		"capacity":  trip.Capacity,
		"remaining": remaining,
		"open":      !trip.ClosedForRegistration(timeNow()),
	})
}
