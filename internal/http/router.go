// Package http wires the JSON API: middleware order, route table and the
// handlers behind it.
package http

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"summitpass.id/app/internal/http/handlers"
	"summitpass.id/app/internal/http/middleware"
	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/modules/payments"
	"summitpass.id/app/internal/modules/registrations"
)

type Deps struct {
	Logger  *slog.Logger
	DB      *gorm.DB
	Session middleware.SessionCfg
	CORS    []string

	Trips         *catalog.Repo
	Guard         *registrations.Guard
	Registrations *registrations.Service
	RegRepo       *registrations.Repo
	Admin         *registrations.AdminService
	Payments      *payments.Service
	Status        *payments.StatusService
	Webhooks      *payments.WebhookService
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger, "/healthz"))
	// ErrorHandler sits outside Recovery so a recovered panic still renders
	r.Use(middleware.ErrorHandler(d.Logger))
	r.Use(middleware.Recovery(d.Logger))
	if len(d.CORS) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORS,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID},
			ExposeHeaders:    []string{middleware.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	health := &handlers.HealthHandler{DB: d.DB}
	r.GET("/healthz", health.Check)

	// gateway callbacks carry no session
	wh := handlers.NewWebhookHandler(d.Logger, d.Webhooks)
	r.POST("/webhooks/midtrans", wh.Midtrans)

	regH := handlers.NewRegistrationsHandler(d.DB, d.Registrations, d.RegRepo, d.Trips, d.Guard)
	payH := handlers.NewPaymentsHandler(d.Payments, d.Status)
	adminH := handlers.NewAdminRegistrationsHandler(d.Admin, d.RegRepo)

	api := r.Group("/api")
	api.Use(middleware.SessionMiddleware(d.Session))
	{
		api.GET("/trips/:id/availability", regH.Availability)
		api.POST("/registrations", regH.Create)
		api.GET("/registrations/:id", regH.Get)
		api.POST("/payments", payH.Create)
		api.GET("/payments/:order_id/status", payH.GetStatus)

		me := api.Group("/me", middleware.RequireAuth())
		me.GET("/registrations", regH.Mine)

		admin := api.Group("/admin", middleware.RequireAdmin())
		admin.GET("/registrations", adminH.List)
		admin.GET("/registrations/:id", adminH.Detail)
		admin.PATCH("/registrations/:id", adminH.Update)
		admin.DELETE("/registrations/:id", adminH.Delete)
	}

	return r
}
