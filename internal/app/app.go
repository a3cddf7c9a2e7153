// Package app builds the object graph shared by the web server and tripctl.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"summitpass.id/app/internal/config"
	"summitpass.id/app/internal/db"
	"summitpass.id/app/internal/mailer"
	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/modules/notify"
	"summitpass.id/app/internal/modules/payments"
	"summitpass.id/app/internal/modules/payments/midtrans"
	"summitpass.id/app/internal/modules/registrations"
	"summitpass.id/app/internal/storage"
)

type App struct {
	Cfg    config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  *redis.Client // nil when REDIS_ADDR is unset or unreachable

	Trips         *catalog.Repo
	Guard         *registrations.Guard
	Registrations *registrations.Service
	RegRepo       *registrations.Repo
	Admin         *registrations.AdminService
	Reconciler    *payments.Reconciler
	Payments      *payments.Service
	Status        *payments.StatusService
	Webhooks      *payments.WebhookService
	Dispatcher    *notify.Dispatcher

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	gdb, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Logger: logger, DB: gdb}
	a.closers = append(a.closers, func() error { return db.Close(gdb) })

	a.Redis = newRedis(ctx, cfg.Redis, logger)
	if a.Redis != nil {
		a.closers = append(a.closers, a.Redis.Close)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var pub notify.Publisher = notify.LogPublisher{Logger: logger}
	if cfg.Rabbit.URL != "" {
		rp := notify.NewRabbitPublisher(cfg.Rabbit.URL, cfg.Rabbit.Queue, logger)
		a.closers = append(a.closers, rp.Close)
		pub = rp
	}

	var mail mailer.Service
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTP)
	} else {
		logger.Warn("SMTP_HOST not set; confirmation emails are disabled")
	}

	gw := midtrans.New(midtrans.Config{ServerKey: cfg.Midtrans.ServerKey, IsProduction: cfg.Midtrans.IsProduction})
	if cfg.Midtrans.ServerKey == "" {
		logger.Warn("MIDTRANS_SERVER_KEY not set; payments and webhooks will be rejected")
	}

	a.Trips = catalog.NewRepo(gdb)
	a.Guard = registrations.NewGuard()
	a.Registrations = registrations.NewService(gdb, a.Trips, a.Guard)
	a.Registrations.SetLogger(logger)
	a.RegRepo = registrations.NewRepo(gdb)
	a.Admin = registrations.NewAdminService(gdb, a.Trips, a.Guard)
	a.Admin.SetLogger(logger)

	a.Reconciler = payments.NewReconciler(gdb, a.Registrations, a.Trips, notify.NewOutbox())
	a.Reconciler.SetLogger(logger)
	a.Reconciler.SetArchive(storage.NewPayloadArchive(store))

	a.Payments = payments.NewService(gdb, gw, a.Registrations, a.Trips, payments.Options{
		Currency:  cfg.Payment.Currency,
		Timeout:   cfg.Midtrans.Timeout,
		FinishURL: cfg.Midtrans.FinishURL,
	})
	a.Payments.SetLogger(logger)

	a.Status = payments.NewStatusService(gdb, gw, a.Reconciler,
		payments.NewRedisThrottle(a.Redis, cfg.Payment.StatusThrottleTTL), cfg.Midtrans.Timeout)
	a.Status.SetLogger(logger)

	a.Webhooks = payments.NewWebhookService(a.Reconciler, cfg.Midtrans.ServerKey)
	a.Webhooks.SetLogger(logger)

	a.Dispatcher = notify.NewDispatcher(gdb, pub, mail, cfg.SMTP.From, cfg.SMTP.FromName)
	a.Dispatcher.SetLogger(logger)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newRedis returns nil when Redis is not configured or does not answer; the
// status throttle then lets every lookup through.
func newRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.Warn("redis unavailable; status throttle disabled", "addr", cfg.Addr, "err", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}
