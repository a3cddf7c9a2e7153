package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"summitpass.id/app/internal/app"
	"summitpass.id/app/internal/config"
	apphttp "summitpass.id/app/internal/http"
	"summitpass.id/app/internal/http/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	level := slog.LevelInfo
	if cfg.Env == "dev" {
		level = slog.LevelDebug
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	go a.Dispatcher.Run(ctx, 5*time.Second)

	r := apphttp.NewRouter(apphttp.Deps{
		Logger:        logger,
		DB:            a.DB,
		Session:       middleware.SessionCfg{DB: a.DB, CookieName: cfg.Session.CookieName, Secure: cfg.Session.Secure},
		CORS:          cfg.CORS,
		Trips:         a.Trips,
		Guard:         a.Guard,
		Registrations: a.Registrations,
		RegRepo:       a.RegRepo,
		Admin:         a.Admin,
		Payments:      a.Payments,
		Status:        a.Status,
		Webhooks:      a.Webhooks,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
}
