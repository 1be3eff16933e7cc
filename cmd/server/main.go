package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/fitnow/fitnow-api/internal/config"
	"github.com/fitnow/fitnow-api/internal/database"
	"github.com/fitnow/fitnow-api/internal/handler"
	"github.com/fitnow/fitnow-api/internal/logging"
	"github.com/fitnow/fitnow-api/internal/middleware"
	"github.com/fitnow/fitnow-api/internal/queue"
	"github.com/fitnow/fitnow-api/internal/repository"
	"github.com/fitnow/fitnow-api/internal/reservation"
	"github.com/fitnow/fitnow-api/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("database unavailable")
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logging.Error().Err(err).Msg("migrations failed")
			os.Exit(1)
		}
	}

	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		logging.Error().Err(err).Msg("invalid cache configuration")
		os.Exit(1)
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		logging.Error().Err(err).Msg("invalid rate limit configuration")
		os.Exit(1)
	}
	rdb := config.NewRedisClient(cfg.Redis) // nil disables cache and rate limiting
	if rdb != nil {
		defer rdb.Close()
	}

	publisher := queue.NewPublisher(cfg.RabbitURL)
	defer publisher.Close()

	if cfg.ConsumerEnable {
		consumer := &queue.AuditConsumer{URL: cfg.RabbitURL, Path: cfg.AuditLogPath}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	svc := reservation.NewService(repository.NewReservationRepo(db), publisher, cfg.DBTxTimeout)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())

	router.Register(e, router.Deps{
		JWTSecret:    cfg.JWTSecret,
		DB:           db,
		Redis:        rdb,
		Cache:        cacheCfg,
		RateLimit:    rlCfg,
		Reservations: handler.NewReservationHandler(svc),
		Browse:       handler.NewBrowseHandler(repository.NewActivityRepo(db)),
	})

	addr := ":" + cfg.Port
	go func() {
		logging.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown failed")
	}
	logging.Info().Msg("stopped")
}
