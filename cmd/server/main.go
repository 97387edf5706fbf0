package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/formlink/formlink/internal/auth"
	"github.com/formlink/formlink/internal/config"
	"github.com/formlink/formlink/internal/database"
	"github.com/formlink/formlink/internal/email"
	"github.com/formlink/formlink/internal/handler"
	"github.com/formlink/formlink/internal/logger"
	"github.com/formlink/formlink/internal/middleware"
	"github.com/formlink/formlink/internal/repository"
	"github.com/formlink/formlink/internal/router"
	"github.com/formlink/formlink/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", "0.1.0").Msg("starting FormLink server")

	checks := map[string]handler.HealthChecker{}

	// Connect to Redis
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()
	checks["redis"] = rdb
	log.Info().Msg("connected to Redis")

	// Delivery log is optional
	var (
		store      service.DeliveryStore
		deliveries handler.DeliveryReader
	)
	if cfg.Submission.RecordDeliveries {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		checks["postgres"] = db
		log.Info().Msg("connected to PostgreSQL")

		deliveryRepo := repository.NewDeliveryRepository(db)
		store = deliveryRepo
		deliveries = deliveryRepo
	}

	// Initialize email sender
	sender, err := email.NewSender(context.Background(), cfg.Email, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize email sender")
	}
	log.Info().Str("provider", sender.Provider()).Msg("email sender initialized")

	// Initialize services
	resultsSvc := service.NewResultsLinkService(sender, store, rdb, cfg, log)
	tokenSvc := auth.NewWebhookTokenService(cfg.Webhook)

	// Initialize handlers
	h := handler.New(log, cfg, resultsSvc, deliveries, checks)

	// Initialize middleware
	mw := middleware.New(rdb, log, cfg)

	// Set up router
	r := router.New(h, mw, cfg, tokenSvc)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
