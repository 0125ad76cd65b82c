package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vibehealth/healthsync/internal/api/handlers"
	"github.com/vibehealth/healthsync/internal/api/router"
	"github.com/vibehealth/healthsync/internal/config"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/pkg/validator"
	"github.com/vibehealth/healthsync/internal/provider"
	"github.com/vibehealth/healthsync/internal/provider/mock"
	"github.com/vibehealth/healthsync/internal/repository/postgres"
	"github.com/vibehealth/healthsync/internal/services"
	"github.com/vibehealth/healthsync/internal/worker"
	"github.com/vibehealth/healthsync/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := postgres.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, migrations.FS); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Info("Database migrations applied")

	// Repositories
	deviceRepo := postgres.NewDeviceRepository(db)
	portalRepo := postgres.NewPortalRepository(db)
	consentRepo := postgres.NewConsentRepository(db)

	// Provider registry. The mock providers stand in for real vendor SDKs
	// until per-vendor adapters land.
	registry := provider.NewRegistry()
	registry.RegisterDevice(mock.NewDeviceProvider())
	registry.RegisterPortal(mock.NewPortalProvider())

	// Services
	sink := services.NewLoggingSink(log)
	consentService := services.NewConsentService(consentRepo, deviceRepo, portalRepo, log)
	deviceService := services.NewDeviceService(
		deviceRepo, consentService, consentRepo, registry, sink, log,
		cfg.Integration.OAuthCallbackURL, cfg.Integration.DeviceBackfill,
	)
	portalService := services.NewPortalService(
		portalRepo, consentService, consentRepo, registry, sink, log,
		cfg.Integration.PortalBackfill,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background scheduler
	var scheduler *worker.Scheduler
	if cfg.Integration.SchedulerEnabled {
		scheduler = worker.New(deviceRepo, deviceService, log, worker.Config{
			SyncSchedule:     cfg.Integration.SyncSchedule,
			RefreshSchedule:  cfg.Integration.RefreshSchedule,
			RefreshLookahead: cfg.Integration.RefreshLookahead,
		})
		if err := scheduler.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	// HTTP server
	val := validator.New()
	h := &router.Handlers{
		Health:      handlers.NewHealthHandler(db, log),
		Integration: handlers.NewIntegrationHandler(registry),
		Device:      handlers.NewDeviceHandler(deviceService, log, val),
		Portal:      handlers.NewPortalHandler(portalService, log, val),
		Consent:     handlers.NewConsentHandler(consentService, log),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "Graceful shutdown failed")
	}
	log.Info("Server stopped")
}
