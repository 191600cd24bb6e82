// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/admission"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/config"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/database"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/handler"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/idgen"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/obs"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/repository"
	"github.com/Shivanand-hulikatti/campsite-reservations/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("campsite service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ───────────────────────────────────────────────────────
	var store repository.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = repository.NewMemoryStore(cfg.AdmissionLockTimeout)
		logger.Warn("using in-memory store, reservations are lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		store = repository.NewReservationRepository(pool, cfg.AdmissionLockTimeout)
		logger.Info("connected to postgres",
			slog.String("host", cfg.Database.Host),
			slog.String("db", cfg.Database.DBName),
		)
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	var metrics *obs.Metrics
	if cfg.MetricsEnabled {
		metrics = obs.NewMetrics("campsite")
	}
	policy := admission.NewPolicy(cfg.Location)
	controller := admission.NewController(store, policy, logger, metrics)
	svc := service.NewReservationService(store, controller, idgen.New(), logger, metrics)
	h := handler.NewReservationHandler(svc, logger)

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.NewRouter(h, logger, metrics),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", srv.Addr),
			slog.String("store", cfg.StoreDriver),
			slog.String("timezone", cfg.Location.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
