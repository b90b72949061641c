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

	"activation-backend/internal/app"
	"activation-backend/internal/config"
	"activation-backend/internal/handlers"
	h "activation-backend/internal/http"
	"activation-backend/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.EnsureAdmin(ctx); err != nil {
		return err
	}

	go a.Hub.Run(ctx)
	if cfg.Import.StaleSweepEvery > 0 && cfg.Import.StaleRunAfter > 0 {
		go a.Ledger.StartExpiry(ctx, cfg.Import.StaleSweepEvery, cfg.Import.StaleRunAfter)
	}

	maxBytes := cfg.MaxFileBytes()
	authMiddleware := middleware.NewAuthMiddleware(a.JWT, a.Stores.Users, a.Cache)
	router := h.NewRouter(
		handlers.NewImportHandler(a.Imports, a.Promotion, a.Ledger, a.Reports, maxBytes, logger),
		handlers.NewAssignmentHandler(a.Assignments, logger),
		handlers.NewReferenceHandler(a.References, maxBytes, logger),
		handlers.NewUserHandler(a.Users, logger),
		handlers.NewAuthHandler(a.Users, logger),
		handlers.NewAdminActionLogHandler(a.Stores.ActionLogs, logger),
		handlers.NewHealthHandler(a.Health),
		http.HandlerFunc(a.Hub.ServeWS),
		authMiddleware,
	)

	// Wrap with panic recovery and request logging; metrics sit inside the router
	corsMiddleware := middleware.NewCORS(cfg)
	handler := middleware.PanicRecovery(logger)(middleware.APILogging(logger)(corsMiddleware(router)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
