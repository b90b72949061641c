// Package app wires storage, cache, archive and services from config. The
// HTTP server and the importer CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"activation-backend/internal/auth"
	"activation-backend/internal/cache"
	"activation-backend/internal/config"
	"activation-backend/internal/database"
	"activation-backend/internal/db"
	"activation-backend/internal/events"
	"activation-backend/internal/health"
	"activation-backend/internal/models"
	"activation-backend/internal/repositories"
	"activation-backend/internal/repositories/memory"
	"activation-backend/internal/services"
	"activation-backend/internal/storage"
	"activation-backend/internal/timeutil"
	"activation-backend/migrations"
)

type App struct {
	Config *config.Config
	Log    *slog.Logger
	Stores *repositories.Stores
	Cache  cache.Store
	Hub    *events.Hub
	JWT    *auth.JWTManager
	Health *health.HealthChecker

	Ledger      *services.RunLedger
	Imports     *services.ImportService
	Promotion   *services.PromotionService
	Reports     *services.ReportService
	Users       *services.UserService
	Assignments *services.AssignmentService
	References  *services.ReferenceService

	closers []func()
}

// NewLogger builds the process logger from the log section
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// New connects every backing service named by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	timeutil.SetLocation(cfg.Import.Timezone)
	a := &App{Config: cfg, Log: logger, Hub: events.NewHub(logger)}

	var dbPinger, cachePinger health.Pinger
	switch cfg.Storage.Driver {
	case "postgres", "":
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := database.NewMigrator(pool, migrations.FS, logger).RunMigrations(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.Stores = repositories.NewPostgresStores(pool, cfg.Import.BatchSize)
		dbPinger = pool
		logger.Info("storage ready", "component", "app", "driver", "postgres", "host", cfg.Database.Host, "database", cfg.Database.Name)
	case "memory":
		a.Stores = memory.New().Stores()
		logger.Warn("storage is in memory, data is lost on exit", "component", "app")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { rdb.Close() })
		a.Cache = rdb
		cachePinger = rdb
		logger.Info("redis connected", "component", "app", "addr", cfg.Redis.Addr)
	} else {
		a.Cache = cache.NewMemory()
	}

	var archiver storage.Archiver = storage.Nop{}
	if cfg.Archive.Enabled {
		s3, err := storage.NewS3Archiver(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		archiver = s3
		logger.Info("source archive enabled", "component", "app", "bucket", cfg.Archive.Bucket)
	}

	a.JWT = auth.NewJWTManager(cfg)
	a.Health = health.NewHealthChecker(dbPinger, cachePinger)

	st := a.Stores
	a.Ledger = services.NewRunLedger(st.Runs, st.Staging, a.Hub, logger)
	a.Imports = services.NewImportService(services.ImportConfigFrom(cfg), a.Ledger, archiver, st.ActionLogs, logger)
	a.Promotion = services.NewPromotionService(services.PromotionConfig{
		BatchSize: cfg.Import.BatchSize,
		Timeout:   cfg.Import.PromotionTimeout,
	}, st.Promoter, st.Runs, a.Cache, a.Hub, st.ActionLogs, logger)
	a.Reports = services.NewReportService(a.Ledger)
	a.Users = services.NewUserService(st.Users, a.Cache, a.JWT, logger)
	a.Assignments = services.NewAssignmentService(st.Assignments, a.Cache, logger)
	a.References = services.NewReferenceService(st.References, logger)
	return a, nil
}

// EnsureAdmin creates the configured admin account if it does not exist
func (a *App) EnsureAdmin(ctx context.Context) error {
	email, password := a.Config.Admin.Email, a.Config.Admin.Password
	if email == "" || password == "" {
		return nil
	}
	_, err := a.Stores.Users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}
	u := &models.User{Name: "Administrator", Email: email, Role: models.RoleAdmin}
	if err := a.Users.CreateUser(ctx, u, password); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	a.Log.Info("admin account created", "component", "app", "email", u.Email)
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
