// AngelaMos | 2026
// app.go

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/planejarpatrimonio/backend/internal/config"
	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/identity"
	"github.com/planejarpatrimonio/backend/internal/project"
	"github.com/planejarpatrimonio/backend/internal/seed"
	"github.com/planejarpatrimonio/backend/internal/session"
	"github.com/planejarpatrimonio/backend/internal/user"
)

// App is the wired object graph shared by the API server and the CLI.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *core.Database
	Redis     *core.Redis
	Storage   *core.Storage
	Telemetry *core.Telemetry

	Signer   *identity.Signer
	Identity *identity.Service
	Users    *user.Service
	Projects *project.Service
	Session  *session.Facade
	Seeder   *seed.Seeder
}

//nolint:funlen // bootstrap code is inherently verbose
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else {
		a.Telemetry = tel
	}

	a.DB, err = core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := core.Migrate(ctx, a.DB.DB.DB); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	a.Redis, err = core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	a.Storage, err = core.NewStorage(ctx, cfg.Storage)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	logger.Info("object storage ready", "endpoint", cfg.Storage.Endpoint)

	a.Signer, err = identity.NewSigner(cfg.JWT)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	logger.Info("signing keys loaded", "kid", a.Signer.KeyID())

	a.Identity = identity.NewService(
		identity.NewAccountRepository(a.DB.DB),
		identity.NewTokenRepository(a.DB.DB),
		a.Signer,
		identity.NewOTPStore(a.Redis.Client, cfg.Identity.OTPTTL),
		identity.NewMailer(cfg.Mail, logger),
		cfg.Identity,
		logger,
	)

	a.Users = user.NewService(
		user.NewRepository(a.DB.DB),
		a.Storage,
		cfg.Storage.UserDocumentsBucket,
		logger,
	)

	a.Projects = project.NewService(
		project.NewRepository(a.DB.DB),
		a.Storage,
		project.Buckets{
			Documents: cfg.Storage.DocumentsBucket,
			Contracts: cfg.Storage.ContractsBucket,
		},
		logger,
	)

	sessionOpts := session.Options{
		Provider:   a.Identity,
		Mirror:     a.Users,
		Cache:      a.Redis.Client,
		CacheKey:   cfg.Platform.SessionKey,
		CacheTTL:   cfg.JWT.RefreshTokenExpire,
		RedirectTo: cfg.Platform.ResetRedirectURL(),
		Retry:      cfg.Retry,
		Logger:     logger,
	}
	a.Session = session.New(sessionOpts)

	// The seeder signs demo accounts in and out on its own in-memory
	// session so the cached one is never replaced.
	seedOpts := sessionOpts
	seedOpts.Cache = nil
	seedOpts.CacheKey = ""

	a.Seeder = seed.New(seed.Options{
		Accounts:   session.New(seedOpts),
		Users:      a.Users,
		Projects:   a.Projects,
		DB:         a.DB.DB,
		Production: cfg.IsProduction(),
		Logger:     logger,
	})

	return a, nil
}

// Close releases every connection that was opened. Safe on a partially
// built App.
func (a *App) Close(ctx context.Context) {
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			a.Logger.Error("telemetry shutdown error", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("redis close error", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("database close error", "error", err)
		}
	}
}

func NewLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Load reads the config and builds the logger for it.
func Load(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, nil, err
		}
		cfg, err = config.Load("")
		if err != nil {
			return nil, nil, fmt.Errorf("load config without file: %w", err)
		}
	}

	logger := NewLogger(cfg.Log)
	slog.SetDefault(logger)

	return cfg, logger, nil
}
