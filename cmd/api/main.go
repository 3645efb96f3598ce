// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/planejarpatrimonio/backend/internal/admin"
	"github.com/planejarpatrimonio/backend/internal/app"
	"github.com/planejarpatrimonio/backend/internal/health"
	"github.com/planejarpatrimonio/backend/internal/identity"
	"github.com/planejarpatrimonio/backend/internal/middleware"
	"github.com/planejarpatrimonio/backend/internal/project"
	"github.com/planejarpatrimonio/backend/internal/server"
	"github.com/planejarpatrimonio/backend/internal/user"
)

const (
	drainDelay         = 5 * time.Second
	tokenPurgeInterval = time.Hour
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, logger, err := app.Load(configPath)
	if err != nil {
		return err
	}

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	identityHandler := identity.NewHandler(a.Identity, cfg.Platform.ResetRedirectURL())
	userHandler := user.NewHandler(a.Users, cfg.Server.MaxUploadBytes)
	projectHandler := project.NewHandler(a.Projects, cfg.Server.MaxUploadBytes)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: a.DB},
		health.Dependency{Name: "redis", Checker: a.Redis},
		health.Dependency{Name: "storage", Checker: a.Storage},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Users:      a.Users,
		Projects:   a.Projects,
		Seeder:     a.Seeder,
		DBStats:    a.DB.Stats,
		RedisStats: a.Redis.PoolStats,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	if a.Telemetry != nil {
		router.Use(middleware.Tracing(a.Telemetry.Tracer))
	}
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(a.Redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			BypassFunc: middleware.BypassPaths("/healthz", "/livez", "/readyz"),
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", a.Signer.JWKSHandler())

	authenticator := middleware.Authenticator(a.Identity, a.Users)
	optionalAuth := middleware.OptionalAuthenticator(a.Identity, a.Users)
	adminOnly := middleware.RequireAdmin

	authLimiter := middleware.NewRateLimiter(a.Redis.Client, middleware.RateLimitConfig{
		Limit: middleware.PerMinute(
			cfg.RateLimit.AuthRequests,
			cfg.RateLimit.AuthBurst,
		),
		KeyFunc: middleware.KeyByIPAndEndpoint,
	})

	router.Route("/v1", func(r chi.Router) {
		if cfg.Platform.APIKey != "" {
			r.Use(middleware.APIKey(cfg.Platform.APIKey))
		}

		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Handler)
			identityHandler.RegisterRoutes(r, authenticator, optionalAuth)
		})

		userHandler.RegisterRoutes(r, authenticator, adminOnly)
		projectHandler.RegisterRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	go purgeExpiredTokens(ctx, a.Identity, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		a.Close(context.Background())
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	a.Close(shutdownCtx)

	logger.Info("application stopped")
	return nil
}

// purgeExpiredTokens deletes expired refresh tokens once an hour until ctx
// is cancelled.
func purgeExpiredTokens(ctx context.Context, svc *identity.Service, logger *slog.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpiredTokens(ctx)
			if err != nil {
				logger.Error("purge expired tokens failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired tokens purged", "count", n)
			}
		}
	}
}
