package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"travel-booking/internal/auth"
	"travel-booking/internal/booking"
	"travel-booking/internal/catalog"
	"travel-booking/internal/config"
	"travel-booking/internal/db"
	"travel-booking/internal/events"
	"travel-booking/internal/maintenance"
	"travel-booking/internal/media"
	"travel-booking/internal/observability"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler         http.Handler
	Addr            string
	ShutdownTimeout time.Duration
	Close           func() error
}

// dependencies are the external resources the router is built from.
// cache and uploader are optional.
type dependencies struct {
	config    config.Config
	logger    *observability.Logger
	database  *sql.DB
	cache     *redis.Client
	publisher events.Publisher
	uploader  media.ImageUploader
}

func Build(ctx context.Context, options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	if cfg.InsecureJWTSecret {
		logger.Warn("jwt_secret_insecure_default", map[string]any{
			"hint": "set JWT_SECRET; tokens signed with the built-in secret can be forged by anyone",
		})
	}

	database, err := db.Open(ctx, cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		return nil, err
	}

	if options.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	deps := dependencies{
		config:   cfg,
		logger:   logger,
		database: database,
	}

	if cfg.RedisURL != "" {
		deps.cache, err = openRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	if cfg.KafkaBrokers != "" {
		deps.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaBookingTopic)
	} else {
		deps.publisher = events.NewLogPublisher(logger)
	}

	if cfg.S3.Configured() {
		uploader, err := media.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			logger.Error("init_s3_failed", map[string]any{"error": err.Error()})
		} else {
			deps.uploader = uploader
		}
	}

	handler, authService := newHandler(deps)

	if err := bootstrapUsers(ctx, authService, cfg, logger); err != nil {
		_ = deps.close()
		return nil, err
	}

	return &Runtime{
		Handler:         handler,
		Addr:            net.JoinHostPort("", cfg.Port),
		ShutdownTimeout: cfg.ShutdownTimeout,
		Close:           deps.close,
	}, nil
}

func openRedis(ctx context.Context, redisURL string, logger *observability.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The limiter fails open, so an unreachable cache is not fatal.
		logger.Warn("redis_unavailable", map[string]any{"error": err.Error()})
	}

	return client, nil
}

func bootstrapUsers(ctx context.Context, service *auth.Service, cfg config.Config, logger *observability.Logger) error {
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := service.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, "Admin", "User"); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		logger.Info("admin_bootstrapped", map[string]any{"email": cfg.AdminEmail})
	}

	if cfg.UsersSeedFile != "" {
		created, err := service.SeedFromFile(ctx, cfg.UsersSeedFile)
		if err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		logger.Info("users_seeded", map[string]any{"file": cfg.UsersSeedFile, "created": created})
	}

	return nil
}

func newHandler(deps dependencies) (http.Handler, *auth.Service) {
	cfg, logger := deps.config, deps.logger

	codec := auth.NewTokenCodec(cfg.JWTSecret)

	authRepo := auth.NewRepository(deps.database)
	authService := auth.NewService(authRepo, codec)
	authService.WithLockoutConfig(cfg.LoginMaxAttempts, cfg.LoginLockDuration)
	authHandler := auth.NewHandler(authService, authRepo)
	guard := auth.NewAuthenticator(codec, authRepo, logger)

	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateWindow)
	if deps.cache != nil {
		loginLimiter.WithRedis(deps.cache, logger)
	}

	catalogRepo := catalog.NewRepository(deps.database)
	catalogHandler := catalog.NewHandler(catalogRepo)

	bookingService := booking.NewService(booking.NewRepository(deps.database), catalogRepo, deps.publisher, logger)
	bookingHandler := booking.NewHandler(bookingService)

	uploadHandler := media.NewUploadHandler(deps.uploader)
	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		cfg.CronSecret,
		cfg.LoginAttemptRetention,
		cfg.CleanupBatchSize,
	)

	authed := func(h http.HandlerFunc) http.Handler { return guard.Middleware(h) }
	admin := func(h http.HandlerFunc) http.Handler { return guard.RequireAdmin(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(deps.database, deps.cache))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.Handle("POST /api/auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.Handle("POST /api/auth/refresh", authed(authHandler.Refresh))

	mux.HandleFunc("GET /api/packages", catalogHandler.ListPackages)
	mux.HandleFunc("GET /api/packages/featured", catalogHandler.FeaturedPackages)
	mux.HandleFunc("GET /api/packages/{id}", catalogHandler.GetPackage)
	mux.HandleFunc("GET /api/packages/category/{category_id}", catalogHandler.PackagesByCategory)
	mux.HandleFunc("GET /api/categories", catalogHandler.ListCategories)

	mux.Handle("POST /api/bookings", authed(bookingHandler.Create))
	mux.Handle("GET /api/bookings", authed(bookingHandler.ListMine))
	mux.Handle("GET /api/bookings/{id}", authed(bookingHandler.GetMine))
	mux.Handle("PUT /api/bookings/{id}/cancel", authed(bookingHandler.CancelMine))

	mux.Handle("GET /api/admin/users", admin(authHandler.ListUsers))
	mux.Handle("POST /api/admin/packages", admin(catalogHandler.CreatePackage))
	mux.Handle("PUT /api/admin/packages/{id}", admin(catalogHandler.UpdatePackage))
	mux.Handle("DELETE /api/admin/packages/{id}", admin(catalogHandler.DeletePackage))
	mux.Handle("GET /api/admin/categories", admin(catalogHandler.ListCategories))
	mux.Handle("POST /api/admin/categories", admin(catalogHandler.CreateCategory))
	mux.Handle("GET /api/admin/bookings", admin(bookingHandler.ListAll))
	mux.Handle("PUT /api/admin/bookings/{id}/status", admin(bookingHandler.UpdateStatus))
	mux.Handle("POST /api/admin/media/upload", admin(uploadHandler.Upload))

	var handler http.Handler = mux
	handler = observability.CORSMiddleware(cfg.CORSAllowedOrigins, handler)
	handler = observability.RequestLoggingMiddleware(logger, handler)
	handler = observability.RecoverMiddleware(logger, handler)
	handler = observability.RequestIDMiddleware(handler)

	return handler, authService
}

func (d dependencies) close() error {
	var errs []error
	if d.publisher != nil {
		errs = append(errs, d.publisher.Close())
	}
	if d.cache != nil {
		errs = append(errs, d.cache.Close())
	}
	observability.FlushSentry()
	errs = append(errs, d.database.Close())
	return errors.Join(errs...)
}

func healthHandler(database *sql.DB, cache *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{"database": "ok"}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks["database"] = "unavailable"
		}
		if cache != nil {
			checks["redis"] = "ok"
			if err := cache.Ping(ctx).Err(); err != nil {
				// Redis only backs rate limiting, which fails open.
				checks["redis"] = "unavailable"
			}
		}

		body := map[string]any{
			"status": "ok",
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
