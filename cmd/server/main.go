package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fleetwise/truck-tco/internal/calculator"
	"github.com/fleetwise/truck-tco/internal/config"
	"github.com/fleetwise/truck-tco/internal/db"
	"github.com/fleetwise/truck-tco/internal/logging"
	"github.com/fleetwise/truck-tco/internal/migrations"
	"github.com/fleetwise/truck-tco/internal/ratelimit"
	"github.com/fleetwise/truck-tco/internal/seed"
	"github.com/fleetwise/truck-tco/internal/session"
	"github.com/fleetwise/truck-tco/internal/store"
)

type server struct {
	auth       *authService
	calculator *calculator.Service
	presets    *store.PresetStore
	users      *store.UserStore
	wizards    session.Store
	limiter    *ratelimit.Limiter
	logger     *zap.Logger

	now   func() time.Time
	newID func() string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	applied, err := migrations.Up(ctx, database)
	if err != nil {
		return fmt.Errorf("run database migrations: %w", err)
	}
	logger.Info("migrations applied", zap.Int("count", applied))

	presets, err := seed.LoadPresets(cfg.PresetsFile)
	if err != nil {
		return fmt.Errorf("load seed presets: %w", err)
	}
	stats, err := seed.Run(ctx, database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		Presets:       presets,
	})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	logger.Info("seed finished", zap.Int("inserts", stats.Inserts), zap.Int("skipped", stats.Skipped))

	var (
		wizards session.Store
		counter ratelimit.Counter
	)
	if cfg.RedisAddr != "" {
		client, err := connectRedis(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		wizards = session.NewRedisStore(client, cfg.SessionTTL)
		counter = ratelimit.NewRedisCounter(client)
	} else {
		logger.Info("REDIS_ADDR not set, keeping wizards and rate limits in memory")
		wizards = session.NewMemoryStore(cfg.SessionTTL)
		counter = ratelimit.NewMemoryCounter()
	}

	if cfg.SessionSecret == "" {
		if !cfg.IsDev() {
			return errors.New("SESSION_SECRET is required outside development")
		}
		logger.Warn("SESSION_SECRET not set, using an insecure development secret")
		cfg.SessionSecret = "dev-insecure-secret"
	}

	srv := newServer(cfg, logger, store.NewPresetStore(database), store.NewCalculationStore(database), store.NewUserStore(database), wizards, counter)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newServer(
	cfg config.Config,
	logger *zap.Logger,
	presets *store.PresetStore,
	calculations *store.CalculationStore,
	users *store.UserStore,
	wizards session.Store,
	counter ratelimit.Counter,
) *server {
	return &server{
		auth:       newAuthService(users, cfg.SessionSecret),
		calculator: calculator.New(presets, calculations, logger),
		presets:    presets,
		users:      users,
		wizards:    wizards,
		limiter:    ratelimit.New(counter, cfg.RateLimit, cfg.RateWindow),
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	r.Use(securityHeaders)

	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.logger))

		r.Get("/presets/active", s.handleActivePreset)
		r.Post("/preview", s.handlePreview)

		r.Post("/calculations", s.handleCalculationCreate)
		r.Get("/calculations", s.handleCalculationsList)
		r.Get("/calculations/{id}", s.handleCalculationDetail)
		r.Get("/calculations/{id}/xlsx", s.handleCalculationExcel)
		r.Get("/calculations/{id}/text", s.handleCalculationText)

		r.Post("/wizard", s.handleWizardStart)
		r.Get("/wizard/{id}", s.handleWizardGet)
		r.Post("/wizard/{id}/steps/{step}", s.handleWizardStep)
		r.Post("/wizard/{id}/calculate", s.handleWizardCalculate)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/presets", s.handleAdminPresetsList)
			r.Post("/presets", s.handleAdminPresetsCreate)
			r.Put("/presets/{id}", s.handleAdminPresetsUpdate)
			r.Delete("/presets/{id}", s.handleAdminPresetsDelete)
			r.Post("/presets/{id}/activate", s.handleAdminPresetsActivate)

			r.Get("/users", s.handleAdminUsersList)
			r.Post("/users", s.handleAdminUsersCreate)
			r.Delete("/users/{id}", s.handleAdminUsersDelete)

			r.Delete("/calculations/{id}", s.handleAdminCalculationsDelete)
		})
	})

	return r
}

// connectRedis pings Redis with exponential backoff until it answers or
// MaxElapsedTime passes.
func connectRedis(ctx context.Context, cfg config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = 30 * time.Second
	retryPolicy.MaxInterval = 5 * time.Second

	logger.Info("connecting to Redis", zap.String("addr", cfg.RedisAddr))
	err := backoff.RetryNotify(
		func() error {
			return client.Ping(ctx).Err()
		},
		backoff.WithContext(retryPolicy, ctx),
		func(err error, next time.Duration) {
			logger.Warn("Redis not ready, retrying", zap.Error(err), zap.Duration("next_attempt", next))
		},
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
