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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpHandlers "github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/http/handlers"
	httpMiddleware "github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/http/middleware"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/stats"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/storage/memory"
	redisstorage "github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/storage/redis"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/config"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/ports"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/services"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, backend, err := initStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := storage.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down storage", zap.Error(err))
		}
	}()

	recorder, closeStats, err := initStats(cfg, logger)
	if err != nil {
		return fmt.Errorf("init stats: %w", err)
	}
	defer closeStats()

	limiter, err := services.NewRateLimiterService(storage, services.Config{
		Logger: logger.Named("limiter"),
		Stats:  recorder,
	})
	if err != nil {
		return fmt.Errorf("create limiter: %w", err)
	}

	var sharedConnected func() bool
	if shared, ok := storage.(*redisstorage.Storage); ok {
		sharedConnected = shared.Connected
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           newRouter(limiter, recorder, cfg.Server.SubjectHeader, backend, sharedConnected, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("backend", backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newRouter(
	limiter ports.RateLimiter,
	recorder ports.StatsRecorder,
	subjectHeader string,
	backend string,
	sharedConnected func() bool,
	logger *zap.Logger,
) http.Handler {
	limit := func(lt domain.LimitType) func(http.Handler) http.Handler {
		return httpMiddleware.NewRateLimiterMiddleware(limiter, lt, httpMiddleware.Options{})
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	if subjectHeader != "" {
		r.Use(httpMiddleware.SubjectHeader(subjectHeader))
	}

	r.Get("/healthz", httpHandlers.HealthHandler(backend, sharedConnected))
	r.Get("/stats", httpHandlers.StatsHandler(recorder, logger))

	r.With(limit(domain.LimitAuth)).Post("/auth/login", httpHandlers.OperationHandler(domain.LimitAuth))
	r.With(limit(domain.LimitSearch)).Get("/search", httpHandlers.OperationHandler(domain.LimitSearch))
	r.With(limit(domain.LimitWrite)).Post("/records", httpHandlers.OperationHandler(domain.LimitWrite))
	r.With(limit(domain.LimitFinancial)).Post("/payments", httpHandlers.OperationHandler(domain.LimitFinancial))
	r.With(limit(domain.LimitRefund)).Post("/refunds", httpHandlers.OperationHandler(domain.LimitRefund))
	r.With(limit(domain.LimitCheckout)).Post("/checkout", httpHandlers.OperationHandler(domain.LimitCheckout))
	r.With(limit(domain.LimitCart)).Post("/cart/items", httpHandlers.OperationHandler(domain.LimitCart))
	r.With(limit(domain.LimitBooking)).Post("/bookings", httpHandlers.OperationHandler(domain.LimitBooking))
	r.With(limit(domain.LimitDefault)).Get("/test", httpHandlers.OperationHandler(domain.LimitDefault))

	return r
}

// initStorage escolhe o backend uma única vez, a partir da configuração.
func initStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ports.CounterStore, string, error) {
	var (
		storage ports.CounterStore
		backend string
	)

	if cfg.Shared() {
		shared, err := redisstorage.New(redisstorage.Config{
			URL:               cfg.RedisURL,
			OpTimeout:         cfg.OpTimeout,
			ReconnectInterval: cfg.ReconnectInterval,
		}, redisstorage.WithLogger(logger.Named("redis")))
		if err != nil {
			return nil, "", err
		}
		storage, backend = shared, "redis"
	} else {
		storage, backend = memory.New(memory.WithLogger(logger.Named("memory"))), "memory"
	}

	if err := storage.Init(ctx); err != nil {
		return nil, "", err
	}
	return storage, backend, nil
}

func initStats(cfg config.Config, logger *zap.Logger) (ports.StatsRecorder, func(), error) {
	if !cfg.Stats.Enabled {
		return nil, func() {}, nil
	}
	if !cfg.Storage.Shared() {
		return stats.NewMemoryRecorder(), func() {}, nil
	}

	opts, err := redisstorage.ClientOptions(cfg.Storage.RedisURL, cfg.Storage.OpTimeout)
	if err != nil {
		return nil, nil, err
	}
	rdb := goredis.NewClient(opts)
	recorder := stats.NewRedisRecorder(rdb,
		stats.WithPrefix(cfg.Stats.Prefix),
		stats.WithBucketTTL(cfg.Stats.TTL),
		stats.WithTimeout(cfg.Storage.OpTimeout),
	)
	return recorder, func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("failed to close redis stats client", zap.Error(err))
		}
	}, nil
}
