package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orderdesk/adminsearch/internal/di"
	"github.com/orderdesk/adminsearch/internal/handlers"
	"github.com/orderdesk/adminsearch/internal/platform/auth"
	"github.com/orderdesk/adminsearch/internal/platform/cache"
	"github.com/orderdesk/adminsearch/internal/platform/config"
	"github.com/orderdesk/adminsearch/internal/platform/idempotency"
	"github.com/orderdesk/adminsearch/internal/platform/jobs"
	"github.com/orderdesk/adminsearch/internal/platform/observability"
	"github.com/orderdesk/adminsearch/internal/platform/secrets"
	"github.com/orderdesk/adminsearch/internal/repositories"
	"github.com/orderdesk/adminsearch/internal/repositories/postgres"
	"github.com/orderdesk/adminsearch/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("adminsearch")
	ctx = observability.WithLogger(ctx, logger)

	fetcher := secrets.NewFetcher(os.Getenv("GCP_PROJECT_ID"), secrets.WithLogger(logger))
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := postgres.NewDatabase(ctx, postgres.Config{
		DSN:            cfg.Postgres.DSN,
		MaxConns:       int32(cfg.Postgres.MaxConns),
		ConnectTimeout: cfg.Postgres.ConnectTimeout,
	})
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := db.MigrateToLatest(); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}()

	redisStore, err := cache.NewRedisStore(redisClient)
	if err != nil {
		logger.Fatal("failed to build redis store", zap.Error(err))
	}

	deliveryStore, err := idempotency.NewRedisStore(redisClient)
	if err != nil {
		logger.Fatal("failed to build delivery store", zap.Error(err))
	}

	tracer := observability.NewSearchTracer(logger, cfg.Search.TracingEnabled)
	queries := observability.NewQueryMonitor(0)
	searchCache := cache.NewSearchCache(redisStore, tracer, cfg.Search.CacheTTL)

	var container *di.Container
	scheduler, pubsubClient, err := buildScheduler(ctx, cfg, logger, func(jobCtx context.Context, job jobs.Job) {
		if container == nil || job.Name != services.BuildJobName {
			return
		}
		size, _ := strconv.Atoi(job.Payload["batch_size"])
		result, runErr := container.Services.CouponBuilder.RunBatch(jobCtx, services.BuildOptions{Force: true, BatchSize: size})
		if runErr != nil {
			logger.Error("chained lookup build batch failed", zap.Error(runErr))
			return
		}
		logger.Info("chained lookup build batch finished",
			zap.Int("processed", result.Processed),
			zap.Bool("done", result.Done))
	})
	if err != nil {
		logger.Fatal("failed to build scheduler", zap.Error(err))
	}
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	container, err = di.NewContainer(ctx, cfg, di.Deps{
		DB:        db,
		Cache:     searchCache,
		Tracer:    tracer,
		Queries:   queries,
		Scheduler: scheduler,
	})
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}

	verifier := auth.NewHMACVerifier(cfg.Security.HMACSecrets,
		auth.WithHeaders(cfg.Security.SignatureHeader, cfg.Security.TimestampHeader),
		auth.WithClockSkew(cfg.Security.ClockSkew))
	if !verifier.Enabled() && cfg.Security.Environment == "production" {
		logger.Fatal("refusing to start without request signing secrets in production")
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.GCP.ProjectID),
			observability.RequestLoggerMiddleware(cfg.GCP.ProjectID),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithAdminMiddlewares(verifier.Middleware()),
		handlers.WithHookMiddlewares(
			verifier.Middleware(),
			idempotency.Middleware(deliveryStore, idempotency.WithMethods(http.MethodPost)),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(map[string]repositories.Pinger{
			"postgres": db,
			"redis":    redisStore,
		})),
		handlers.WithSearchHandlers(handlers.NewSearchHandlers(
			container.Services.CustomerSearch,
			container.Services.CouponSearch,
		)),
		handlers.WithCouponHookHandlers(handlers.NewCouponHookHandlers(container.Services.CouponSync)),
		handlers.WithCouponRebuildHandlers(handlers.NewCouponRebuildHandlers(container.Services.CouponBuilder)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	if timerScheduler, ok := scheduler.(*jobs.TimerScheduler); ok {
		timerScheduler.Close()
	}
	logger.Info("server stopped")
}

// buildScheduler picks the batch-chaining transport: a Pub/Sub topic when one
// is configured (multi-instance deployments, with an external worker driving
// the rebuild endpoint), otherwise the in-process timer.
func buildScheduler(ctx context.Context, cfg config.Config, logger *zap.Logger, handler jobs.HandlerFunc) (jobs.Scheduler, *pubsub.Client, error) {
	if cfg.GCP.JobTopicID != "" && cfg.GCP.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.GCP.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("create pubsub client: %w", err)
		}
		scheduler, err := jobs.NewPubSubScheduler(client.Topic(cfg.GCP.JobTopicID))
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		logger.Info("using pubsub scheduler", zap.String("topic", cfg.GCP.JobTopicID))
		return scheduler, client, nil
	}
	scheduler, err := jobs.NewTimerScheduler(ctx, handler)
	if err != nil {
		return nil, nil, err
	}
	return scheduler, nil, nil
}
