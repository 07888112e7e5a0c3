package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatepass-erp/gatepass-erp/internal/app"
	"github.com/gatepass-erp/gatepass-erp/internal/authz"
	jobmetrics "github.com/gatepass-erp/gatepass-erp/internal/jobs"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/companies"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/products"
	"github.com/gatepass-erp/gatepass-erp/internal/platform/cache"
	"github.com/gatepass-erp/gatepass-erp/internal/platform/db"
	"github.com/gatepass-erp/gatepass-erp/internal/vouchers"
	"github.com/gatepass-erp/gatepass-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	authzStore := authz.NewStore(pool)
	levelCache := authz.NewLevelCache(redisClient, cfg.AuthzCacheTTL)
	catalog := authz.NewCatalog(authzStore, logger)
	resolver := authz.NewResolver(authzStore, levelCache, logger)
	overrideService := authz.NewOverrideService(authzStore, catalog, resolver, levelCache, logger)
	cleanupJob := jobs.NewCleanupExpiredJob(overrideService, logger, metrics)

	companiesService := companies.NewService(companies.NewRepository(pool))
	productsService := products.NewService(products.NewRepository(pool))
	vouchersService := vouchers.NewService(vouchers.NewRepository(pool), companiesService, productsService, logger)
	overdueJob := jobs.NewOverdueCheckJob(vouchersService, logger, metrics)

	overdueTask, err := jobs.NewOverdueCheckTask(jobs.OverdueCheckPayload{})
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuthzCleanupExpired, Handler: cleanupJob.Handle},
			{Type: jobs.TaskVouchersOverdueCheck, Handler: overdueJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CleanupCron, Task: jobs.NewCleanupExpiredTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.OverdueCron, Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	ops := chi.NewRouter()
	ops.Handle("/metrics", promhttp.Handler())
	jobs.NewHandler(inspector, logger).MountRoutes(ops)
	opsServer := &http.Server{Addr: cfg.WorkerOpsAddr, Handler: ops}
	go func() {
		logger.Info("starting ops listener", slog.String("addr", cfg.WorkerOpsAddr))
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("ops listener", slog.Any("error", err))
		}
	}()
	defer func() {
		if err := opsServer.Close(); err != nil {
			logger.Warn("ops close", slog.Any("error", err))
		}
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
