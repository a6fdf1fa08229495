package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/odyssey-commerce/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-commerce/internal/jobs"
	"github.com/odyssey-erp/odyssey-commerce/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("process", "worker"))
	if !cfg.RedisEnabled {
		logger.Error("the worker needs redis, set REDIS_ENABLED=true")
		os.Exit(1)
	}

	backend, closeBackend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeBackend()

	stores, err := app.NewStores(backend)
	if err != nil {
		logger.Error("build stores", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := app.OpenRedis(ctx, cfg, logger)
	if redisClient == nil {
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	services := app.NewServices(app.ServicesParams{
		Config: cfg,
		Stores: stores,
		Redis:  redisClient,
		Logger: logger,
	})
	metrics := jobmetrics.NewMetrics(nil)

	// Each run reloads the caches so records written by the API are visible.
	reload := func(next asynq.HandlerFunc) asynq.HandlerFunc {
		return func(ctx context.Context, t *asynq.Task) error {
			if err := stores.Load(ctx); err != nil {
				return err
			}
			return next(ctx, t)
		}
	}

	reconcile := &jobs.ReconcileJobs{
		Stock:      services.Ledger,
		Invoices:   services.AR,
		Logger:     logger,
		Metrics:    metrics,
		Invalidate: services.Analytics.Invalidate,
	}
	sweep := &jobs.SweepJob{Markers: services.Progress, Logger: logger, Metrics: metrics}
	warmup := &jobs.WarmupJob{Analytics: services.Analytics, Logger: logger, Metrics: metrics}

	cron, err := jobs.DefaultCron(cfg.PipelineSweepAge)
	if err != nil {
		logger.Error("build cron tasks", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.AsynqOptions(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockReconcile, Handler: reload(reconcile.HandleStock)},
			{Type: jobs.TaskInvoiceReconcile, Handler: reload(reconcile.HandleInvoices)},
			{Type: jobs.TaskPipelineSweep, Handler: sweep.Handle},
			{Type: jobs.TaskAnalyticsWarmup, Handler: reload(warmup.Handle)},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.Int("cron_entries", len(cron)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
