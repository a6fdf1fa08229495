package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/odyssey-commerce/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-commerce/internal/app"
	"github.com/odyssey-erp/odyssey-commerce/internal/observability"
	"github.com/odyssey-erp/odyssey-commerce/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cfg.AsynqOptions())
		defer func() { _ = jobsCLI.Close() }()
		if err := cli.Run(ctx, jobsCLI, os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
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
	if err := stores.Load(ctx); err != nil {
		logger.Error("load stores", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := app.OpenRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	services := app.NewServices(app.ServicesParams{
		Config:  cfg,
		Stores:  stores,
		Redis:   redisClient,
		Metrics: metrics,
		Logger:  logger,
	})
	// The worker rewrites records directly; reload the caches when it reports changes.
	reloadStores := func(ctx context.Context) {
		if err := stores.Load(ctx); err != nil {
			logger.Warn("reload stores", slog.Any("error", err))
		}
	}
	if err := services.Cache.ListenForInvalidation(ctx, reloadStores); err != nil {
		logger.Warn("analytics invalidation listener", slog.Any("error", err))
	}

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(cfg.AsynqOptions())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobClient, err := jobs.NewClient(cfg.AsynqOptions())
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = jobClient.Close() }()
		jobHandler = jobs.NewHandler(inspector, jobClient, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		Services:   services,
		Metrics:    metrics,
		JobHandler: jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
