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

	"github.com/palletflow/palletflow/internal/app"
	"github.com/palletflow/palletflow/internal/catalog"
	jobmetrics "github.com/palletflow/palletflow/internal/jobs"
	"github.com/palletflow/palletflow/internal/orders"
	"github.com/palletflow/palletflow/internal/platform/cache"
	"github.com/palletflow/palletflow/internal/platform/db"
	"github.com/palletflow/palletflow/internal/pricing"
	"github.com/palletflow/palletflow/internal/reporting"
	"github.com/palletflow/palletflow/jobs"
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

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	orderRepo := orders.NewRepository(pool)
	catalogRepo := catalog.NewRepository(pool)
	reportCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	engine := pricing.NewEngine(cfg.PriceTolerancePct, logger)
	reportService := reporting.NewService(orderRepo, catalogRepo, engine, reportCache, logger, reporting.Config{
		TolerancePct:     cfg.PriceTolerancePct,
		TotalEpsilon:     cfg.TotalEpsilon,
		RunDeadline:      cfg.RunDeadline,
		StockConcurrency: cfg.StockConcurrency,
	})

	metrics := jobmetrics.NewMetrics(nil)
	scanJob := jobs.NewPriceAnomalyScanJob(reportService, logger, metrics)
	warmupJob := jobs.NewReportWarmupJob(reportService, logger, metrics)

	scanTask, err := jobs.NewPriceAnomalyScanTask(jobs.PriceAnomalyScanPayload{
		WindowDays:   cfg.AnomalyScanWindowDays,
		TolerancePct: cfg.PriceTolerancePct,
	})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewReportWarmupTask(jobs.ReportWarmupPayload{WindowDays: cfg.AnomalyScanWindowDays})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPriceAnomalyScan, Handler: scanJob.Handle},
			{Type: jobs.TaskReportWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AnomalyScanCron, Task: scanTask},
			{Spec: cfg.WarmupCron, Task: warmupTask},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
