package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ss-chris/shield-field/internal/app"
	"github.com/ss-chris/shield-field/internal/inventory"
	"github.com/ss-chris/shield-field/internal/observability"
	"github.com/ss-chris/shield-field/internal/platform/db"
	"github.com/ss-chris/shield-field/internal/shared"
	"github.com/ss-chris/shield-field/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()
	inventoryRepo := inventory.NewRepository(pool)
	runLock := shared.NewRunLock(redisClient, cfg.PlannerLockTTL)
	planner := inventory.NewPlanner(logger, inventoryRepo, runLock, metrics, cfg.AccountID)

	replenishTask, err := jobs.NewReplenishmentTask(jobs.ReplenishmentPayload{AccountID: cfg.AccountID})
	if err != nil {
		logger.Error("build replenishment task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReplenishmentRun, Handler: jobs.NewReplenishmentHandler(logger, planner)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PlannerCron, Task: replenishTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
