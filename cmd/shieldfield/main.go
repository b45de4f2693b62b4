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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ss-chris/shield-field/internal/app"
	"github.com/ss-chris/shield-field/internal/catalog"
	"github.com/ss-chris/shield-field/internal/directory"
	"github.com/ss-chris/shield-field/internal/fulfillment"
	"github.com/ss-chris/shield-field/internal/inventory"
	"github.com/ss-chris/shield-field/internal/observability"
	"github.com/ss-chris/shield-field/internal/platform/db"
	"github.com/ss-chris/shield-field/internal/procurement"
	"github.com/ss-chris/shield-field/internal/shared"
	"github.com/ss-chris/shield-field/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	directoryRepo := directory.NewRepository(dbpool)
	directoryService := directory.NewService(directoryRepo)
	directoryHandler := directory.NewHandler(logger, directoryService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(logger, inventoryRepo, auditLogger, metrics)
	runLock := shared.NewRunLock(redisClient, cfg.PlannerLockTTL)
	planner := inventory.NewPlanner(logger, inventoryRepo, runLock, metrics, cfg.AccountID)
	enqueueRun := inventory.EnqueueFunc(func(ctx context.Context) error {
		_, err := jobsClient.EnqueueReplenishmentRun(ctx, jobs.ReplenishmentPayload{AccountID: cfg.AccountID})
		return err
	})
	inventoryHandler := inventory.NewHandler(logger, inventoryService, planner, enqueueRun)

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(logger, procurementRepo, inventoryService)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	fulfillmentRepo := fulfillment.NewRepository(dbpool)
	fulfillmentService := fulfillment.NewService(logger, fulfillmentRepo, inventoryService)
	fulfillmentHandler := fulfillment.NewHandler(logger, fulfillmentService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CatalogHandler:     catalogHandler,
		DirectoryHandler:   directoryHandler,
		InventoryHandler:   inventoryHandler,
		ProcurementHandler: procurementHandler,
		FulfillmentHandler: fulfillmentHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
