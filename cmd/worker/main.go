package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vinstock/vinstock/internal/allocation"
	"github.com/vinstock/vinstock/internal/app"
	"github.com/vinstock/vinstock/internal/backorder"
	"github.com/vinstock/vinstock/internal/fulfillment"
	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/platform/db"
	"github.com/vinstock/vinstock/internal/shared"
	"github.com/vinstock/vinstock/jobs"
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

	auditLogger := shared.NewAuditLogger(pool)

	// The worker mutates stock directly, so it skips the snapshot cache
	// and operates on the database alone.
	inventoryRepo := inventory.NewRepository(pool, cfg.TxMaxAttempts)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, nil, logger)

	fulfillmentRepo := fulfillment.NewRepository(pool, cfg.TxMaxAttempts)
	fulfillmentService := fulfillment.NewService(fulfillmentRepo, auditLogger, inventoryService, logger)

	backorderRepo := backorder.NewRepository(pool, cfg.TxMaxAttempts)
	backorderService := backorder.NewService(backorderRepo, auditLogger, logger)

	allocationService := allocation.NewService(inventoryService, fulfillmentService, backorderService, auditLogger, logger)
	resolveJob := jobs.NewBackorderResolveJob(backorderService, allocationService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeBackorderResolve, Handler: resolveJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
