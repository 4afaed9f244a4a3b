package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vinstock/vinstock/internal/allocation"
	"github.com/vinstock/vinstock/internal/app"
	"github.com/vinstock/vinstock/internal/backorder"
	"github.com/vinstock/vinstock/internal/fulfillment"
	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/platform/cache"
	"github.com/vinstock/vinstock/internal/platform/db"
	"github.com/vinstock/vinstock/internal/receiving"
	"github.com/vinstock/vinstock/internal/shared"
	"github.com/vinstock/vinstock/internal/transfer"
	"github.com/vinstock/vinstock/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, snapshot cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var snapshotCache inventory.CachePort
	if redisClient != nil {
		snapshotCache = cache.NewCache(redisClient, cfg.StockCacheTTL)
	}

	auditLogger := shared.NewAuditLogger(pool)

	inventoryRepo := inventory.NewRepository(pool, cfg.TxMaxAttempts)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, snapshotCache, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	fulfillmentRepo := fulfillment.NewRepository(pool, cfg.TxMaxAttempts)
	fulfillmentService := fulfillment.NewService(fulfillmentRepo, auditLogger, inventoryService, logger)
	fulfillmentHandler := fulfillment.NewHandler(logger, fulfillmentService)

	transferRepo := transfer.NewRepository(pool, cfg.TxMaxAttempts)
	transferService := transfer.NewService(transferRepo, auditLogger, inventoryService, logger)
	transferHandler := transfer.NewHandler(logger, transferService)

	backorderRepo := backorder.NewRepository(pool, cfg.TxMaxAttempts)
	backorderService := backorder.NewService(backorderRepo, auditLogger, logger)
	backorderHandler := backorder.NewHandler(logger, backorderService)

	allocationService := allocation.NewService(inventoryService, fulfillmentService, backorderService, auditLogger, logger)
	allocationHandler := allocation.NewHandler(logger, allocationService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	receivingService := receiving.NewService(inventoryService, jobClient, logger)
	receivingHandler := receiving.NewHandler(logger, receivingService)

	jobInspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(jobInspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		InventoryHandler:   inventoryHandler,
		FulfillmentHandler: fulfillmentHandler,
		TransferHandler:    transferHandler,
		AllocationHandler:  allocationHandler,
		BackorderHandler:   backorderHandler,
		ReceivingHandler:   receivingHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
