package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vinstock/vinstock/internal/allocation"
	"github.com/vinstock/vinstock/internal/backorder"
	"github.com/vinstock/vinstock/internal/inventory"
)

// BackorderSource lists the outstanding shortages to resolve.
type BackorderSource interface {
	ListPending(ctx context.Context, variantID int64) ([]backorder.Backorder, error)
}

// Allocator plans and commits allocation runs.
type Allocator interface {
	Plan(ctx context.Context, variantID int64, warehouse inventory.Warehouse, strategy allocation.Strategy, items []allocation.DemandItem) (allocation.Plan, error)
	Execute(ctx context.Context, plan allocation.Plan, actorID int64) (allocation.ExecutionResult, error)
}

// BackorderResolveJob re-runs allocation against newly received stock,
// highest-priority backorders first.
type BackorderResolveJob struct {
	backorders BackorderSource
	allocator  Allocator
	logger     *slog.Logger
}

// NewBackorderResolveJob constructs the job.
func NewBackorderResolveJob(backorders BackorderSource, allocator Allocator, logger *slog.Logger) *BackorderResolveJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackorderResolveJob{backorders: backorders, allocator: allocator, logger: logger}
}

// Handle processes one backorder:resolve task.
func (j *BackorderResolveJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BackorderResolvePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("backorder resolve: bad payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	warehouse := inventory.Warehouse(payload.Warehouse)
	if payload.VariantID <= 0 || !warehouse.Valid() {
		j.logger.Error("backorder resolve: bad payload",
			slog.Int64("variant_id", payload.VariantID),
			slog.String("warehouse", payload.Warehouse))
		return asynq.SkipRetry
	}

	pending, err := j.backorders.ListPending(ctx, payload.VariantID)
	if err != nil {
		return err
	}
	items := make([]allocation.DemandItem, 0, len(pending))
	for _, b := range pending {
		if b.Warehouse != warehouse {
			continue
		}
		items = append(items, allocation.DemandItem{
			LineItemID:   b.LineItemID,
			RequestedQty: b.ShortageQty,
			Priority:     b.Priority,
			CreatedAt:    b.CreatedAt,
		})
	}
	if len(items) == 0 {
		return nil
	}

	plan, err := j.allocator.Plan(ctx, payload.VariantID, warehouse, allocation.StrategyPriority, items)
	if err != nil {
		return err
	}
	if plan.Stats.TotalAllocated == 0 {
		j.logger.Info("backorder resolve: no stock to allocate",
			slog.Int64("variant_id", payload.VariantID),
			slog.String("warehouse", payload.Warehouse))
		return nil
	}

	result, err := j.allocator.Execute(ctx, plan, 0)
	if err != nil {
		return err
	}
	j.logger.Info("backorder resolve finished",
		slog.Int64("variant_id", payload.VariantID),
		slog.String("warehouse", payload.Warehouse),
		slog.Int("pending", len(items)),
		slog.Int("reserved", result.Reserved),
		slog.Int("resolved", result.Resolved),
		slog.Int("errors", len(result.Errors)))
	return nil
}
