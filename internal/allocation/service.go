package allocation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vinstock/vinstock/internal/backorder"
	"github.com/vinstock/vinstock/internal/fulfillment"
	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/shared"
)

// InventoryPort reads current availability for planning.
type InventoryPort interface {
	GetAvailable(ctx context.Context, variantID int64, warehouse inventory.Warehouse) (int64, error)
}

// ReservationPort commits allocated quantities.
type ReservationPort interface {
	Reserve(ctx context.Context, input fulfillment.ReserveInput) (fulfillment.Reservation, error)
}

// BackorderPort records residual shortages.
type BackorderPort interface {
	Upsert(ctx context.Context, input backorder.UpsertInput) (backorder.Backorder, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ItemError is one line item the execute step could not commit.
type ItemError struct {
	LineItemID int64  `json:"line_item_id"`
	Error      string `json:"error"`
}

// ExecutionResult reports the outcome of committing a plan. Each line
// item commits in its own transaction, so a partial result is normal
// under contention.
type ExecutionResult struct {
	Plan        Plan        `json:"plan"`
	Reserved    int         `json:"reserved"`
	Backordered int         `json:"backordered"`
	Resolved    int         `json:"resolved"`
	Errors      []ItemError `json:"errors,omitempty"`
}

// Service computes allocation plans and commits them through the
// reservation and backorder services.
type Service struct {
	stock        InventoryPort
	reservations ReservationPort
	backorders   BackorderPort
	audit        AuditPort
	logger       *slog.Logger
}

// NewService builds Service.
func NewService(stock InventoryPort, reservations ReservationPort, backorders BackorderPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{stock: stock, reservations: reservations, backorders: backorders, audit: audit, logger: logger}
}

// Plan computes an allocation against current availability.
func (s *Service) Plan(ctx context.Context, variantID int64, warehouse inventory.Warehouse, strategy Strategy, items []DemandItem) (Plan, error) {
	available, err := s.stock.GetAvailable(ctx, variantID, warehouse)
	if err != nil {
		return Plan{}, err
	}
	return ComputePlan(variantID, warehouse, available, strategy, items)
}

// Execute commits a plan item by item: reserve what was allocated,
// record what fell short. A failed reservation skips the whole item and
// is collected as an error; the rest of the plan still commits.
func (s *Service) Execute(ctx context.Context, plan Plan, actorID int64) (ExecutionResult, error) {
	result := ExecutionResult{Plan: plan}
	for _, item := range plan.Items {
		if item.AllocatedQty > 0 {
			_, err := s.reservations.Reserve(ctx, fulfillment.ReserveInput{
				LineItemID: item.LineItemID,
				VariantID:  plan.VariantID,
				Warehouse:  plan.Warehouse,
				Quantity:   item.AllocatedQty,
				ActorID:    actorID,
			})
			if err != nil {
				s.logger.Warn("allocation reserve failed",
					slog.Int64("line_item_id", item.LineItemID),
					slog.Int64("qty", item.AllocatedQty),
					slog.Any("error", err))
				result.Errors = append(result.Errors, ItemError{LineItemID: item.LineItemID, Error: err.Error()})
				continue
			}
			result.Reserved++
		}

		record, err := s.backorders.Upsert(ctx, backorder.UpsertInput{
			LineItemID:  item.LineItemID,
			VariantID:   plan.VariantID,
			Warehouse:   plan.Warehouse,
			ShortageQty: item.ShortageQty,
			Priority:    item.Priority,
			ActorID:     actorID,
		})
		if err != nil {
			s.logger.Warn("backorder upsert failed",
				slog.Int64("line_item_id", item.LineItemID),
				slog.Any("error", err))
			result.Errors = append(result.Errors, ItemError{LineItemID: item.LineItemID, Error: err.Error()})
			continue
		}
		if record.ID == 0 {
			continue
		}
		switch record.Status {
		case backorder.StatusResolved:
			result.Resolved++
		case backorder.StatusPending:
			result.Backordered++
		}
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "allocation:EXECUTE",
			Entity:   "allocation_plan",
			EntityID: fmt.Sprintf("%d:%s", plan.VariantID, plan.Warehouse),
			Meta: map[string]any{
				"strategy":        string(plan.Strategy),
				"available_stock": plan.AvailableStock,
				"total_allocated": plan.Stats.TotalAllocated,
				"total_shortage":  plan.Stats.TotalShortage,
				"reserved":        result.Reserved,
				"backordered":     result.Backordered,
				"errors":          len(result.Errors),
			},
		})
	}
	return result, nil
}
