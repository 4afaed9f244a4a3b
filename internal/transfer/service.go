package transfer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id string) (StockTransfer, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SnapshotInvalidator drops cached stock snapshots after commits.
type SnapshotInvalidator interface {
	InvalidateSnapshot(ctx context.Context, variantID int64, warehouse inventory.Warehouse)
}

// Service moves stock between (variant, warehouse) pairs while
// preserving the total unit count and inheriting cost basis.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  SnapshotInvalidator
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache SnapshotInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger}
}

// Get loads one transfer record.
func (s *Service) Get(ctx context.Context, id string) (StockTransfer, error) {
	return s.repo.Get(ctx, id)
}

// Transfer atomically decrements the source, credits the target with the
// source's cost basis, and writes the paired OUT/IN ledger entries under
// one transfer id.
func (s *Service) Transfer(ctx context.Context, input Input) (StockTransfer, error) {
	if input.Quantity <= 0 {
		return StockTransfer{}, inventory.ErrInvalidQuantity
	}
	if !input.SourceWarehouse.Valid() || !input.TargetWarehouse.Valid() {
		return StockTransfer{}, inventory.ErrInvalidWarehouse
	}
	if input.SourceVariantID == input.TargetVariantID && input.SourceWarehouse == input.TargetWarehouse {
		return StockTransfer{}, ErrInvalidTransfer
	}

	record := StockTransfer{
		ID:              uuid.NewString(),
		SourceVariantID: input.SourceVariantID,
		SourceWarehouse: input.SourceWarehouse,
		TargetVariantID: input.TargetVariantID,
		TargetWarehouse: input.TargetWarehouse,
		Quantity:        input.Quantity,
		Reason:          input.Reason,
		CreatedBy:       input.ActorID,
	}
	ref := inventory.Ref{Type: "stock_transfer", ID: record.ID}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stock := tx.Stock()
		lots, err := stock.LotsForUpdate(ctx, input.SourceVariantID, input.SourceWarehouse)
		if err != nil {
			return err
		}
		cost, err := inventory.InheritedCost(lots, input.Quantity)
		if err != nil {
			return err
		}
		record.UnitCost = cost

		if _, err := inventory.RemoveStock(ctx, stock, inventory.RemoveStockParams{
			VariantID:      input.SourceVariantID,
			Warehouse:      input.SourceWarehouse,
			Quantity:       input.Quantity,
			Kind:           inventory.MovementTransfer,
			Ref:            ref,
			Reason:         input.Reason,
			ActorID:        input.ActorID,
			SingleMovement: true,
			InheritCost:    cost,
		}); err != nil {
			return err
		}

		if _, err := inventory.MergeStock(ctx, stock, inventory.MergeStockParams{
			VariantID: input.TargetVariantID,
			Warehouse: input.TargetWarehouse,
			Quantity:  input.Quantity,
			UnitCost:  cost,
			Kind:      inventory.MovementTransfer,
			Ref:       ref,
			Reason:    input.Reason,
			ActorID:   input.ActorID,
		}); err != nil {
			return err
		}

		return tx.InsertTransfer(ctx, record)
	})
	if err != nil {
		return StockTransfer{}, err
	}

	if s.cache != nil {
		s.cache.InvalidateSnapshot(ctx, input.SourceVariantID, input.SourceWarehouse)
		s.cache.InvalidateSnapshot(ctx, input.TargetVariantID, input.TargetWarehouse)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "transfer:CREATE",
			Entity:   "stock_transfer",
			EntityID: record.ID,
			Meta: map[string]any{
				"source_variant_id": input.SourceVariantID,
				"source_warehouse":  string(input.SourceWarehouse),
				"target_variant_id": input.TargetVariantID,
				"target_warehouse":  string(input.TargetWarehouse),
				"qty":               input.Quantity,
				"reason":            input.Reason,
			},
		})
	}
	return record, nil
}
