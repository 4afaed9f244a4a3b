package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vinstock/vinstock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSnapshot(ctx context.Context, variantID int64, warehouse Warehouse) (Snapshot, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort abstracts the read-side snapshot cache. Mutating paths only
// ever invalidate, they never read through it.
type CachePort interface {
	Fetch(ctx context.Context, key string, loader func(context.Context) (any, error)) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// Service coordinates ledger and stock-row operations.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  CachePort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache CachePort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger}
}

// GetSnapshot returns current quantity/reserved/available for one
// (variant, warehouse), served from the cache when warm.
func (s *Service) GetSnapshot(ctx context.Context, variantID int64, warehouse Warehouse) (Snapshot, error) {
	if !warehouse.Valid() {
		return Snapshot{}, ErrInvalidWarehouse
	}
	if s.cache != nil {
		raw, err := s.cache.Fetch(ctx, stockKey(variantID, warehouse), func(ctx context.Context) (any, error) {
			return s.repo.GetSnapshot(ctx, variantID, warehouse)
		})
		if err == nil {
			var snap Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				return snap, nil
			}
		} else {
			s.logger.Warn("snapshot cache read failed", slog.Any("error", err))
		}
	}
	return s.repo.GetSnapshot(ctx, variantID, warehouse)
}

// GetAvailable returns the quantity not committed to unshipped orders.
func (s *Service) GetAvailable(ctx context.Context, variantID int64, warehouse Warehouse) (int64, error) {
	snap, err := s.GetSnapshot(ctx, variantID, warehouse)
	if err != nil {
		return 0, err
	}
	return snap.Available, nil
}

// ListMovements lists ledger entries for one (variant, warehouse).
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.VariantID == 0 {
		return nil, fmt.Errorf("%w: variant required", ErrNotFound)
	}
	if !filter.Warehouse.Valid() {
		return nil, ErrInvalidWarehouse
	}
	return s.repo.ListMovements(ctx, filter)
}

// Adjust applies a manual correction. Positive deltas open a new cost
// lot; negative deltas consume available stock FIFO and fail with
// ErrInsufficientStock rather than going negative.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Snapshot, error) {
	if input.Delta == 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	if !input.Warehouse.Valid() {
		return Snapshot{}, ErrInvalidWarehouse
	}
	ref := input.Ref
	if ref.Type == "" {
		ref.Type = "adjustment"
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.Delta > 0 {
			_, err := AddStock(ctx, tx, AddStockParams{
				VariantID: input.VariantID,
				Warehouse: input.Warehouse,
				Quantity:  input.Delta,
				UnitCost:  input.UnitCost,
				Kind:      MovementAdjustment,
				Ref:       ref,
				Reason:    input.Reason,
				ActorID:   input.ActorID,
			})
			return err
		}
		_, err := RemoveStock(ctx, tx, RemoveStockParams{
			VariantID: input.VariantID,
			Warehouse: input.Warehouse,
			Quantity:  -input.Delta,
			Kind:      MovementAdjustment,
			Ref:       ref,
			Reason:    input.Reason,
			ActorID:   input.ActorID,
		})
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.afterMutation(ctx, input.ActorID, "inventory:ADJUSTMENT", input.VariantID, input.Warehouse, input.Delta, input.Reason)
	return s.repo.GetSnapshot(ctx, input.VariantID, input.Warehouse)
}

// Receive records inbound goods as a fresh cost lot.
func (s *Service) Receive(ctx context.Context, input ReceiptInput) (Snapshot, error) {
	if input.Quantity <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	if !input.Warehouse.Valid() {
		return Snapshot{}, ErrInvalidWarehouse
	}
	ref := input.Ref
	if ref.Type == "" {
		ref.Type = "receipt"
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := AddStock(ctx, tx, AddStockParams{
			VariantID: input.VariantID,
			Warehouse: input.Warehouse,
			Quantity:  input.Quantity,
			UnitCost:  input.UnitCost,
			Kind:      MovementReceipt,
			Ref:       ref,
			Reason:    input.Reason,
			ActorID:   input.ActorID,
		})
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.afterMutation(ctx, input.ActorID, "inventory:RECEIPT", input.VariantID, input.Warehouse, input.Quantity, input.Reason)
	return s.repo.GetSnapshot(ctx, input.VariantID, input.Warehouse)
}

// InvalidateSnapshot drops the cached snapshot for (variant, warehouse).
// Sibling services call it after committing their own stock mutations.
func (s *Service) InvalidateSnapshot(ctx context.Context, variantID int64, warehouse Warehouse) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, stockKey(variantID, warehouse)); err != nil {
		s.logger.Warn("snapshot cache invalidation failed", slog.Any("error", err))
	}
}

func (s *Service) afterMutation(ctx context.Context, actorID int64, action string, variantID int64, warehouse Warehouse, qty int64, reason string) {
	s.InvalidateSnapshot(ctx, variantID, warehouse)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "inventory_lot",
			EntityID: fmt.Sprintf("%d:%s", variantID, warehouse),
			Meta: map[string]any{
				"variant_id": variantID,
				"warehouse":  string(warehouse),
				"qty":        qty,
				"reason":     reason,
			},
		})
	}
}

func stockKey(variantID int64, warehouse Warehouse) string {
	return fmt.Sprintf("stock:%d:%s", variantID, warehouse)
}
