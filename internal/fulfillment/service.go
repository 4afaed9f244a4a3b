package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReservation(ctx context.Context, lineItemID int64) (Reservation, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SnapshotInvalidator drops cached stock snapshots after commits.
type SnapshotInvalidator interface {
	InvalidateSnapshot(ctx context.Context, variantID int64, warehouse inventory.Warehouse)
}

// Service drives the reservation and shipment state machine.
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

// GetReservation returns the reservation for a line item.
func (s *Service) GetReservation(ctx context.Context, lineItemID int64) (Reservation, error) {
	return s.repo.GetReservation(ctx, lineItemID)
}

// Reserve commits stock to a confirmed line item. Quantity stays
// untouched on the lots; only reserved rises. Fails with
// inventory.ErrInsufficientStock when available < qty.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) (Reservation, error) {
	if input.Quantity <= 0 {
		return Reservation{}, inventory.ErrInvalidQuantity
	}
	if !input.Warehouse.Valid() {
		return Reservation{}, inventory.ErrInvalidWarehouse
	}
	var out Reservation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := tx.GetReservationForUpdate(ctx, input.LineItemID)
		switch {
		case errors.Is(err, ErrReservationNotFound):
			res = Reservation{
				LineItemID: input.LineItemID,
				VariantID:  input.VariantID,
				Warehouse:  input.Warehouse,
				Status:     StatusReserved,
			}
		case err != nil:
			return err
		default:
			if res.Status == StatusShipped || res.Status == StatusCancelled {
				return fmt.Errorf("%w: line item %d is %s", ErrInvalidState, input.LineItemID, res.Status)
			}
			if res.VariantID != input.VariantID || res.Warehouse != input.Warehouse {
				return ErrVariantMismatch
			}
		}

		if err := inventory.ReserveStock(ctx, tx.Stock(), input.VariantID, input.Warehouse, input.Quantity); err != nil {
			return err
		}
		res.ReservedQty += input.Quantity

		if res.ID == 0 {
			id, err := tx.InsertReservation(ctx, res)
			if err != nil {
				return err
			}
			res.ID = id
		} else if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	s.afterCommit(ctx, input.ActorID, "fulfillment:RESERVE", out, input.Quantity)
	return out, nil
}

// Ship consumes a reservation, selecting lots FIFO and writing one SALE
// movement per lot at that lot's own unit cost. Shipping across several
// lots is normal, not an error.
func (s *Service) Ship(ctx context.Context, input ShipInput) (Reservation, []inventory.Movement, error) {
	if input.Quantity <= 0 {
		return Reservation{}, nil, inventory.ErrInvalidQuantity
	}
	var (
		out       Reservation
		movements []inventory.Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := tx.GetReservationForUpdate(ctx, input.LineItemID)
		if err != nil {
			return err
		}
		if res.Status != StatusReserved {
			return fmt.Errorf("%w: line item %d is %s", ErrInvalidState, input.LineItemID, res.Status)
		}
		if res.ReservedQty < input.Quantity {
			return inventory.ErrInsufficientReservation
		}

		movements, err = inventory.ShipReserved(ctx, tx.Stock(), inventory.ShipParams{
			VariantID: res.VariantID,
			Warehouse: res.Warehouse,
			Quantity:  input.Quantity,
			Ref:       inventory.Ref{Type: "line_item", ID: strconv.FormatInt(res.LineItemID, 10)},
			Reason:    input.Reason,
			ActorID:   input.ActorID,
		})
		if err != nil {
			return err
		}

		res.ReservedQty -= input.Quantity
		res.ShippedQty += input.Quantity
		if res.ReservedQty == 0 {
			res.Status = StatusShipped
		}
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return Reservation{}, nil, err
	}
	s.afterCommit(ctx, input.ActorID, "fulfillment:SHIP", out, input.Quantity)
	return out, movements, nil
}

// Cancel releases whatever remains reserved for the line item and
// finalises the reservation as cancelled.
func (s *Service) Cancel(ctx context.Context, lineItemID, actorID int64) (Reservation, error) {
	var out Reservation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := tx.GetReservationForUpdate(ctx, lineItemID)
		if err != nil {
			return err
		}
		if res.Status != StatusReserved {
			return fmt.Errorf("%w: line item %d is %s", ErrInvalidState, lineItemID, res.Status)
		}
		if res.ReservedQty > 0 {
			if err := inventory.ReleaseStock(ctx, tx.Stock(), res.VariantID, res.Warehouse, res.ReservedQty); err != nil {
				return err
			}
		}
		res.ReservedQty = 0
		res.Status = StatusCancelled
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	s.afterCommit(ctx, actorID, "fulfillment:CANCEL", out, 0)
	return out, nil
}

func (s *Service) afterCommit(ctx context.Context, actorID int64, action string, res Reservation, qty int64) {
	if s.cache != nil {
		s.cache.InvalidateSnapshot(ctx, res.VariantID, res.Warehouse)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "order_reservation",
			EntityID: strconv.FormatInt(res.LineItemID, 10),
			Meta: map[string]any{
				"variant_id": res.VariantID,
				"warehouse":  string(res.Warehouse),
				"qty":        qty,
				"status":     string(res.Status),
			},
		})
	}
}
