package backorder

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/vinstock/vinstock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Backorder, error)
	List(ctx context.Context, filter Filter) ([]Backorder, error)
	ListPending(ctx context.Context, variantID int64) ([]Backorder, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service tracks residual shortages left behind by allocation runs.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Get loads one backorder.
func (s *Service) Get(ctx context.Context, id int64) (Backorder, error) {
	return s.repo.Get(ctx, id)
}

// List returns backorders matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Backorder, error) {
	return s.repo.List(ctx, filter)
}

// ListPending returns outstanding backorders for a variant, highest
// priority first, oldest first within a priority.
func (s *Service) ListPending(ctx context.Context, variantID int64) ([]Backorder, error) {
	return s.repo.ListPending(ctx, variantID)
}

// Upsert records the shortage for a line item after an allocation run.
// An existing PENDING record is updated in place rather than duplicated.
// Shortage zero resolves the pending record; with no pending record it
// is a no-op and the returned Backorder has a zero ID.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) (Backorder, error) {
	if input.ShortageQty < 0 {
		return Backorder{}, errors.New("backorder: shortage must not be negative")
	}

	var result Backorder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetPendingForUpdate(ctx, input.LineItemID)
		switch {
		case errors.Is(err, ErrBackorderNotFound):
			if input.ShortageQty == 0 {
				return nil
			}
			result, err = tx.Insert(ctx, Backorder{
				LineItemID:  input.LineItemID,
				VariantID:   input.VariantID,
				Warehouse:   input.Warehouse,
				ShortageQty: input.ShortageQty,
				Priority:    input.Priority,
				Status:      StatusPending,
			})
			return err
		case err != nil:
			return err
		}

		existing.ShortageQty = input.ShortageQty
		if input.Priority > existing.Priority {
			existing.Priority = input.Priority
		}
		if input.ShortageQty == 0 {
			existing.Status = StatusResolved
			now := time.Now()
			existing.ResolvedAt = &now
		}
		result = existing
		return tx.Update(ctx, existing)
	})
	if err != nil {
		return Backorder{}, err
	}

	if result.ID != 0 {
		s.recordAudit(ctx, input.ActorID, "backorder:UPSERT", result)
	}
	return result, nil
}

// Cancel withdraws a pending backorder. Resolved or already cancelled
// records are left untouched.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (Backorder, error) {
	var result Backorder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if existing.Status != StatusPending {
			return ErrInvalidState
		}
		existing.Status = StatusCancelled
		result = existing
		return tx.Update(ctx, existing)
	})
	if err != nil {
		return Backorder{}, err
	}

	s.recordAudit(ctx, actorID, "backorder:CANCEL", result)
	return result, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, b Backorder) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "backorder",
		EntityID: strconv.FormatInt(b.ID, 10),
		Meta: map[string]any{
			"line_item_id": b.LineItemID,
			"variant_id":   b.VariantID,
			"shortage_qty": b.ShortageQty,
			"status":       string(b.Status),
		},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
