package receiving

import (
	"context"
	"log/slog"

	"github.com/vinstock/vinstock/internal/inventory"
)

// StockPort records the receipt in the inventory ledger.
type StockPort interface {
	Receive(ctx context.Context, input inventory.ReceiptInput) (inventory.Snapshot, error)
}

// Enqueuer schedules the backorder resolution run that follows a
// receipt.
type Enqueuer interface {
	EnqueueBackorderResolve(ctx context.Context, variantID int64, warehouse string) error
}

// Input describes one goods receipt.
type Input = inventory.ReceiptInput

// Service posts goods receipts and kicks off backorder resolution for
// the stock that just arrived.
type Service struct {
	stock    StockPort
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(stock StockPort, enqueuer Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{stock: stock, enqueuer: enqueuer, logger: logger}
}

// Post records the receipt, then schedules a resolution run. The
// receipt is committed either way; a failed enqueue only loses the
// automatic re-allocation, which the next receipt retriggers.
func (s *Service) Post(ctx context.Context, input Input) (inventory.Snapshot, error) {
	snap, err := s.stock.Receive(ctx, input)
	if err != nil {
		return inventory.Snapshot{}, err
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueBackorderResolve(ctx, input.VariantID, string(input.Warehouse)); err != nil {
			s.logger.Warn("enqueue backorder resolve failed",
				slog.Int64("variant_id", input.VariantID),
				slog.String("warehouse", string(input.Warehouse)),
				slog.Any("error", err))
		}
	}
	return snap, nil
}
