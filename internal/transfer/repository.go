package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/platform/db"
)

// Repository persists transfer records alongside the lot mutations they
// cause, inside one transaction.
type Repository struct {
	pool     *pgxpool.Pool
	attempts int
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, attempts int) *Repository {
	if attempts < 1 {
		attempts = 3
	}
	return &Repository{pool: pool, attempts: attempts}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	Stock() inventory.TxRepository
	InsertTransfer(ctx context.Context, t StockTransfer) error
}

type txRepository struct {
	tx    pgx.Tx
	stock inventory.TxRepository
}

// WithTx executes the callback inside a repeatable-read transaction,
// retrying bounded times on serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("transfer repository not initialised")
	}
	err := db.WithTxRetry(ctx, r.pool, r.attempts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, stock: inventory.NewTxRepository(tx)})
	})
	if errors.Is(err, db.ErrTxConflict) {
		return fmt.Errorf("%w: %v", inventory.ErrConcurrencyConflict, err)
	}
	return err
}

// Get loads one transfer record.
func (r *Repository) Get(ctx context.Context, id string) (StockTransfer, error) {
	var t StockTransfer
	err := r.pool.QueryRow(ctx, `SELECT id, source_variant_id, source_warehouse, target_variant_id, target_warehouse, quantity, unit_cost, reason, created_by, created_at
FROM stock_transfers WHERE id=$1`, id).
		Scan(&t.ID, &t.SourceVariantID, &t.SourceWarehouse, &t.TargetVariantID, &t.TargetWarehouse, &t.Quantity, &t.UnitCost, &t.Reason, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockTransfer{}, inventory.ErrNotFound
	}
	return t, err
}

func (r *txRepository) Stock() inventory.TxRepository {
	return r.stock
}

func (r *txRepository) InsertTransfer(ctx context.Context, t StockTransfer) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_transfers (id, source_variant_id, source_warehouse, target_variant_id, target_warehouse, quantity, unit_cost, reason, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())`,
		t.ID, t.SourceVariantID, string(t.SourceWarehouse), t.TargetVariantID, string(t.TargetWarehouse), t.Quantity, t.UnitCost, t.Reason, nullInt(t.CreatedBy))
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
