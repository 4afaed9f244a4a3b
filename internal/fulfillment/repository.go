package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/platform/db"
)

// Repository persists reservations, sharing transactions with the stock
// store so reservation rows and lot mutations commit together.
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
	// Stock returns the inventory operations bound to the same transaction.
	Stock() inventory.TxRepository
	GetReservationForUpdate(ctx context.Context, lineItemID int64) (Reservation, error)
	InsertReservation(ctx context.Context, res Reservation) (int64, error)
	UpdateReservation(ctx context.Context, res Reservation) error
}

type txRepository struct {
	tx    pgx.Tx
	stock inventory.TxRepository
}

// WithTx executes the callback inside a repeatable-read transaction,
// retrying bounded times on serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("fulfillment repository not initialised")
	}
	err := db.WithTxRetry(ctx, r.pool, r.attempts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, stock: inventory.NewTxRepository(tx)})
	})
	if errors.Is(err, db.ErrTxConflict) {
		return fmt.Errorf("%w: %v", inventory.ErrConcurrencyConflict, err)
	}
	return err
}

// GetReservation loads the reservation for a line item outside a transaction.
func (r *Repository) GetReservation(ctx context.Context, lineItemID int64) (Reservation, error) {
	if r == nil {
		return Reservation{}, errors.New("fulfillment repository not initialised")
	}
	var res Reservation
	err := r.pool.QueryRow(ctx, `SELECT id, line_item_id, variant_id, warehouse, reserved_qty, shipped_qty, status, created_at, updated_at
FROM order_reservations WHERE line_item_id=$1`, lineItemID).
		Scan(&res.ID, &res.LineItemID, &res.VariantID, &res.Warehouse, &res.ReservedQty, &res.ShippedQty, &res.Status, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrReservationNotFound
	}
	return res, err
}

func (r *txRepository) Stock() inventory.TxRepository {
	return r.stock
}

func (r *txRepository) GetReservationForUpdate(ctx context.Context, lineItemID int64) (Reservation, error) {
	var res Reservation
	err := r.tx.QueryRow(ctx, `SELECT id, line_item_id, variant_id, warehouse, reserved_qty, shipped_qty, status, created_at, updated_at
FROM order_reservations WHERE line_item_id=$1 FOR UPDATE`, lineItemID).
		Scan(&res.ID, &res.LineItemID, &res.VariantID, &res.Warehouse, &res.ReservedQty, &res.ShippedQty, &res.Status, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrReservationNotFound
	}
	return res, err
}

func (r *txRepository) InsertReservation(ctx context.Context, res Reservation) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO order_reservations (line_item_id, variant_id, warehouse, reserved_qty, shipped_qty, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		res.LineItemID, res.VariantID, string(res.Warehouse), res.ReservedQty, res.ShippedQty, string(res.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateReservation(ctx context.Context, res Reservation) error {
	tag, err := r.tx.Exec(ctx, `UPDATE order_reservations SET reserved_qty=$2, shipped_qty=$3, status=$4, updated_at=NOW() WHERE id=$1`,
		res.ID, res.ReservedQty, res.ShippedQty, string(res.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}
