package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vinstock/vinstock/internal/platform/db"
)

// Repository persists lots and the movement ledger in PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	attempts int
}

// NewRepository constructs Repository. attempts bounds transparent
// retries of transactions aborted by concurrent writes.
func NewRepository(pool *pgxpool.Pool, attempts int) *Repository {
	if attempts < 1 {
		attempts = 3
	}
	return &Repository{pool: pool, attempts: attempts}
}

// TxRepository exposes transactional stock operations. Sibling packages
// compose it into their own transactions via NewTxRepository.
type TxRepository interface {
	// LotsForUpdate locks and returns all lots for (variant, warehouse),
	// oldest first. The order is the FIFO consumption order.
	LotsForUpdate(ctx context.Context, variantID int64, warehouse Warehouse) ([]Lot, error)
	InsertLot(ctx context.Context, lot Lot) (int64, error)
	UpdateLot(ctx context.Context, lot Lot) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	// SumMovements returns the chronological sum of quantity changes for
	// (variant, warehouse), used for the reconciliation check.
	SumMovements(ctx context.Context, variantID int64, warehouse Warehouse) (int64, error)
	// RefreshVariantTotals recomputes the variant's denormalised stock
	// counters from its lots inside the same transaction.
	RefreshVariantTotals(ctx context.Context, variantID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction with stock operations.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction,
// retrying bounded times on serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	err := db.WithTxRetry(ctx, r.pool, r.attempts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if errors.Is(err, db.ErrTxConflict) {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}

// GetSnapshot aggregates current stock for (variant, warehouse). The
// unit cost reported is the newest lot's, matching what a receiving
// clerk sees on the latest batch.
func (r *Repository) GetSnapshot(ctx context.Context, variantID int64, warehouse Warehouse) (Snapshot, error) {
	if r == nil {
		return Snapshot{}, errors.New("inventory repository not initialised")
	}
	snap := Snapshot{VariantID: variantID, Warehouse: warehouse}
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity),0), COALESCE(SUM(reserved),0)
FROM inventory_lots WHERE variant_id=$1 AND warehouse=$2`, variantID, string(warehouse)).
		Scan(&snap.Quantity, &snap.Reserved)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Available = snap.Quantity - snap.Reserved
	err = r.pool.QueryRow(ctx, `SELECT unit_cost FROM inventory_lots
WHERE variant_id=$1 AND warehouse=$2 ORDER BY created_at DESC, id DESC LIMIT 1`, variantID, string(warehouse)).
		Scan(&snap.UnitCost)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, err
	}
	return snap, nil
}

// ListMovements returns ledger entries oldest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, variant_id, warehouse, kind, quantity_before, quantity_change, quantity_after, unit_cost, total_cost, ref_type, ref_id, reason, created_by, created_at
FROM inventory_movements
WHERE variant_id=$1 AND warehouse=$2
  AND created_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY created_at ASC, id ASC
LIMIT $5`, filter.VariantID, string(filter.Warehouse), nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.VariantID, &m.Warehouse, &m.Kind, &m.QuantityBefore, &m.QuantityChange, &m.QuantityAfter, &m.UnitCost, &m.TotalCost, &m.Ref.Type, &m.Ref.ID, &m.Reason, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *txRepository) LotsForUpdate(ctx context.Context, variantID int64, warehouse Warehouse) ([]Lot, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, variant_id, warehouse, quantity, reserved, unit_cost, created_at, updated_at
FROM inventory_lots WHERE variant_id=$1 AND warehouse=$2
ORDER BY created_at ASC, id ASC
FOR UPDATE`, variantID, string(warehouse))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lots []Lot
	for rows.Next() {
		var lot Lot
		if err := rows.Scan(&lot.ID, &lot.VariantID, &lot.Warehouse, &lot.Quantity, &lot.Reserved, &lot.UnitCost, &lot.CreatedAt, &lot.UpdatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *txRepository) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_lots (variant_id, warehouse, quantity, reserved, unit_cost, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id`, lot.VariantID, string(lot.Warehouse), lot.Quantity, lot.Reserved, lot.UnitCost).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateLot(ctx context.Context, lot Lot) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_lots SET quantity=$2, reserved=$3, unit_cost=$4, updated_at=NOW() WHERE id=$1`,
		lot.ID, lot.Quantity, lot.Reserved, lot.UnitCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_movements (variant_id, warehouse, kind, quantity_before, quantity_change, quantity_after, unit_cost, total_cost, ref_type, ref_id, reason, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW()) RETURNING id`,
		m.VariantID, string(m.Warehouse), string(m.Kind), m.QuantityBefore, m.QuantityChange, m.QuantityAfter,
		m.UnitCost, m.TotalCost, m.Ref.Type, m.Ref.ID, m.Reason, nullInt(m.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) SumMovements(ctx context.Context, variantID int64, warehouse Warehouse) (int64, error) {
	var sum int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity_change),0) FROM inventory_movements
WHERE variant_id=$1 AND warehouse=$2`, variantID, string(warehouse)).Scan(&sum)
	return sum, err
}

func (r *txRepository) RefreshVariantTotals(ctx context.Context, variantID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE variants SET
  total_quantity = (SELECT COALESCE(SUM(quantity),0) FROM inventory_lots WHERE variant_id=$1),
  total_reserved = (SELECT COALESCE(SUM(reserved),0) FROM inventory_lots WHERE variant_id=$1),
  updated_at = NOW()
WHERE id=$1`, variantID)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
