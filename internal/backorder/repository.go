package backorder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/platform/db"
)

// Repository persists backorder records.
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
	GetPendingForUpdate(ctx context.Context, lineItemID int64) (Backorder, error)
	GetForUpdate(ctx context.Context, id int64) (Backorder, error)
	Insert(ctx context.Context, b Backorder) (Backorder, error)
	Update(ctx context.Context, b Backorder) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction,
// retrying bounded times on serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("backorder repository not initialised")
	}
	err := db.WithTxRetry(ctx, r.pool, r.attempts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if errors.Is(err, db.ErrTxConflict) {
		return fmt.Errorf("%w: %v", inventory.ErrConcurrencyConflict, err)
	}
	return err
}

const backorderColumns = `id, line_item_id, variant_id, warehouse, shortage_qty, priority, status, created_at, updated_at, resolved_at`

func scanBackorder(row pgx.Row) (Backorder, error) {
	var b Backorder
	err := row.Scan(&b.ID, &b.LineItemID, &b.VariantID, &b.Warehouse, &b.ShortageQty, &b.Priority, &b.Status, &b.CreatedAt, &b.UpdatedAt, &b.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Backorder{}, ErrBackorderNotFound
	}
	return b, err
}

// Get loads one backorder.
func (r *Repository) Get(ctx context.Context, id int64) (Backorder, error) {
	return scanBackorder(r.pool.QueryRow(ctx, `SELECT `+backorderColumns+` FROM backorders WHERE id=$1`, id))
}

// List returns backorders matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Backorder, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.VariantID > 0 {
		args = append(args, filter.VariantID)
		where = append(where, fmt.Sprintf("variant_id=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM backorders WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		backorderColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Backorder
	for rows.Next() {
		b, err := scanBackorder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListPending returns outstanding backorders for a variant in resolution
// order: priority descending, then oldest first.
func (r *Repository) ListPending(ctx context.Context, variantID int64) ([]Backorder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+backorderColumns+` FROM backorders
WHERE variant_id=$1 AND status='PENDING'
ORDER BY priority DESC, created_at ASC, id ASC`, variantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Backorder
	for rows.Next() {
		b, err := scanBackorder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *txRepository) GetPendingForUpdate(ctx context.Context, lineItemID int64) (Backorder, error) {
	return scanBackorder(r.tx.QueryRow(ctx, `SELECT `+backorderColumns+` FROM backorders
WHERE line_item_id=$1 AND status='PENDING' FOR UPDATE`, lineItemID))
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Backorder, error) {
	return scanBackorder(r.tx.QueryRow(ctx, `SELECT `+backorderColumns+` FROM backorders WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) Insert(ctx context.Context, b Backorder) (Backorder, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO backorders (line_item_id, variant_id, warehouse, shortage_qty, priority, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		b.LineItemID, b.VariantID, string(b.Warehouse), b.ShortageQty, b.Priority, string(b.Status)).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *txRepository) Update(ctx context.Context, b Backorder) error {
	_, err := r.tx.Exec(ctx, `UPDATE backorders
SET shortage_qty=$2, priority=$3, status=$4, resolved_at=$5, updated_at=NOW()
WHERE id=$1`,
		b.ID, b.ShortageQty, b.Priority, string(b.Status), b.ResolvedAt)
	return err
}
