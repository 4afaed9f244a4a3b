package transfer_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/inventory/inventorytest"
	"github.com/vinstock/vinstock/internal/transfer"
)

type memoryRepo struct {
	stock     *inventorytest.Store
	transfers map[string]transfer.StockTransfer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stock: inventorytest.NewStore(), transfers: make(map[string]transfer.StockTransfer)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, transfer.TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(ctx context.Context, id string) (transfer.StockTransfer, error) {
	t, ok := r.transfers[id]
	if !ok {
		return transfer.StockTransfer{}, inventory.ErrNotFound
	}
	return t, nil
}

func (r *memoryRepo) Stock() inventory.TxRepository {
	return r.stock
}

func (r *memoryRepo) InsertTransfer(ctx context.Context, t transfer.StockTransfer) error {
	r.transfers[t.ID] = t
	return nil
}

func TestTransferConservesTotalStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := transfer.NewService(repo, nil, nil, nil)
	ctx := context.Background()

	repo.stock.SeedLot(1, inventory.WarehouseCompany, 20, 0, decimal.NewFromInt(50), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	record, err := svc.Transfer(ctx, transfer.Input{
		SourceVariantID: 1, SourceWarehouse: inventory.WarehouseCompany,
		TargetVariantID: 2, TargetWarehouse: inventory.WarehouseCompany,
		Quantity: 5, Reason: "damaged in storage",
	})
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	require.True(t, record.UnitCost.Equal(decimal.NewFromInt(50)), "cost basis inherited from source lot")

	source, err := repo.stock.GetSnapshot(ctx, 1, inventory.WarehouseCompany)
	require.NoError(t, err)
	target, err := repo.stock.GetSnapshot(ctx, 2, inventory.WarehouseCompany)
	require.NoError(t, err)
	require.EqualValues(t, 15, source.Quantity)
	require.EqualValues(t, 5, target.Quantity)
	require.True(t, target.UnitCost.Equal(decimal.NewFromInt(50)))

	var out, in *inventory.Movement
	for i, m := range repo.stock.Movements() {
		if m.Ref.Type == "stock_transfer" && m.Ref.ID == record.ID {
			if m.QuantityChange < 0 {
				out = &repo.stock.Movements()[i]
			} else {
				in = &repo.stock.Movements()[i]
			}
		}
	}
	require.NotNil(t, out, "transfer writes an OUT movement")
	require.NotNil(t, in, "transfer writes an IN movement")
	require.EqualValues(t, -5, out.QuantityChange)
	require.EqualValues(t, 5, in.QuantityChange)
}

func TestTransferLastCostWins(t *testing.T) {
	repo := newMemoryRepo()
	svc := transfer.NewService(repo, nil, nil, nil)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.stock.SeedLot(1, inventory.WarehouseCompany, 3, 0, decimal.NewFromInt(10), t0)
	repo.stock.SeedLot(1, inventory.WarehouseCompany, 10, 0, decimal.NewFromInt(30), t0.Add(time.Hour))
	repo.stock.SeedLot(2, inventory.WarehousePrivate, 4, 0, decimal.NewFromInt(99), t0)

	// Consumes the whole first lot and part of the second, so the
	// inherited cost is the second lot's.
	record, err := svc.Transfer(ctx, transfer.Input{
		SourceVariantID: 1, SourceWarehouse: inventory.WarehouseCompany,
		TargetVariantID: 2, TargetWarehouse: inventory.WarehousePrivate,
		Quantity: 5,
	})
	require.NoError(t, err)
	require.True(t, record.UnitCost.Equal(decimal.NewFromInt(30)))

	target, err := repo.stock.GetSnapshot(ctx, 2, inventory.WarehousePrivate)
	require.NoError(t, err)
	require.EqualValues(t, 9, target.Quantity)
	require.True(t, target.UnitCost.Equal(decimal.NewFromInt(30)), "target cost overwritten, not blended")
}

func TestTransferGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := transfer.NewService(repo, nil, nil, nil)
	ctx := context.Background()

	repo.stock.SeedLot(1, inventory.WarehouseCompany, 2, 0, decimal.NewFromInt(10), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.Transfer(ctx, transfer.Input{
		SourceVariantID: 1, SourceWarehouse: inventory.WarehouseCompany,
		TargetVariantID: 1, TargetWarehouse: inventory.WarehouseCompany,
		Quantity: 1,
	})
	require.ErrorIs(t, err, transfer.ErrInvalidTransfer)

	_, err = svc.Transfer(ctx, transfer.Input{
		SourceVariantID: 1, SourceWarehouse: inventory.WarehouseCompany,
		TargetVariantID: 2, TargetWarehouse: inventory.WarehouseCompany,
		Quantity: 3,
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	_, err = svc.Transfer(ctx, transfer.Input{
		SourceVariantID: 9, SourceWarehouse: inventory.WarehousePrivate,
		TargetVariantID: 2, TargetWarehouse: inventory.WarehouseCompany,
		Quantity: 1,
	})
	require.ErrorIs(t, err, inventory.ErrNotFound)
}
