package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/inventory/inventorytest"
)

func TestAdjustInboundOpensCostLots(t *testing.T) {
	store := inventorytest.NewStore()
	svc := inventory.NewService(store, nil, nil, nil)
	ctx := context.Background()

	snap, err := svc.Adjust(ctx, inventory.AdjustmentInput{
		VariantID: 1, Warehouse: inventory.WarehouseCompany, Delta: 10,
		UnitCost: decimal.NewFromInt(100), Reason: "initial count",
	})
	require.NoError(t, err)
	require.EqualValues(t, 10, snap.Quantity)
	require.EqualValues(t, 10, snap.Available)

	snap, err = svc.Adjust(ctx, inventory.AdjustmentInput{
		VariantID: 1, Warehouse: inventory.WarehouseCompany, Delta: 5,
		UnitCost: decimal.NewFromInt(120), Reason: "second batch",
	})
	require.NoError(t, err)
	require.EqualValues(t, 15, snap.Quantity)
	require.True(t, snap.UnitCost.Equal(decimal.NewFromInt(120)), "snapshot carries newest lot cost")

	require.Len(t, store.Lots(), 2, "each inbound adjustment opens its own cost lot")
}

func TestAdjustOutboundConsumesFIFO(t *testing.T) {
	store := inventorytest.NewStore()
	svc := inventory.NewService(store, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, inventory.AdjustmentInput{VariantID: 1, Warehouse: inventory.WarehouseCompany, Delta: 3, UnitCost: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, inventory.AdjustmentInput{VariantID: 1, Warehouse: inventory.WarehouseCompany, Delta: 10, UnitCost: decimal.NewFromInt(20)})
	require.NoError(t, err)

	snap, err := svc.Adjust(ctx, inventory.AdjustmentInput{VariantID: 1, Warehouse: inventory.WarehouseCompany, Delta: -5, Reason: "damaged"})
	require.NoError(t, err)
	require.EqualValues(t, 8, snap.Quantity)

	lots := store.Lots()
	require.EqualValues(t, 0, lots[0].Quantity, "oldest lot drained first")
	require.EqualValues(t, 8, lots[1].Quantity)

	movements := store.Movements()
	require.Len(t, movements, 4, "outbound adjustment writes one entry per lot touched")
	require.EqualValues(t, -3, movements[2].QuantityChange)
	require.True(t, movements[2].UnitCost.Equal(decimal.NewFromInt(10)))
	require.EqualValues(t, -2, movements[3].QuantityChange)
	require.True(t, movements[3].UnitCost.Equal(decimal.NewFromInt(20)))
}

func TestOutboundGuards(t *testing.T) {
	store := inventorytest.NewStore()
	svc := inventory.NewService(store, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, inventory.AdjustmentInput{VariantID: 7, Warehouse: inventory.WarehousePrivate, Delta: -1})
	require.ErrorIs(t, err, inventory.ErrNotFound, "outbound on missing rows fails, rows are only created for inbound")

	_, err = svc.Adjust(ctx, inventory.AdjustmentInput{VariantID: 7, Warehouse: inventory.WarehousePrivate, Delta: 5, UnitCost: decimal.NewFromInt(40)})
	require.NoError(t, err)

	_, err = svc.Adjust(ctx, inventory.AdjustmentInput{VariantID: 7, Warehouse: inventory.WarehousePrivate, Delta: -6})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	snap, err := svc.GetSnapshot(ctx, 7, inventory.WarehousePrivate)
	require.NoError(t, err)
	require.EqualValues(t, 5, snap.Quantity, "failed attempt leaves state unchanged")

	_, err = svc.Adjust(ctx, inventory.AdjustmentInput{VariantID: 7, Warehouse: "BASEMENT", Delta: 1})
	require.ErrorIs(t, err, inventory.ErrInvalidWarehouse)

	_, err = svc.Receive(ctx, inventory.ReceiptInput{VariantID: 7, Warehouse: inventory.WarehousePrivate, Quantity: 0})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestLedgerReconciliation(t *testing.T) {
	store := inventorytest.NewStore()
	svc := inventory.NewService(store, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, inventory.ReceiptInput{VariantID: 3, Warehouse: inventory.WarehouseCompany, Quantity: 12, UnitCost: decimal.NewFromInt(55)})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, inventory.AdjustmentInput{VariantID: 3, Warehouse: inventory.WarehouseCompany, Delta: -4})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, inventory.AdjustmentInput{VariantID: 3, Warehouse: inventory.WarehouseCompany, Delta: 7, UnitCost: decimal.NewFromInt(60)})
	require.NoError(t, err)

	var sum int64
	for _, m := range store.Movements() {
		sum += m.QuantityChange
	}
	snap, err := svc.GetSnapshot(ctx, 3, inventory.WarehouseCompany)
	require.NoError(t, err)
	require.Equal(t, snap.Quantity, sum, "chronological movement sum equals current quantity")

	quantity, reserved := store.VariantTotals(3)
	require.Equal(t, snap.Quantity, quantity, "denormalised variant counters follow every mutation")
	require.EqualValues(t, 0, reserved)
}

func TestMovementListingRequiresScope(t *testing.T) {
	store := inventorytest.NewStore()
	svc := inventory.NewService(store, nil, nil, nil)

	_, err := svc.ListMovements(context.Background(), inventory.MovementFilter{VariantID: 1, Warehouse: "WRONG"})
	require.ErrorIs(t, err, inventory.ErrInvalidWarehouse)
}
