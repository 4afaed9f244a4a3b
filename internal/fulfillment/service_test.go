package fulfillment_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vinstock/vinstock/internal/fulfillment"
	"github.com/vinstock/vinstock/internal/inventory"
	"github.com/vinstock/vinstock/internal/inventory/inventorytest"
)

type memoryRepo struct {
	stock        *inventorytest.Store
	reservations map[int64]fulfillment.Reservation
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stock: inventorytest.NewStore(), reservations: make(map[int64]fulfillment.Reservation)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, fulfillment.TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetReservation(ctx context.Context, lineItemID int64) (fulfillment.Reservation, error) {
	return r.GetReservationForUpdate(ctx, lineItemID)
}

func (r *memoryRepo) Stock() inventory.TxRepository {
	return r.stock
}

func (r *memoryRepo) GetReservationForUpdate(ctx context.Context, lineItemID int64) (fulfillment.Reservation, error) {
	res, ok := r.reservations[lineItemID]
	if !ok {
		return fulfillment.Reservation{}, fulfillment.ErrReservationNotFound
	}
	return res, nil
}

func (r *memoryRepo) InsertReservation(ctx context.Context, res fulfillment.Reservation) (int64, error) {
	r.nextID++
	res.ID = r.nextID
	r.reservations[res.LineItemID] = res
	return res.ID, nil
}

func (r *memoryRepo) UpdateReservation(ctx context.Context, res fulfillment.Reservation) error {
	for lineItemID, existing := range r.reservations {
		if existing.ID == res.ID {
			r.reservations[lineItemID] = res
			return nil
		}
	}
	return fulfillment.ErrReservationNotFound
}

func TestReserveHoldsStockWithoutMovingIt(t *testing.T) {
	repo := newMemoryRepo()
	svc := fulfillment.NewService(repo, nil, nil, nil)
	ctx := context.Background()

	repo.stock.SeedLot(1, inventory.WarehouseCompany, 10, 0, decimal.NewFromInt(100), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	res, err := svc.Reserve(ctx, fulfillment.ReserveInput{LineItemID: 11, VariantID: 1, Warehouse: inventory.WarehouseCompany, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, fulfillment.StatusReserved, res.Status)
	require.EqualValues(t, 4, res.ReservedQty)

	snap, err := repo.stock.GetSnapshot(ctx, 1, inventory.WarehouseCompany)
	require.NoError(t, err)
	require.EqualValues(t, 10, snap.Quantity, "reserving never changes physical quantity")
	require.EqualValues(t, 4, snap.Reserved)
	require.EqualValues(t, 6, snap.Available)

	_, err = svc.Reserve(ctx, fulfillment.ReserveInput{LineItemID: 12, VariantID: 1, Warehouse: inventory.WarehouseCompany, Quantity: 7})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
}

func TestShipConsumesLotsFIFOWithLotCosts(t *testing.T) {
	repo := newMemoryRepo()
	svc := fulfillment.NewService(repo, nil, nil, nil)
	ctx := context.Background()

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	repo.stock.SeedLot(1, inventory.WarehouseCompany, 3, 0, decimal.NewFromInt(100), t1)
	repo.stock.SeedLot(1, inventory.WarehouseCompany, 10, 0, decimal.NewFromInt(130), t2)

	_, err := svc.Reserve(ctx, fulfillment.ReserveInput{LineItemID: 21, VariantID: 1, Warehouse: inventory.WarehouseCompany, Quantity: 5})
	require.NoError(t, err)

	res, movements, err := svc.Ship(ctx, fulfillment.ShipInput{LineItemID: 21, Quantity: 5, Reason: "order shipped"})
	require.NoError(t, err)
	require.Equal(t, fulfillment.StatusShipped, res.Status)
	require.EqualValues(t, 0, res.ReservedQty)
	require.EqualValues(t, 5, res.ShippedQty)

	require.Len(t, movements, 2, "shipment spans both lots")
	require.EqualValues(t, -3, movements[0].QuantityChange)
	require.True(t, movements[0].UnitCost.Equal(decimal.NewFromInt(100)), "oldest lot shipped at its own cost")
	require.EqualValues(t, -2, movements[1].QuantityChange)
	require.True(t, movements[1].UnitCost.Equal(decimal.NewFromInt(130)))
	require.Equal(t, inventory.MovementSale, movements[0].Kind)

	lots := repo.stock.Lots()
	require.EqualValues(t, 0, lots[0].Quantity)
	require.EqualValues(t, 8, lots[1].Quantity)
}

func TestShipGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := fulfillment.NewService(repo, nil, nil, nil)
	ctx := context.Background()

	repo.stock.SeedLot(1, inventory.WarehouseCompany, 10, 0, decimal.NewFromInt(100), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	_, _, err := svc.Ship(ctx, fulfillment.ShipInput{LineItemID: 31, Quantity: 1})
	require.ErrorIs(t, err, fulfillment.ErrReservationNotFound)

	_, err = svc.Reserve(ctx, fulfillment.ReserveInput{LineItemID: 31, VariantID: 1, Warehouse: inventory.WarehouseCompany, Quantity: 3})
	require.NoError(t, err)

	_, _, err = svc.Ship(ctx, fulfillment.ShipInput{LineItemID: 31, Quantity: 4})
	require.ErrorIs(t, err, inventory.ErrInsufficientReservation)

	res, _, err := svc.Ship(ctx, fulfillment.ShipInput{LineItemID: 31, Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, fulfillment.StatusReserved, res.Status, "partial shipment keeps the reservation open")
	require.EqualValues(t, 1, res.ReservedQty)

	_, _, err = svc.Ship(ctx, fulfillment.ShipInput{LineItemID: 31, Quantity: 1})
	require.NoError(t, err)
	_, _, err = svc.Ship(ctx, fulfillment.ShipInput{LineItemID: 31, Quantity: 1})
	require.ErrorIs(t, err, fulfillment.ErrInvalidState, "shipped line items accept no further operations")
}

func TestCancelReleasesRemainingReservation(t *testing.T) {
	repo := newMemoryRepo()
	svc := fulfillment.NewService(repo, nil, nil, nil)
	ctx := context.Background()

	repo.stock.SeedLot(1, inventory.WarehousePrivate, 6, 0, decimal.NewFromInt(80), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.Reserve(ctx, fulfillment.ReserveInput{LineItemID: 41, VariantID: 1, Warehouse: inventory.WarehousePrivate, Quantity: 5})
	require.NoError(t, err)

	res, err := svc.Cancel(ctx, 41, 0)
	require.NoError(t, err)
	require.Equal(t, fulfillment.StatusCancelled, res.Status)

	snap, err := repo.stock.GetSnapshot(ctx, 1, inventory.WarehousePrivate)
	require.NoError(t, err)
	require.EqualValues(t, 0, snap.Reserved)
	require.EqualValues(t, 6, snap.Available)

	_, err = svc.Reserve(ctx, fulfillment.ReserveInput{LineItemID: 41, VariantID: 1, Warehouse: inventory.WarehousePrivate, Quantity: 1})
	require.ErrorIs(t, err, fulfillment.ErrInvalidState, "cancelled reservations stay cancelled")
}
