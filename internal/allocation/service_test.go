package allocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vinstock/vinstock/internal/allocation"
	"github.com/vinstock/vinstock/internal/backorder"
	"github.com/vinstock/vinstock/internal/fulfillment"
	"github.com/vinstock/vinstock/internal/inventory"
)

type fakeStock struct {
	available int64
}

func (f *fakeStock) GetAvailable(ctx context.Context, variantID int64, warehouse inventory.Warehouse) (int64, error) {
	return f.available, nil
}

type fakeReservations struct {
	calls   []fulfillment.ReserveInput
	failFor map[int64]error
}

func (f *fakeReservations) Reserve(ctx context.Context, input fulfillment.ReserveInput) (fulfillment.Reservation, error) {
	if err, ok := f.failFor[input.LineItemID]; ok {
		return fulfillment.Reservation{}, err
	}
	f.calls = append(f.calls, input)
	return fulfillment.Reservation{LineItemID: input.LineItemID, ReservedQty: input.Quantity, Status: fulfillment.StatusReserved}, nil
}

type fakeBackorders struct {
	seq     int64
	records map[int64]backorder.Backorder
}

func newFakeBackorders() *fakeBackorders {
	return &fakeBackorders{records: make(map[int64]backorder.Backorder)}
}

func (f *fakeBackorders) Upsert(ctx context.Context, input backorder.UpsertInput) (backorder.Backorder, error) {
	existing, ok := f.records[input.LineItemID]
	if !ok {
		if input.ShortageQty == 0 {
			return backorder.Backorder{}, nil
		}
		f.seq++
		existing = backorder.Backorder{ID: f.seq, LineItemID: input.LineItemID, VariantID: input.VariantID, Warehouse: input.Warehouse, Status: backorder.StatusPending}
	}
	existing.ShortageQty = input.ShortageQty
	existing.Priority = input.Priority
	if input.ShortageQty == 0 {
		existing.Status = backorder.StatusResolved
	}
	f.records[input.LineItemID] = existing
	return existing, nil
}

func TestExecuteReservesAndBackorders(t *testing.T) {
	reservations := &fakeReservations{}
	backorders := newFakeBackorders()
	svc := allocation.NewService(&fakeStock{available: 10}, reservations, backorders, nil, nil)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	plan, err := svc.Plan(ctx, 1, inventory.WarehouseCompany, allocation.StrategyFCFS, []allocation.DemandItem{
		{LineItemID: 1, RequestedQty: 8, CreatedAt: created},
		{LineItemID: 2, RequestedQty: 8, CreatedAt: created.Add(time.Second)},
	})
	require.NoError(t, err)

	result, err := svc.Execute(ctx, plan, 42)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Equal(t, 2, result.Reserved)
	require.Equal(t, 1, result.Backordered)

	require.Len(t, reservations.calls, 2)
	require.EqualValues(t, 8, reservations.calls[0].Quantity)
	require.EqualValues(t, 2, reservations.calls[1].Quantity)

	record := backorders.records[2]
	require.EqualValues(t, 6, record.ShortageQty)
	require.Equal(t, backorder.StatusPending, record.Status)
	_, exists := backorders.records[1]
	require.False(t, exists, "fully allocated item leaves no backorder")
}

func TestExecuteCollectsPerItemErrors(t *testing.T) {
	reservations := &fakeReservations{failFor: map[int64]error{2: inventory.ErrInsufficientStock}}
	backorders := newFakeBackorders()
	svc := allocation.NewService(&fakeStock{available: 9}, reservations, backorders, nil, nil)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	plan, err := svc.Plan(ctx, 1, inventory.WarehouseCompany, allocation.StrategyFCFS, []allocation.DemandItem{
		{LineItemID: 1, RequestedQty: 4, CreatedAt: created},
		{LineItemID: 2, RequestedQty: 4, CreatedAt: created.Add(time.Second)},
		{LineItemID: 3, RequestedQty: 4, CreatedAt: created.Add(2 * time.Second)},
	})
	require.NoError(t, err)

	result, err := svc.Execute(ctx, plan, 42)
	require.NoError(t, err)

	// The failed item is skipped entirely; the rest still commit.
	require.Len(t, result.Errors, 1)
	require.EqualValues(t, 2, result.Errors[0].LineItemID)
	require.Equal(t, 2, result.Reserved)
	require.Len(t, reservations.calls, 2)
	_, exists := backorders.records[2]
	require.False(t, exists, "failed item records no backorder")

	record := backorders.records[3]
	require.EqualValues(t, 3, record.ShortageQty)
}

func TestExecuteResolvesCoveredBackorders(t *testing.T) {
	reservations := &fakeReservations{}
	backorders := newFakeBackorders()
	backorders.records[5] = backorder.Backorder{ID: 9, LineItemID: 5, VariantID: 1, ShortageQty: 4, Status: backorder.StatusPending}

	svc := allocation.NewService(&fakeStock{available: 4}, reservations, backorders, nil, nil)
	ctx := context.Background()

	plan, err := svc.Plan(ctx, 1, inventory.WarehouseCompany, allocation.StrategyPriority, []allocation.DemandItem{
		{LineItemID: 5, RequestedQty: 4, Priority: 200, CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	result, err := svc.Execute(ctx, plan, 42)
	require.NoError(t, err)
	require.Equal(t, 1, result.Reserved)
	require.Equal(t, 1, result.Resolved)
	require.Equal(t, backorder.StatusResolved, backorders.records[5].Status)
	require.EqualValues(t, 0, backorders.records[5].ShortageQty)
}
