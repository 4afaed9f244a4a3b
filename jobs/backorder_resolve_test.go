package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/vinstock/vinstock/internal/allocation"
	"github.com/vinstock/vinstock/internal/backorder"
	"github.com/vinstock/vinstock/internal/inventory"
)

type fakeSource struct {
	pending []backorder.Backorder
}

func (f *fakeSource) ListPending(ctx context.Context, variantID int64) ([]backorder.Backorder, error) {
	return f.pending, nil
}

type fakeAllocator struct {
	available    int64
	planned      []allocation.DemandItem
	usedStrategy allocation.Strategy
	executed     *allocation.Plan
}

func (f *fakeAllocator) Plan(ctx context.Context, variantID int64, warehouse inventory.Warehouse, strategy allocation.Strategy, items []allocation.DemandItem) (allocation.Plan, error) {
	f.planned = items
	f.usedStrategy = strategy
	return allocation.ComputePlan(variantID, warehouse, f.available, strategy, items)
}

func (f *fakeAllocator) Execute(ctx context.Context, plan allocation.Plan, actorID int64) (allocation.ExecutionResult, error) {
	f.executed = &plan
	return allocation.ExecutionResult{Plan: plan, Reserved: len(plan.Items)}, nil
}

func resolveTask(t *testing.T, variantID int64, warehouse string) *asynq.Task {
	t.Helper()
	task, err := NewBackorderResolveTask(BackorderResolvePayload{VariantID: variantID, Warehouse: warehouse})
	require.NoError(t, err)
	return task
}

func TestBackorderResolveRunsPriorityAllocation(t *testing.T) {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{pending: []backorder.Backorder{
		{ID: 1, LineItemID: 10, VariantID: 7, Warehouse: inventory.WarehouseCompany, ShortageQty: 4, Priority: 300, CreatedAt: created},
		{ID: 2, LineItemID: 11, VariantID: 7, Warehouse: inventory.WarehouseCompany, ShortageQty: 6, Priority: 100, CreatedAt: created.Add(time.Hour)},
		{ID: 3, LineItemID: 12, VariantID: 7, Warehouse: inventory.WarehousePrivate, ShortageQty: 2, Priority: 500, CreatedAt: created},
	}}
	allocator := &fakeAllocator{available: 5}
	job := NewBackorderResolveJob(source, allocator, nil)

	err := job.Handle(context.Background(), resolveTask(t, 7, "COMPANY"))
	require.NoError(t, err)

	require.Equal(t, allocation.StrategyPriority, allocator.usedStrategy)
	require.Len(t, allocator.planned, 2, "other warehouse's backorders excluded")
	require.EqualValues(t, 10, allocator.planned[0].LineItemID)
	require.EqualValues(t, 4, allocator.planned[0].RequestedQty, "demand synthesized from shortage")

	require.NotNil(t, allocator.executed)
	require.EqualValues(t, 4, allocator.executed.Items[0].AllocatedQty, "high priority covered first")
	require.EqualValues(t, 1, allocator.executed.Items[1].AllocatedQty)
}

func TestBackorderResolveSkipsWhenNothingPending(t *testing.T) {
	allocator := &fakeAllocator{available: 5}
	job := NewBackorderResolveJob(&fakeSource{}, allocator, nil)

	err := job.Handle(context.Background(), resolveTask(t, 7, "COMPANY"))
	require.NoError(t, err)
	require.Nil(t, allocator.executed)
}

func TestBackorderResolveSkipsWhenNoStock(t *testing.T) {
	source := &fakeSource{pending: []backorder.Backorder{
		{ID: 1, LineItemID: 10, VariantID: 7, Warehouse: inventory.WarehouseCompany, ShortageQty: 4, Priority: 300},
	}}
	allocator := &fakeAllocator{available: 0}
	job := NewBackorderResolveJob(source, allocator, nil)

	err := job.Handle(context.Background(), resolveTask(t, 7, "COMPANY"))
	require.NoError(t, err)
	require.Nil(t, allocator.executed, "empty plan is not committed")
}

func TestBackorderResolveRejectsBadPayload(t *testing.T) {
	job := NewBackorderResolveJob(&fakeSource{}, &fakeAllocator{}, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeBackorderResolve, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), resolveTask(t, 0, "COMPANY"))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), resolveTask(t, 7, "BASEMENT"))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
