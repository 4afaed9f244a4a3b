package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vinstock/vinstock/internal/inventory"
)

var baseTime = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func demand(id, requested int64, priority int, offset time.Duration) DemandItem {
	return DemandItem{LineItemID: id, RequestedQty: requested, Priority: priority, CreatedAt: baseTime.Add(offset)}
}

func TestProportionalFairness(t *testing.T) {
	plan, err := ComputePlan(1, inventory.WarehouseCompany, 10, StrategyProportional, []DemandItem{
		demand(1, 10, 0, 0),
		demand(2, 5, 0, 0),
		demand(3, 5, 0, 0),
	})
	require.NoError(t, err)

	require.EqualValues(t, 10, plan.Stats.TotalAllocated)
	require.EqualValues(t, 5, plan.Items[0].AllocatedQty)
	require.EqualValues(t, 5, plan.Items[1].AllocatedQty+plan.Items[2].AllocatedQty)
	for _, item := range plan.Items {
		require.LessOrEqual(t, item.AllocatedQty, item.RequestedQty)
		require.GreaterOrEqual(t, item.AllocatedQty, int64(2))
	}
	require.EqualValues(t, 10, plan.Stats.TotalShortage)
	require.Equal(t, 3, plan.Stats.PartiallyFulfilled)
}

func TestPriorityAndFCFSOrdering(t *testing.T) {
	items := []DemandItem{
		demand(1, 8, 10, time.Second), // A: higher priority, later
		demand(2, 8, 5, 0),            // B: lower priority, earlier
	}

	plan, err := ComputePlan(1, inventory.WarehouseCompany, 10, StrategyPriority, items)
	require.NoError(t, err)
	require.EqualValues(t, 8, plan.Items[0].AllocatedQty, "priority wins despite later timestamp")
	require.EqualValues(t, 2, plan.Items[1].AllocatedQty)

	plan, err = ComputePlan(1, inventory.WarehouseCompany, 10, StrategyFCFS, items)
	require.NoError(t, err)
	require.EqualValues(t, 2, plan.Items[0].AllocatedQty)
	require.EqualValues(t, 8, plan.Items[1].AllocatedQty, "creation order wins, priority ignored")
}

func TestFullAllocationWhenStockCovers(t *testing.T) {
	for _, strategy := range []Strategy{StrategyProportional, StrategyPriority, StrategyFCFS} {
		plan, err := ComputePlan(1, inventory.WarehouseCompany, 20, strategy, []DemandItem{
			demand(1, 7, 1, 0),
			demand(2, 5, 9, time.Second),
		})
		require.NoError(t, err)
		require.EqualValues(t, 7, plan.Items[0].AllocatedQty, strategy)
		require.EqualValues(t, 5, plan.Items[1].AllocatedQty, strategy)
		require.EqualValues(t, 0, plan.Stats.TotalShortage, strategy)
		require.Equal(t, 2, plan.Stats.FullyFulfilled, strategy)
	}
}

func TestAllocationConservation(t *testing.T) {
	cases := []struct {
		available int64
		requests  []int64
	}{
		{available: 0, requests: []int64{4, 9}},
		{available: 7, requests: []int64{3, 3, 3}},
		{available: 13, requests: []int64{1, 6, 2, 11}},
		{available: 100, requests: []int64{3, 3, 3}},
	}
	for _, tc := range cases {
		var totalRequested int64
		items := make([]DemandItem, len(tc.requests))
		for i, requested := range tc.requests {
			items[i] = demand(int64(i+1), requested, i, time.Duration(i)*time.Minute)
			totalRequested += requested
		}
		want := tc.available
		if totalRequested < want {
			want = totalRequested
		}
		for _, strategy := range []Strategy{StrategyProportional, StrategyPriority, StrategyFCFS} {
			plan, err := ComputePlan(1, inventory.WarehousePrivate, tc.available, strategy, items)
			require.NoError(t, err)
			require.EqualValues(t, want, plan.Stats.TotalAllocated, "strategy %s available %d", strategy, tc.available)
			for _, item := range plan.Items {
				require.GreaterOrEqual(t, item.AllocatedQty, int64(0))
				require.LessOrEqual(t, item.AllocatedQty, item.RequestedQty)
			}
		}
	}
}

func TestOverrideClampsAndRecomputes(t *testing.T) {
	plan, err := ComputePlan(1, inventory.WarehouseCompany, 10, StrategyFCFS, []DemandItem{
		demand(1, 8, 0, 0),
		demand(2, 8, 0, time.Second),
	})
	require.NoError(t, err)
	require.EqualValues(t, 8, plan.Items[0].AllocatedQty)
	require.EqualValues(t, 2, plan.Items[1].AllocatedQty)

	require.NoError(t, plan.Override(1, 50))
	require.EqualValues(t, 8, plan.Items[0].AllocatedQty, "clamped to requested")
	require.True(t, plan.Items[0].Overridden)

	require.NoError(t, plan.Override(1, -3))
	require.EqualValues(t, 0, plan.Items[0].AllocatedQty, "clamped to zero")
	require.EqualValues(t, 8, plan.Items[0].ShortageQty)
	require.EqualValues(t, 2, plan.Stats.TotalAllocated)
	require.EqualValues(t, 14, plan.Stats.TotalShortage)
	require.EqualValues(t, 2, plan.Items[1].AllocatedQty, "other items untouched")

	require.ErrorIs(t, plan.Override(42, 1), ErrItemNotInPlan)
}

func TestComputePlanRejectsBadInput(t *testing.T) {
	_, err := ComputePlan(1, inventory.WarehouseCompany, 5, Strategy("ROUND_ROBIN"), []DemandItem{demand(1, 1, 0, 0)})
	require.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = ComputePlan(1, inventory.WarehouseCompany, 5, StrategyFCFS, []DemandItem{demand(1, 0, 0, 0)})
	require.ErrorIs(t, err, ErrInvalidDemand)

	_, err = ComputePlan(1, inventory.WarehouseCompany, 5, StrategyFCFS, []DemandItem{
		demand(7, 2, 0, 0),
		demand(7, 3, 0, 0),
	})
	require.ErrorIs(t, err, ErrInvalidDemand)

	_, err = ComputePlan(1, inventory.WarehouseCompany, -1, StrategyFCFS, []DemandItem{demand(1, 1, 0, 0)})
	require.ErrorIs(t, err, ErrInvalidDemand)
}
