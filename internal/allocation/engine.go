package allocation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vinstock/vinstock/internal/inventory"
)

// Strategy selects how scarce stock is split across competing demand.
type Strategy string

const (
	// StrategyProportional splits stock pro rata by requested quantity,
	// distributing the flooring remainder by largest fractional part.
	StrategyProportional Strategy = "PROPORTIONAL"
	// StrategyPriority satisfies items fully in priority order, oldest
	// first within a priority.
	StrategyPriority Strategy = "PRIORITY"
	// StrategyFCFS satisfies items fully in creation order, ignoring
	// priority.
	StrategyFCFS Strategy = "FCFS"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyProportional, StrategyPriority, StrategyFCFS:
		return true
	}
	return false
}

// DemandItem is one outstanding order line competing for stock.
type DemandItem struct {
	LineItemID   int64     `json:"line_item_id"`
	RequestedQty int64     `json:"requested_qty"`
	Priority     int       `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
}

// ItemAllocation is the per-item outcome of a plan.
type ItemAllocation struct {
	LineItemID      int64     `json:"line_item_id"`
	RequestedQty    int64     `json:"requested_qty"`
	AllocatedQty    int64     `json:"allocated_qty"`
	ShortageQty     int64     `json:"shortage_qty"`
	FulfillmentRate float64   `json:"fulfillment_rate"`
	Priority        int       `json:"priority"`
	CreatedAt       time.Time `json:"created_at"`
	Overridden      bool      `json:"overridden,omitempty"`
}

// Stats aggregates a plan.
type Stats struct {
	TotalRequested     int64 `json:"total_requested"`
	TotalAllocated     int64 `json:"total_allocated"`
	TotalShortage      int64 `json:"total_shortage"`
	FullyFulfilled     int   `json:"fully_fulfilled"`
	PartiallyFulfilled int   `json:"partially_fulfilled"`
	Unfulfilled        int   `json:"unfulfilled"`
}

// Plan is a computed allocation awaiting execution. Items keep the
// caller's input order.
type Plan struct {
	VariantID      int64               `json:"variant_id"`
	Warehouse      inventory.Warehouse `json:"warehouse"`
	Strategy       Strategy            `json:"strategy"`
	AvailableStock int64               `json:"available_stock"`
	Items          []ItemAllocation    `json:"items"`
	Stats          Stats               `json:"stats"`
}

// ErrUnknownStrategy indicates an unrecognised strategy tag.
var ErrUnknownStrategy = errors.New("allocation: unknown strategy")

// ErrInvalidDemand indicates a malformed demand set.
var ErrInvalidDemand = errors.New("allocation: invalid demand")

// ErrItemNotInPlan indicates an override named a line item the plan
// does not contain.
var ErrItemNotInPlan = errors.New("allocation: line item not in plan")

// ComputePlan splits availableStock across the demand items under the
// given strategy. Every strategy guarantees the allocated total never
// exceeds availableStock and no item exceeds its request.
func ComputePlan(variantID int64, warehouse inventory.Warehouse, availableStock int64, strategy Strategy, items []DemandItem) (Plan, error) {
	if !strategy.Valid() {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	if availableStock < 0 {
		return Plan{}, fmt.Errorf("%w: available stock must not be negative", ErrInvalidDemand)
	}
	seen := make(map[int64]struct{}, len(items))
	var totalRequested int64
	for _, item := range items {
		if item.LineItemID <= 0 || item.RequestedQty <= 0 {
			return Plan{}, fmt.Errorf("%w: line item %d with requested %d", ErrInvalidDemand, item.LineItemID, item.RequestedQty)
		}
		if _, dup := seen[item.LineItemID]; dup {
			return Plan{}, fmt.Errorf("%w: duplicate line item %d", ErrInvalidDemand, item.LineItemID)
		}
		seen[item.LineItemID] = struct{}{}
		totalRequested += item.RequestedQty
	}

	allocated := make([]int64, len(items))
	switch {
	case totalRequested <= availableStock:
		for i, item := range items {
			allocated[i] = item.RequestedQty
		}
	case strategy == StrategyProportional:
		allocateProportional(items, availableStock, totalRequested, allocated)
	case strategy == StrategyPriority:
		allocateGreedy(items, availableStock, allocated, byPriority(items))
	default:
		allocateGreedy(items, availableStock, allocated, byCreation(items))
	}

	plan := Plan{
		VariantID:      variantID,
		Warehouse:      warehouse,
		Strategy:       strategy,
		AvailableStock: availableStock,
		Items:          make([]ItemAllocation, len(items)),
	}
	for i, item := range items {
		plan.Items[i] = itemOutcome(item, allocated[i])
	}
	plan.Stats = computeStats(plan.Items)
	return plan, nil
}

// Override pins one item's allocation, clamped to [0, requested], and
// recomputes that item and the aggregate statistics. The strategy is
// not re-run; manual edits are final for this plan.
func (p *Plan) Override(lineItemID, allocatedQty int64) error {
	for i := range p.Items {
		if p.Items[i].LineItemID != lineItemID {
			continue
		}
		if allocatedQty < 0 {
			allocatedQty = 0
		}
		if allocatedQty > p.Items[i].RequestedQty {
			allocatedQty = p.Items[i].RequestedQty
		}
		item := DemandItem{
			LineItemID:   p.Items[i].LineItemID,
			RequestedQty: p.Items[i].RequestedQty,
			Priority:     p.Items[i].Priority,
			CreatedAt:    p.Items[i].CreatedAt,
		}
		p.Items[i] = itemOutcome(item, allocatedQty)
		p.Items[i].Overridden = true
		p.Stats = computeStats(p.Items)
		return nil
	}
	return fmt.Errorf("%w: %d", ErrItemNotInPlan, lineItemID)
}

// allocateProportional floors each share, then hands the remainder out
// one unit at a time to the largest fractional parts.
func allocateProportional(items []DemandItem, available, totalRequested int64, allocated []int64) {
	remainders := make([]int64, len(items))
	var assigned int64
	for i, item := range items {
		allocated[i] = item.RequestedQty * available / totalRequested
		remainders[i] = item.RequestedQty * available % totalRequested
		assigned += allocated[i]
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if remainders[i] != remainders[j] {
			return remainders[i] > remainders[j]
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].LineItemID < items[j].LineItemID
	})

	leftover := available - assigned
	for _, i := range order {
		if leftover == 0 {
			break
		}
		if allocated[i] < items[i].RequestedQty {
			allocated[i]++
			leftover--
		}
	}
}

func allocateGreedy(items []DemandItem, available int64, allocated []int64, order []int) {
	remaining := available
	for _, i := range order {
		if remaining == 0 {
			break
		}
		take := items[i].RequestedQty
		if take > remaining {
			take = remaining
		}
		allocated[i] = take
		remaining -= take
	}
}

func byPriority(items []DemandItem) []int {
	order := indexOrder(len(items))
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].LineItemID < items[j].LineItemID
	})
	return order
}

func byCreation(items []DemandItem) []int {
	order := indexOrder(len(items))
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].LineItemID < items[j].LineItemID
	})
	return order
}

func indexOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func itemOutcome(item DemandItem, allocated int64) ItemAllocation {
	return ItemAllocation{
		LineItemID:      item.LineItemID,
		RequestedQty:    item.RequestedQty,
		AllocatedQty:    allocated,
		ShortageQty:     item.RequestedQty - allocated,
		FulfillmentRate: float64(allocated) / float64(item.RequestedQty),
		Priority:        item.Priority,
		CreatedAt:       item.CreatedAt,
	}
}

func computeStats(items []ItemAllocation) Stats {
	var stats Stats
	for _, item := range items {
		stats.TotalRequested += item.RequestedQty
		stats.TotalAllocated += item.AllocatedQty
		stats.TotalShortage += item.ShortageQty
		switch {
		case item.ShortageQty == 0:
			stats.FullyFulfilled++
		case item.AllocatedQty == 0:
			stats.Unfulfilled++
		default:
			stats.PartiallyFulfilled++
		}
	}
	return stats
}
