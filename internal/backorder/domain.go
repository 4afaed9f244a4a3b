package backorder

import (
	"errors"
	"time"

	"github.com/vinstock/vinstock/internal/inventory"
)

// Status tracks a backorder through its lifecycle. Records are never
// deleted, only resolved or cancelled.
type Status string

const (
	// StatusPending means the shortage is still outstanding.
	StatusPending Status = "PENDING"
	// StatusResolved means a later allocation run covered the shortage.
	StatusResolved Status = "RESOLVED"
	// StatusCancelled means an operator withdrew the backorder.
	StatusCancelled Status = "CANCELLED"
)

// Backorder records the residual shortage of one demand line item after
// an allocation run.
type Backorder struct {
	ID          int64               `json:"id"`
	LineItemID  int64               `json:"line_item_id"`
	VariantID   int64               `json:"variant_id"`
	Warehouse   inventory.Warehouse `json:"warehouse"`
	ShortageQty int64               `json:"shortage_qty"`
	Priority    int                 `json:"priority"`
	Status      Status              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty"`
}

// UpsertInput updates the shortage for a line item after an allocation
// run. Shortage zero resolves the pending record if one exists and is
// otherwise a no-op.
type UpsertInput struct {
	LineItemID  int64
	VariantID   int64
	Warehouse   inventory.Warehouse
	ShortageQty int64
	Priority    int
	ActorID     int64
}

// Filter narrows backorder listings.
type Filter struct {
	VariantID int64
	Status    Status
	Limit     int
}

// PriorityScore derives the allocation priority for a backorder from
// the customer tier and the order's age. Tier dominates; a day of age
// breaks ties within a tier.
func PriorityScore(customerTier int, orderCreatedAt, now time.Time) int {
	ageDays := int(now.Sub(orderCreatedAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays > 99 {
		ageDays = 99
	}
	return customerTier*100 + ageDays
}

// ErrBackorderNotFound indicates no backorder row for the id.
var ErrBackorderNotFound = errors.New("backorder: not found")

// ErrInvalidState indicates the backorder is not PENDING.
var ErrInvalidState = errors.New("backorder: status does not permit operation")
