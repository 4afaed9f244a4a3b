package fulfillment

import (
	"errors"
	"time"

	"github.com/vinstock/vinstock/internal/inventory"
)

// Status tracks a demand line item through the fulfillment state
// machine. The absence of a reservation row is the unreserved state.
type Status string

const (
	// StatusReserved means stock is committed but not yet shipped.
	StatusReserved Status = "RESERVED"
	// StatusShipped means the full reservation has been consumed.
	StatusShipped Status = "SHIPPED"
	// StatusCancelled means the reservation was released unshipped.
	StatusCancelled Status = "CANCELLED"
)

// Reservation records stock committed to one confirmed order line item.
type Reservation struct {
	ID          int64               `json:"id"`
	LineItemID  int64               `json:"line_item_id"`
	VariantID   int64               `json:"variant_id"`
	Warehouse   inventory.Warehouse `json:"warehouse"`
	ReservedQty int64               `json:"reserved_qty"`
	ShippedQty  int64               `json:"shipped_qty"`
	Status      Status              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ReserveInput commits stock against a confirmed order line item.
// Repeat calls for the same line item top up the existing reservation,
// which is how backorder resolution adds quantity later.
type ReserveInput struct {
	LineItemID int64
	VariantID  int64
	Warehouse  inventory.Warehouse
	Quantity   int64
	ActorID    int64
}

// ShipInput consumes part or all of a reservation.
type ShipInput struct {
	LineItemID int64
	Quantity   int64
	Reason     string
	ActorID    int64
}

// ErrReservationNotFound indicates no reservation row for the line item.
var ErrReservationNotFound = errors.New("fulfillment: reservation not found")

// ErrInvalidState indicates the reservation is not in a state that
// permits the requested transition.
var ErrInvalidState = errors.New("fulfillment: reservation state does not permit operation")

// ErrVariantMismatch indicates a top-up reserve named a different
// variant or warehouse than the existing reservation.
var ErrVariantMismatch = errors.New("fulfillment: reservation is bound to a different variant or warehouse")
