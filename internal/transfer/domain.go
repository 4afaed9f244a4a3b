package transfer

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vinstock/vinstock/internal/inventory"
)

// StockTransfer is the immutable record of one stock move between
// (variant, warehouse) pairs. It always maps to exactly two ledger
// movements sharing its ID, one per side.
type StockTransfer struct {
	ID              string              `json:"id"`
	SourceVariantID int64               `json:"source_variant_id"`
	SourceWarehouse inventory.Warehouse `json:"source_warehouse"`
	TargetVariantID int64               `json:"target_variant_id"`
	TargetWarehouse inventory.Warehouse `json:"target_warehouse"`
	Quantity        int64               `json:"quantity"`
	UnitCost        decimal.Decimal     `json:"unit_cost"`
	Reason          string              `json:"reason,omitempty"`
	CreatedBy       int64               `json:"created_by,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// Input describes a transfer request. Moving stock between variants in
// the same warehouse is how a damaged unit gets reclassified without
// changing the system-wide unit count.
type Input struct {
	SourceVariantID int64
	SourceWarehouse inventory.Warehouse
	TargetVariantID int64
	TargetWarehouse inventory.Warehouse
	Quantity        int64
	Reason          string
	ActorID         int64
}

// ErrInvalidTransfer indicates source and target are the same
// (variant, warehouse) pair.
var ErrInvalidTransfer = errors.New("transfer: source and target must differ")
