package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Warehouse partitions stock by funding/ownership of the physical goods.
type Warehouse string

const (
	// WarehouseCompany holds company-funded stock.
	WarehouseCompany Warehouse = "COMPANY"
	// WarehousePrivate holds privately funded stock.
	WarehousePrivate Warehouse = "PRIVATE"
)

// Valid reports whether w is one of the known warehouses.
func (w Warehouse) Valid() bool {
	switch w {
	case WarehouseCompany, WarehousePrivate:
		return true
	}
	return false
}

// MovementKind enumerates supported ledger entry kinds.
type MovementKind string

const (
	// MovementAdjustment represents a manual stock correction.
	MovementAdjustment MovementKind = "ADJUSTMENT"
	// MovementTransfer represents one side of a stock transfer.
	MovementTransfer MovementKind = "TRANSFER"
	// MovementSale represents an outbound shipment against a reservation.
	MovementSale MovementKind = "SALE"
	// MovementReceipt represents inbound goods receipt.
	MovementReceipt MovementKind = "RECEIPT"
)

// Lot is one cost batch of a variant inside a warehouse. A variant may
// hold several lots per warehouse; outbound consumption is FIFO by lot
// creation time.
type Lot struct {
	ID        int64
	VariantID int64
	Warehouse Warehouse
	Quantity  int64
	Reserved  int64
	UnitCost  decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available is the quantity not committed to unshipped orders.
func (l Lot) Available() int64 {
	return l.Quantity - l.Reserved
}

// Ref ties a movement to the business object that caused it.
type Ref struct {
	Type string
	ID   string
}

// Movement is an immutable ledger entry recording one stock change.
// Created, never updated or deleted.
type Movement struct {
	ID             int64
	VariantID      int64
	Warehouse      Warehouse
	Kind           MovementKind
	QuantityBefore int64
	QuantityChange int64
	QuantityAfter  int64
	UnitCost       decimal.Decimal
	TotalCost      decimal.Decimal
	Ref            Ref
	Reason         string
	CreatedBy      int64
	CreatedAt      time.Time
}

// Snapshot summarises current stock for one (variant, warehouse).
// Available is always Quantity minus Reserved, derived at read time.
type Snapshot struct {
	VariantID int64           `json:"variant_id"`
	Warehouse Warehouse       `json:"warehouse"`
	Quantity  int64           `json:"quantity"`
	Reserved  int64           `json:"reserved"`
	Available int64           `json:"available"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// MovementFilter narrows ledger listings.
type MovementFilter struct {
	VariantID int64
	Warehouse Warehouse
	From      time.Time
	To        time.Time
	Limit     int
}

// AdjustmentInput describes a manual stock correction. Delta may be
// positive (opens a new cost lot) or negative (consumes lots FIFO).
type AdjustmentInput struct {
	VariantID int64
	Warehouse Warehouse
	Delta     int64
	UnitCost  decimal.Decimal
	Reason    string
	ActorID   int64
	Ref       Ref
}

// ReceiptInput describes inbound goods.
type ReceiptInput struct {
	VariantID int64
	Warehouse Warehouse
	Quantity  int64
	UnitCost  decimal.Decimal
	Reason    string
	ActorID   int64
	Ref       Ref
}

// ErrInsufficientStock triggered when an outbound quantity exceeds available stock.
var ErrInsufficientStock = errors.New("inventory: insufficient available stock")

// ErrInsufficientReservation triggered when a release or shipment exceeds reserved stock.
var ErrInsufficientReservation = errors.New("inventory: insufficient reserved stock")

// ErrNotFound indicates an outbound operation against a variant/warehouse with no stock rows.
var ErrNotFound = errors.New("inventory: stock row not found")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidWarehouse indicates an unknown warehouse tag.
var ErrInvalidWarehouse = errors.New("inventory: unknown warehouse")

// ErrLedgerMismatch indicates the movement sum no longer reconciles with
// stored lot quantities. Fatal to the enclosing transaction, never masked.
var ErrLedgerMismatch = errors.New("inventory: ledger sum does not reconcile with stock quantity")

// ErrConcurrencyConflict indicates the store aborted the transaction due
// to a concurrent conflicting write. Retry the whole operation.
var ErrConcurrencyConflict = errors.New("inventory: aborted by concurrent write")
