package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// Stock math shared by the store, fulfillment and transfer services.
// Every helper runs against an already-open transaction so callers can
// combine lot mutations with their own rows atomically.

// AddStockParams describes an inbound lot.
type AddStockParams struct {
	VariantID int64
	Warehouse Warehouse
	Quantity  int64
	UnitCost  decimal.Decimal
	Kind      MovementKind
	Ref       Ref
	Reason    string
	ActorID   int64
}

// RemoveStockParams describes an outbound consumption of available stock.
type RemoveStockParams struct {
	VariantID int64
	Warehouse Warehouse
	Quantity  int64
	Kind      MovementKind
	Ref       Ref
	Reason    string
	ActorID   int64
	// SingleMovement collapses the consumption into one ledger entry
	// carrying InheritCost. Transfers use this; adjustments and sales
	// write one entry per lot touched.
	SingleMovement bool
	InheritCost    decimal.Decimal
}

// ShipParams describes consumption of reserved stock.
type ShipParams struct {
	VariantID int64
	Warehouse Warehouse
	Quantity  int64
	Ref       Ref
	Reason    string
	ActorID   int64
}

// AddStock opens a new cost lot and writes one inbound movement.
func AddStock(ctx context.Context, tx TxRepository, p AddStockParams) (Movement, error) {
	if p.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if !p.Warehouse.Valid() {
		return Movement{}, ErrInvalidWarehouse
	}
	lots, err := tx.LotsForUpdate(ctx, p.VariantID, p.Warehouse)
	if err != nil {
		return Movement{}, err
	}
	before := totalQuantity(lots)
	lot := Lot{
		VariantID: p.VariantID,
		Warehouse: p.Warehouse,
		Quantity:  p.Quantity,
		UnitCost:  p.UnitCost,
	}
	if _, err := tx.InsertLot(ctx, lot); err != nil {
		return Movement{}, err
	}
	m := Movement{
		VariantID:      p.VariantID,
		Warehouse:      p.Warehouse,
		Kind:           p.Kind,
		QuantityBefore: before,
		QuantityChange: p.Quantity,
		QuantityAfter:  before + p.Quantity,
		UnitCost:       p.UnitCost,
		TotalCost:      p.UnitCost.Mul(decimal.NewFromInt(p.Quantity)),
		Ref:            p.Ref,
		Reason:         p.Reason,
		CreatedBy:      p.ActorID,
	}
	if _, err := tx.InsertMovement(ctx, m); err != nil {
		return Movement{}, err
	}
	if err := finishMutation(ctx, tx, p.VariantID, p.Warehouse, before+p.Quantity); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// RemoveStock consumes available stock FIFO across lots. Unless
// p.SingleMovement is set it writes one movement per lot touched, each
// at that lot's unit cost.
func RemoveStock(ctx context.Context, tx TxRepository, p RemoveStockParams) ([]Movement, error) {
	if p.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !p.Warehouse.Valid() {
		return nil, ErrInvalidWarehouse
	}
	lots, err := tx.LotsForUpdate(ctx, p.VariantID, p.Warehouse)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return nil, ErrNotFound
	}
	if totalAvailable(lots) < p.Quantity {
		return nil, ErrInsufficientStock
	}

	running := totalQuantity(lots)
	remaining := p.Quantity
	var movements []Movement
	for i := range lots {
		if remaining == 0 {
			break
		}
		take := lots[i].Available()
		if take <= 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		lots[i].Quantity -= take
		if err := tx.UpdateLot(ctx, lots[i]); err != nil {
			return nil, err
		}
		remaining -= take
		if p.SingleMovement {
			continue
		}
		m := Movement{
			VariantID:      p.VariantID,
			Warehouse:      p.Warehouse,
			Kind:           p.Kind,
			QuantityBefore: running,
			QuantityChange: -take,
			QuantityAfter:  running - take,
			UnitCost:       lots[i].UnitCost,
			TotalCost:      lots[i].UnitCost.Mul(decimal.NewFromInt(take)),
			Ref:            p.Ref,
			Reason:         p.Reason,
			CreatedBy:      p.ActorID,
		}
		if _, err := tx.InsertMovement(ctx, m); err != nil {
			return nil, err
		}
		running -= take
		movements = append(movements, m)
	}
	if p.SingleMovement {
		m := Movement{
			VariantID:      p.VariantID,
			Warehouse:      p.Warehouse,
			Kind:           p.Kind,
			QuantityBefore: running,
			QuantityChange: -p.Quantity,
			QuantityAfter:  running - p.Quantity,
			UnitCost:       p.InheritCost,
			TotalCost:      p.InheritCost.Mul(decimal.NewFromInt(p.Quantity)),
			Ref:            p.Ref,
			Reason:         p.Reason,
			CreatedBy:      p.ActorID,
		}
		if _, err := tx.InsertMovement(ctx, m); err != nil {
			return nil, err
		}
		running -= p.Quantity
		movements = append(movements, m)
	}
	if err := finishMutation(ctx, tx, p.VariantID, p.Warehouse, running); err != nil {
		return nil, err
	}
	return movements, nil
}

// MergeStockParams describes an inbound merge into an existing row.
type MergeStockParams struct {
	VariantID int64
	Warehouse Warehouse
	Quantity  int64
	UnitCost  decimal.Decimal
	Kind      MovementKind
	Ref       Ref
	Reason    string
	ActorID   int64
}

// MergeStock adds quantity to the newest lot for (variant, warehouse),
// overwriting its unit cost, or opens a lot when none exists. Transfers
// use this for the receiving side: cost inheritance is last-transfer-wins
// by design of the transfer contract, not a weighted blend.
func MergeStock(ctx context.Context, tx TxRepository, p MergeStockParams) (Movement, error) {
	if p.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if !p.Warehouse.Valid() {
		return Movement{}, ErrInvalidWarehouse
	}
	lots, err := tx.LotsForUpdate(ctx, p.VariantID, p.Warehouse)
	if err != nil {
		return Movement{}, err
	}
	before := totalQuantity(lots)
	if len(lots) == 0 {
		if _, err := tx.InsertLot(ctx, Lot{
			VariantID: p.VariantID,
			Warehouse: p.Warehouse,
			Quantity:  p.Quantity,
			UnitCost:  p.UnitCost,
		}); err != nil {
			return Movement{}, err
		}
	} else {
		newest := lots[len(lots)-1]
		newest.Quantity += p.Quantity
		newest.UnitCost = p.UnitCost
		if err := tx.UpdateLot(ctx, newest); err != nil {
			return Movement{}, err
		}
	}
	m := Movement{
		VariantID:      p.VariantID,
		Warehouse:      p.Warehouse,
		Kind:           p.Kind,
		QuantityBefore: before,
		QuantityChange: p.Quantity,
		QuantityAfter:  before + p.Quantity,
		UnitCost:       p.UnitCost,
		TotalCost:      p.UnitCost.Mul(decimal.NewFromInt(p.Quantity)),
		Ref:            p.Ref,
		Reason:         p.Reason,
		CreatedBy:      p.ActorID,
	}
	if _, err := tx.InsertMovement(ctx, m); err != nil {
		return Movement{}, err
	}
	if err := finishMutation(ctx, tx, p.VariantID, p.Warehouse, before+p.Quantity); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// InheritedCost returns the unit cost a FIFO consumption of qty would
// leave as the inherited cost: the cost of the last lot touched.
func InheritedCost(lots []Lot, qty int64) (decimal.Decimal, error) {
	if len(lots) == 0 {
		return decimal.Decimal{}, ErrNotFound
	}
	if totalAvailable(lots) < qty {
		return decimal.Decimal{}, ErrInsufficientStock
	}
	remaining := qty
	cost := lots[0].UnitCost
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		take := lot.Available()
		if take <= 0 {
			continue
		}
		cost = lot.UnitCost
		remaining -= take
	}
	return cost, nil
}

// ReserveStock spreads a reservation FIFO across lots without changing
// physical quantity, so no ledger entry is written.
func ReserveStock(ctx context.Context, tx TxRepository, variantID int64, warehouse Warehouse, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if !warehouse.Valid() {
		return ErrInvalidWarehouse
	}
	lots, err := tx.LotsForUpdate(ctx, variantID, warehouse)
	if err != nil {
		return err
	}
	if len(lots) == 0 {
		return ErrNotFound
	}
	if totalAvailable(lots) < qty {
		return ErrInsufficientStock
	}
	remaining := qty
	for i := range lots {
		if remaining == 0 {
			break
		}
		take := lots[i].Available()
		if take <= 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		lots[i].Reserved += take
		if err := tx.UpdateLot(ctx, lots[i]); err != nil {
			return err
		}
		remaining -= take
	}
	return tx.RefreshVariantTotals(ctx, variantID)
}

// ReleaseStock returns reserved stock FIFO.
func ReleaseStock(ctx context.Context, tx TxRepository, variantID int64, warehouse Warehouse, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if !warehouse.Valid() {
		return ErrInvalidWarehouse
	}
	lots, err := tx.LotsForUpdate(ctx, variantID, warehouse)
	if err != nil {
		return err
	}
	if len(lots) == 0 {
		return ErrNotFound
	}
	if totalReserved(lots) < qty {
		return ErrInsufficientReservation
	}
	remaining := qty
	for i := range lots {
		if remaining == 0 {
			break
		}
		take := lots[i].Reserved
		if take <= 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		lots[i].Reserved -= take
		if err := tx.UpdateLot(ctx, lots[i]); err != nil {
			return err
		}
		remaining -= take
	}
	return tx.RefreshVariantTotals(ctx, variantID)
}

// ShipReserved consumes reserved stock FIFO, decrementing quantity and
// reserved together and writing one SALE movement per lot at that lot's
// own unit cost, so realized cost of goods is lot-accurate.
func ShipReserved(ctx context.Context, tx TxRepository, p ShipParams) ([]Movement, error) {
	if p.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !p.Warehouse.Valid() {
		return nil, ErrInvalidWarehouse
	}
	lots, err := tx.LotsForUpdate(ctx, p.VariantID, p.Warehouse)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return nil, ErrNotFound
	}
	if totalReserved(lots) < p.Quantity {
		return nil, ErrInsufficientReservation
	}

	running := totalQuantity(lots)
	remaining := p.Quantity
	var movements []Movement
	for i := range lots {
		if remaining == 0 {
			break
		}
		take := lots[i].Reserved
		if take <= 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		lots[i].Quantity -= take
		lots[i].Reserved -= take
		if err := tx.UpdateLot(ctx, lots[i]); err != nil {
			return nil, err
		}
		m := Movement{
			VariantID:      p.VariantID,
			Warehouse:      p.Warehouse,
			Kind:           MovementSale,
			QuantityBefore: running,
			QuantityChange: -take,
			QuantityAfter:  running - take,
			UnitCost:       lots[i].UnitCost,
			TotalCost:      lots[i].UnitCost.Mul(decimal.NewFromInt(take)),
			Ref:            p.Ref,
			Reason:         p.Reason,
			CreatedBy:      p.ActorID,
		}
		if _, err := tx.InsertMovement(ctx, m); err != nil {
			return nil, err
		}
		running -= take
		remaining -= take
		movements = append(movements, m)
	}
	if err := finishMutation(ctx, tx, p.VariantID, p.Warehouse, running); err != nil {
		return nil, err
	}
	return movements, nil
}

// finishMutation refreshes the variant's denormalised counters and
// checks the reconciliation invariant: the ledger sum must equal the
// quantity the mutation just arrived at. A mismatch aborts the
// transaction, it is never clamped.
func finishMutation(ctx context.Context, tx TxRepository, variantID int64, warehouse Warehouse, wantQuantity int64) error {
	if err := tx.RefreshVariantTotals(ctx, variantID); err != nil {
		return err
	}
	sum, err := tx.SumMovements(ctx, variantID, warehouse)
	if err != nil {
		return err
	}
	if sum != wantQuantity {
		return ErrLedgerMismatch
	}
	return nil
}

func totalQuantity(lots []Lot) int64 {
	var total int64
	for _, lot := range lots {
		total += lot.Quantity
	}
	return total
}

func totalReserved(lots []Lot) int64 {
	var total int64
	for _, lot := range lots {
		total += lot.Reserved
	}
	return total
}

func totalAvailable(lots []Lot) int64 {
	var total int64
	for _, lot := range lots {
		total += lot.Available()
	}
	return total
}
