// Package inventorytest provides an in-memory stock store used by unit
// tests across the inventory-adjacent services.
package inventorytest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vinstock/vinstock/internal/inventory"
)

// Store implements inventory.RepositoryPort and inventory.TxRepository
// against process memory. It enforces the same non-negativity checks the
// database schema carries, so invariant violations fail tests loudly.
type Store struct {
	mu        sync.Mutex
	lots      []inventory.Lot
	movements []inventory.Movement
	totals    map[int64][2]int64
	nextLot   int64
	nextMove  int64
	clock     time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		totals: make(map[int64][2]int64),
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// SeedLot installs a lot directly, bypassing the ledger. Tests that need
// ledger reconciliation should seed through the services instead.
func (s *Store) SeedLot(variantID int64, warehouse inventory.Warehouse, quantity, reserved int64, unitCost decimal.Decimal, createdAt time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLot++
	s.lots = append(s.lots, inventory.Lot{
		ID:        s.nextLot,
		VariantID: variantID,
		Warehouse: warehouse,
		Quantity:  quantity,
		Reserved:  reserved,
		UnitCost:  unitCost,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
	s.nextMove++
	s.movements = append(s.movements, inventory.Movement{
		ID:             s.nextMove,
		VariantID:      variantID,
		Warehouse:      warehouse,
		Kind:           inventory.MovementReceipt,
		QuantityChange: quantity,
		UnitCost:       unitCost,
		CreatedAt:      createdAt,
	})
	return s.nextLot
}

// Lots returns a copy of all lots, FIFO ordered.
func (s *Store) Lots() []inventory.Lot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Lot, len(s.lots))
	copy(out, s.lots)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Movements returns a copy of the ledger in insertion order.
func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Movement, len(s.movements))
	copy(out, s.movements)
	return out
}

// VariantTotals returns the last denormalised (quantity, reserved)
// counters refreshed for the variant.
func (s *Store) VariantTotals(variantID int64) (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.totals[variantID]
	return t[0], t[1]
}

// WithTx satisfies inventory.RepositoryPort.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return fn(ctx, s)
}

// GetSnapshot satisfies inventory.RepositoryPort.
func (s *Store) GetSnapshot(ctx context.Context, variantID int64, warehouse inventory.Warehouse) (inventory.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := inventory.Snapshot{VariantID: variantID, Warehouse: warehouse}
	var newest time.Time
	for _, lot := range s.lots {
		if lot.VariantID != variantID || lot.Warehouse != warehouse {
			continue
		}
		snap.Quantity += lot.Quantity
		snap.Reserved += lot.Reserved
		if !lot.CreatedAt.Before(newest) {
			newest = lot.CreatedAt
			snap.UnitCost = lot.UnitCost
		}
	}
	snap.Available = snap.Quantity - snap.Reserved
	return snap, nil
}

// ListMovements satisfies inventory.RepositoryPort.
func (s *Store) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Movement
	for _, m := range s.movements {
		if m.VariantID != filter.VariantID || m.Warehouse != filter.Warehouse {
			continue
		}
		if !filter.From.IsZero() && m.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && m.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// LotsForUpdate satisfies inventory.TxRepository.
func (s *Store) LotsForUpdate(ctx context.Context, variantID int64, warehouse inventory.Warehouse) ([]inventory.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Lot
	for _, lot := range s.lots {
		if lot.VariantID == variantID && lot.Warehouse == warehouse {
			out = append(out, lot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// InsertLot satisfies inventory.TxRepository.
func (s *Store) InsertLot(ctx context.Context, lot inventory.Lot) (int64, error) {
	if lot.Quantity < 0 || lot.Reserved < 0 || lot.Reserved > lot.Quantity {
		return 0, errors.New("inventorytest: lot violates non-negativity checks")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLot++
	lot.ID = s.nextLot
	lot.CreatedAt = s.tick()
	lot.UpdatedAt = lot.CreatedAt
	s.lots = append(s.lots, lot)
	return lot.ID, nil
}

// UpdateLot satisfies inventory.TxRepository.
func (s *Store) UpdateLot(ctx context.Context, lot inventory.Lot) error {
	if lot.Quantity < 0 || lot.Reserved < 0 || lot.Reserved > lot.Quantity {
		return errors.New("inventorytest: lot violates non-negativity checks")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lots {
		if s.lots[i].ID == lot.ID {
			lot.CreatedAt = s.lots[i].CreatedAt
			lot.UpdatedAt = s.tick()
			s.lots[i] = lot
			return nil
		}
	}
	return inventory.ErrNotFound
}

// InsertMovement satisfies inventory.TxRepository.
func (s *Store) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMove++
	m.ID = s.nextMove
	m.CreatedAt = s.tick()
	s.movements = append(s.movements, m)
	return m.ID, nil
}

// SumMovements satisfies inventory.TxRepository.
func (s *Store) SumMovements(ctx context.Context, variantID int64, warehouse inventory.Warehouse) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, m := range s.movements {
		if m.VariantID == variantID && m.Warehouse == warehouse {
			sum += m.QuantityChange
		}
	}
	return sum, nil
}

// RefreshVariantTotals satisfies inventory.TxRepository.
func (s *Store) RefreshVariantTotals(ctx context.Context, variantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var quantity, reserved int64
	for _, lot := range s.lots {
		if lot.VariantID == variantID {
			quantity += lot.Quantity
			reserved += lot.Reserved
		}
	}
	s.totals[variantID] = [2]int64{quantity, reserved}
	return nil
}
