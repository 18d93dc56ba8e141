package allocation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// Rejection codes returned by the interactive allocation operations.
const (
	ErrCodeNegativeQuantity  = "NEGATIVE_QUANTITY"
	ErrCodeInvalidQuantity   = "INVALID_QUANTITY"
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
	ErrCodeExceedsRequested  = "EXCEEDS_REQUESTED"
	ErrCodeNothingToFill     = "NOTHING_TO_FILL"
	ErrCodeProductMismatch   = "PRODUCT_MISMATCH"
	ErrCodeExpiryTooEarly    = "EXPIRY_TOO_EARLY"
	ErrCodeOrderNotFound     = "ORDER_NOT_FOUND"
	ErrCodeUnitNotFound      = "UNIT_NOT_FOUND"
	ErrCodeNothingToUndo     = "NOTHING_TO_UNDO"
	ErrCodeNothingToRedo     = "NOTHING_TO_REDO"
)

// allocateGreedy assigns a demand line against its eligible units in
// FIFO-by-expiry order: earliest expiry first, units without an expiry
// last, ties kept in upload order. It returns the allocations and the
// unsatisfied remainder; a shortage is an outcome, not an error.
func allocateGreedy(demand *DemandLine, units []*InventoryUnit) ([]Allocation, decimal.Decimal) {
	eligible := make([]*InventoryUnit, 0, len(units))
	for _, u := range units {
		if minExpiry := demand.MinExpiryDate(); minExpiry != nil {
			if !u.HasExpiry() || u.ExpiryDate.Before(*minExpiry) {
				continue
			}
		}
		eligible = append(eligible, u)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ui, uj := eligible[i], eligible[j]
		if ui.HasExpiry() && uj.HasExpiry() {
			return ui.ExpiryDate.Before(*uj.ExpiryDate)
		}
		return ui.HasExpiry() && !uj.HasExpiry()
	})

	remaining := demand.RequestedQuantity
	var allocs []Allocation
	for _, u := range eligible {
		if !remaining.IsPositive() {
			break
		}
		if !u.RemainingQuantity.IsPositive() {
			continue
		}
		take := decimal.Min(u.RemainingQuantity, remaining)
		u.RemainingQuantity = u.RemainingQuantity.Sub(take)
		remaining = remaining.Sub(take)
		allocs = append(allocs, Allocation{
			OrderID:  demand.OrderID,
			UnitKey:  u.Key,
			Quantity: take,
		})
	}

	return allocs, remaining
}

// checkEligible rejects pairs the greedy pass would never form: the
// unit must hold the order's product and satisfy the order's minimum
// expiry constraint.
func checkEligible(demand *DemandLine, unit *InventoryUnit) error {
	if unit.Key.ProductCode != demand.ProductCode {
		return shared.NewDomainError(ErrCodeProductMismatch,
			fmt.Sprintf("unit holds %s, order %d is for %s",
				unit.Key.ProductCode, demand.OrderID, demand.ProductCode))
	}
	if minExpiry := demand.MinExpiryDate(); minExpiry != nil {
		if !unit.HasExpiry() || unit.ExpiryDate.Before(*minExpiry) {
			return shared.NewDomainError(ErrCodeExpiryTooEarly,
				fmt.Sprintf("unit at %s does not meet minimum expiry %s",
					unit.Key.Location, demand.MinExpiry))
		}
	}
	return nil
}

// SetAllocation sets the quantity drawn from one inventory unit for one
// order, replacing any prior allocation on that pair. Validation is
// atomic: a rejection leaves all state untouched.
func (s *Session) SetAllocation(orderID int, key UnitKey, qty decimal.Decimal) error {
	demand := s.demandByID[orderID]
	if demand == nil {
		return shared.NewDomainError(ErrCodeOrderNotFound,
			fmt.Sprintf("order %d not found", orderID))
	}
	unit := s.index.Unit(key)
	if unit == nil {
		return shared.NewDomainError(ErrCodeUnitNotFound,
			fmt.Sprintf("inventory unit %s/%s not found", key.ProductCode, key.Location))
	}
	if err := checkEligible(demand, unit); err != nil {
		return err
	}
	if qty.IsNegative() {
		return shared.NewDomainError(ErrCodeNegativeQuantity, "quantity must not be negative")
	}
	if !qty.Equal(qty.Truncate(0)) {
		return shared.NewDomainError(ErrCodeInvalidQuantity, "quantity must be a whole number")
	}

	current := s.allocations[orderID][key]
	maxAvailable := unit.RemainingQuantity.Add(current)
	if qty.GreaterThan(maxAvailable) {
		return shared.NewDomainError(ErrCodeInsufficientStock,
			fmt.Sprintf("only %s available at %s", maxAvailable, key.Location))
	}

	otherTotal := s.allocatedExcluding(orderID, key)
	if qty.Add(otherTotal).GreaterThan(demand.RequestedQuantity) {
		return shared.NewDomainError(ErrCodeExceedsRequested,
			fmt.Sprintf("order %d requests %s, %s already allocated elsewhere",
				orderID, demand.RequestedQuantity, otherTotal))
	}

	if qty.Equal(current) {
		return nil
	}

	s.setQuantity(orderID, unit, qty)
	s.history.push(s.snapshot())
	return nil
}

// FillAll allocates as much of a unit's remaining stock to the order as
// the order still has room for. The prior allocation on the pair counts
// as available since it is being replaced. Rejected when there is
// nothing to take.
func (s *Session) FillAll(orderID int, key UnitKey) (decimal.Decimal, error) {
	demand := s.demandByID[orderID]
	if demand == nil {
		return decimal.Zero, shared.NewDomainError(ErrCodeOrderNotFound,
			fmt.Sprintf("order %d not found", orderID))
	}
	unit := s.index.Unit(key)
	if unit == nil {
		return decimal.Zero, shared.NewDomainError(ErrCodeUnitNotFound,
			fmt.Sprintf("inventory unit %s/%s not found", key.ProductCode, key.Location))
	}
	if err := checkEligible(demand, unit); err != nil {
		return decimal.Zero, err
	}

	current := s.allocations[orderID][key]
	room := demand.RequestedQuantity.Sub(s.allocatedExcluding(orderID, key))
	take := decimal.Min(unit.RemainingQuantity.Add(current), room)
	if !take.IsPositive() {
		return decimal.Zero, shared.NewDomainError(ErrCodeNothingToFill,
			"no stock available or order already satisfied")
	}
	if take.Equal(current) {
		return take, nil
	}

	s.setQuantity(orderID, unit, take)
	s.history.push(s.snapshot())
	return take, nil
}

// ResetOrder releases every allocation of an order back to stock.
// Resetting an order that holds nothing is a no-op, which makes the
// operation idempotent.
func (s *Session) ResetOrder(orderID int) error {
	if s.demandByID[orderID] == nil {
		return shared.NewDomainError(ErrCodeOrderNotFound,
			fmt.Sprintf("order %d not found", orderID))
	}
	held := s.allocations[orderID]
	if len(held) == 0 {
		return nil
	}

	for key := range held {
		if unit := s.index.Unit(key); unit != nil {
			s.setQuantity(orderID, unit, decimal.Zero)
		}
	}
	s.history.push(s.snapshot())
	return nil
}
