package allocation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Allocation links one demand line to one inventory unit.
type Allocation struct {
	OrderID  int             `json:"order_id"`
	UnitKey  UnitKey         `json:"unit_key"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Session holds the in-memory allocation state for one uploaded batch:
// the inventory index, the current demand lines, the allocations linking
// them, and the undo history. All mutation goes through the Session so
// that remaining stock, allocations and history stay consistent.
//
// A Session is not safe for concurrent use; callers serialize access.
type Session struct {
	index              *InventoryIndex
	demands            []DemandLine
	demandByID         map[int]*DemandLine
	allocations        map[int]map[UnitKey]decimal.Decimal
	history            *history
	skippedDemandLines int
}

// NewSession creates a session over a freshly built inventory index.
func NewSession(index *InventoryIndex) *Session {
	return &Session{
		index:       index,
		demandByID:  make(map[int]*DemandLine),
		allocations: make(map[int]map[UnitKey]decimal.Decimal),
		history:     newHistory(historyLimit),
	}
}

// Index exposes the session's inventory index.
func (s *Session) Index() *InventoryIndex {
	return s.index
}

// Demands returns the current demand lines in input order.
func (s *Session) Demands() []DemandLine {
	return s.demands
}

// SkippedDemandLines returns how many demand input lines failed to parse
// in the most recent LoadDemand call.
func (s *Session) SkippedDemandLines() int {
	return s.skippedDemandLines
}

// Demand returns the demand line for an order ID, or nil.
func (s *Session) Demand(orderID int) *DemandLine {
	return s.demandByID[orderID]
}

// LoadDemand replaces the demand set: all prior allocations are
// released, every new line is allocated greedily in input order, and the
// undo history restarts from the resulting state.
func (s *Session) LoadDemand(lines []DemandLine, skipped int) {
	s.index.resetRemaining()
	s.demands = lines
	s.skippedDemandLines = skipped
	s.demandByID = make(map[int]*DemandLine, len(lines))
	s.allocations = make(map[int]map[UnitKey]decimal.Decimal)

	for i := range s.demands {
		d := &s.demands[i]
		s.demandByID[d.OrderID] = d
		allocs, _ := allocateGreedy(d, s.index.Lookup(d.ProductCode))
		if len(allocs) > 0 {
			m := make(map[UnitKey]decimal.Decimal, len(allocs))
			for _, a := range allocs {
				m[a.UnitKey] = a.Quantity
			}
			s.allocations[d.OrderID] = m
		}
	}

	s.history = newHistory(historyLimit)
	s.history.push(s.snapshot())
}

// AllocatedQuantity returns the total allocated to an order.
func (s *Session) AllocatedQuantity(orderID int) decimal.Decimal {
	total := decimal.Zero
	for _, qty := range s.allocations[orderID] {
		total = total.Add(qty)
	}
	return total
}

// allocatedExcluding sums the order's allocations across every unit key
// except the given one. Used when a pair's allocation is being replaced.
func (s *Session) allocatedExcluding(orderID int, key UnitKey) decimal.Decimal {
	total := decimal.Zero
	for k, qty := range s.allocations[orderID] {
		if k != key {
			total = total.Add(qty)
		}
	}
	return total
}

// OrderAllocations returns an order's allocations, ordered by the
// units' upload position for deterministic output.
func (s *Session) OrderAllocations(orderID int) []Allocation {
	m := s.allocations[orderID]
	if len(m) == 0 {
		return nil
	}
	allocs := make([]Allocation, 0, len(m))
	for key, qty := range m {
		allocs = append(allocs, Allocation{OrderID: orderID, UnitKey: key, Quantity: qty})
	}
	s.sortByUploadOrder(allocs)
	return allocs
}

// Allocations returns every allocation in the session, ordered by order
// ID then by unit upload position.
func (s *Session) Allocations() []Allocation {
	var all []Allocation
	for i := range s.demands {
		all = append(all, s.OrderAllocations(s.demands[i].OrderID)...)
	}
	return all
}

func (s *Session) sortByUploadOrder(allocs []Allocation) {
	sort.SliceStable(allocs, func(i, j int) bool {
		ui := s.index.Unit(allocs[i].UnitKey)
		uj := s.index.Unit(allocs[j].UnitKey)
		if ui == nil || uj == nil {
			return ui != nil
		}
		return ui.uploadOrder < uj.uploadOrder
	})
}

// setQuantity applies a validated allocation change for one
// (order, unit) pair: the old quantity is returned to the unit before
// the new one is subtracted.
func (s *Session) setQuantity(orderID int, unit *InventoryUnit, qty decimal.Decimal) {
	current := s.allocations[orderID][unit.Key]
	unit.RemainingQuantity = unit.RemainingQuantity.Add(current).Sub(qty)

	if qty.IsZero() {
		delete(s.allocations[orderID], unit.Key)
		if len(s.allocations[orderID]) == 0 {
			delete(s.allocations, orderID)
		}
		return
	}
	if s.allocations[orderID] == nil {
		s.allocations[orderID] = make(map[UnitKey]decimal.Decimal)
	}
	s.allocations[orderID][unit.Key] = qty
}
