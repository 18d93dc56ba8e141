package allocation

import (
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// historyLimit bounds the number of retained snapshots per session.
const historyLimit = 50

// snapshotState is a deep copy of the session's allocation map.
// Remaining stock is not stored; it is derived by replaying the
// snapshot against uploaded totals, so the two can never drift.
type snapshotState map[int]map[UnitKey]decimal.Decimal

// history is a bounded snapshot stack with a cursor. Undo moves the
// cursor back, redo forward; a new accepted mutation discards any
// states past the cursor.
type history struct {
	states []snapshotState
	cursor int
	limit  int
}

func newHistory(limit int) *history {
	return &history{cursor: -1, limit: limit}
}

func (h *history) push(state snapshotState) {
	h.states = append(h.states[:h.cursor+1], state)
	if len(h.states) > h.limit {
		h.states = h.states[len(h.states)-h.limit:]
	}
	h.cursor = len(h.states) - 1
}

func (h *history) undo() (snapshotState, bool) {
	if h.cursor <= 0 {
		return nil, false
	}
	h.cursor--
	return h.states[h.cursor], true
}

func (h *history) redo() (snapshotState, bool) {
	if h.cursor < 0 || h.cursor >= len(h.states)-1 {
		return nil, false
	}
	h.cursor++
	return h.states[h.cursor], true
}

// snapshot deep-copies the current allocation map.
func (s *Session) snapshot() snapshotState {
	state := make(snapshotState, len(s.allocations))
	for orderID, m := range s.allocations {
		cp := make(map[UnitKey]decimal.Decimal, len(m))
		for key, qty := range m {
			cp[key] = qty
		}
		state[orderID] = cp
	}
	return state
}

// restore replaces the session's allocations with a snapshot and
// rederives every unit's remaining stock from its uploaded total.
func (s *Session) restore(state snapshotState) {
	s.allocations = make(map[int]map[UnitKey]decimal.Decimal, len(state))
	s.index.resetRemaining()
	for orderID, m := range state {
		cp := make(map[UnitKey]decimal.Decimal, len(m))
		for key, qty := range m {
			cp[key] = qty
			if unit := s.index.Unit(key); unit != nil {
				unit.RemainingQuantity = unit.RemainingQuantity.Sub(qty)
			}
		}
		s.allocations[orderID] = cp
	}
}

// Undo reverts the most recent accepted mutation.
func (s *Session) Undo() error {
	state, ok := s.history.undo()
	if !ok {
		return shared.NewDomainError(ErrCodeNothingToUndo, "nothing to undo")
	}
	s.restore(state)
	return nil
}

// Redo reapplies the most recently undone mutation.
func (s *Session) Redo() error {
	state, ok := s.history.redo()
	if !ok {
		return shared.NewDomainError(ErrCodeNothingToRedo, "nothing to redo")
	}
	s.restore(state)
	return nil
}
