package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	t.Run("flags demand without any inventory as unregistered", func(t *testing.T) {
		s := newTestSession(t, []InventoryRecord{
			{ProductCode: "A1", Location: "X1", Quantity: "100"},
		}, "A1 10\nGHOST 5")

		report := s.Report()
		require.Len(t, report.NoInventory, 1)
		assert.Equal(t, 2, report.NoInventory[0].OrderID)
		assert.Equal(t, "GHOST", report.NoInventory[0].ProductCode)

		// The unregistered line also shows up as a full shortage.
		require.Len(t, report.Shortage, 1)
		assert.Equal(t, 2, report.Shortage[0].OrderID)
		assert.True(t, report.Shortage[0].Gap.Equal(decimal.NewFromInt(5)))
	})

	t.Run("surplus groups leftover stock by product", func(t *testing.T) {
		s := newTestSession(t, []InventoryRecord{
			{ProductCode: "A1", Location: "X1", Lot: "L1", ExpiryDate: "2025-01-01", Quantity: "100"},
			{ProductCode: "A1", Location: "X2", Lot: "L2", Quantity: "50"},
			{ProductCode: "B2", Location: "Y1", Quantity: "30"},
		}, "A1 120")

		report := s.Report()
		require.Len(t, report.Surplus, 2)

		a1 := report.Surplus[0]
		assert.Equal(t, "A1", a1.ProductCode)
		assert.True(t, a1.Total.Equal(decimal.NewFromInt(30)))
		require.Len(t, a1.Units, 1)
		assert.Equal(t, "X2", a1.Units[0].Location)
		assert.Equal(t, "L2", a1.Units[0].Lot)

		b2 := report.Surplus[1]
		assert.Equal(t, "B2", b2.ProductCode)
		assert.True(t, b2.Total.Equal(decimal.NewFromInt(30)))
	})

	t.Run("fully consumed inventory leaves no surplus", func(t *testing.T) {
		s := newTestSession(t, []InventoryRecord{
			{ProductCode: "A1", Location: "X1", Quantity: "100"},
			{ProductCode: "A1", Location: "X2", Quantity: "50"},
		}, "A1 200")

		report := s.Report()
		assert.Empty(t, report.Surplus)
		require.Len(t, report.Shortage, 1)
		assert.True(t, report.Shortage[0].Gap.Equal(decimal.NewFromInt(50)))
	})

	t.Run("is pure and reflects interactive changes", func(t *testing.T) {
		s := newTestSession(t, []InventoryRecord{
			{ProductCode: "A1", Location: "X1", Quantity: "100"},
		}, "A1 40")

		first := s.Report()
		assert.Empty(t, first.Shortage)

		require.NoError(t, s.SetAllocation(1, UnitKey{ProductCode: "A1", Location: "X1"}, decimal.NewFromInt(10)))

		second := s.Report()
		require.Len(t, second.Shortage, 1)
		assert.True(t, second.Shortage[0].Gap.Equal(decimal.NewFromInt(30)))

		// Running the report twice changes nothing.
		assert.Equal(t, second, s.Report())
	})

	t.Run("empty session reports empty slices", func(t *testing.T) {
		idx, _ := BuildIndex(nil)
		s := NewSession(idx)
		report := s.Report()
		assert.Empty(t, report.NoInventory)
		assert.Empty(t, report.Shortage)
		assert.Empty(t, report.Surplus)
	})
}
