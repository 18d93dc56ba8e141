package allocation

import "strings"

// InventoryIndex maps product codes to their available inventory units.
// Units keep the order of the upload file, which is also the greedy
// tie-break order for equal or missing expiry dates.
type InventoryIndex struct {
	byProduct map[string][]*InventoryUnit
	byKey     map[UnitKey]*InventoryUnit
	units     []*InventoryUnit // all units in upload order
}

// BuildResult summarizes what BuildIndex did with the uploaded rows.
type BuildResult struct {
	UnitCount        int `json:"unit_count"`
	MergedDuplicates int `json:"merged_duplicates"`
	SkippedRows      int `json:"skipped_rows"`
}

// BuildIndex consumes normalized upload rows and produces an index.
// Rows without a product code are discarded and counted. Rows sharing
// an identical (product, warehouse, location, lot, expiry) key are
// merged by summing their quantities.
func BuildIndex(records []InventoryRecord) (*InventoryIndex, BuildResult) {
	idx := &InventoryIndex{
		byProduct: make(map[string][]*InventoryUnit),
		byKey:     make(map[UnitKey]*InventoryUnit),
	}
	var result BuildResult

	for _, rec := range records {
		code := strings.TrimSpace(rec.ProductCode)
		if code == "" {
			result.SkippedRows++
			continue
		}
		expiry, expiryDate := ParseExpiry(rec.ExpiryDate)
		key := UnitKey{
			ProductCode: code,
			Warehouse:   strings.TrimSpace(rec.Warehouse),
			Location:    strings.TrimSpace(rec.Location),
			Lot:         strings.TrimSpace(rec.Lot),
			Expiry:      expiry,
		}
		qty := ParseQuantity(rec.Quantity)

		if existing, ok := idx.byKey[key]; ok {
			existing.TotalQuantity = existing.TotalQuantity.Add(qty)
			existing.RemainingQuantity = existing.RemainingQuantity.Add(qty)
			result.MergedDuplicates++
			continue
		}

		unit := &InventoryUnit{
			Key:               key,
			ExpiryDate:        expiryDate,
			TotalQuantity:     qty,
			RemainingQuantity: qty,
			uploadOrder:       len(idx.units),
		}
		idx.byKey[key] = unit
		idx.byProduct[code] = append(idx.byProduct[code], unit)
		idx.units = append(idx.units, unit)
	}

	result.UnitCount = len(idx.units)
	return idx, result
}

// Lookup returns the units for a product code in upload order.
// Unknown codes return an empty slice, never an error.
func (idx *InventoryIndex) Lookup(productCode string) []*InventoryUnit {
	return idx.byProduct[productCode]
}

// Unit returns the unit for a key, or nil when the key is unknown.
func (idx *InventoryIndex) Unit(key UnitKey) *InventoryUnit {
	return idx.byKey[key]
}

// Units returns every unit in upload order.
func (idx *InventoryIndex) Units() []*InventoryUnit {
	return idx.units
}

// HasProduct reports whether any unit was uploaded for the code.
func (idx *InventoryIndex) HasProduct(productCode string) bool {
	return len(idx.byProduct[productCode]) > 0
}

// resetRemaining restores every unit to its uploaded quantity. Used by
// the history replay path before re-applying an allocation snapshot.
func (idx *InventoryIndex) resetRemaining() {
	for _, u := range idx.units {
		u.RemainingQuantity = u.TotalQuantity
	}
}
