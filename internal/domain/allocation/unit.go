package allocation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// expiryLayouts are the date formats accepted on uploaded inventory rows.
// ERP exports use ISO dates; some older exports use slashes.
var expiryLayouts = []string{"2006-01-02", "2006/01/02"}

// UnitKey uniquely identifies an inventory unit within a session.
// Two uploaded rows with the same key describe the same physical stock
// and are merged by summing their quantities.
type UnitKey struct {
	ProductCode string `json:"product_code"`
	Warehouse   string `json:"warehouse"`
	Location    string `json:"location"`
	Lot         string `json:"lot"`
	Expiry      string `json:"expiry"`
}

// InventoryUnit is one row of available stock.
// RemainingQuantity is mutated only through Session commit paths.
type InventoryUnit struct {
	Key               UnitKey
	ExpiryDate        *time.Time // parsed from Key.Expiry, nil when empty or unparseable
	TotalQuantity     decimal.Decimal
	RemainingQuantity decimal.Decimal
	uploadOrder       int // position of the first row carrying this key
}

// HasExpiry reports whether the unit carries a parseable expiry date.
func (u *InventoryUnit) HasExpiry() bool {
	return u.ExpiryDate != nil
}

// Allocated returns the quantity currently drawn from this unit.
func (u *InventoryUnit) Allocated() decimal.Decimal {
	return u.TotalQuantity.Sub(u.RemainingQuantity)
}

// InventoryRecord is a normalized upload row, produced by the CSV import
// layer. Quantity is kept as the raw cell text so that normalization
// rules live in one place (ParseQuantity).
type InventoryRecord struct {
	ProductCode string
	Warehouse   string
	Location    string
	Lot         string
	ExpiryDate  string
	Quantity    string
}

// ParseQuantity normalizes a quantity cell: thousands separators and
// surrounding whitespace are stripped, fractional or negative or
// non-numeric values collapse to zero. ERP exports print integral
// counts as "1,234" or "1234.00".
func ParseQuantity(raw string) decimal.Decimal {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	d = d.Truncate(0)
	return d
}

// ParseExpiry parses an expiry cell. The normalized ISO form is returned
// alongside the parsed time so unit keys stay stable across the "-" and
// "/" date styles. Empty or unparseable cells yield ("", nil).
func ParseExpiry(raw string) (string, *time.Time) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), &t
		}
	}
	return "", nil
}
