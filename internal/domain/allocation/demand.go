package allocation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DemandLine is one line of requested quantity.
type DemandLine struct {
	OrderID           int             `json:"order_id"`
	ProductCode       string          `json:"product_code"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	MinExpiry         string          `json:"min_expiry,omitempty"`
	minExpiryDate     *time.Time
}

// MinExpiryDate returns the minimum-expiry constraint, nil when unset.
func (d *DemandLine) MinExpiryDate() *time.Time {
	return d.minExpiryDate
}

// ParseDemand turns free-text demand input into structured demand lines.
// Each line matches `<productCode> <quantity>[ <minExpiryDate>]`, with
// the quantity allowing thousands separators. Lines that fail to parse
// are skipped and counted, not fatal. Order IDs are assigned
// sequentially from 1 in input order.
func ParseDemand(text string) ([]DemandLine, int) {
	var lines []DemandLine
	skipped := 0
	nextID := 1

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields) > 3 {
			skipped++
			continue
		}

		qty, err := decimal.NewFromString(strings.ReplaceAll(fields[1], ",", ""))
		if err != nil || !qty.IsPositive() || !qty.Equal(qty.Truncate(0)) {
			skipped++
			continue
		}

		demand := DemandLine{
			ProductCode:       fields[0],
			RequestedQuantity: qty,
		}
		if len(fields) == 3 {
			iso, minDate := ParseExpiry(fields[2])
			if minDate == nil {
				skipped++
				continue
			}
			demand.MinExpiry = iso
			demand.minExpiryDate = minDate
		}

		demand.OrderID = nextID
		nextID++
		lines = append(lines, demand)
	}

	return lines, skipped
}
