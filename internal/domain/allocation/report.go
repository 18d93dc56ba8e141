package allocation

import "github.com/shopspring/decimal"

// NoInventoryLine is a demand line whose product has no uploaded stock.
type NoInventoryLine struct {
	OrderID           int             `json:"order_id"`
	ProductCode       string          `json:"product_code"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
}

// ShortageLine is a demand line that could not be fully satisfied.
type ShortageLine struct {
	OrderID           int             `json:"order_id"`
	ProductCode       string          `json:"product_code"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	AllocatedQuantity decimal.Decimal `json:"allocated_quantity"`
	Gap               decimal.Decimal `json:"gap"`
}

// SurplusUnit is one location/lot with stock left over.
type SurplusUnit struct {
	Warehouse         string          `json:"warehouse"`
	Location          string          `json:"location"`
	Lot               string          `json:"lot"`
	Expiry            string          `json:"expiry"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
}

// SurplusGroup lists a product's unconsumed stock by location.
type SurplusGroup struct {
	ProductCode string          `json:"product_code"`
	Total       decimal.Decimal `json:"total"`
	Units       []SurplusUnit   `json:"units"`
}

// ConflictReport summarizes the end state of a session: demand without
// inventory, under-fulfilled demand, and stock left unconsumed.
type ConflictReport struct {
	NoInventory []NoInventoryLine `json:"no_inventory"`
	Shortage    []ShortageLine    `json:"shortage"`
	Surplus     []SurplusGroup    `json:"surplus"`
}

// Report computes the conflict report from current state. It is pure
// and can be re-run after every interactive change.
func (s *Session) Report() ConflictReport {
	report := ConflictReport{
		NoInventory: make([]NoInventoryLine, 0),
		Shortage:    make([]ShortageLine, 0),
		Surplus:     make([]SurplusGroup, 0),
	}

	for i := range s.demands {
		d := &s.demands[i]
		if !s.index.HasProduct(d.ProductCode) {
			report.NoInventory = append(report.NoInventory, NoInventoryLine{
				OrderID:           d.OrderID,
				ProductCode:       d.ProductCode,
				RequestedQuantity: d.RequestedQuantity,
			})
		}
		allocated := s.AllocatedQuantity(d.OrderID)
		if allocated.LessThan(d.RequestedQuantity) {
			report.Shortage = append(report.Shortage, ShortageLine{
				OrderID:           d.OrderID,
				ProductCode:       d.ProductCode,
				RequestedQuantity: d.RequestedQuantity,
				AllocatedQuantity: allocated,
				Gap:               d.RequestedQuantity.Sub(allocated),
			})
		}
	}

	groupIdx := make(map[string]int)
	for _, u := range s.index.Units() {
		if !u.RemainingQuantity.IsPositive() {
			continue
		}
		code := u.Key.ProductCode
		i, ok := groupIdx[code]
		if !ok {
			i = len(report.Surplus)
			groupIdx[code] = i
			report.Surplus = append(report.Surplus, SurplusGroup{
				ProductCode: code,
				Total:       decimal.Zero,
			})
		}
		report.Surplus[i].Total = report.Surplus[i].Total.Add(u.RemainingQuantity)
		report.Surplus[i].Units = append(report.Surplus[i].Units, SurplusUnit{
			Warehouse:         u.Key.Warehouse,
			Location:          u.Key.Location,
			Lot:               u.Key.Lot,
			Expiry:            u.Key.Expiry,
			RemainingQuantity: u.RemainingQuantity,
		})
	}

	return report
}
