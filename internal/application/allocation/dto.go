package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/infrastructure/csvimport"
)

// SessionResponse describes a live allocation session
type SessionResponse struct {
	ID             uuid.UUID `json:"id"`
	SourceFilename string    `json:"source_filename"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	UnitCount      int       `json:"unit_count"`
	DemandCount    int       `json:"demand_count"`
}

// ImportReport describes what happened to an uploaded inventory file
type ImportReport struct {
	RowsImported     int                  `json:"rows_imported"`
	MergedDuplicates int                  `json:"merged_duplicates"`
	SkippedRows      int                  `json:"skipped_rows"`
	RowErrors        []csvimport.RowError `json:"row_errors"`
}

// CreateSessionResult is returned from an inventory upload
type CreateSessionResult struct {
	Session SessionResponse `json:"session"`
	Import  ImportReport    `json:"import"`
}

// DemandLineResponse is one demand line with its current allocations
type DemandLineResponse struct {
	OrderID           int                  `json:"order_id"`
	ProductCode       string               `json:"product_code"`
	RequestedQuantity decimal.Decimal      `json:"requested_quantity"`
	AllocatedQuantity decimal.Decimal      `json:"allocated_quantity"`
	MinExpiry         string               `json:"min_expiry,omitempty"`
	Allocations       []AllocationResponse `json:"allocations"`
}

// AllocationResponse is one allocation in API shape
type AllocationResponse struct {
	Warehouse string          `json:"warehouse"`
	Location  string          `json:"location"`
	Lot       string          `json:"lot"`
	Expiry    string          `json:"expiry"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// SessionSnapshot is the full view of a session's current state
type SessionSnapshot struct {
	Session            SessionResponse           `json:"session"`
	Demands            []DemandLineResponse      `json:"demands"`
	SkippedDemandLines int                       `json:"skipped_demand_lines"`
	Report             allocation.ConflictReport `json:"report"`
}

// CommitResult is returned when a session's allocations are persisted
type CommitResult struct {
	BatchID        uuid.UUID       `json:"batch_id"`
	OrderCount     int             `json:"order_count"`
	LineCount      int             `json:"line_count"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
}

// BatchLineResponse is one persisted allocation line
type BatchLineResponse struct {
	OrderID           int             `json:"order_id"`
	ProductCode       string          `json:"product_code"`
	Warehouse         string          `json:"warehouse"`
	Location          string          `json:"location"`
	Lot               string          `json:"lot"`
	ExpiryDate        string          `json:"expiry_date"`
	Quantity          decimal.Decimal `json:"quantity"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
}

// BatchSummary is a persisted batch header without its lines
type BatchSummary struct {
	ID             uuid.UUID       `json:"id"`
	SourceFilename string          `json:"source_filename"`
	Note           string          `json:"note"`
	OrderCount     int             `json:"order_count"`
	TotalRequested decimal.Decimal `json:"total_requested"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BatchListResult is one page of committed batches
type BatchListResult struct {
	Batches  []BatchSummary `json:"batches"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// BatchResponse is a persisted allocation batch
type BatchResponse struct {
	ID             uuid.UUID           `json:"id"`
	SourceFilename string              `json:"source_filename"`
	Note           string              `json:"note"`
	OrderCount     int                 `json:"order_count"`
	TotalRequested decimal.Decimal     `json:"total_requested"`
	TotalAllocated decimal.Decimal     `json:"total_allocated"`
	CreatedAt      time.Time           `json:"created_at"`
	Lines          []BatchLineResponse `json:"lines"`
}
