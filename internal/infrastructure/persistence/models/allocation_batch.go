package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationBatchModel is the persistence model for a committed
// allocation run: one uploaded inventory file plus the demand lines the
// user finished assigning.
type AllocationBatchModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SourceFilename string          `gorm:"size:255"`
	Note           string          `gorm:"size:1000"`
	OrderCount     int             `gorm:"not null;default:0"`
	TotalRequested decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAllocated decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt      time.Time
	// Associations
	Lines []AllocationLineModel `gorm:"foreignKey:BatchID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (AllocationBatchModel) TableName() string {
	return "allocation_batches"
}

// AllocationLineModel is one committed allocation: a demand line's draw
// from a single inventory unit.
type AllocationLineModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BatchID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID           int             `gorm:"not null"`
	ProductCode       string          `gorm:"size:64;not null;index"`
	Warehouse         string          `gorm:"size:64"`
	Location          string          `gorm:"size:64"`
	Lot               string          `gorm:"size:64"`
	ExpiryDate        string          `gorm:"size:10"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RequestedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt         time.Time
}

// TableName returns the table name for GORM
func (AllocationLineModel) TableName() string {
	return "allocation_lines"
}
