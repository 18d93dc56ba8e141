package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAllocationBatchRepository persists committed allocation batches
type GormAllocationBatchRepository struct {
	db *gorm.DB
}

// NewGormAllocationBatchRepository creates a new repository
func NewGormAllocationBatchRepository(db *gorm.DB) *GormAllocationBatchRepository {
	return &GormAllocationBatchRepository{db: db}
}

// Create stores a batch header and its lines in one transaction
func (r *GormAllocationBatchRepository) Create(ctx context.Context, batch *models.AllocationBatchModel) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if batch.ID == uuid.Nil {
			batch.ID = uuid.New()
		}
		for i := range batch.Lines {
			if batch.Lines[i].ID == uuid.Nil {
				batch.Lines[i].ID = uuid.New()
			}
			batch.Lines[i].BatchID = batch.ID
		}
		return tx.Create(batch).Error
	})
}

// FindByID loads a batch with its lines
func (r *GormAllocationBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.AllocationBatchModel, error) {
	var batch models.AllocationBatchModel
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&batch, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// List returns batch headers newest first, without lines
func (r *GormAllocationBatchRepository) List(ctx context.Context, limit, offset int) ([]models.AllocationBatchModel, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.AllocationBatchModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var batches []models.AllocationBatchModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&batches).Error
	if err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// Delete removes a batch and its lines
func (r *GormAllocationBatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", id).Delete(&models.AllocationLineModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.AllocationBatchModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}
