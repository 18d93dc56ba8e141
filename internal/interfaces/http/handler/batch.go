package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appallocation "github.com/wms/backend/internal/application/allocation"
)

// BatchHandler exposes committed allocation batches over HTTP
type BatchHandler struct {
	BaseHandler
	service *appallocation.SessionService
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(service *appallocation.SessionService) *BatchHandler {
	return &BatchHandler{service: service}
}

// GetBatch returns a previously committed batch with its lines
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}
	batch, err := h.service.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// ListBatches returns one page of committed batch headers
func (h *BatchHandler) ListBatches(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.service.ListBatches(c.Request.Context(), page, pageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// DeleteBatch removes a committed batch
func (h *BatchHandler) DeleteBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}
	if err := h.service.DeleteBatch(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes registers all batch routes
func (h *BatchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	batches := rg.Group("/batches")
	{
		batches.GET("", h.ListBatches)
		batches.GET("/:id", h.GetBatch)
		batches.DELETE("/:id", h.DeleteBatch)
	}
}
