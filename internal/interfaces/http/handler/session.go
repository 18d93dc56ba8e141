package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appallocation "github.com/wms/backend/internal/application/allocation"
	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/infrastructure/csvimport"
	"github.com/wms/backend/internal/interfaces/http/dto"
)

const maxUploadFileSize = 10 << 20 // 10MB

// SessionHandler exposes allocation sessions over HTTP
type SessionHandler struct {
	BaseHandler
	service *appallocation.SessionService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(service *appallocation.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// LoadDemandRequest carries the pasted demand text
type LoadDemandRequest struct {
	Text string `json:"text" binding:"required"`
}

// UnitKeyRequest identifies one inventory unit inside a session
type UnitKeyRequest struct {
	ProductCode string `json:"product_code" binding:"required"`
	Warehouse   string `json:"warehouse"`
	Location    string `json:"location"`
	Lot         string `json:"lot"`
	Expiry      string `json:"expiry"`
}

func (r UnitKeyRequest) toKey() allocation.UnitKey {
	return allocation.UnitKey{
		ProductCode: r.ProductCode,
		Warehouse:   r.Warehouse,
		Location:    r.Location,
		Lot:         r.Lot,
		Expiry:      r.Expiry,
	}
}

// SetAllocationRequest sets an order's allocation against one unit
type SetAllocationRequest struct {
	UnitKeyRequest
	Quantity decimal.Decimal `json:"quantity"`
}

// CommitRequest carries optional commit metadata
type CommitRequest struct {
	Note string `json:"note"`
}

// CreateSession handles the inventory CSV upload that opens a session
func (h *SessionHandler) CreateSession(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxUploadFileSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "file exceeds maximum size of 10MB")
		return
	}

	enc := csvimport.Encoding(c.PostForm("encoding"))
	result, err := h.service.CreateSession(file, header.Filename, enc)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// GetSession returns the session's full current state
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	snap, err := h.service.Snapshot(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snap)
}

// DeleteSession discards a session
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteSession(id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// LoadDemand replaces the session's demand set and auto-allocates it
func (h *SessionHandler) LoadDemand(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req LoadDemandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	snap, err := h.service.LoadDemand(id, req.Text)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snap)
}

// SetAllocation applies an interactive allocation change
func (h *SessionHandler) SetAllocation(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	var req SetAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	snap, err := h.service.SetAllocation(id, orderID, req.toKey(), req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snap)
}

// FillAll allocates as much of a unit as the order still has room for
func (h *SessionHandler) FillAll(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	var req UnitKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	snap, err := h.service.FillAll(id, orderID, req.toKey())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snap)
}

// ResetOrder releases all of an order's allocations
func (h *SessionHandler) ResetOrder(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	snap, err := h.service.ResetOrder(id, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snap)
}

// Undo reverts the most recent accepted mutation
func (h *SessionHandler) Undo(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	snap, err := h.service.Undo(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snap)
}

// Redo reapplies the most recently undone mutation
func (h *SessionHandler) Redo(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	snap, err := h.service.Redo(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snap)
}

// Report returns the session's conflict report
func (h *SessionHandler) Report(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	report, err := h.service.Report(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Commit persists the session's current allocations as a batch
func (h *SessionHandler) Commit(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req CommitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request: "+err.Error())
			return
		}
	}
	result, err := h.service.Commit(c.Request.Context(), id, req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// sessionID parses the session ID path parameter
func (h *SessionHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}

// orderID parses the order ID path parameter
func (h *SessionHandler) orderID(c *gin.Context) (int, bool) {
	orderID, err := strconv.Atoi(c.Param("orderId"))
	if err != nil || orderID <= 0 {
		h.BadRequest(c, "Invalid order ID")
		return 0, false
	}
	return orderID, true
}

// RegisterRoutes registers all session routes
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.DeleteSession)
		sessions.POST("/:id/demand", h.LoadDemand)
		sessions.PUT("/:id/orders/:orderId/allocations", h.SetAllocation)
		sessions.POST("/:id/orders/:orderId/allocations/fill", h.FillAll)
		sessions.DELETE("/:id/orders/:orderId/allocations", h.ResetOrder)
		sessions.POST("/:id/undo", h.Undo)
		sessions.POST("/:id/redo", h.Redo)
		sessions.GET("/:id/report", h.Report)
		sessions.POST("/:id/commit", h.Commit)
	}
}
