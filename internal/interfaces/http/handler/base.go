package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/infrastructure/csvimport"
	"github.com/wms/backend/internal/interfaces/http/dto"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError converts domain and import errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, dto.GetHTTPStatus(domainErr.Code), domainErr.Code, domainErr.Message)
		return
	}

	var missingCol *csvimport.MissingColumnError
	if errors.As(err, &missingCol) {
		h.Error(c, http.StatusBadRequest, csvimport.ErrCodeImportMissingColumn, missingCol.Error())
		return
	}

	switch {
	case errors.Is(err, shared.ErrNotFound):
		h.NotFound(c, "resource not found")
	case errors.Is(err, csvimport.ErrEmptyFile):
		h.Error(c, http.StatusBadRequest, csvimport.ErrCodeImportEmptyFile, "uploaded file is empty")
	case errors.Is(err, csvimport.ErrInvalidEncoding):
		h.Error(c, http.StatusBadRequest, csvimport.ErrCodeImportInvalidEncoding, "file is not valid in the declared encoding")
	case errors.Is(err, csvimport.ErrMissingHeader):
		h.Error(c, http.StatusBadRequest, csvimport.ErrCodeImportMissingHeader, "file is missing a header row")
	case errors.Is(err, csvimport.ErrNoDataRows):
		h.Error(c, http.StatusBadRequest, csvimport.ErrCodeImportEmptyFile, "file contains no data rows")
	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}
