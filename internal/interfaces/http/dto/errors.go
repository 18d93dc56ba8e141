package dto

import "net/http"

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeRequestTooLarge is used when the request body exceeds the limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes.
// Allocation rejections are business rule violations, not client
// syntax errors, so they surface as 422.
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Session registry
	"SESSION_NOT_FOUND": http.StatusNotFound,
	"TOO_MANY_SESSIONS": http.StatusTooManyRequests,
	"NO_DEMAND_LOADED":  http.StatusUnprocessableEntity,

	// Allocation rejections -> 422 Unprocessable Entity
	"NEGATIVE_QUANTITY":  http.StatusUnprocessableEntity,
	"INVALID_QUANTITY":   http.StatusUnprocessableEntity,
	"INSUFFICIENT_STOCK": http.StatusUnprocessableEntity,
	"EXCEEDS_REQUESTED":  http.StatusUnprocessableEntity,
	"NOTHING_TO_FILL":    http.StatusUnprocessableEntity,
	"PRODUCT_MISMATCH":   http.StatusUnprocessableEntity,
	"EXPIRY_TOO_EARLY":   http.StatusUnprocessableEntity,

	// Lookups inside a session
	"ORDER_NOT_FOUND": http.StatusNotFound,
	"UNIT_NOT_FOUND":  http.StatusNotFound,

	// History boundaries -> 409 Conflict
	"NOTHING_TO_UNDO": http.StatusConflict,
	"NOTHING_TO_REDO": http.StatusConflict,

	// Structural upload failures -> 400 Bad Request
	"ERR_IMPORT_EMPTY_FILE":       http.StatusBadRequest,
	"ERR_IMPORT_INVALID_ENCODING": http.StatusBadRequest,
	"ERR_IMPORT_MISSING_HEADER":   http.StatusBadRequest,
	"ERR_IMPORT_MISSING_COLUMN":   http.StatusBadRequest,
	"ERR_IMPORT_MALFORMED_ROW":    http.StatusBadRequest,

	// Repository-level codes
	"ALREADY_EXISTS": http.StatusConflict,
	"INVALID_INPUT":  http.StatusBadRequest,
	"INVALID_STATE":  http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
