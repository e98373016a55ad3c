package handlers

import (
	"net/http"

	"example.com/backstage/services/analytics/internal/database"
	"example.com/backstage/services/analytics/internal/models"
	"example.com/backstage/services/analytics/internal/search"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrorBody is the error detail returned to clients
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error represents an API error
type Error struct {
	Message    string
	StatusCode int
	Code       string
	Field      string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Common API errors
var (
	ErrInvalidBody       = &Error{Message: "Request body is not valid JSON for this resource", StatusCode: http.StatusBadRequest, Code: "INVALID_REQUEST"}
	ErrNotFound          = &Error{Message: "Resource not found", StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	ErrInternalServer    = &Error{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	ErrStoreUnavailable  = &Error{Message: "Analytics store unavailable", StatusCode: http.StatusServiceUnavailable, Code: "STORAGE_UNAVAILABLE"}
	ErrSearchUnavailable = &Error{Message: "Event search is not enabled", StatusCode: http.StatusServiceUnavailable, Code: "SEARCH_UNAVAILABLE"}
)

// NewValidationError creates a 400 error naming the offending field
func NewValidationError(field, message string) *Error {
	return &Error{
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Field:      field,
	}
}

// toAPIError classifies err into the error returned to the client
func toAPIError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		return NewValidationError(vErr.Field, vErr.Message)
	}

	if database.IsStorageError(err) {
		return ErrStoreUnavailable
	}

	if errors.Is(err, search.ErrSearchDisabled) {
		return ErrSearchUnavailable
	}

	return ErrInternalServer
}

// WriteError aborts the request with the error payload matching err
func WriteError(c *gin.Context, err error) {
	apiErr := toAPIError(err)

	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString(RequestIDKey)).
			Msg("Request failed")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.StatusCode, ErrorResponse{Error: ErrorBody{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Field:   apiErr.Field,
	}})
}
