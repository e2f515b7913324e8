package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// Code is the machine-readable code carried by an APIError and echoed as the
// error_code member of the problem body
type Code string

const (
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeValidationFailed     Code = "VALIDATION_FAILED"
	CodeMissingFile          Code = "MISSING_FILE"
	CodeMissingContentType   Code = "MISSING_CONTENT_TYPE"
	CodeUnsupportedMediaType Code = "UNSUPPORTED_MEDIA_TYPE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
)

// APIError is a request-level failure detected before any upload or
// statistic is touched
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  Code        `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError describes one invalid request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload for several invalid fields
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func New(statusCode int, code Code, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: code, Message: message}
}

func NewWithDetails(statusCode int, code Code, message string, details interface{}) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: code, Message: message, Details: details}
}

var (
	ErrMissingFile        = New(http.StatusBadRequest, CodeMissingFile, `multipart field "file" is required`)
	ErrMissingContentType = New(http.StatusBadRequest, CodeMissingContentType, "Content-Type header is required")
	ErrRateLimitExceeded  = New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
)

// InvalidRequestWithError reports a body or form that could not be read
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation reports a single invalid field
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationError{Field: field, Message: message})
}

// NewValidationErrors reports several invalid fields at once
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: errs})
}

// UnsupportedContentType rejects a request body media type
func UnsupportedContentType(contentType string, allowed []string) *APIError {
	return NewWithDetails(http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "Unsupported content type",
		map[string]interface{}{
			"content_type": contentType,
			"allowed":      allowed,
		})
}
