package errors

import (
	"context"
	"errors"
	"fmt"

	"attendx/internal/analytics"
	"attendx/internal/anomaly"
	"attendx/internal/dataprocessing"
	"attendx/internal/sessions"
)

// ErrorType classifies a failure of an upload or statistic. Dashboard
// sections report it as their error code.
type ErrorType string

const (
	ErrTypeSchema     ErrorType = "SCHEMA"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeModelFit   ErrorType = "MODEL_FIT"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeTimeout    ErrorType = "TIMEOUT"
	ErrTypeInternal   ErrorType = "INTERNAL"
)

// AppError wraps a cause with its type and some context for the problem body
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds key to the problem body extensions. Context of 5xx errors
// is never rendered.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewParsingError wraps a reader failure on an uploaded file
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError wraps a session store failure
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// Classify maps err to its ErrorType. Sentinel and typed errors of the data
// packages win over an AppError wrapping them.
func Classify(err error) ErrorType {
	var missing *dataprocessing.MissingColumnError
	var inconsistent *dataprocessing.InconsistentAttributeError
	var appErr *AppError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &missing):
		return ErrTypeSchema
	case errors.Is(err, dataprocessing.ErrEmptyTable):
		return ErrTypeParsing
	case errors.As(err, &inconsistent),
		errors.Is(err, analytics.ErrUnknownLevel),
		errors.Is(err, analytics.ErrYearOutOfRange):
		return ErrTypeValidation
	case errors.Is(err, anomaly.ErrModelFit):
		return ErrTypeModelFit
	case errors.Is(err, sessions.ErrNotFound):
		return ErrTypeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrTypeTimeout
	case errors.As(err, &appErr):
		return appErr.Type
	}
	return ErrTypeInternal
}
