package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"attendx/internal/analytics"
	"attendx/internal/anomaly"
	"attendx/internal/dataprocessing"
	"attendx/internal/sessions"
	"attendx/internal/validation"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeUploadNotFound = "/errors/upload/not-found"
	TypeUploadInvalid  = "/errors/upload/invalid"
	TypeSchema         = "/errors/data/schema"
	TypeParsing        = "/errors/data/parsing"
	TypeConsistency    = "/errors/data/consistency"
	TypeModelFit       = "/errors/data/model-fit"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("type", problem.Type),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem.WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			path,
		)
	}

	var problem *ProblemDetails
	if errors.As(err, &problem) {
		out := *problem
		out.Extensions = maps.Clone(problem.Extensions)
		if out.Instance == "" {
			out.Instance = path
		}
		return &out
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	if p := dataErrorToProblem(err, path); p != nil {
		return p
	}
	if p := uploadErrorToProblem(err, path); p != nil {
		return p
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorToProblem(appErr, path)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		path,
	)
}

// dataErrorToProblem maps the errors raised while computing statistics
func dataErrorToProblem(err error, path string) *ProblemDetails {
	var missing *dataprocessing.MissingColumnError
	var inconsistent *dataprocessing.InconsistentAttributeError

	switch {
	case errors.As(err, &missing):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeSchema,
			"Missing Column",
			fmt.Sprintf("The uploaded data has no %q column", missing.Column),
			path,
		).WithExtension("column", missing.Column)

	case errors.Is(err, dataprocessing.ErrEmptyTable):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeParsing,
			"Empty Table",
			err.Error(),
			path,
		)

	case errors.As(err, &inconsistent):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeConsistency,
			"Inconsistent Student Attribute",
			err.Error(),
			path,
		).WithExtension("user", inconsistent.User).WithExtension("column", inconsistent.Column)

	case errors.Is(err, anomaly.ErrModelFit):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeModelFit,
			"Model Fit Failed",
			err.Error(),
			path,
		)

	case errors.Is(err, analytics.ErrUnknownLevel), errors.Is(err, analytics.ErrYearOutOfRange):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Invalid Parameter",
			err.Error(),
			path,
		)
	}
	return nil
}

// uploadErrorToProblem maps upload and session errors
func uploadErrorToProblem(err error, path string) *ProblemDetails {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeUploadNotFound,
			"Upload Not Found",
			"The upload does not exist or its session has expired",
			path,
		)

	case errors.Is(err, validation.ErrFileTooLarge), errors.As(err, &maxBytes):
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Payload Too Large",
			"The uploaded file exceeds the maximum allowed size",
			path,
		)

	case errors.Is(err, dataprocessing.ErrUnsupportedFormat),
		errors.Is(err, validation.ErrTemporaryFile),
		errors.Is(err, validation.ErrSignatureMismatch):
		return NewProblemDetails(
			http.StatusUnsupportedMediaType,
			TypeUnsupportedMedia,
			"Unsupported Media Type",
			err.Error(),
			path,
		)

	case errors.Is(err, validation.ErrEmptyFile):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeUploadInvalid,
			"Empty Upload",
			err.Error(),
			path,
		)
	}
	return nil
}

func appErrorToProblem(appErr *AppError, path string) *ProblemDetails {
	status, problemType, title := http.StatusInternalServerError, TypeInternal, "Internal Server Error"
	switch appErr.Type {
	case ErrTypeSchema:
		status, problemType, title = http.StatusUnprocessableEntity, TypeSchema, "Schema Error"
	case ErrTypeParsing:
		status, problemType, title = http.StatusUnprocessableEntity, TypeParsing, "Unreadable Upload"
	case ErrTypeModelFit:
		status, problemType, title = http.StatusUnprocessableEntity, TypeModelFit, "Model Fit Failed"
	case ErrTypeValidation:
		status, problemType, title = http.StatusBadRequest, TypeValidation, "Validation Failed"
	case ErrTypeNotFound:
		status, problemType, title = http.StatusNotFound, TypeUploadNotFound, "Upload Not Found"
	}

	detail := appErr.Message
	if status == http.StatusInternalServerError {
		detail = "An unexpected error occurred while processing your request"
	}
	problem := NewProblemDetails(status, problemType, title, detail, path)
	if status != http.StatusInternalServerError {
		for k, v := range appErr.Context {
			problem.WithExtension(k, v)
		}
	}
	return problem
}

// apiErrorToProblem keeps the status of the APIError and exposes its code
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeValidationFailed, CodeInvalidRequest, CodeMissingFile, CodeMissingContentType:
		problemType = TypeValidation
	case CodeUnsupportedMediaType:
		problemType = TypeUnsupportedMedia
	case CodeRateLimitExceeded:
		problemType = TypeRateLimit
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", string(apiErr.ErrorCode))

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
