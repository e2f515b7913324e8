package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "attendx/internal/errors"
	mw "attendx/internal/middleware"
	api "attendx/pkg/contracts/api/v1"
)

const (
	// UploadField is the multipart field carrying the workbook
	UploadField = "file"

	// multipart framing on top of the file itself
	multipartOverhead = 64 << 10
	// parts above this size spill to temporary files
	multipartMemory = 8 << 20
)

// UploadHandler handles upload session requests with RFC 7807 errors
type UploadHandler struct {
	service      UploadServiceInterface
	validator    Validator
	maxBytes     int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewUploadHandler creates an upload handler. maxBytes bounds the file size.
func NewUploadHandler(service UploadServiceInterface, validator Validator, maxBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *UploadHandler {
	return &UploadHandler{
		service:      service,
		validator:    validator,
		maxBytes:     maxBytes,
		logger:       logger.With(slog.String("component", "upload_handler")),
		errorHandler: errorHandler,
	}
}

// Upload handles POST /api/uploads
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrMissingFile)
		return
	}
	defer file.Close()

	form := api.UploadForm{Filename: header.Filename, Size: header.Size}
	if err := h.validator.Validate(form); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "receiving upload",
		slog.String("request_id", reqID),
		slog.String("filename", form.Filename),
		slog.Int64("size", form.Size),
	)

	resp, err := h.service.Upload(r.Context(), form.Filename, form.Size, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/uploads/"+resp.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// GetUpload handles GET /api/uploads/{id}
func (h *UploadHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	params := bindUpload(r)
	if err := h.validator.Validate(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	info, err := h.service.Info(r.Context(), params.UploadID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// DeleteUpload handles DELETE /api/uploads/{id}
func (h *UploadHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	params := bindUpload(r)
	if err := h.validator.Validate(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), params.UploadID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// Register adds the session routes to a router mounted at /api/uploads.
// Per-upload statistics are registered by the analytics handler under the
// same {id} route.
func (h *UploadHandler) Register(r chi.Router) {
	r.With(mw.ContentTypeValidator(h.errorHandler, "multipart/form-data")).Post("/", h.Upload)
	r.Get("/{id}", h.GetUpload)
	r.Delete("/{id}", h.DeleteUpload)
}
