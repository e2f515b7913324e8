package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"attendx/internal/analytics"
	apierrors "attendx/internal/errors"
	"attendx/internal/exporter"
	api "attendx/pkg/contracts/api/v1"
	"attendx/pkg/contracts/domain"
)

// AnalyticsHandler serves the statistics of an upload
type AnalyticsHandler struct {
	service      AnalyticsServiceInterface
	validator    Validator
	csv          *exporter.CSVWriter
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalyticsHandler creates an analytics handler
func NewAnalyticsHandler(service AnalyticsServiceInterface, validator Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:      service,
		validator:    validator,
		csv:          exporter.NewCSVWriter(logger),
		logger:       logger.With(slog.String("component", "analytics_handler")),
		errorHandler: errorHandler,
	}
}

// Register adds the per-upload statistic routes to a router mounted at
// /api/uploads
func (h *AnalyticsHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/{id}/summary", h.Summary)
		r.Get("/{id}/enrolment/{level}", h.Enrolment)
		r.Get("/{id}/attendance", h.Attendance)
		r.Get("/{id}/submission", h.Submission)
		r.Get("/{id}/at-risk", h.AtRisk)
		r.Get("/{id}/dashboard", h.Dashboard)
	})
	r.Get("/{id}/at-risk/export", h.ExportAtRisk)
}

// Levels handles GET /api/levels
func (h *AnalyticsHandler) Levels(w http.ResponseWriter, r *http.Request) {
	profiles := analytics.Profiles()
	resp := api.LevelsResponse{Levels: make([]api.LevelOption, 0, len(profiles))}
	for _, p := range profiles {
		resp.Levels = append(resp.Levels, api.LevelOption{
			Level:       p.Level,
			Years:       p.Years(),
			DefaultYear: p.DefaultYear,
		})
	}
	render.JSON(w, r, resp)
}

// Summary handles GET /api/uploads/{id}/summary
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	params := bindUpload(r)
	if err := h.validator.Validate(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	stats, err := h.service.Summary(r.Context(), params.UploadID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// Enrolment handles GET /api/uploads/{id}/enrolment/{level}
func (h *AnalyticsHandler) Enrolment(w http.ResponseWriter, r *http.Request) {
	params := bindLevel(r)
	if err := h.validator.Validate(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	breakdown, err := h.service.Enrolment(r.Context(), params.UploadID, domain.LevelOfStudy(params.Level))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, breakdown)
}

// Attendance handles GET /api/uploads/{id}/attendance?level=&year=
func (h *AnalyticsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	cell, ok := h.cell(w, r)
	if !ok {
		return
	}

	rates, err := h.service.Attendance(r.Context(), cell.UploadID, domain.LevelOfStudy(cell.Level), cell.YearValue())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, rates)
}

// Submission handles GET /api/uploads/{id}/submission?level=&year=
func (h *AnalyticsHandler) Submission(w http.ResponseWriter, r *http.Request) {
	cell, ok := h.cell(w, r)
	if !ok {
		return
	}

	rates, err := h.service.Submission(r.Context(), cell.UploadID, domain.LevelOfStudy(cell.Level), cell.YearValue())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, rates)
}

// AtRisk handles GET /api/uploads/{id}/at-risk?level=&year=&course=
func (h *AnalyticsHandler) AtRisk(w http.ResponseWriter, r *http.Request) {
	query, err := bindAtRisk(r)
	if err == nil {
		err = h.validator.Validate(query)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filter := query.Filter()
	students, err := h.service.AtRisk(r.Context(), query.UploadID, filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.AtRiskResponse{
		Filter:   filter,
		Count:    len(students),
		Students: students,
	})
}

// ExportAtRisk handles GET /api/uploads/{id}/at-risk/export and returns
// the at-risk list as a CSV or Excel attachment
func (h *AnalyticsHandler) ExportAtRisk(w http.ResponseWriter, r *http.Request) {
	query, err := bindExport(r)
	if err == nil {
		err = h.validator.Validate(query)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	format, err := exporter.ParseFormat(query.Format)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", err.Error()))
		return
	}

	filter := query.Filter()
	students, err := h.service.AtRisk(r.Context(), query.UploadID, filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// render fully before the headers go out so a failure still yields a problem
	var buf bytes.Buffer
	if format == exporter.FormatXLSX {
		err = exporter.AtRiskWorkbook(&buf, students)
	} else {
		err = h.csv.AtRiskCSV(&buf, students)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("export at-risk students: %w", err))
		return
	}

	filename := exporter.AtRiskFilename(filter, format)
	h.logger.InfoContext(r.Context(), "at-risk export",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("filename", filename),
		slog.Int("students", len(students)),
	)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Dashboard handles GET /api/uploads/{id}/dashboard
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	params := bindUpload(r)
	if err := h.validator.Validate(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	dash, err := h.service.Dashboard(r.Context(), params.UploadID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(dash.Errors) > 0 {
		h.logger.WarnContext(r.Context(), "dashboard has failed sections",
			slog.String("upload_id", params.UploadID),
			slog.Int("failed", len(dash.Errors)),
		)
	}
	render.JSON(w, r, dash)
}

func (h *AnalyticsHandler) cell(w http.ResponseWriter, r *http.Request) (api.CellQuery, bool) {
	cell, err := bindCell(r)
	if err == nil {
		err = h.validator.Validate(cell)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return cell, false
	}
	return cell, true
}
