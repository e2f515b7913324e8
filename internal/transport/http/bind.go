package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "attendx/internal/errors"
	api "attendx/pkg/contracts/api/v1"
)

func bindUpload(r *http.Request) api.UploadPath {
	return api.UploadPath{UploadID: chi.URLParam(r, "id")}
}

// bindCell reads the cell selector from the URL and query string. The
// level is upper-cased so ug and UG select the same cell.
func bindCell(r *http.Request) (api.CellQuery, error) {
	q := r.URL.Query()
	cell := api.CellQuery{
		UploadPath: bindUpload(r),
		Level:      strings.ToUpper(strings.TrimSpace(q.Get("level"))),
	}
	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return cell, apierrors.ErrValidation("year", "year must be an integer")
		}
		cell.Year = &year
	}
	return cell, nil
}

func bindAtRisk(r *http.Request) (api.AtRiskQuery, error) {
	cell, err := bindCell(r)
	return api.AtRiskQuery{
		CellQuery: cell,
		Course:    strings.TrimSpace(r.URL.Query().Get("course")),
	}, err
}

func bindExport(r *http.Request) (api.ExportQuery, error) {
	query, err := bindAtRisk(r)
	return api.ExportQuery{
		AtRiskQuery: query,
		Format:      strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))),
	}, err
}

func bindLevel(r *http.Request) api.LevelPath {
	return api.LevelPath{
		UploadPath: bindUpload(r),
		Level:      strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "level"))),
	}
}
