package api

import (
	"time"

	"attendx/pkg/contracts/domain"
)

// UploadResponse is returned when an upload has been stored
type UploadResponse struct {
	domain.UploadInfo
	Format      string `json:"format"`
	DroppedRows int    `json:"dropped_rows"`
}

// LevelsResponse lists the level profiles used to populate year pickers
type LevelsResponse struct {
	Levels []LevelOption `json:"levels"`
}

// LevelOption is one level of study and its selectable years
type LevelOption struct {
	Level       domain.LevelOfStudy `json:"level_of_study"`
	Years       []int               `json:"years"`
	DefaultYear int                 `json:"default_year"`
}

// AtRiskResponse wraps the at-risk list of a cell
type AtRiskResponse struct {
	Filter   domain.AtRiskFilter    `json:"filter"`
	Count    int                    `json:"count"`
	Students []domain.AtRiskStudent `json:"students"`
}

// HealthResponse is the body of the health endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
