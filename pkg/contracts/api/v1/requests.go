// Package api contains the HTTP contract of attendx.
// Version v1 represents the current stable API version.
package api

import (
	"attendx/pkg/contracts/domain"
)

// UploadPath identifies a stored upload
type UploadPath struct {
	UploadID string `json:"upload_id" param:"id" validate:"required,uuid"`
}

// LevelPath selects a level of study from the URL
type LevelPath struct {
	UploadPath
	Level string `json:"level" param:"level" validate:"required,oneof=UG PGT"`
}

// CellQuery selects a (level, year) cell. Level is matched case-insensitively
// and upper-cased before validation.
type CellQuery struct {
	UploadPath
	Level string `json:"level" query:"level" validate:"required,oneof=UG PGT"`
	Year  *int   `json:"year" query:"year" validate:"required,min=0,max=5"`
}

// AtRiskQuery narrows the at-risk list to a cell and optionally a course
type AtRiskQuery struct {
	CellQuery
	Course string `json:"course,omitempty" query:"course" validate:"omitempty,max=64"`
}

// ExportQuery selects the file format of an at-risk export
type ExportQuery struct {
	AtRiskQuery
	Format string `json:"format" query:"format" validate:"omitempty,oneof=csv xlsx"`
}

// Filter converts the query into the detector filter
func (q AtRiskQuery) Filter() domain.AtRiskFilter {
	year := 0
	if q.Year != nil {
		year = *q.Year
	}
	return domain.AtRiskFilter{
		LevelOfStudy: domain.LevelOfStudy(q.Level),
		YearOfCourse: year,
		CourseCode:   q.Course,
	}
}

// YearValue returns the requested year, or -1 when absent
func (q CellQuery) YearValue() int {
	if q.Year == nil {
		return -1
	}
	return *q.Year
}

// UploadForm describes the multipart file part of an upload
type UploadForm struct {
	Filename string `json:"filename" validate:"required,filename"`
	Size     int64  `json:"size" validate:"min=1"`
}
