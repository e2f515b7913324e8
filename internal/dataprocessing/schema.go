package dataprocessing

import (
	"errors"
	"fmt"

	"attendx/pkg/contracts/domain"
)

// ErrMissingColumn is the sentinel wrapped by MissingColumnError
var ErrMissingColumn = errors.New("missing required column")

// MissingColumnError names the first required column absent from a table
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column: %s", e.Column)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// Required column sets per statistic.
var (
	SummaryColumns = []string{
		domain.ColumnUser,
		domain.ColumnAttendance,
		domain.ColumnSubmitted,
		domain.ColumnAssessments,
		domain.ColumnCourseCode,
		domain.ColumnQuarter,
	}
	EnrolmentColumns = []string{
		domain.ColumnUser,
		domain.ColumnLevelOfStudy,
		domain.ColumnYearOfCourse,
		domain.ColumnCourseCode,
		domain.ColumnQuarter,
	}
	AttendanceColumns = []string{
		domain.ColumnAttendance,
		domain.ColumnLevelOfStudy,
		domain.ColumnYearOfCourse,
		domain.ColumnCourseCode,
		domain.ColumnQuarter,
	}
	SubmissionColumns = []string{
		domain.ColumnSubmitted,
		domain.ColumnAssessments,
		domain.ColumnLevelOfStudy,
		domain.ColumnYearOfCourse,
		domain.ColumnCourseCode,
		domain.ColumnQuarter,
	}
	AtRiskColumns = []string{
		domain.ColumnUser,
		domain.ColumnAttendance,
		domain.ColumnSubmitted,
		domain.ColumnAssessments,
		domain.ColumnQuarter,
		domain.ColumnYearOfCourse,
		domain.ColumnCourseCode,
		domain.ColumnLevelOfStudy,
	}
)

// Validate checks that every required column is present, in the order given,
// and returns an owned copy of the table. Nothing is read from the rows
// before the schema check passes.
func Validate(t *Table, required ...string) (*Table, error) {
	if t == nil {
		return nil, ErrEmptyTable
	}
	for _, col := range required {
		if !t.HasColumn(col) {
			return nil, &MissingColumnError{Column: col}
		}
	}
	return t.Clone(), nil
}
