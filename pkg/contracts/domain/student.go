package domain

import (
	"fmt"
	"math"
)

// Column names of the attendance workbook. Other columns are ignored.
const (
	ColumnUser         = "User"
	ColumnLevelOfStudy = "Level of Study"
	ColumnYearOfCourse = "Year of Course"
	ColumnCourseCode   = "Course Code"
	ColumnQuarter      = "Quarter"
	ColumnAttendance   = "% Attendance"
	ColumnSubmitted    = "Submitted"
	ColumnAssessments  = "Assessments"
)

// Columns lists every column of the input contract in workbook order.
var Columns = []string{
	ColumnUser,
	ColumnLevelOfStudy,
	ColumnYearOfCourse,
	ColumnCourseCode,
	ColumnQuarter,
	ColumnAttendance,
	ColumnSubmitted,
	ColumnAssessments,
}

// LevelOfStudy identifies the programme level of a student
type LevelOfStudy string

const (
	// LevelUG is undergraduate study
	LevelUG LevelOfStudy = "UG"
	// LevelPGT is postgraduate taught study
	LevelPGT LevelOfStudy = "PGT"
)

// Levels lists the supported levels in display order
var Levels = []LevelOfStudy{LevelUG, LevelPGT}

// ParseLevelOfStudy accepts the level in any letter case
func ParseLevelOfStudy(s string) (LevelOfStudy, error) {
	switch LevelOfStudy(upper(s)) {
	case LevelUG:
		return LevelUG, nil
	case LevelPGT:
		return LevelPGT, nil
	}
	return "", fmt.Errorf("unknown level of study %q", s)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// Quarters are the reporting periods of an academic year.
const (
	FirstQuarter = 1
	LastQuarter  = 4
)

// QuartersPerYear is the number of reporting periods in a full academic year
const QuartersPerYear = LastQuarter - FirstQuarter + 1

// StudentRecord is one row of the workbook: one student, one course, one quarter.
// Numeric fields hold NaN when the cell was missing or unparseable.
type StudentRecord struct {
	User         string       `json:"user"`
	LevelOfStudy LevelOfStudy `json:"level_of_study"`
	YearOfCourse float64      `json:"year_of_course"`
	CourseCode   string       `json:"course_code"`
	Quarter      float64      `json:"quarter"`
	Attendance   float64      `json:"attendance"`
	Submitted    float64      `json:"submitted"`
	Assessments  float64      `json:"assessments"`
}

// Field returns the numeric value stored for a column, or NaN for
// non-numeric and unknown columns.
func (r StudentRecord) Field(column string) float64 {
	switch column {
	case ColumnYearOfCourse:
		return r.YearOfCourse
	case ColumnQuarter:
		return r.Quarter
	case ColumnAttendance:
		return r.Attendance
	case ColumnSubmitted:
		return r.Submitted
	case ColumnAssessments:
		return r.Assessments
	}
	return math.NaN()
}

// SetField stores a numeric value for a column. Non-numeric columns are ignored.
func (r *StudentRecord) SetField(column string, v float64) {
	switch column {
	case ColumnYearOfCourse:
		r.YearOfCourse = v
	case ColumnQuarter:
		r.Quarter = v
	case ColumnAttendance:
		r.Attendance = v
	case ColumnSubmitted:
		r.Submitted = v
	case ColumnAssessments:
		r.Assessments = v
	}
}

// InQuarter reports whether the record belongs to quarter q
func (r StudentRecord) InQuarter(q int) bool {
	return r.Quarter == float64(q)
}

// InYear reports whether the record belongs to year of course y
func (r StudentRecord) InYear(y int) bool {
	return r.YearOfCourse == float64(y)
}
