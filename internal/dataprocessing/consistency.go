package dataprocessing

import (
	"errors"
	"fmt"
	"strconv"

	"attendx/pkg/contracts/domain"
)

// ErrInconsistentAttribute is wrapped by InconsistentAttributeError
var ErrInconsistentAttribute = errors.New("inconsistent per-user attribute")

// InconsistentAttributeError reports a user whose level, year or course
// changes between quarters.
type InconsistentAttributeError struct {
	User   string
	Column string
	First  string
	Other  string
}

func (e *InconsistentAttributeError) Error() string {
	return fmt.Sprintf("user %s has conflicting %s values %q and %q", e.User, e.Column, e.First, e.Other)
}

func (e *InconsistentAttributeError) Unwrap() error {
	return ErrInconsistentAttribute
}

type userAttributes struct {
	level  domain.LevelOfStudy
	year   float64
	course string
}

// CheckConsistency verifies that Level of Study, Year of Course and Course
// Code are constant for every user. The first conflict found in record order
// is returned.
func CheckConsistency(records []domain.StudentRecord) error {
	seen := make(map[string]userAttributes)
	for _, r := range records {
		first, ok := seen[r.User]
		if !ok {
			seen[r.User] = userAttributes{level: r.LevelOfStudy, year: r.YearOfCourse, course: r.CourseCode}
			continue
		}
		switch {
		case first.level != r.LevelOfStudy:
			return &InconsistentAttributeError{User: r.User, Column: domain.ColumnLevelOfStudy, First: string(first.level), Other: string(r.LevelOfStudy)}
		case first.year != r.YearOfCourse:
			return &InconsistentAttributeError{User: r.User, Column: domain.ColumnYearOfCourse, First: formatYear(first.year), Other: formatYear(r.YearOfCourse)}
		case first.course != r.CourseCode:
			return &InconsistentAttributeError{User: r.User, Column: domain.ColumnCourseCode, First: first.course, Other: r.CourseCode}
		}
	}
	return nil
}

func formatYear(y float64) string {
	return strconv.FormatFloat(y, 'f', -1, 64)
}
