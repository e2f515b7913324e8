package analytics

import (
	"attendx/internal/dataprocessing"
	"attendx/pkg/contracts/domain"
)

// Enrolment counts the quarter 4 students of one level of study per course
// and per (course, year of course). The year grid is dense: every year of
// the level is present with one count per course, zero when empty.
func Enrolment(t *dataprocessing.Table, level domain.LevelOfStudy) (*domain.EnrolmentBreakdown, error) {
	owned, err := dataprocessing.Validate(t, dataprocessing.EnrolmentColumns...)
	if err != nil {
		return nil, err
	}
	profile, err := Profile(level)
	if err != nil {
		return nil, err
	}

	frame, report := dataprocessing.Coerce(owned, domain.ColumnYearOfCourse, domain.ColumnQuarter)
	logDropped("enrolment", report)

	current := frame.Filter(func(r domain.StudentRecord) bool {
		return r.LevelOfStudy == level && r.InQuarter(domain.LastQuarter)
	})

	perCourse := make(map[string]distinct)
	perCell := make(map[string]map[int]distinct)
	for _, r := range current.Records {
		if perCourse[r.CourseCode] == nil {
			perCourse[r.CourseCode] = distinct{}
			perCell[r.CourseCode] = make(map[int]distinct)
		}
		perCourse[r.CourseCode].add(r.User)

		year := int(r.YearOfCourse)
		if perCell[r.CourseCode][year] == nil {
			perCell[r.CourseCode][year] = distinct{}
		}
		perCell[r.CourseCode][year].add(r.User)
	}

	courses := sortedKeys(perCourse)
	out := &domain.EnrolmentBreakdown{
		LevelOfStudy:      level,
		Courses:           courses,
		StudentsPerCourse: make(map[string]int, len(courses)),
		Years:             profile.Years(),
		YearCounts:        make(map[int][]int, len(profile.Years())),
	}
	for _, course := range courses {
		out.StudentsPerCourse[course] = len(perCourse[course])
	}
	for _, year := range out.Years {
		counts := make([]int, len(courses))
		for i, course := range courses {
			counts[i] = len(perCell[course][year])
		}
		out.YearCounts[year] = counts
	}

	return out, nil
}
