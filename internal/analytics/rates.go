package analytics

import (
	"attendx/internal/dataprocessing"
	"attendx/pkg/contracts/domain"
)

// AttendanceRate averages attendance per quarter for each course of a
// (level, year) cell, then averages the quarterly means. Courses without
// matching rows are absent from the result.
func AttendanceRate(t *dataprocessing.Table, level domain.LevelOfStudy, year int) (*domain.AttendanceByQuarter, error) {
	owned, err := dataprocessing.Validate(t, dataprocessing.AttendanceColumns...)
	if err != nil {
		return nil, err
	}
	if _, err := CheckCell(level, year); err != nil {
		return nil, err
	}

	frame, report := dataprocessing.Coerce(owned,
		domain.ColumnAttendance,
		domain.ColumnYearOfCourse,
		domain.ColumnQuarter,
	)
	logDropped("attendance_rate", report)
	// scale is detected on the whole upload so every cell agrees
	frame.NormalizeAttendance()

	byCourse := make(map[string]map[int][]float64)
	for _, r := range frame.ForCell(level, year).Records {
		if byCourse[r.CourseCode] == nil {
			byCourse[r.CourseCode] = make(map[int][]float64)
		}
		q := int(r.Quarter)
		byCourse[r.CourseCode][q] = append(byCourse[r.CourseCode][q], r.Attendance)
	}

	out := &domain.AttendanceByQuarter{
		LevelOfStudy: level,
		YearOfCourse: year,
		Courses:      make(map[string]domain.CourseAttendance, len(byCourse)),
	}
	for _, course := range sortedKeys(byCourse) {
		quarters := byCourse[course]
		ca := domain.CourseAttendance{ByQuarter: make(map[int]float64, len(quarters))}
		means := make([]float64, 0, len(quarters))
		for q := domain.FirstQuarter; q <= domain.LastQuarter; q++ {
			values, ok := quarters[q]
			if !ok {
				continue
			}
			m := mean(values)
			ca.ByQuarter[q] = m
			means = append(means, m)
		}
		ca.AverageAttendance = mean(means)
		out.Courses[course] = ca
	}

	return out, nil
}

// SubmissionRate computes sum(Submitted)/sum(Assessments)*100 per course of
// a (level, year) cell, rounded to two decimals. A course whose assessments
// sum to zero has rate 0.
func SubmissionRate(t *dataprocessing.Table, level domain.LevelOfStudy, year int) (*domain.SubmissionByCourse, error) {
	owned, err := dataprocessing.Validate(t, dataprocessing.SubmissionColumns...)
	if err != nil {
		return nil, err
	}
	if _, err := CheckCell(level, year); err != nil {
		return nil, err
	}

	frame, report := dataprocessing.Coerce(owned,
		domain.ColumnSubmitted,
		domain.ColumnAssessments,
		domain.ColumnYearOfCourse,
		domain.ColumnQuarter,
	)
	logDropped("submission_rate", report)

	type sums struct{ submitted, assessments []float64 }
	byCourse := make(map[string]*sums)
	for _, r := range frame.ForCell(level, year).Records {
		s := byCourse[r.CourseCode]
		if s == nil {
			s = &sums{}
			byCourse[r.CourseCode] = s
		}
		s.submitted = append(s.submitted, r.Submitted)
		s.assessments = append(s.assessments, r.Assessments)
	}

	out := &domain.SubmissionByCourse{
		LevelOfStudy: level,
		YearOfCourse: year,
		Courses:      make(map[string]domain.CourseSubmission, len(byCourse)),
	}
	for course, s := range byCourse {
		out.Courses[course] = domain.CourseSubmission{
			CourseCode:            course,
			YearOfCourse:          year,
			AverageSubmissionRate: Round2(ratePercent(s.submitted, s.assessments)),
		}
	}

	return out, nil
}
