package analytics

import (
	"log/slog"

	"attendx/internal/dataprocessing"
	"attendx/pkg/contracts/domain"
)

// Summary computes the headline KPIs of an upload. Attendance is reported on
// the 0-100 scale whatever scale the upload uses.
func Summary(t *dataprocessing.Table) (*domain.SummaryStatistics, error) {
	owned, err := dataprocessing.Validate(t, dataprocessing.SummaryColumns...)
	if err != nil {
		return nil, err
	}

	frame, report := dataprocessing.Coerce(owned,
		domain.ColumnAttendance,
		domain.ColumnSubmitted,
		domain.ColumnAssessments,
		domain.ColumnQuarter,
	)
	logDropped("summary", report)
	frame.NormalizeAttendance()

	var (
		current     = distinct{}
		enrolled    = distinct{}
		active      = distinct{}
		attendance  = make([]float64, 0, len(frame.Records))
		submitted   = make([]float64, 0, len(frame.Records))
		assessments = make([]float64, 0, len(frame.Records))
		byCourse    = make(map[string][]float64)
	)
	for _, r := range frame.Records {
		enrolled.add(r.User)
		if r.InQuarter(domain.LastQuarter) {
			current.add(r.User)
		}
		if r.Attendance > 0 {
			active.add(r.User)
		}
		attendance = append(attendance, r.Attendance)
		submitted = append(submitted, r.Submitted)
		assessments = append(assessments, r.Assessments)
		byCourse[r.CourseCode] = append(byCourse[r.CourseCode], r.Attendance)
	}

	stats := &domain.SummaryStatistics{
		TotalStudents:         len(current),
		AverageAttendance:     mean(attendance),
		AverageSubmissionRate: ratePercent(submitted, assessments),
	}
	if len(enrolled) > 0 {
		stats.DropoutRate = 100 * (1 - float64(len(active))/float64(len(enrolled)))
	}

	// ties resolve to the lexicographically smallest course
	for _, course := range sortedKeys(byCourse) {
		m := mean(byCourse[course])
		if stats.CourseWithHighestAttendance == nil || m > stats.CourseWithHighestAttendance.Attendance {
			stats.CourseWithHighestAttendance = &domain.CourseMean{CourseCode: course, Attendance: m}
		}
		if stats.CourseWithLowestAttendance == nil || m < stats.CourseWithLowestAttendance.Attendance {
			stats.CourseWithLowestAttendance = &domain.CourseMean{CourseCode: course, Attendance: m}
		}
	}

	return stats, nil
}

func logDropped(operation string, report dataprocessing.CoercionReport) {
	if report.Dropped == 0 {
		return
	}
	slog.Debug("Dropped rows with unparseable values",
		slog.String("operation", operation),
		slog.Int("rows", report.Rows),
		slog.Int("dropped", report.Dropped),
		slog.Any("columns", report.Targets))
}
