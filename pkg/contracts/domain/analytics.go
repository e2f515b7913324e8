package domain

import (
	"fmt"
	"time"
)

// CourseMean pairs a course with its mean attendance percentage
type CourseMean struct {
	CourseCode string  `json:"course_code"`
	Attendance float64 `json:"attendance"`
}

// SummaryStatistics holds the headline KPIs of an upload
type SummaryStatistics struct {
	TotalStudents               int         `json:"total_students"`
	DropoutRate                 float64     `json:"dropout_rate"`
	AverageAttendance           float64     `json:"average_attendance"`
	AverageSubmissionRate       float64     `json:"average_submission_rate"`
	CourseWithHighestAttendance *CourseMean `json:"course_with_highest_attendance,omitempty"`
	CourseWithLowestAttendance  *CourseMean `json:"course_with_lowest_attendance,omitempty"`
}

// EnrolmentBreakdown is the quarter 4 enrolment snapshot for one level of study.
// YearCounts[year][i] is the number of students of Courses[i] in that year;
// every year of the level is present even when all counts are zero.
type EnrolmentBreakdown struct {
	LevelOfStudy      LevelOfStudy   `json:"level_of_study"`
	Courses           []string       `json:"courses"`
	StudentsPerCourse map[string]int `json:"students_per_course"`
	Years             []int          `json:"years"`
	YearCounts        map[int][]int  `json:"year_counts"`
}

// CourseAttendance is the quarterly attendance profile of one course
type CourseAttendance struct {
	ByQuarter         map[int]float64 `json:"attendance_by_quarter"`
	AverageAttendance float64         `json:"average_attendance"`
}

// AttendanceByQuarter is the attendance rate result for a (level, year) cell.
// Courses without matching rows are absent.
type AttendanceByQuarter struct {
	LevelOfStudy LevelOfStudy                `json:"level_of_study"`
	YearOfCourse int                         `json:"year_of_course"`
	Courses      map[string]CourseAttendance `json:"courses"`
}

// CourseSubmission is the submission rate of one course
type CourseSubmission struct {
	CourseCode            string  `json:"course_code"`
	YearOfCourse          int     `json:"year_of_course"`
	AverageSubmissionRate float64 `json:"average_submission_rate"`
}

// SubmissionByCourse is the submission rate result for a (level, year) cell
type SubmissionByCourse struct {
	LevelOfStudy LevelOfStudy                `json:"level_of_study"`
	YearOfCourse int                         `json:"year_of_course"`
	Courses      map[string]CourseSubmission `json:"courses"`
}

// AtRiskFilter selects which at-risk students are returned
type AtRiskFilter struct {
	LevelOfStudy LevelOfStudy `json:"level_of_study"`
	YearOfCourse int          `json:"year_of_course"`
	CourseCode   string       `json:"course_code,omitempty"`
}

// AtRiskStudent is a student aggregated across the four quarters and
// flagged as anomalous with below-average attendance and submission.
type AtRiskStudent struct {
	User                 string       `json:"user"`
	LevelOfStudy         LevelOfStudy `json:"level_of_study"`
	YearOfCourse         int          `json:"year_of_course"`
	CourseCode           string       `json:"course_code"`
	Attendance           float64      `json:"attendance"`
	SubmissionRate       float64      `json:"submission_rate"`
	AttendanceScaled     float64      `json:"attendance_scaled"`
	SubmissionRateScaled float64      `json:"submission_rate_scaled"`
	AnomalyScore         float64      `json:"anomaly_score"`
}

// SectionError reports a dashboard section that could not be computed
type SectionError struct {
	Section string `json:"section"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CellKey names a (level, year) cell of the dashboard, e.g. "UG/1"
type CellKey string

// NewCellKey builds the key of a (level, year) cell
func NewCellKey(level LevelOfStudy, year int) CellKey {
	return CellKey(fmt.Sprintf("%s/%d", level, year))
}

// Dashboard bundles every statistic of an upload. Sections that failed are
// omitted and reported in Errors.
type Dashboard struct {
	UploadID    string                               `json:"upload_id"`
	GeneratedAt time.Time                            `json:"generated_at"`
	Summary     *SummaryStatistics                   `json:"summary,omitempty"`
	Enrolment   map[LevelOfStudy]*EnrolmentBreakdown `json:"enrolment"`
	Attendance  map[CellKey]*AttendanceByQuarter     `json:"attendance"`
	Submission  map[CellKey]*SubmissionByCourse      `json:"submission"`
	AtRisk      map[CellKey][]AtRiskStudent          `json:"at_risk"`
	Errors      []SectionError                       `json:"errors,omitempty"`
}

// UploadInfo describes a stored upload session
type UploadInfo struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	UploadedAt time.Time `json:"uploaded_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
