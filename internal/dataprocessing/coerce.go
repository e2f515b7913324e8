package dataprocessing

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"

	"attendx/pkg/contracts/domain"
)

// AttendanceScale records whether % Attendance has been brought to 0-100
type AttendanceScale int

const (
	// ScaleRaw means attendance is as uploaded, fraction or percentage
	ScaleRaw AttendanceScale = iota
	// ScalePercent means attendance is on the 0-100 scale
	ScalePercent
)

func (s AttendanceScale) String() string {
	if s == ScalePercent {
		return "percent"
	}
	return "raw"
}

// CoercionReport counts rows dropped because a target cell did not parse
type CoercionReport struct {
	Rows    int      `json:"rows"`
	Kept    int      `json:"kept"`
	Dropped int      `json:"dropped"`
	Targets []string `json:"targets"`
}

// Frame is a typed view of a table
type Frame struct {
	Records []domain.StudentRecord
	Scale   AttendanceScale
}

// ParseNumber converts a spreadsheet cell to a float. Surrounding space,
// thousands separators and a trailing percent sign are tolerated. Anything
// else returns NaN.
func ParseNumber(cell string) float64 {
	s := strings.TrimSpace(cell)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func parseQuarter(cell string) float64 {
	q := ParseNumber(cell)
	if q != math.Trunc(q) || q < domain.FirstQuarter || q > domain.LastQuarter {
		return math.NaN()
	}
	return q
}

func parseYear(cell string) float64 {
	y := ParseNumber(cell)
	if y != math.Trunc(y) {
		return math.NaN()
	}
	return y
}

// Coerce reads the contract columns of t into typed records. Absent columns
// are left empty (NaN for numbers). Rows with NaN in any of targets are
// dropped after coercion; the returned records are in canonical order.
func Coerce(t *Table, targets ...string) (*Frame, CoercionReport) {
	n := t.Len()
	report := CoercionReport{Rows: n, Targets: append([]string(nil), targets...)}

	cols := make(map[string][]string, len(domain.Columns))
	for _, name := range domain.Columns {
		cols[name] = t.Column(name)
	}
	cell := func(name string, i int) string {
		c := cols[name]
		if c == nil {
			return ""
		}
		return c[i]
	}

	records := make([]domain.StudentRecord, 0, n)
	for i := 0; i < n; i++ {
		r := domain.StudentRecord{
			User:         strings.TrimSpace(cell(domain.ColumnUser, i)),
			LevelOfStudy: domain.LevelOfStudy(strings.TrimSpace(cell(domain.ColumnLevelOfStudy, i))),
			YearOfCourse: parseYear(cell(domain.ColumnYearOfCourse, i)),
			CourseCode:   strings.TrimSpace(cell(domain.ColumnCourseCode, i)),
			Quarter:      parseQuarter(cell(domain.ColumnQuarter, i)),
			Attendance:   ParseNumber(cell(domain.ColumnAttendance, i)),
			Submitted:    ParseNumber(cell(domain.ColumnSubmitted, i)),
			Assessments:  ParseNumber(cell(domain.ColumnAssessments, i)),
		}
		if hasMissing(r, targets) {
			report.Dropped++
			continue
		}
		records = append(records, r)
	}
	report.Kept = len(records)

	f := &Frame{Records: records, Scale: ScaleRaw}
	f.Sort()
	return f, report
}

func hasMissing(r domain.StudentRecord, targets []string) bool {
	for _, col := range targets {
		if math.IsNaN(r.Field(col)) {
			return true
		}
	}
	return false
}

// NormalizeAttendance converts fractional attendance to percentages when the
// largest observed value is at most 1. It runs once per frame; later calls
// return false without touching the data.
func (f *Frame) NormalizeAttendance() bool {
	if f.Scale == ScalePercent {
		return false
	}
	f.Scale = ScalePercent

	maxSeen := math.Inf(-1)
	for _, r := range f.Records {
		if !math.IsNaN(r.Attendance) && r.Attendance > maxSeen {
			maxSeen = r.Attendance
		}
	}
	if math.IsInf(maxSeen, -1) || maxSeen > 1 {
		return false
	}
	for i := range f.Records {
		f.Records[i].Attendance *= 100
	}
	return true
}

// Filter returns a frame holding the records that satisfy keep
func (f *Frame) Filter(keep func(domain.StudentRecord) bool) *Frame {
	out := &Frame{Scale: f.Scale, Records: make([]domain.StudentRecord, 0, len(f.Records))}
	for _, r := range f.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// ForCell keeps the records of one level of study and year of course
func (f *Frame) ForCell(level domain.LevelOfStudy, year int) *Frame {
	return f.Filter(func(r domain.StudentRecord) bool {
		return r.LevelOfStudy == level && r.InYear(year)
	})
}

// Sort puts records in canonical order so float reductions do not depend on
// the row order of the upload.
func (f *Frame) Sort() {
	slices.SortStableFunc(f.Records, compareRecords)
}

func compareRecords(a, b domain.StudentRecord) int {
	return cmp.Or(
		cmp.Compare(a.User, b.User),
		cmp.Compare(a.CourseCode, b.CourseCode),
		cmp.Compare(a.LevelOfStudy, b.LevelOfStudy),
		cmp.Compare(a.YearOfCourse, b.YearOfCourse),
		cmp.Compare(a.Quarter, b.Quarter),
		cmp.Compare(a.Attendance, b.Attendance),
		cmp.Compare(a.Submitted, b.Submitted),
		cmp.Compare(a.Assessments, b.Assessments),
	)
}
