package testutil

import (
	"fmt"
	"slices"
	"strings"
)

// AttendanceColumns is the header of an attendance export in file order
var AttendanceColumns = []string{
	"User", "Level of Study", "Year of Course", "Course Code", "Quarter",
	"% Attendance", "Submitted", "Assessments",
}

// Student is one learner of a fixture cohort. Attendance is a fraction and
// is repeated for every quarter.
type Student struct {
	User, Level, Year, Course string
	Attendance                float64
	Submitted, Assessments    int
}

// Cohort returns seven engaged students and one, "low", who barely attends
// or submits. Six of them share the UG year 1 cell.
func Cohort() []Student {
	return []Student{
		{"s1", "UG", "1", "C1", 0.90, 9, 10},
		{"s2", "UG", "1", "C1", 0.88, 9, 10},
		{"s3", "UG", "1", "C1", 0.92, 10, 10},
		{"s4", "UG", "1", "C2", 0.89, 9, 10},
		{"s5", "UG", "1", "C2", 0.91, 9, 10},
		{"s6", "UG", "2", "C2", 0.90, 8, 10},
		{"s7", "PGT", "1", "P1", 0.87, 9, 10},
		{"low", "UG", "1", "C1", 0.10, 1, 10},
	}
}

// AttendanceCSV renders students over quarters 1 to 4. Columns named in drop
// are left out of both header and rows.
func AttendanceCSV(students []Student, drop ...string) string {
	var keep []int
	var header []string
	for i, c := range AttendanceColumns {
		if !slices.Contains(drop, c) {
			keep = append(keep, i)
			header = append(header, c)
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(header, ",") + "\n")
	for _, s := range students {
		for q := 1; q <= 4; q++ {
			cells := []string{
				s.User, s.Level, s.Year, s.Course, fmt.Sprint(q),
				fmt.Sprint(s.Attendance), fmt.Sprint(s.Submitted), fmt.Sprint(s.Assessments),
			}
			row := make([]string, 0, len(keep))
			for _, i := range keep {
				row = append(row, cells[i])
			}
			b.WriteString(strings.Join(row, ",") + "\n")
		}
	}
	return b.String()
}
