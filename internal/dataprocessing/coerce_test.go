package dataprocessing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendx/pkg/contracts/domain"
)

var header = []string{"User", "Level of Study", "Year of Course", "Course Code", "Quarter", "% Attendance", "Submitted", "Assessments"}

func mustTable(t *testing.T, rows ...[]string) *Table {
	t.Helper()
	table, err := NewTable(append([][]string{header}, rows...))
	require.NoError(t, err)
	return table
}

func TestNewTable(t *testing.T) {
	t.Run("header only", func(t *testing.T) {
		table, err := NewTable([][]string{{"User", " Quarter "}})
		require.NoError(t, err)
		assert.Equal(t, 0, table.Len())
		assert.Equal(t, []string{"User", "Quarter"}, table.Columns())
		assert.Equal(t, []string{}, table.Column("Quarter"))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewTable(nil)
		assert.ErrorIs(t, err, ErrEmptyTable)
	})

	t.Run("duplicate header", func(t *testing.T) {
		_, err := NewTable([][]string{{"User", "User"}, {"a", "b"}})
		assert.Error(t, err)
	})

	t.Run("absent column", func(t *testing.T) {
		table := mustTable(t, []string{"u1", "UG", "1", "C1", "1", "0.5", "1", "2"})
		assert.Nil(t, table.Column("Gender"))
	})
}

func TestValidate(t *testing.T) {
	table, err := NewTable([][]string{
		{"User", "Quarter", "Submitted"},
		{"u1", "4", "1"},
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		required []string
		missing  string
	}{
		{name: "all present", required: []string{"User", "Quarter"}},
		{name: "first absent is reported", required: []string{"User", "Assessments", "% Attendance"}, missing: "Assessments"},
		{name: "order matters", required: []string{"% Attendance", "Assessments"}, missing: "% Attendance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(table, tt.required...)
			if tt.missing == "" {
				require.NoError(t, err)
				assert.Equal(t, table.Records(), got.Records())
				return
			}
			var missing *MissingColumnError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.missing, missing.Column)
			assert.True(t, errors.Is(err, ErrMissingColumn))
		})
	}
}

func TestValidateReturnsOwnedCopy(t *testing.T) {
	table := mustTable(t, []string{"u1", "UG", "1", "C1", "1", "0.5", "1", "2"})

	owned, err := Validate(table, SummaryColumns...)
	require.NoError(t, err)

	shuffled, err := owned.Shuffle([]int{0})
	require.NoError(t, err)
	assert.Equal(t, table.Records(), shuffled.Records())
	assert.NotSame(t, table, owned)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		cell string
		want float64
	}{
		{"12", 12},
		{" 0.75 ", 0.75},
		{"1,250", 1250},
		{"85%", 85},
		{"-3", -3},
		{"", math.NaN()},
		{"n/a", math.NaN()},
		{"NaN", math.NaN()},
		{"Inf", math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			got := ParseNumber(tt.cell)
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceDropsUnparseableRows(t *testing.T) {
	table := mustTable(t,
		[]string{"u1", "UG", "1", "C1", "1", "0.5", "1", "2"},
		[]string{"u2", "UG", "1", "C1", "1", "abc", "1", "2"},
		[]string{"u3", "UG", "1", "C1", "5", "0.5", "1", "2"},
		[]string{"u4", "UG", "1", "C1", "2.5", "0.5", "1", "2"},
		[]string{"u5", "UG", "1", "C1", "2", "0.5", "", "2"},
	)

	frame, report := Coerce(table, domain.ColumnAttendance, domain.ColumnQuarter)

	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 3, report.Dropped)
	assert.Equal(t, 2, report.Kept)
	require.Len(t, frame.Records, 2)
	assert.Equal(t, "u1", frame.Records[0].User)
	assert.Equal(t, "u5", frame.Records[1].User)
	// non-target columns keep NaN
	assert.True(t, math.IsNaN(frame.Records[1].Submitted))
}

func TestCoerceIsDeterministic(t *testing.T) {
	rows := [][]string{
		{"u2", "UG", "1", "C2", "4", "0.7", "1", "2"},
		{"u1", "UG", "1", "C1", "4", "0.5", "1", "2"},
		{"u1", "UG", "1", "C1", "3", "0.6", "1", "2"},
	}
	a, _ := Coerce(mustTable(t, rows...), domain.ColumnQuarter)
	b, _ := Coerce(mustTable(t, rows[2], rows[0], rows[1]), domain.ColumnQuarter)

	assert.Equal(t, a.Records, b.Records)
	assert.Equal(t, "u1", a.Records[0].User)
	assert.Equal(t, 3.0, a.Records[0].Quarter)
}

func TestNormalizeAttendance(t *testing.T) {
	t.Run("fractions are scaled once", func(t *testing.T) {
		frame, _ := Coerce(mustTable(t,
			[]string{"u1", "UG", "1", "C1", "1", "0.5", "1", "2"},
			[]string{"u2", "UG", "1", "C1", "1", "1", "1", "2"},
		), domain.ColumnAttendance)

		assert.True(t, frame.NormalizeAttendance())
		assert.False(t, frame.NormalizeAttendance())
		assert.Equal(t, ScalePercent, frame.Scale)
		assert.Equal(t, 50.0, frame.Records[0].Attendance)
		assert.Equal(t, 100.0, frame.Records[1].Attendance)
	})

	t.Run("percentages are left alone", func(t *testing.T) {
		frame, _ := Coerce(mustTable(t,
			[]string{"u1", "UG", "1", "C1", "1", "50", "1", "2"},
		), domain.ColumnAttendance)

		assert.False(t, frame.NormalizeAttendance())
		assert.Equal(t, 50.0, frame.Records[0].Attendance)
	})

	t.Run("missing values are ignored", func(t *testing.T) {
		frame, _ := Coerce(mustTable(t,
			[]string{"u1", "UG", "1", "C1", "1", "", "1", "2"},
			[]string{"u2", "UG", "1", "C1", "1", "0.25", "1", "2"},
		), domain.ColumnQuarter)

		assert.True(t, frame.NormalizeAttendance())
		assert.True(t, math.IsNaN(frame.Records[0].Attendance))
		assert.Equal(t, 25.0, frame.Records[1].Attendance)
	})
}

func TestCheckConsistency(t *testing.T) {
	base := domain.StudentRecord{User: "u1", LevelOfStudy: domain.LevelUG, YearOfCourse: 1, CourseCode: "C1"}

	tests := []struct {
		name   string
		mutate func(*domain.StudentRecord)
		column string
	}{
		{name: "consistent", mutate: func(*domain.StudentRecord) {}},
		{name: "level changes", mutate: func(r *domain.StudentRecord) { r.LevelOfStudy = domain.LevelPGT }, column: domain.ColumnLevelOfStudy},
		{name: "year changes", mutate: func(r *domain.StudentRecord) { r.YearOfCourse = 2 }, column: domain.ColumnYearOfCourse},
		{name: "course changes", mutate: func(r *domain.StudentRecord) { r.CourseCode = "C9" }, column: domain.ColumnCourseCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			second := base
			second.Quarter = 2
			tt.mutate(&second)

			err := CheckConsistency([]domain.StudentRecord{base, second})
			if tt.column == "" {
				assert.NoError(t, err)
				return
			}
			var inconsistent *InconsistentAttributeError
			require.ErrorAs(t, err, &inconsistent)
			assert.Equal(t, tt.column, inconsistent.Column)
			assert.ErrorIs(t, err, ErrInconsistentAttribute)
		})
	}
}
