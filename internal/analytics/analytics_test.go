package analytics

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendx/internal/dataprocessing"
	"attendx/pkg/contracts/domain"
)

var header = []string{"User", "Level of Study", "Year of Course", "Course Code", "Quarter", "% Attendance", "Submitted", "Assessments"}

func newTable(t *testing.T, rows ...[]string) *dataprocessing.Table {
	t.Helper()
	table, err := dataprocessing.NewTable(append([][]string{header}, rows...))
	require.NoError(t, err)
	return table
}

func sampleRows() [][]string {
	return [][]string{
		{"u1", "UG", "1", "C1", "1", "0.9", "4", "5"},
		{"u1", "UG", "1", "C1", "4", "0.8", "5", "5"},
		{"u2", "UG", "1", "C1", "4", "0.6", "1", "5"},
		{"u3", "UG", "2", "C2", "1", "0.0", "0", "5"},
		{"u3", "UG", "2", "C2", "4", "0.0", "0", "5"},
		{"u4", "PGT", "1", "C3", "4", "1.0", "3", "3"},
		{"u5", "UG", "1", "C2", "4", "0.7", "2", "4"},
	}
}

func TestSummary(t *testing.T) {
	stats, err := Summary(newTable(t, sampleRows()...))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalStudents)
	assert.InDelta(t, 20.0, stats.DropoutRate, 1e-9)
	assert.InDelta(t, (90.0+80+60+0+0+100+70)/7, stats.AverageAttendance, 1e-9)
	assert.InDelta(t, 15.0/32*100, stats.AverageSubmissionRate, 1e-9)

	require.NotNil(t, stats.CourseWithHighestAttendance)
	assert.Equal(t, "C3", stats.CourseWithHighestAttendance.CourseCode)
	assert.InDelta(t, 100.0, stats.CourseWithHighestAttendance.Attendance, 1e-9)
	require.NotNil(t, stats.CourseWithLowestAttendance)
	assert.Equal(t, "C2", stats.CourseWithLowestAttendance.CourseCode)
}

func TestSummarySubmissionIsRatioOfSums(t *testing.T) {
	stats, err := Summary(newTable(t,
		[]string{"u1", "UG", "1", "C1", "4", "50", "1", "1"},
		[]string{"u2", "UG", "1", "C1", "4", "50", "1", "9"},
	))
	require.NoError(t, err)

	assert.InDelta(t, 20.0, stats.AverageSubmissionRate, 1e-9)
	meanOfRatios := (100.0 + 100.0/9) / 2
	assert.NotEqual(t, meanOfRatios, stats.AverageSubmissionRate)
}

func TestSummaryEdgeCases(t *testing.T) {
	t.Run("no rows", func(t *testing.T) {
		stats, err := Summary(newTable(t))
		require.NoError(t, err)
		assert.Equal(t, domain.SummaryStatistics{}, *stats)
	})

	t.Run("all rows malformed", func(t *testing.T) {
		stats, err := Summary(newTable(t, []string{"u1", "UG", "1", "C1", "x", "y", "z", "w"}))
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalStudents)
		assert.Nil(t, stats.CourseWithHighestAttendance)
	})

	t.Run("zero assessments", func(t *testing.T) {
		stats, err := Summary(newTable(t, []string{"u1", "UG", "1", "C1", "4", "0.5", "0", "0"}))
		require.NoError(t, err)
		assert.Equal(t, 0.0, stats.AverageSubmissionRate)
	})

	t.Run("tie breaks lexicographically", func(t *testing.T) {
		stats, err := Summary(newTable(t,
			[]string{"u1", "UG", "1", "B", "4", "50", "1", "1"},
			[]string{"u2", "UG", "1", "A", "4", "50", "1", "1"},
		))
		require.NoError(t, err)
		assert.Equal(t, "A", stats.CourseWithHighestAttendance.CourseCode)
		assert.Equal(t, "A", stats.CourseWithLowestAttendance.CourseCode)
	})

	t.Run("missing column", func(t *testing.T) {
		table, err := dataprocessing.NewTable([][]string{{"User", "% Attendance"}, {"u1", "1"}})
		require.NoError(t, err)
		_, err = Summary(table)
		assert.ErrorIs(t, err, dataprocessing.ErrMissingColumn)
	})
}

func TestSummaryIsOrderIndependent(t *testing.T) {
	rows := sampleRows()
	for i := 0; i < 20; i++ {
		rows = append(rows, []string{"u" + string(rune('a'+i)), "UG", "3", "C" + string(rune('A'+i%3)), "4", "0.1234567", "3", "7"})
	}
	table := newTable(t, rows...)
	want, err := Summary(table)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 10; i++ {
		shuffled, err := table.Shuffle(rng.Perm(table.Len()))
		require.NoError(t, err)
		got, err := Summary(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEnrolment(t *testing.T) {
	table := newTable(t, sampleRows()...)

	tests := []struct {
		name    string
		level   domain.LevelOfStudy
		years   []int
		courses []string
		counts  map[int][]int
	}{
		{
			name:    "undergraduate",
			level:   domain.LevelUG,
			years:   []int{0, 1, 2, 3, 4, 5},
			courses: []string{"C1", "C2"},
			counts: map[int][]int{
				0: {0, 0}, 1: {2, 1}, 2: {0, 1}, 3: {0, 0}, 4: {0, 0}, 5: {0, 0},
			},
		},
		{
			name:    "postgraduate",
			level:   domain.LevelPGT,
			years:   []int{1, 2},
			courses: []string{"C3"},
			counts:  map[int][]int{1: {1}, 2: {0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Enrolment(table, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.years, got.Years)
			assert.Equal(t, tt.courses, got.Courses)
			assert.Equal(t, tt.counts, got.YearCounts)
			assert.Len(t, got.YearCounts, len(tt.years))
		})
	}
}

func TestEnrolmentDenseForEmptyLevel(t *testing.T) {
	got, err := Enrolment(newTable(t, []string{"u1", "UG", "1", "C1", "4", "1", "1", "1"}), domain.LevelPGT)
	require.NoError(t, err)

	assert.Len(t, got.YearCounts, 2)
	assert.Empty(t, got.Courses)
	assert.Equal(t, []int{}, got.YearCounts[1])
}

func TestEnrolmentUnknownLevel(t *testing.T) {
	_, err := Enrolment(newTable(t, sampleRows()...), "PGR")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestAttendanceRate(t *testing.T) {
	table := newTable(t,
		[]string{"u1", "UG", "1", "C1", "1", "0.9", "1", "1"},
		[]string{"u2", "UG", "1", "C1", "1", "0.5", "1", "1"},
		[]string{"u1", "UG", "1", "C1", "2", "1.0", "1", "1"},
		[]string{"u1", "UG", "2", "C1", "1", "0.1", "1", "1"},
		[]string{"u3", "UG", "1", "C2", "3", "bad", "1", "1"},
	)

	got, err := AttendanceRate(table, domain.LevelUG, 1)
	require.NoError(t, err)

	require.Contains(t, got.Courses, "C1")
	c1 := got.Courses["C1"]
	assert.InDelta(t, 70.0, c1.ByQuarter[1], 1e-9)
	assert.InDelta(t, 100.0, c1.ByQuarter[2], 1e-9)
	// average of quarterly means, not of rows
	assert.InDelta(t, 85.0, c1.AverageAttendance, 1e-9)
	assert.NotContains(t, got.Courses, "C2")
}

func TestAttendanceRateSparse(t *testing.T) {
	got, err := AttendanceRate(newTable(t, sampleRows()...), domain.LevelUG, 5)
	require.NoError(t, err)
	assert.Empty(t, got.Courses)

	_, err = AttendanceRate(newTable(t, sampleRows()...), domain.LevelPGT, 3)
	assert.ErrorIs(t, err, ErrYearOutOfRange)
}

func TestSubmissionRate(t *testing.T) {
	table := newTable(t,
		[]string{"u1", "UG", "1", "C1", "1", "1", "1", "3"},
		[]string{"u2", "UG", "1", "C1", "1", "1", "1", "0"},
		[]string{"u1", "UG", "1", "C2", "1", "1", "0", "0"},
		[]string{"u2", "UG", "1", "C2", "2", "1", "0", "0"},
		[]string{"u3", "UG", "2", "C3", "1", "1", "1", "1"},
	)

	got, err := SubmissionRate(table, domain.LevelUG, 1)
	require.NoError(t, err)

	assert.Equal(t, domain.CourseSubmission{CourseCode: "C1", YearOfCourse: 1, AverageSubmissionRate: 66.67}, got.Courses["C1"])
	assert.Equal(t, 0.0, got.Courses["C2"].AverageSubmissionRate)
	assert.NotContains(t, got.Courses, "C3")
}

func TestOperationsDoNotMutateInput(t *testing.T) {
	table := newTable(t, sampleRows()...)
	before := table.Records()

	_, err := Summary(table)
	require.NoError(t, err)
	_, err = AttendanceRate(table, domain.LevelUG, 1)
	require.NoError(t, err)

	assert.Equal(t, before, table.Records())
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 66.67, Round2(200.0/3))
	assert.Equal(t, 0.0, Round2(0))
	assert.Equal(t, 0.83, Round2(2.5/3))
}
