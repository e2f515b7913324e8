package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendx/internal/analytics"
	"attendx/internal/anomaly"
	"attendx/internal/dataprocessing"
	"attendx/internal/sessions"
	"attendx/internal/shared/testutil"
	"attendx/pkg/contracts/domain"
)

func upload(t *testing.T, f *fixture, body string) string {
	t.Helper()
	resp, err := f.uploads.Upload(context.Background(), "attendance.csv", int64(len(body)), strings.NewReader(body))
	require.NoError(t, err)
	return resp.ID
}

func TestAnalyticsStatistics(t *testing.T) {
	f := newFixture(t)
	id := upload(t, f, testutil.AttendanceCSV(testutil.Cohort()))
	ctx := context.Background()

	summary, err := f.analytics.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 8, summary.TotalStudents)
	assert.Zero(t, summary.DropoutRate)

	enrolment, err := f.analytics.Enrolment(ctx, id, domain.LevelUG)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2"}, enrolment.Courses)
	assert.Equal(t, 4, enrolment.StudentsPerCourse["C1"])

	attendance, err := f.analytics.Attendance(ctx, id, domain.LevelUG, 1)
	require.NoError(t, err)
	assert.Contains(t, attendance.Courses, "C1")
	assert.Contains(t, attendance.Courses, "C2")

	submission, err := f.analytics.Submission(ctx, id, domain.LevelPGT, 1)
	require.NoError(t, err)
	require.Contains(t, submission.Courses, "P1")
	assert.InDelta(t, 90.0, submission.Courses["P1"].AverageSubmissionRate, 1e-9)

	atRisk, err := f.analytics.AtRisk(ctx, id, domain.AtRiskFilter{LevelOfStudy: domain.LevelUG, YearOfCourse: 1})
	require.NoError(t, err)
	require.Len(t, atRisk, 1)
	assert.Equal(t, "low", atRisk[0].User)
}

func TestAnalyticsErrors(t *testing.T) {
	f := newFixture(t)
	id := upload(t, f, testutil.AttendanceCSV(testutil.Cohort()))
	ctx := context.Background()

	_, err := f.analytics.Summary(ctx, "missing")
	assert.ErrorIs(t, err, sessions.ErrNotFound)

	_, err = f.analytics.Attendance(ctx, id, domain.LevelPGT, 3)
	assert.ErrorIs(t, err, analytics.ErrYearOutOfRange)

	_, err = f.analytics.Enrolment(ctx, id, domain.LevelOfStudy("PHD"))
	assert.ErrorIs(t, err, analytics.ErrUnknownLevel)

	noSubmitted := upload(t, f, testutil.AttendanceCSV(testutil.Cohort(), "Submitted"))
	_, err = f.analytics.Submission(ctx, noSubmitted, domain.LevelUG, 1)
	var missing *dataprocessing.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "Submitted", missing.Column)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	id := upload(t, f, testutil.AttendanceCSV(testutil.Cohort()))

	dash, err := f.analytics.Dashboard(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, dash.UploadID)
	assert.Empty(t, dash.Errors)
	require.NotNil(t, dash.Summary)
	assert.Equal(t, 8, dash.Summary.TotalStudents)
	assert.Len(t, dash.Enrolment, 2)

	// UG spans years 0..5 and PGT 1..2
	assert.Len(t, dash.Attendance, 8)
	assert.Len(t, dash.Submission, 8)
	assert.Len(t, dash.AtRisk, 8)

	require.Len(t, dash.AtRisk["UG/1"], 1)
	assert.Equal(t, "low", dash.AtRisk["UG/1"][0].User)
	assert.NotNil(t, dash.AtRisk["PGT/2"])
	assert.Empty(t, dash.AtRisk["PGT/2"])
	assert.True(t, f.logs.ContainsMessage("Dashboard computed"))
}

func TestDashboardMatchesSingleStatistics(t *testing.T) {
	f := newFixture(t)
	id := upload(t, f, testutil.AttendanceCSV(testutil.Cohort()))
	ctx := context.Background()

	dash, err := f.analytics.Dashboard(ctx, id)
	require.NoError(t, err)

	for _, p := range analytics.Profiles() {
		for _, year := range p.Years() {
			key := domain.NewCellKey(p.Level, year)
			t.Run(string(key), func(t *testing.T) {
				attendance, err := f.analytics.Attendance(ctx, id, p.Level, year)
				require.NoError(t, err)
				assert.Equal(t, attendance, dash.Attendance[key])

				atRisk, err := f.analytics.AtRisk(ctx, id, domain.AtRiskFilter{LevelOfStudy: p.Level, YearOfCourse: year})
				require.NoError(t, err)
				assert.Equal(t, atRisk, dash.AtRisk[key])
			})
		}
	}
}

func TestDashboardSectionErrors(t *testing.T) {
	f := newFixture(t)
	id := upload(t, f, testutil.AttendanceCSV(testutil.Cohort(), "Submitted"))

	dash, err := f.analytics.Dashboard(context.Background(), id)
	require.NoError(t, err)

	assert.Nil(t, dash.Summary)
	assert.Empty(t, dash.Submission)
	assert.Empty(t, dash.AtRisk)
	assert.Len(t, dash.Enrolment, 2)
	assert.Len(t, dash.Attendance, 8)

	var sections []string
	for _, se := range dash.Errors {
		sections = append(sections, se.Section)
		assert.Equal(t, "SCHEMA", se.Code)
		assert.Contains(t, se.Message, "Submitted")
	}
	want := []string{SectionAtRisk, SectionSummary}
	for _, p := range analytics.Profiles() {
		for _, year := range p.Years() {
			want = append(want, fmt.Sprintf("%s/%s", SectionSubmission, domain.NewCellKey(p.Level, year)))
		}
	}
	assert.ElementsMatch(t, want, sections)
	assert.IsIncreasing(t, sections)
}

func TestDashboardCancelled(t *testing.T) {
	f := newFixture(t)
	id := upload(t, f, testutil.AttendanceCSV(testutil.Cohort()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dash, err := f.analytics.Dashboard(ctx, id)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, dash)
}

func TestDashboardNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.analytics.Dashboard(context.Background(), "nope")
	assert.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestSectionCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&dataprocessing.MissingColumnError{Column: "User"}, "SCHEMA"},
		{fmt.Errorf("wrap: %w", dataprocessing.ErrEmptyTable), "PARSING"},
		{&dataprocessing.InconsistentAttributeError{}, "VALIDATION"},
		{analytics.ErrYearOutOfRange, "VALIDATION"},
		{analytics.ErrUnknownLevel, "VALIDATION"},
		{fmt.Errorf("fit: %w", anomaly.ErrModelFit), "MODEL_FIT"},
		{context.DeadlineExceeded, "TIMEOUT"},
		{errors.New("odd"), "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, SectionCode(tt.err))
		})
	}
}
