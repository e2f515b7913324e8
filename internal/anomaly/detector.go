package anomaly

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"

	"attendx/internal/analytics"
	"attendx/internal/dataprocessing"
	"attendx/pkg/contracts/domain"
)

// Config bundles the model settings of the at-risk pipeline
type Config struct {
	Imputer ImputerConfig
	Forest  ForestConfig
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{Imputer: DefaultImputerConfig(), Forest: DefaultForestConfig()}
}

// ScoredStudent is one aggregated student with its model verdict
type ScoredStudent struct {
	domain.AtRiskStudent
	Anomalous bool `json:"anomalous"`
	AtRisk    bool `json:"at_risk"`
}

// Analysis is the fitted at-risk model of a whole upload. Students are
// sorted by course code, then user.
type Analysis struct {
	Students           []ScoredStudent `json:"students"`
	MeanAttendance     float64         `json:"mean_attendance"`
	MeanSubmissionRate float64         `json:"mean_submission_rate"`
	PartialYearUsers   int             `json:"partial_year_users"`
	ImputerIterations  int             `json:"imputer_iterations"`
}

// AtRisk returns the at-risk students matching filter. The result is never nil.
func (a *Analysis) AtRisk(filter domain.AtRiskFilter) []domain.AtRiskStudent {
	out := make([]domain.AtRiskStudent, 0)
	for _, s := range a.Students {
		if !s.AtRisk || s.LevelOfStudy != filter.LevelOfStudy || s.YearOfCourse != filter.YearOfCourse {
			continue
		}
		if filter.CourseCode != "" && s.CourseCode != filter.CourseCode {
			continue
		}
		out = append(out, s.AtRiskStudent)
	}
	return out
}

// Detector identifies students whose attendance and submission are both
// below average and statistically anomalous.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

// NewDetector creates a detector
func NewDetector(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, logger: logger.With(slog.String("component", "anomaly_detector"))}
}

// AtRiskStudents runs the full pipeline and filters the result by level,
// year and optionally course. An empty result is not an error.
func (d *Detector) AtRiskStudents(ctx context.Context, t *dataprocessing.Table, filter domain.AtRiskFilter) ([]domain.AtRiskStudent, error) {
	// schema problems surface before any parameter check
	owned, err := dataprocessing.Validate(t, dataprocessing.AtRiskColumns...)
	if err != nil {
		return nil, err
	}
	if _, err := analytics.CheckCell(filter.LevelOfStudy, filter.YearOfCourse); err != nil {
		return nil, err
	}
	analysis, err := d.Analyze(ctx, owned)
	if err != nil {
		return nil, err
	}
	return analysis.AtRisk(filter), nil
}

// Analyze fits the at-risk model on every full-year student of the upload
func (d *Detector) Analyze(ctx context.Context, t *dataprocessing.Table) (*Analysis, error) {
	owned, err := dataprocessing.Validate(t, dataprocessing.AtRiskColumns...)
	if err != nil {
		return nil, err
	}

	frame, report := dataprocessing.Coerce(owned, domain.ColumnQuarter, domain.ColumnYearOfCourse)
	frame.NormalizeAttendance()

	full, partial := fullYear(frame.Records)
	d.logger.Debug("Prepared at-risk input",
		slog.Int("rows", report.Rows),
		slog.Int("dropped", report.Dropped),
		slog.Int("full_year_rows", len(full)),
		slog.Int("partial_year_users", partial))

	if err := dataprocessing.CheckConsistency(full); err != nil {
		return nil, err
	}
	if users := countUsers(full); users < 2 {
		return nil, fmt.Errorf("%w: need at least 2 full-year students, got %d", ErrModelFit, users)
	}

	imputer := NewIterativeImputer(d.cfg.Imputer)
	matrix := make([][]float64, len(full))
	for i, r := range full {
		matrix[i] = []float64{r.Submitted, r.Assessments, r.Attendance}
	}
	filled, err := imputer.Impute(matrix)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attendance := make([]float64, len(full))
	rates := make([]float64, len(full))
	for i, row := range filled {
		attendance[i] = row[2]
		if row[1] != 0 {
			rates[i] = row[0] / row[1] * 100
		}
	}
	attendanceScaled := StandardScale(attendance)
	ratesScaled := StandardScale(rates)

	students := aggregate(full, attendance, rates, attendanceScaled, ratesScaled)

	features := make([][]float64, len(students))
	for i, s := range students {
		features[i] = []float64{s.AttendanceScaled, s.SubmissionRateScaled}
	}
	if identical(features) {
		return nil, fmt.Errorf("%w: all %d students have identical features", ErrModelFit, len(features))
	}

	forest := NewIsolationForest(d.cfg.Forest)
	if err := forest.Fit(features); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	flags, scores := forest.Predict(features)

	analysis := &Analysis{
		Students:          students,
		PartialYearUsers:  partial,
		ImputerIterations: imputer.Iterations,
	}
	rawAttendance := make([]float64, len(students))
	rawRates := make([]float64, len(students))
	for i, s := range students {
		rawAttendance[i] = s.Attendance
		rawRates[i] = s.SubmissionRate
	}
	analysis.MeanAttendance = stat.Mean(rawAttendance, nil)
	analysis.MeanSubmissionRate = stat.Mean(rawRates, nil)

	flagged := 0
	for i := range analysis.Students {
		s := &analysis.Students[i]
		s.AnomalyScore = scores[i]
		s.Anomalous = flags[i]
		s.AtRisk = s.Anomalous &&
			s.Attendance < analysis.MeanAttendance &&
			s.SubmissionRate < analysis.MeanSubmissionRate
		if s.AtRisk {
			flagged++
		}
	}

	d.logger.Info("At-risk model fitted",
		slog.Int("students", len(students)),
		slog.Int("at_risk", flagged),
		slog.Int("imputer_iterations", imputer.Iterations))
	return analysis, nil
}

// fullYear keeps the records of users seen in every quarter. Records arrive
// in canonical order, grouped by user.
func fullYear(records []domain.StudentRecord) (kept []domain.StudentRecord, partialUsers int) {
	quarters := make(map[string]map[float64]struct{})
	for _, r := range records {
		if quarters[r.User] == nil {
			quarters[r.User] = make(map[float64]struct{})
		}
		quarters[r.User][r.Quarter] = struct{}{}
	}
	for _, qs := range quarters {
		if len(qs) != domain.QuartersPerYear {
			partialUsers++
		}
	}

	kept = make([]domain.StudentRecord, 0, len(records))
	for _, r := range records {
		if len(quarters[r.User]) == domain.QuartersPerYear {
			kept = append(kept, r)
		}
	}
	return kept, partialUsers
}

func countUsers(records []domain.StudentRecord) int {
	users := make(map[string]struct{})
	for _, r := range records {
		users[r.User] = struct{}{}
	}
	return len(users)
}

// aggregate collapses rows to one student each, averaging raw and scaled
// values. Raw means are rounded to two decimals.
func aggregate(records []domain.StudentRecord, attendance, rates, attendanceScaled, ratesScaled []float64) []ScoredStudent {
	type acc struct {
		first                       domain.StudentRecord
		att, rate, attScaled, rateS []float64
	}
	byUser := make(map[string]*acc)
	order := make([]string, 0)
	for i, r := range records {
		a := byUser[r.User]
		if a == nil {
			a = &acc{first: r}
			byUser[r.User] = a
			order = append(order, r.User)
		}
		a.att = append(a.att, attendance[i])
		a.rate = append(a.rate, rates[i])
		a.attScaled = append(a.attScaled, attendanceScaled[i])
		a.rateS = append(a.rateS, ratesScaled[i])
	}

	students := make([]ScoredStudent, 0, len(order))
	for _, user := range order {
		a := byUser[user]
		students = append(students, ScoredStudent{AtRiskStudent: domain.AtRiskStudent{
			User:                 user,
			LevelOfStudy:         a.first.LevelOfStudy,
			YearOfCourse:         int(a.first.YearOfCourse),
			CourseCode:           a.first.CourseCode,
			Attendance:           analytics.Round2(stat.Mean(a.att, nil)),
			SubmissionRate:       analytics.Round2(stat.Mean(a.rate, nil)),
			AttendanceScaled:     stat.Mean(a.attScaled, nil),
			SubmissionRateScaled: stat.Mean(a.rateS, nil),
		}})
	}

	slices.SortStableFunc(students, func(a, b ScoredStudent) int {
		return cmp.Or(cmp.Compare(a.CourseCode, b.CourseCode), cmp.Compare(a.User, b.User))
	})
	return students
}

func identical(features [][]float64) bool {
	for _, f := range features[1:] {
		if !slices.Equal(f, features[0]) {
			return false
		}
	}
	return true
}
