package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"attendx/internal/analytics"
	"attendx/internal/anomaly"
	"attendx/internal/dataprocessing"
	apierrors "attendx/internal/errors"
	"attendx/internal/infrastructure"
	"attendx/pkg/contracts/domain"
)

// Dashboard section names, as reported in domain.SectionError
const (
	SectionSummary    = "summary"
	SectionEnrolment  = "enrolment"
	SectionAttendance = "attendance"
	SectionSubmission = "submission"
	SectionAtRisk     = "at_risk"
)

// AnalyticsService computes statistics over stored uploads. Every statistic
// works on its own copy of the upload table.
type AnalyticsService struct {
	uploads  *UploadService
	detector *anomaly.Detector
	workers  int
	metrics  *infrastructure.BusinessMetrics
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// NewAnalyticsService creates an analytics service. workers bounds the
// dashboard fan-out; metrics may be nil.
func NewAnalyticsService(uploads *UploadService, detector *anomaly.Detector, workers int, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &AnalyticsService{
		uploads:  uploads,
		detector: detector,
		workers:  workers,
		metrics:  metrics,
		tracer:   otel.Tracer(infrastructure.MeterName),
		logger:   logger.With(slog.String("component", "analytics_service")),
		now:      time.Now,
	}
}

func (s *AnalyticsService) table(ctx context.Context, id string) (*dataprocessing.Table, error) {
	session, err := s.uploads.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.Table()
}

// measure runs one statistic inside a span and records its outcome
func (s *AnalyticsService) measure(ctx context.Context, operation string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "analytics."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.RecordComputation(ctx, operation, time.Since(start), err)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.DebugContext(ctx, "Statistic failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
	}
	return err
}

func cellAttrs(level domain.LevelOfStudy, year int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("level_of_study", string(level)),
		attribute.Int("year_of_course", year),
	}
}

// Summary computes the headline statistics of an upload
func (s *AnalyticsService) Summary(ctx context.Context, id string) (*domain.SummaryStatistics, error) {
	ctx = infrastructure.WithUploadID(ctx, id)
	t, err := s.table(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *domain.SummaryStatistics
	err = s.measure(ctx, "summary", nil, func(context.Context) error {
		var err error
		out, err = analytics.Summary(t)
		return err
	})
	return out, err
}

// Enrolment computes the quarter 4 enrolment of one level
func (s *AnalyticsService) Enrolment(ctx context.Context, id string, level domain.LevelOfStudy) (*domain.EnrolmentBreakdown, error) {
	ctx = infrastructure.WithUploadID(ctx, id)
	t, err := s.table(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *domain.EnrolmentBreakdown
	err = s.measure(ctx, "enrolment", []attribute.KeyValue{attribute.String("level_of_study", string(level))}, func(context.Context) error {
		var err error
		out, err = analytics.Enrolment(t, level)
		return err
	})
	return out, err
}

// Attendance computes per-course quarterly attendance of a cell
func (s *AnalyticsService) Attendance(ctx context.Context, id string, level domain.LevelOfStudy, year int) (*domain.AttendanceByQuarter, error) {
	ctx = infrastructure.WithUploadID(ctx, id)
	t, err := s.table(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *domain.AttendanceByQuarter
	err = s.measure(ctx, "attendance_rate", cellAttrs(level, year), func(context.Context) error {
		var err error
		out, err = analytics.AttendanceRate(t, level, year)
		return err
	})
	return out, err
}

// Submission computes per-course submission rates of a cell
func (s *AnalyticsService) Submission(ctx context.Context, id string, level domain.LevelOfStudy, year int) (*domain.SubmissionByCourse, error) {
	ctx = infrastructure.WithUploadID(ctx, id)
	t, err := s.table(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *domain.SubmissionByCourse
	err = s.measure(ctx, "submission_rate", cellAttrs(level, year), func(context.Context) error {
		var err error
		out, err = analytics.SubmissionRate(t, level, year)
		return err
	})
	return out, err
}

// AtRisk runs the at-risk model and filters it by cell and optional course
func (s *AnalyticsService) AtRisk(ctx context.Context, id string, filter domain.AtRiskFilter) ([]domain.AtRiskStudent, error) {
	ctx = infrastructure.WithUploadID(ctx, id)
	t, err := s.table(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []domain.AtRiskStudent
	attrs := append(cellAttrs(filter.LevelOfStudy, filter.YearOfCourse), attribute.String("course_code", filter.CourseCode))
	err = s.measure(ctx, "at_risk", attrs, func(ctx context.Context) error {
		var err error
		out, err = s.detector.AtRiskStudents(ctx, t, filter)
		return err
	})
	if err == nil && filter.CourseCode == "" {
		s.metrics.RecordAtRisk(ctx, string(filter.LevelOfStudy), filter.YearOfCourse, len(out))
	}
	return out, err
}

// Dashboard computes every statistic of an upload concurrently. A failing
// section is reported in Errors and does not fail the others; only a
// missing upload or a cancelled context fails the call.
func (s *AnalyticsService) Dashboard(ctx context.Context, id string) (*domain.Dashboard, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.dashboard", trace.WithAttributes(attribute.String("upload.id", id)))
	defer span.End()

	ctx = infrastructure.WithUploadID(ctx, id)
	t, err := s.table(ctx, id)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	dash := &domain.Dashboard{
		UploadID:    id,
		GeneratedAt: s.now().UTC(),
		Enrolment:   make(map[domain.LevelOfStudy]*domain.EnrolmentBreakdown),
		Attendance:  make(map[domain.CellKey]*domain.AttendanceByQuarter),
		Submission:  make(map[domain.CellKey]*domain.SubmissionByCourse),
		AtRisk:      make(map[domain.CellKey][]domain.AtRiskStudent),
	}
	var mu sync.Mutex
	fail := func(section string, err error) {
		mu.Lock()
		defer mu.Unlock()
		dash.Errors = append(dash.Errors, domain.SectionError{
			Section: section,
			Code:    SectionCode(err),
			Message: err.Error(),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	// run schedules one section; section errors never cancel the group
	run := func(section string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fail(section, err)
			}
			return nil
		})
	}

	run(SectionSummary, func(ctx context.Context) error {
		return s.measure(ctx, "summary", nil, func(context.Context) error {
			out, err := analytics.Summary(t)
			if err == nil {
				mu.Lock()
				dash.Summary = out
				mu.Unlock()
			}
			return err
		})
	})

	profiles := analytics.Profiles()
	for _, p := range profiles {
		level := p.Level
		run(fmt.Sprintf("%s/%s", SectionEnrolment, level), func(ctx context.Context) error {
			return s.measure(ctx, "enrolment", []attribute.KeyValue{attribute.String("level_of_study", string(level))}, func(context.Context) error {
				out, err := analytics.Enrolment(t, level)
				if err == nil {
					mu.Lock()
					dash.Enrolment[level] = out
					mu.Unlock()
				}
				return err
			})
		})

		for _, year := range p.Years() {
			year := year
			key := domain.NewCellKey(level, year)
			run(fmt.Sprintf("%s/%s", SectionAttendance, key), func(ctx context.Context) error {
				return s.measure(ctx, "attendance_rate", cellAttrs(level, year), func(context.Context) error {
					out, err := analytics.AttendanceRate(t, level, year)
					if err == nil {
						mu.Lock()
						dash.Attendance[key] = out
						mu.Unlock()
					}
					return err
				})
			})
			run(fmt.Sprintf("%s/%s", SectionSubmission, key), func(ctx context.Context) error {
				return s.measure(ctx, "submission_rate", cellAttrs(level, year), func(context.Context) error {
					out, err := analytics.SubmissionRate(t, level, year)
					if err == nil {
						mu.Lock()
						dash.Submission[key] = out
						mu.Unlock()
					}
					return err
				})
			})
		}
	}

	// the model is fitted once on the whole upload and filtered per cell
	run(SectionAtRisk, func(ctx context.Context) error {
		return s.measure(ctx, "at_risk", nil, func(ctx context.Context) error {
			analysis, err := s.detector.Analyze(ctx, t)
			if err != nil {
				return err
			}
			for _, p := range profiles {
				for _, year := range p.Years() {
					filter := domain.AtRiskFilter{LevelOfStudy: p.Level, YearOfCourse: year}
					students := analysis.AtRisk(filter)
					s.metrics.RecordAtRisk(ctx, string(p.Level), year, len(students))
					mu.Lock()
					dash.AtRisk[domain.NewCellKey(p.Level, year)] = students
					mu.Unlock()
				}
			}
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	sortSectionErrors(dash.Errors)
	span.SetAttributes(attribute.Int("dashboard.errors", len(dash.Errors)))
	s.logger.InfoContext(ctx, "Dashboard computed",
		slog.String("upload_id", id),
		slog.Int("section_errors", len(dash.Errors)))
	return dash, nil
}

// SectionCode classifies a statistic failure for dashboard reporting
func SectionCode(err error) string {
	return string(apierrors.Classify(err))
}

func sortSectionErrors(errs []domain.SectionError) {
	slices.SortFunc(errs, func(a, b domain.SectionError) int {
		return strings.Compare(a.Section, b.Section)
	})
}
