package http

import (
	"context"
	"io"

	api "attendx/pkg/contracts/api/v1"
	"attendx/pkg/contracts/domain"
)

// UploadServiceInterface stores and manages upload sessions
type UploadServiceInterface interface {
	Upload(ctx context.Context, filename string, size int64, r io.Reader) (*api.UploadResponse, error)
	Info(ctx context.Context, id string) (*domain.UploadInfo, error)
	Delete(ctx context.Context, id string) error
}

// AnalyticsServiceInterface computes statistics over an upload
type AnalyticsServiceInterface interface {
	Summary(ctx context.Context, id string) (*domain.SummaryStatistics, error)
	Enrolment(ctx context.Context, id string, level domain.LevelOfStudy) (*domain.EnrolmentBreakdown, error)
	Attendance(ctx context.Context, id string, level domain.LevelOfStudy, year int) (*domain.AttendanceByQuarter, error)
	Submission(ctx context.Context, id string, level domain.LevelOfStudy, year int) (*domain.SubmissionByCourse, error)
	AtRisk(ctx context.Context, id string, filter domain.AtRiskFilter) ([]domain.AtRiskStudent, error)
	Dashboard(ctx context.Context, id string) (*domain.Dashboard, error)
}

// HealthServiceInterface backs the health endpoints
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) api.HealthResponse
	ReadinessCheck(ctx context.Context) api.HealthResponse
	LivenessCheck(ctx context.Context) api.HealthResponse
}

// Validator checks bound request structs
type Validator interface {
	Validate(v interface{}) error
}
