package http

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	api "attendx/pkg/contracts/api/v1"
	"attendx/pkg/contracts/domain"
)

// MockUploadService is a mock implementation of UploadServiceInterface
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Upload(ctx context.Context, filename string, size int64, r io.Reader) (*api.UploadResponse, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(filename, size, string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.UploadResponse), args.Error(1)
}

func (m *MockUploadService) Info(ctx context.Context, id string) (*domain.UploadInfo, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UploadInfo), args.Error(1)
}

func (m *MockUploadService) Delete(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

// MockAnalyticsService is a mock implementation of AnalyticsServiceInterface
type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) Summary(ctx context.Context, id string) (*domain.SummaryStatistics, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SummaryStatistics), args.Error(1)
}

func (m *MockAnalyticsService) Enrolment(ctx context.Context, id string, level domain.LevelOfStudy) (*domain.EnrolmentBreakdown, error) {
	args := m.Called(id, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EnrolmentBreakdown), args.Error(1)
}

func (m *MockAnalyticsService) Attendance(ctx context.Context, id string, level domain.LevelOfStudy, year int) (*domain.AttendanceByQuarter, error) {
	args := m.Called(id, level, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttendanceByQuarter), args.Error(1)
}

func (m *MockAnalyticsService) Submission(ctx context.Context, id string, level domain.LevelOfStudy, year int) (*domain.SubmissionByCourse, error) {
	args := m.Called(id, level, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubmissionByCourse), args.Error(1)
}

func (m *MockAnalyticsService) AtRisk(ctx context.Context, id string, filter domain.AtRiskFilter) ([]domain.AtRiskStudent, error) {
	args := m.Called(id, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AtRiskStudent), args.Error(1)
}

func (m *MockAnalyticsService) Dashboard(ctx context.Context, id string) (*domain.Dashboard, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dashboard), args.Error(1)
}

// MockHealthService is a mock implementation of HealthServiceInterface
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	return m.Called().Get(0).(api.HealthResponse)
}

func (m *MockHealthService) ReadinessCheck(ctx context.Context) api.HealthResponse {
	return m.Called().Get(0).(api.HealthResponse)
}

func (m *MockHealthService) LivenessCheck(ctx context.Context) api.HealthResponse {
	return m.Called().Get(0).(api.HealthResponse)
}
