// Package services implements the business logic behind the HTTP API.
//
// UploadService turns an uploaded workbook into a stored session.
// AnalyticsService computes statistics over a session, one table copy per
// statistic, and fans the dashboard out over a bounded worker group.
// HealthService backs the health, readiness and liveness checks.
//
// Services return domain errors (sessions.ErrNotFound, analytics and
// dataprocessing sentinels) or *errors.AppError values; the transport layer
// maps both onto problem details.
package services
