package services

import (
	"context"
	"log/slog"
	"time"

	"attendx/internal/sessions"
	api "attendx/pkg/contracts/api/v1"
)

const (
	StatusHealthy   = "healthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
	StatusAlive     = "alive"
	checkStoreName  = "session_store"
	defaultPingWait = 2 * time.Second
)

// HealthService reports process and dependency health
type HealthService struct {
	version   string
	store     sessions.Store
	pingWait  time.Duration
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service that pings store on readiness
func NewHealthService(version string, store sessions.Store, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		store:     store,
		pingWait:  defaultPingWait,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns the basic health status
func (hs *HealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	return api.HealthResponse{
		Status:    StatusHealthy,
		Version:   hs.version,
		Timestamp: time.Now().UTC(),
		Checks: map[string]string{
			"uptime": time.Since(hs.startTime).Round(time.Second).String(),
		},
	}
}

// ReadinessCheck reports whether the session store can serve requests
func (hs *HealthService) ReadinessCheck(ctx context.Context) api.HealthResponse {
	resp := api.HealthResponse{
		Status:    StatusReady,
		Version:   hs.version,
		Timestamp: time.Now().UTC(),
		Checks:    map[string]string{checkStoreName: "ok"},
	}

	pingCtx, cancel := context.WithTimeout(ctx, hs.pingWait)
	defer cancel()
	if err := hs.store.Ping(pingCtx); err != nil {
		hs.logger.WarnContext(ctx, "Session store not ready", slog.String("error", err.Error()))
		resp.Status = StatusNotReady
		resp.Checks[checkStoreName] = err.Error()
	}
	return resp
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) api.HealthResponse {
	return api.HealthResponse{
		Status:    StatusAlive,
		Version:   hs.version,
		Timestamp: time.Now().UTC(),
	}
}
