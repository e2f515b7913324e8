package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "attendx/internal/errors"
	"attendx/internal/services"
	"attendx/internal/shared/testutil"
	"attendx/pkg/contracts"
	api "attendx/pkg/contracts/api/v1"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		method     string
		response   api.HealthResponse
		wantStatus int
	}{
		{"health", "/", "HealthCheck", api.HealthResponse{Status: services.StatusHealthy}, http.StatusOK},
		{"ready", "/ready", "ReadinessCheck", api.HealthResponse{Status: services.StatusReady}, http.StatusOK},
		{"not ready", "/ready", "ReadinessCheck", api.HealthResponse{Status: services.StatusNotReady, Checks: map[string]string{"session_store": "dial tcp: refused"}}, http.StatusServiceUnavailable},
		{"live", "/live", "LivenessCheck", api.HealthResponse{Status: services.StatusAlive}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			svc := new(MockHealthService)
			tt.response.Version = "1.0.0"
			tt.response.Timestamp = time.Now().UTC()
			svc.On(tt.method).Return(tt.response)

			rec := httptest.NewRecorder()
			NewHealthHandler(svc, logger).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body api.HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.response.Status, body.Status)
			assert.Equal(t, tt.response.Checks, body.Checks)
			svc.AssertExpectations(t)
		})
	}
}

func TestHealthHandler_Version(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()
	NewHealthHandler(new(MockHealthService), logger).Version(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	var info contracts.VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, contracts.Version, info.Version)
	assert.Equal(t, contracts.APIVersion, info.APIVersion)
}

func TestMetricsHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	NewMetricsHandler(nil, errorHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	exporter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# HELP uploads_total\n"))
	})
	rec = httptest.NewRecorder()
	NewMetricsHandler(exporter, errorHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "uploads_total")
}
