package services

import (
	"testing"
	"time"

	"attendx/internal/anomaly"
	"attendx/internal/sessions"
	"attendx/internal/shared/testutil"
	"attendx/internal/validation"
)

type fixture struct {
	store     *sessions.MemoryStore
	uploads   *UploadService
	analytics *AnalyticsService
	logs      *testutil.BufferedSlogHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	store := sessions.NewMemoryStore(logger)
	t.Cleanup(func() { store.Close() })

	uploads := NewUploadService(store, validation.NewFileValidator(logger, 1<<20), time.Hour, nil, logger)
	detector := anomaly.NewDetector(anomaly.DefaultConfig(), logger)
	return &fixture{
		store:     store,
		uploads:   uploads,
		analytics: NewAnalyticsService(uploads, detector, 4, nil, logger),
		logs:      logs,
	}
}
