package config

import "time"

// Application constants
const (
	AppName = "attendx"

	// Uploads
	DefaultMaxUploadBytes = 20 << 20
	DefaultSessionTTL     = 30 * time.Minute

	// API Endpoints
	APIBasePath     = "/api"
	HealthEndpoint  = "/api/health"
	MetricsEndpoint = "/metrics"
)
