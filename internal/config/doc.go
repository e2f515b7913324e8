// Package config loads the attendx configuration.
//
// # Configuration Sources
//
// Values are applied in this order, later sources winning:
//
//	1. Default()
//	2. A YAML file: $ATTENDX_CONFIG_FILE, else attendx.yaml or configs/attendx.yaml
//	3. Environment variables
//
// Binaries also read a .env file into the environment before Load runs.
//
// # Environment Variables
//
// Variables follow the struct layout under the ATTENDX prefix:
//
//	ATTENDX_SERVER_PORT=8080
//	ATTENDX_UPLOADS_STORE=redis
//	ATTENDX_UPLOADS_REDIS_ADDRESS=redis:6379
//	ATTENDX_UPLOADS_SESSION_TTL=30m
//	ATTENDX_ANALYTICS_WORKERS=8
//	ATTENDX_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Validation
//
// Load rejects out-of-range values such as a contamination outside (0, 0.5]
// or a redis store without an address.
package config
