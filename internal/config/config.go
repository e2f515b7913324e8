package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. ATTENDX_SERVER_PORT
const EnvPrefix = "ATTENDX"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Uploads   UploadsConfig   `yaml:"uploads" envconfig:"UPLOADS"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// RequestTimeout bounds a single analytics request, the dashboard included
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// UploadsConfig controls upload size and session storage
type UploadsConfig struct {
	MaxBytes        int64         `yaml:"max_bytes" envconfig:"MAX_BYTES"`
	SessionTTL      time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
	Store           string        `yaml:"store" envconfig:"STORE"`
	Redis           RedisConfig   `yaml:"redis" envconfig:"REDIS"`
}

// RedisConfig is used when Uploads.Store is "redis"
type RedisConfig struct {
	Address  string `yaml:"address" envconfig:"ADDRESS"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

// AnalyticsConfig tunes the dashboard fan-out and the at-risk model
type AnalyticsConfig struct {
	Workers              int     `yaml:"workers" envconfig:"WORKERS"`
	ImputerMaxIterations int     `yaml:"imputer_max_iterations" envconfig:"IMPUTER_MAX_ITERATIONS"`
	ImputerTolerance     float64 `yaml:"imputer_tolerance" envconfig:"IMPUTER_TOLERANCE"`
	ForestTrees          int     `yaml:"forest_trees" envconfig:"FOREST_TREES"`
	ForestMaxSamples     int     `yaml:"forest_max_samples" envconfig:"FOREST_MAX_SAMPLES"`
	Contamination        float64 `yaml:"contamination" envconfig:"CONTAMINATION"`
	Seed                 uint64  `yaml:"seed" envconfig:"SEED"`
}

// TelemetryConfig controls tracing and metrics
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration from defaults, then the YAML file if one is
// found, then ATTENDX_* environment variables.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML file; an empty path skips the file
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables that are set override; there are no default tags
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// validate checks ranges and normalises enum fields
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	c.Logging.Level = strings.ToLower(c.Logging.Level)
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid log output: %q", c.Logging.Output)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("log file path required for output %q", c.Logging.Output)
	}

	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	if c.Uploads.SessionTTL <= 0 {
		return fmt.Errorf("upload session ttl must be positive")
	}
	if c.Uploads.CleanupInterval <= 0 {
		return fmt.Errorf("upload cleanup interval must be positive")
	}
	c.Uploads.Store = strings.ToLower(c.Uploads.Store)
	switch c.Uploads.Store {
	case "memory":
	case "redis":
		if c.Uploads.Redis.Address == "" {
			return fmt.Errorf("redis address required for the redis upload store")
		}
	default:
		return fmt.Errorf("invalid upload store: %q", c.Uploads.Store)
	}

	a := c.Analytics
	if a.Workers <= 0 {
		return fmt.Errorf("analytics workers must be positive")
	}
	if a.ImputerMaxIterations <= 0 || a.ImputerTolerance <= 0 {
		return fmt.Errorf("imputer iterations and tolerance must be positive")
	}
	if a.ForestTrees <= 0 || a.ForestMaxSamples < 2 {
		return fmt.Errorf("forest needs at least one tree and two samples")
	}
	if a.Contamination <= 0 || a.Contamination > 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5], got %g", a.Contamination)
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("invalid trace exporter: %q", c.Telemetry.TraceExporter)
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = AppName
	}

	return nil
}

// getConfigFilePath returns ATTENDX_CONFIG_FILE or the first config file
// found in the usual locations
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"attendx.yaml",
		"configs/attendx.yaml",
		"../configs/attendx.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  45 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/attendx.log",
		},
		Uploads: UploadsConfig{
			MaxBytes:        DefaultMaxUploadBytes,
			SessionTTL:      DefaultSessionTTL,
			CleanupInterval: time.Minute,
			Store:           "memory",
			Redis: RedisConfig{
				Address: "localhost:6379",
			},
		},
		Analytics: AnalyticsConfig{
			Workers:              4,
			ImputerMaxIterations: 50,
			ImputerTolerance:     1e-3,
			ForestTrees:          100,
			ForestMaxSamples:     256,
			Contamination:        0.25,
			Seed:                 42,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
	}
}
