package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AgentConfig configures the proctoring agent that runs beside the browser.
type AgentConfig struct {
	Environment string `envconfig:"ENV" default:"development"`

	// Collector
	CollectorURL     string        `envconfig:"COLLECTOR_URL" default:"ws://localhost:3000/ws"`
	SendBuffer       int           `envconfig:"SEND_BUFFER" default:"256"`
	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"10s"`
	ReconnectInitial time.Duration `envconfig:"RECONNECT_INITIAL" default:"1s"`
	ReconnectMax     time.Duration `envconfig:"RECONNECT_MAX" default:"30s"`

	// Detectors
	IdleThreshold time.Duration `envconfig:"IDLE_THRESHOLD" default:"60s"`
	PolicyFile    string        `envconfig:"POLICY_FILE"`

	// Face presence
	FaceEnabled          bool          `envconfig:"FACE_ENABLED" default:"true"`
	FaceProvider         string        `envconfig:"FACE_PROVIDER" default:"deepface"`
	FaceThreshold        float64       `envconfig:"FACE_THRESHOLD" default:"0.6"`
	FaceReReportInterval time.Duration `envconfig:"FACE_REREPORT_INTERVAL" default:"0s"`
	CameraDir            string        `envconfig:"CAMERA_DIR"`

	// Provider
	DeepFaceURL        string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceDetector   string        `envconfig:"DEEPFACE_DETECTOR" default:"opencv"`
	DeepFaceTimeout    time.Duration `envconfig:"DEEPFACE_TIMEOUT" default:"5s"`
	DeepFaceRetryCount int           `envconfig:"DEEPFACE_RETRY_COUNT" default:"1"`
	AWSRegion          string        `envconfig:"AWS_REGION" default:"us-east-1"`
}

// CollectorConfig configures the reference collector service.
type CollectorConfig struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL  string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseName string `envconfig:"DATABASE_NAME" default:"proctor"`
	AutoMigrate  bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	// Watchers
	WatchBuffer int `envconfig:"WATCH_BUFFER" default:"256"`

	// Results API
	RateLimit       int           `envconfig:"RATE_LIMIT" default:"600"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	DashboardAuthConfig

	// Alerts, e.g. ALERT_RULES=total:10,face_not_visible:5:critical
	AlertRules         []string `envconfig:"ALERT_RULES"`
	AlertWebhookURL    string   `envconfig:"ALERT_WEBHOOK_URL"`
	AlertWebhookSecret string   `envconfig:"ALERT_WEBHOOK_SECRET"`
}

// DashboardAuthConfig holds the dashboard token settings. Auth is disabled
// while the secret is empty.
type DashboardAuthConfig struct {
	DashboardJWTSecret string        `envconfig:"DASHBOARD_JWT_SECRET"`
	DashboardJWTIssuer string        `envconfig:"DASHBOARD_JWT_ISSUER" default:"proctor-collector"`
	DashboardTokenTTL  time.Duration `envconfig:"DASHBOARD_TOKEN_TTL" default:"12h"`
}

func LoadAgent() (*AgentConfig, error) {
	var cfg AgentConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load agent config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load agent config: %w", err)
	}
	return &cfg, nil
}

func LoadCollector() (*CollectorConfig, error) {
	var cfg CollectorConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load collector config: %w", err)
	}
	return &cfg, nil
}

// LoadDashboardAuth loads only the dashboard token settings, for tools that
// mint tokens without touching the database.
func LoadDashboardAuth() (*DashboardAuthConfig, error) {
	var cfg DashboardAuthConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load dashboard auth config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects combinations envconfig cannot express.
func (c *AgentConfig) Validate() error {
	if c.FaceThreshold < 0 || c.FaceThreshold > 1 {
		return errors.New("FACE_THRESHOLD must be between 0 and 1")
	}
	if c.SendBuffer <= 0 {
		return errors.New("SEND_BUFFER must be positive")
	}
	if c.FaceReReportInterval < 0 {
		return errors.New("FACE_REREPORT_INTERVAL must not be negative")
	}
	return nil
}

func (c *AgentConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *CollectorConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *CollectorConfig) IsProduction() bool {
	return c.Environment == "production"
}
