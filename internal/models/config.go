package models

// Config holds the application configuration
type Config struct {
	Server        ServerConfig   `json:"server"`
	Auth          AuthConfig     `json:"auth"`
	Push          PushConfig     `json:"push"`
	Database      DatabaseConfig `json:"database"`
	Retry         RetryConfig    `json:"retry"`
	Tracing       TracingConfig  `json:"tracing"`
	LogLevel      string         `json:"log_level"`
	RetentionDays int            `json:"retentionDays"`
}

// ServerConfig holds HTTP server related configurations
type ServerConfig struct {
	Port                  int `json:"port"`
	ReadTimeoutSec        int `json:"readTimeoutSec"`
	WriteTimeoutSec       int `json:"writeTimeoutSec"`
	IdleTimeoutSec        int `json:"idleTimeoutSec"`
	ExpirySweepIntervalMin int `json:"expirySweepIntervalMin"`
	StaleCheckIntervalMin  int `json:"staleCheckIntervalMin"`
	StaleThresholdMin      int `json:"staleThresholdMin"`
}

// AuthConfig holds identity provider related configurations
type AuthConfig struct {
	VerifyURL  string `json:"verify_url"`
	APIKey     string `json:"api_key"`
	TimeoutSec int    `json:"timeoutSec"`
}

// PushConfig holds push gateway related configurations
type PushConfig struct {
	GatewayURL string `json:"gateway_url"`
	APIKey     string `json:"api_key"`
	TimeoutSec int    `json:"timeoutSec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry related configurations
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
