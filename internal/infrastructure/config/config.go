package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all agent configuration.
type Config struct {
	Channel     ChannelConfig
	Command     CommandConfig
	Snapshot    SnapshotConfig
	Diagnostics DiagnosticsConfig
	Logging     LogConfig
	RateLimit   RateLimitConfig
}

// ChannelConfig holds the remote-control channel configuration.
type ChannelConfig struct {
	URL            string        `envconfig:"CONTROLLER_URL" default:"ws://localhost:8765/agent"`
	DeviceID       string        `envconfig:"DEVICE_ID" default:""`
	UploadEndpoint string        `envconfig:"UPLOAD_ENDPOINT" default:""`
	PingInterval   time.Duration `envconfig:"PING_INTERVAL" default:"25s"`
	MaxRetries     int           `envconfig:"RECONNECT_RETRIES" default:"5"`
	RetryBackoff   time.Duration `envconfig:"RECONNECT_BACKOFF" default:"1s"`
}

// CommandConfig holds command execution timing.
type CommandConfig struct {
	Timeout       time.Duration `envconfig:"COMMAND_TIMEOUT" default:"30s"`
	VerifyWindow  time.Duration `envconfig:"VERIFY_WINDOW" default:"1s"`
	VerifyPoll    time.Duration `envconfig:"VERIFY_POLL" default:"100ms"`
	SettleDelay   time.Duration `envconfig:"TEXT_SETTLE_DELAY" default:"300ms"`
	SwipeDuration time.Duration `envconfig:"SWIPE_DURATION" default:"300ms"`
}

// SnapshotConfig holds snapshot scheduling and caching.
type SnapshotConfig struct {
	CacheTTL          time.Duration `envconfig:"SNAPSHOT_CACHE_TTL" default:"1s"`
	FirstCaptureDelay time.Duration `envconfig:"FIRST_CAPTURE_DELAY" default:"600ms"`
	Debounce          time.Duration `envconfig:"CAPTURE_DEBOUNCE" default:"150ms"`
	AbsoluteBound     time.Duration `envconfig:"CAPTURE_ABSOLUTE_BOUND" default:"3s"`
	ReservedCapacity  int           `envconfig:"RESERVED_INDEX_CAPACITY" default:"512"`
	MaxImageWidth     int           `envconfig:"MAX_IMAGE_WIDTH" default:"1080"`
}

// DiagnosticsConfig holds the local HTTP diagnostics endpoint.
type DiagnosticsConfig struct {
	Enabled bool   `envconfig:"DIAG_ENABLED" default:"true"`
	Host    string `envconfig:"DIAG_HOST" default:"127.0.0.1"`
	Port    string `envconfig:"DIAG_PORT" default:"8780"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds diagnostics endpoint rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Channel: ChannelConfig{
			URL:          "ws://localhost:8765/agent",
			PingInterval: 25 * time.Second,
			MaxRetries:   5,
			RetryBackoff: time.Second,
		},
		Command: CommandConfig{
			Timeout:       30 * time.Second,
			VerifyWindow:  time.Second,
			VerifyPoll:    100 * time.Millisecond,
			SettleDelay:   300 * time.Millisecond,
			SwipeDuration: 300 * time.Millisecond,
		},
		Snapshot: SnapshotConfig{
			CacheTTL:          time.Second,
			FirstCaptureDelay: 600 * time.Millisecond,
			Debounce:          150 * time.Millisecond,
			AbsoluteBound:     3 * time.Second,
			ReservedCapacity:  512,
			MaxImageWidth:     1080,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    "8780",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}
