package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue"     validate:"required"`
	Webhook   WebhookConfig   `mapstructure:"webhook"   validate:"required"`
	Provider  ProviderConfig  `mapstructure:"provider"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the durable task store settings. An empty URL
// selects the in-memory store; records are then lost on restart.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RedisConfig contains the coordination store settings used for distributed
// rate limiting. An empty URL keeps the limiter local to this process.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// RateLimitConfig controls per-credential admission of upstream calls.
type RateLimitConfig struct {
	// Enabled is the master toggle; when false Acquire is a pass-through.
	Enabled bool `mapstructure:"enabled"`

	// Distributed selects the shared-store admission path when a Redis URL
	// is configured and reachable.
	Distributed bool `mapstructure:"distributed"`

	// MinInterval is the minimum spacing between the starts of consecutive
	// grants for one credential.
	MinInterval time.Duration `mapstructure:"min_interval" validate:"min=0"`

	// MaxConcurrent caps granted-and-unreleased acquisitions per credential.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0"`

	// MaxQueuePerSession caps waiters queued behind one credential.
	MaxQueuePerSession int `mapstructure:"max_queue_per_session" validate:"required,gt=0"`

	// QueueTimeout is each waiter's absolute admission deadline, measured
	// from the moment Acquire is called.
	QueueTimeout time.Duration `mapstructure:"queue_timeout" validate:"required,gt=0"`

	// RecordTTL is the safety TTL on distributed admission records so a
	// crashed holder's grant self-expires.
	RecordTTL time.Duration `mapstructure:"record_ttl" validate:"required,gt=0"`
}

// QueueConfig controls the global background worker pool.
type QueueConfig struct {
	// Concurrency is the number of workers executing tasks; this bound is
	// global and independent of the per-credential rate limit.
	Concurrency int `mapstructure:"concurrency" validate:"required,gt=0"`

	// Capacity is the buffer for accepted-but-not-yet-claimed submissions.
	Capacity int `mapstructure:"capacity" validate:"required,gt=0"`
}

// WebhookConfig controls completion notification delivery.
type WebhookConfig struct {
	// Timeout bounds each individual delivery attempt.
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
}

// ProviderConfig contains upstream generation provider settings.
type ProviderConfig struct {
	// GeminiAPIKey is the fallback upstream credential used when a request
	// does not carry its own bearer token.
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
}
