package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables with the RENDER_ prefix
// (nested keys joined with underscores, e.g. RENDER_RATELIMIT_MAX_CONCURRENT)
// and returns a validated Config, or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every key so AutomaticEnv picks the keys
// up even when no config file is present.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.distributed", true)
	v.SetDefault("ratelimit.min_interval", time.Second)
	v.SetDefault("ratelimit.max_concurrent", 20)
	v.SetDefault("ratelimit.max_queue_per_session", 50)
	v.SetDefault("ratelimit.queue_timeout", 2*time.Minute)
	v.SetDefault("ratelimit.record_ttl", 5*time.Minute)

	v.SetDefault("queue.concurrency", 8)
	v.SetDefault("queue.capacity", 256)

	v.SetDefault("webhook.timeout", 10*time.Second)

	v.SetDefault("provider.gemini_api_key", "")
}
