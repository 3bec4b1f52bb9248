package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variables consumed by the
// application, e.g. TOURNEY_SERVER_PORT or TOURNEY_TASK_WORKER_COUNT.
const envPrefix = "TOURNEY"

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading or validation
// fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file; a missing file is fine, any other read
	// error is not.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables: TOURNEY_SECTION_KEY overrides section.key.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks a Config against its struct validation tags plus the
// backend-specific requirements that cannot be expressed as field tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch cfg.Task.StoreBackend {
	case "postgres":
		if cfg.Database.URL == "" {
			return fmt.Errorf("invalid configuration: database.url is required for the postgres store backend")
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("invalid configuration: redis.addr is required for the redis store backend")
		}
	}

	return nil
}

// setDefaults registers the built-in defaults: three workers and a
// 30 day retention window.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	// Registering empty defaults makes viper consider these keys when
	// resolving environment variables during Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("task.store_backend", "postgres")
	v.SetDefault("task.worker_count", 3)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.retention_days", 30)
	v.SetDefault("task.sweep_interval_minutes", 60)
}
