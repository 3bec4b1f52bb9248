package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RedisConfig contains connection settings for the Redis task store backend.
type RedisConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	DB   int    `mapstructure:"db"   validate:"gte=0"`
}

// TaskConfig contains the task engine settings.
type TaskConfig struct {
	// StoreBackend selects the durable task store implementation.
	StoreBackend string `mapstructure:"store_backend" validate:"required,oneof=postgres redis"`

	// WorkerCount determines how many concurrent workers process tasks.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0,lte=64"`

	// QueueSize determines the buffer size of the in-memory dispatch queue.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`

	// RetentionDays is how long terminal tasks are kept before the
	// retention sweeper removes them.
	RetentionDays int `mapstructure:"retention_days" validate:"required,gt=0"`

	// SweepIntervalMinutes is how often the background retention sweep runs.
	// Zero disables the periodic sweep; cleanup can still be triggered
	// through the API.
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes" validate:"gte=0"`
}
