package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Fetch    FetchConfig    `mapstructure:"fetch"    validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
	API      APIConfig      `mapstructure:"api"      validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains database settings. An empty URL keeps task state in
// memory only.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// FetchConfig controls how images are retrieved.
type FetchConfig struct {
	// Timeout bounds one GET including reading the body
	Timeout   time.Duration `mapstructure:"timeout"    validate:"required,gt=0"`
	MaxBytes  int64         `mapstructure:"max_bytes"  validate:"required,gt=0"`
	UserAgent string        `mapstructure:"user_agent" validate:"required"`
}

// StorageConfig controls where and how the fetched image is written.
type StorageConfig struct {
	PicturesDir  string        `mapstructure:"pictures_dir"  validate:"required"`
	FileName     string        `mapstructure:"file_name"     validate:"required,excludesall=/\\"`
	JPEGQuality  int           `mapstructure:"jpeg_quality"  validate:"required,min=1,max=100"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required,gt=0"`
}

// TaskConfig controls the background task runner.
type TaskConfig struct {
	WorkerCount            int           `mapstructure:"worker_count"              validate:"required,gt=0"`
	QueueSize              int           `mapstructure:"queue_size"                validate:"required,gt=0"`
	StuckTaskAge           time.Duration `mapstructure:"stuck_task_age"            validate:"required,gt=0"`
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"required,gt=0"`
	MaxAttempts            int           `mapstructure:"max_attempts"              validate:"required,min=1,max=10"`
	RetryBaseDelay         time.Duration `mapstructure:"retry_base_delay"          validate:"required,gt=0"`
	ResultRetention        time.Duration `mapstructure:"result_retention"          validate:"required,gt=0"`
}

// APIConfig contains settings for the submission API.
type APIConfig struct {
	SubmitRate   float64       `mapstructure:"submit_rate"   validate:"required,gt=0"`
	SubmitBurst  int           `mapstructure:"submit_burst"  validate:"required,gt=0"`
	AwaitTimeout time.Duration `mapstructure:"await_timeout" validate:"required,gt=0"`
}
