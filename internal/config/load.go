package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. FETCHSTORE_STORAGE_PICTURES_DIR.
const EnvPrefix = "FETCHSTORE"

// DefaultFileName is the fixed name of the stored asset.
const DefaultFileName = "downloaded_image.jpg"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// Override sets a config key, e.g. "storage.pictures_dir", with the highest
// precedence. Command line flags use it.
type Override struct {
	Key   string
	Value any
}

// LoadFile is Load with an explicit config file path. An empty path searches
// for config.yaml in the working directory; a missing file there is not an error.
func LoadFile(path string, overrides ...Override) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about; keys without
	// a default must be bound explicitly.
	for _, key := range []string{"database.url", "storage.pictures_dir"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	for _, o := range overrides {
		v.Set(o.Key, o.Value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_bytes", 32<<20)
	v.SetDefault("fetch.user_agent", "fetchstore/1.0")

	v.SetDefault("storage.file_name", DefaultFileName)
	v.SetDefault("storage.jpeg_quality", 100)
	v.SetDefault("storage.write_timeout", "30s")

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.stuck_task_age", "30m")
	v.SetDefault("task.stuck_task_check_interval", "5m")
	v.SetDefault("task.max_attempts", 1)
	v.SetDefault("task.retry_base_delay", "1s")
	v.SetDefault("task.result_retention", "1h")

	v.SetDefault("api.submit_rate", 10)
	v.SetDefault("api.submit_burst", 20)
	v.SetDefault("api.await_timeout", "60s")
}
