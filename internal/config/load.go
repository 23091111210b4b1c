package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "PECAL"

// configKeys lists every key that may be supplied through the environment.
// Viper only maps environment variables onto Unmarshal targets for keys it
// already knows about, so keys without defaults are bound explicitly.
var configKeys = []string{
	"server.port",
	"server.log_level",
	"database.url",
	"database.max_open_conns",
	"database.max_idle_conns",
	"coordination.driver",
	"reminder.stream_batch_size",
	"reminder.stream_max_loops",
	"reminder.stream_max_len",
	"reminder.send_batch_size",
	"reminder.dedupe_ttl_seconds",
	"reminder.tz_offset_minutes",
	"reminder.revalidate_before_send",
	"push.enabled",
	"push.expo_url",
	"push.access_token",
	"push.rate_per_second",
	"push.max_concurrency",
	"push.timeout_seconds",
	"scheduler.enabled",
	"scheduler.stream_interval_seconds",
	"scheduler.dispatch_interval_seconds",
	"scheduler.run_timeout_seconds",
	"cron.secret",
}

// setDefaults registers the default value of every tunable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("coordination.driver", "postgres")

	v.SetDefault("reminder.stream_batch_size", 200)
	v.SetDefault("reminder.stream_max_loops", 10)
	v.SetDefault("reminder.stream_max_len", 100000)
	v.SetDefault("reminder.send_batch_size", 100)
	v.SetDefault("reminder.dedupe_ttl_seconds", 60*60*24*7)
	v.SetDefault("reminder.tz_offset_minutes", 540)
	v.SetDefault("reminder.revalidate_before_send", true)

	v.SetDefault("push.enabled", true)
	v.SetDefault("push.expo_url", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("push.rate_per_second", 10.0)
	v.SetDefault("push.max_concurrency", 4)
	v.SetDefault("push.timeout_seconds", 10)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.stream_interval_seconds", 15)
	v.SetDefault("scheduler.dispatch_interval_seconds", 15)
	v.SetDefault("scheduler.run_timeout_seconds", 30)
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// A .env file in the working directory is loaded first when present; it
// never overrides variables that are already set.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags on cfg and returns a wrapped error listing
// the failed constraints.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
