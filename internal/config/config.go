package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server       ServerConfig       `mapstructure:"server" validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database" validate:"required"`
	Coordination CoordinationConfig `mapstructure:"coordination" validate:"required"`
	Reminder     ReminderConfig     `mapstructure:"reminder" validate:"required"`
	Push         PushConfig         `mapstructure:"push" validate:"required"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Cron         CronConfig         `mapstructure:"cron"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// CoordinationConfig selects the backing store for the reminder event log,
// cursor, schedule, and dedupe markers.
type CoordinationConfig struct {
	// Driver is "postgres" for shared deployments or "memory" for a single
	// local process.
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
}

// ReminderConfig tunes the reminder stream consumer and dispatcher.
type ReminderConfig struct {
	StreamBatchSize      int  `mapstructure:"stream_batch_size" validate:"gte=1"`
	StreamMaxLoops       int  `mapstructure:"stream_max_loops" validate:"gte=1"`
	StreamMaxLen         int  `mapstructure:"stream_max_len" validate:"gte=1"`
	SendBatchSize        int  `mapstructure:"send_batch_size" validate:"gte=1"`
	DedupeTTLSeconds     int  `mapstructure:"dedupe_ttl_seconds" validate:"gte=1"`
	TZOffsetMinutes      int  `mapstructure:"tz_offset_minutes"`
	RevalidateBeforeSend bool `mapstructure:"revalidate_before_send"`
}

// PushConfig configures the Expo push gateway.
type PushConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ExpoURL        string  `mapstructure:"expo_url" validate:"required,url"`
	AccessToken    string  `mapstructure:"access_token"`
	RatePerSecond  float64 `mapstructure:"rate_per_second" validate:"gt=0"`
	MaxConcurrency int     `mapstructure:"max_concurrency" validate:"gte=1"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"gte=1"`
}

// SchedulerConfig controls the in-process timer that drives the pipeline.
// The HTTP cron endpoint works regardless of this setting.
type SchedulerConfig struct {
	Enabled               bool `mapstructure:"enabled"`
	StreamIntervalSeconds int  `mapstructure:"stream_interval_seconds" validate:"gte=1"`
	DispatchIntervalSecs  int  `mapstructure:"dispatch_interval_seconds" validate:"gte=1"`
	RunTimeoutSeconds     int  `mapstructure:"run_timeout_seconds" validate:"gte=1"`
}

// CronConfig holds the shared secret expected by the cron HTTP endpoints.
// An empty secret disables those endpoints.
type CronConfig struct {
	Secret string `mapstructure:"secret"`
}
