package reminder

import (
	"time"

	"github.com/pecal/pecal-reminders/internal/config"
	"github.com/pecal/pecal-reminders/internal/domain"
)

// Pipeline defaults.
const (
	DefaultBatchSize     = 200
	DefaultMaxBatchLoops = 10
	DefaultStreamMaxLen  = 100000
	DefaultSendBatchSize = 100
	DefaultDedupeTTL     = 7 * 24 * time.Hour

	// MinStreamMaxLen and MinDedupeTTL are floors applied to configured values.
	MinStreamMaxLen = 1000
	MinDedupeTTL    = 60 * time.Second

	// LastRunTTL is how long a recorded run report stays readable.
	LastRunTTL = 24 * time.Hour
)

// Config tunes the reminder pipeline.
type Config struct {
	BatchSize            int
	MaxBatchLoops        int
	StreamMaxLen         int
	SendBatchSize        int
	DedupeTTL            time.Duration
	TZOffsetMinutes      int
	RevalidateBeforeSend bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		BatchSize:            DefaultBatchSize,
		MaxBatchLoops:        DefaultMaxBatchLoops,
		StreamMaxLen:         DefaultStreamMaxLen,
		SendBatchSize:        DefaultSendBatchSize,
		DedupeTTL:            DefaultDedupeTTL,
		TZOffsetMinutes:      domain.DefaultTZOffsetMinutes,
		RevalidateBeforeSend: true,
	}
}

// FromAppConfig converts the application-level reminder settings.
func FromAppConfig(c config.ReminderConfig) Config {
	return Config{
		BatchSize:            c.StreamBatchSize,
		MaxBatchLoops:        c.StreamMaxLoops,
		StreamMaxLen:         c.StreamMaxLen,
		SendBatchSize:        c.SendBatchSize,
		DedupeTTL:            time.Duration(c.DedupeTTLSeconds) * time.Second,
		TZOffsetMinutes:      c.TZOffsetMinutes,
		RevalidateBeforeSend: c.RevalidateBeforeSend,
	}.normalized()
}

// normalized replaces unusable values with defaults and applies floors.
func (c Config) normalized() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxBatchLoops <= 0 {
		c.MaxBatchLoops = DefaultMaxBatchLoops
	}
	if c.StreamMaxLen < MinStreamMaxLen {
		c.StreamMaxLen = MinStreamMaxLen
	}
	if c.SendBatchSize <= 0 {
		c.SendBatchSize = DefaultSendBatchSize
	}
	if c.DedupeTTL < MinDedupeTTL {
		c.DedupeTTL = MinDedupeTTL
	}
	c.TZOffsetMinutes = domain.NormalizeTZOffset(c.TZOffsetMinutes)
	return c
}
