package reminder

import (
	"testing"
	"time"

	"github.com/pecal/pecal-reminders/internal/config"
	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name string
		in   config.ReminderConfig
		want Config
	}{
		{
			name: "values within bounds are kept",
			in: config.ReminderConfig{
				StreamBatchSize:      50,
				StreamMaxLoops:       3,
				StreamMaxLen:         5000,
				SendBatchSize:        20,
				DedupeTTLSeconds:     3600,
				TZOffsetMinutes:      -300,
				RevalidateBeforeSend: true,
			},
			want: Config{
				BatchSize:            50,
				MaxBatchLoops:        3,
				StreamMaxLen:         5000,
				SendBatchSize:        20,
				DedupeTTL:            time.Hour,
				TZOffsetMinutes:      -300,
				RevalidateBeforeSend: true,
			},
		},
		{
			name: "floors and fallbacks applied",
			in: config.ReminderConfig{
				StreamMaxLen:     10,
				DedupeTTLSeconds: 5,
				TZOffsetMinutes:  2000,
			},
			want: Config{
				BatchSize:       DefaultBatchSize,
				MaxBatchLoops:   DefaultMaxBatchLoops,
				StreamMaxLen:    MinStreamMaxLen,
				SendBatchSize:   DefaultSendBatchSize,
				DedupeTTL:       MinDedupeTTL,
				TZOffsetMinutes: domain.DefaultTZOffsetMinutes,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromAppConfig(tc.in))
		})
	}
}

func TestDefaultConfigIsNormalized(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg, cfg.normalized())
	assert.Equal(t, 7*24*time.Hour, cfg.DedupeTTL)
	assert.True(t, cfg.RevalidateBeforeSend)
}
