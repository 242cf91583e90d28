package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TRACKER_DATABASE_URL", "postgres://tracker@localhost/tracker")
	t.Setenv("TRACKER_REDIS_URL", "redis://localhost:6379/0")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.MaxAttempts)
	require.Equal(t, 2*time.Second, cfg.BackoffBase)
	require.Equal(t, 48*time.Hour, cfg.ReminderWindow)
	require.Equal(t, WeekModeOffering, cfg.WeekMode)
	require.Equal(t, ChannelLog, cfg.NotifyChannel)
	require.Equal(t, "0 9 * * 1", cfg.SweepSchedule)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.WeekEpoch)
	require.Equal(t, ":8081", cfg.HTTPAddress())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TRACKER_WORKER_MAX_ATTEMPTS", "5")
	t.Setenv("TRACKER_WORKER_BACKOFF_BASE", "250ms")
	t.Setenv("TRACKER_SWEEP_WEEK_MODE", "EPOCH")
	t.Setenv("TRACKER_NOTIFY_CHANNEL", "inbox")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.MaxAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.BackoffBase)
	require.Equal(t, WeekModeEpoch, cfg.WeekMode)
	require.Equal(t, ChannelInbox, cfg.NotifyChannel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad duration": {"TRACKER_WORKER_BACKOFF_MAX", "soon"},
		"bad mode":     {"TRACKER_SWEEP_WEEK_MODE", "calendar"},
		"bad channel":  {"TRACKER_NOTIFY_CHANNEL", "sms"},
		"bad epoch":    {"TRACKER_SWEEP_WEEK_EPOCH", "01/01/2024"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(env[0], env[1])

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadRequiresConnections(t *testing.T) {
	t.Setenv("TRACKER_DATABASE_URL", "")
	t.Setenv("TRACKER_REDIS_URL", "redis://localhost:6379/0")

	_, err := Load()
	require.Error(t, err)
}
