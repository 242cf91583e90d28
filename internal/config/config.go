package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// WeekModeOffering counts weeks from each offering's own start date.
	WeekModeOffering = "offering"
	// WeekModeEpoch counts weeks from a single global epoch date.
	WeekModeEpoch = "epoch"

	// ChannelLog delivers notifications to the structured log.
	ChannelLog = "log"
	// ChannelInbox delivers notifications to the in-app inbox table.
	ChannelInbox = "inbox"
)

// Config holds runtime configuration values for the tracker process.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string

	QueuePrefix       string
	WorkerConcurrency int
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	PollTimeout       time.Duration
	PromoteInterval   time.Duration
	DeliveredTTL      time.Duration
	RecoverOnStart    bool
	DispatchTimeout   time.Duration
	NotifyChannel     string

	SweepSchedule   string
	SweepTimezone   string
	SweepOnStart    bool
	WeekMode        string
	WeekEpoch       time.Time
	ReminderWindow  time.Duration
	DeadlineGrace   time.Duration
	DeadlineNotices bool
}

// HTTPAddress returns the address the ops HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TRACKER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Facilitator Activity Tracker")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8081")
	v.SetDefault("queue.prefix", "tracker:notifications")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.backoff_base", "2s")
	v.SetDefault("worker.backoff_max", "1m")
	v.SetDefault("worker.poll_timeout", "2s")
	v.SetDefault("worker.promote_interval", "1s")
	v.SetDefault("worker.delivered_ttl", "72h")
	v.SetDefault("worker.recover_on_start", true)
	v.SetDefault("notify.dispatch_timeout", "2s")
	v.SetDefault("notify.channel", ChannelLog)
	v.SetDefault("sweep.schedule", "0 9 * * 1")
	v.SetDefault("sweep.timezone", "UTC")
	v.SetDefault("sweep.on_start", false)
	v.SetDefault("sweep.week_mode", WeekModeOffering)
	v.SetDefault("sweep.week_epoch", "2024-01-01")
	v.SetDefault("sweep.reminder_window", "48h")
	v.SetDefault("sweep.deadline_grace", "48h")
	v.SetDefault("sweep.deadline_notices", true)

	durations := map[string]*time.Duration{}
	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		QueuePrefix:       v.GetString("queue.prefix"),
		WorkerConcurrency: v.GetInt("worker.concurrency"),
		MaxAttempts:       v.GetInt("worker.max_attempts"),
		RecoverOnStart:    v.GetBool("worker.recover_on_start"),
		NotifyChannel:     strings.ToLower(strings.TrimSpace(v.GetString("notify.channel"))),
		SweepSchedule:     strings.TrimSpace(v.GetString("sweep.schedule")),
		SweepTimezone:     v.GetString("sweep.timezone"),
		SweepOnStart:      v.GetBool("sweep.on_start"),
		WeekMode:          strings.ToLower(strings.TrimSpace(v.GetString("sweep.week_mode"))),
		DeadlineNotices:   v.GetBool("sweep.deadline_notices"),
	}

	durations["worker.backoff_base"] = &cfg.BackoffBase
	durations["worker.backoff_max"] = &cfg.BackoffMax
	durations["worker.poll_timeout"] = &cfg.PollTimeout
	durations["worker.promote_interval"] = &cfg.PromoteInterval
	durations["worker.delivered_ttl"] = &cfg.DeliveredTTL
	durations["notify.dispatch_timeout"] = &cfg.DispatchTimeout
	durations["sweep.reminder_window"] = &cfg.ReminderWindow
	durations["sweep.deadline_grace"] = &cfg.DeadlineGrace

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		*target = parsed
	}

	epoch, err := time.Parse("2006-01-02", v.GetString("sweep.week_epoch"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sweep week epoch: %w", err)
	}
	cfg.WeekEpoch = epoch

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("redis url must be provided")
	}

	switch cfg.WeekMode {
	case WeekModeOffering, WeekModeEpoch:
	default:
		return Config{}, fmt.Errorf("unsupported week mode %q", cfg.WeekMode)
	}

	switch cfg.NotifyChannel {
	case ChannelLog, ChannelInbox:
	default:
		return Config{}, fmt.Errorf("unsupported notify channel %q", cfg.NotifyChannel)
	}

	if _, err := time.LoadLocation(cfg.SweepTimezone); err != nil {
		return Config{}, fmt.Errorf("invalid sweep timezone: %w", err)
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 4
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return cfg, nil
}
