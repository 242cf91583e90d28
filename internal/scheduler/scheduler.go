package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/facilitator-activity-tracker/internal/observability"
)

// DefaultSchedule runs the sweep every Monday at 09:00.
const DefaultSchedule = "0 9 * * 1"

// Runner is a unit of scheduled work.
type Runner interface {
	Run(ctx context.Context) (SweepResult, error)
}

// Config controls when sweeps run.
type Config struct {
	Schedule   string
	Timezone   string
	RunOnStart bool
	Timeout    time.Duration
}

// Scheduler runs the missing log sweep on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	schedule   string
	runOnStart bool
	timeout    time.Duration
	logger     zerolog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New builds a scheduler for runner.
func New(runner Runner, cfg Config, logger zerolog.Logger) (*Scheduler, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load sweep timezone %q: %w", cfg.Timezone, err)
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", cfg.Schedule, err)
	}

	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cronLog{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:     runner,
		schedule:   cfg.Schedule,
		runOnStart: cfg.RunOnStart,
		timeout:    cfg.Timeout,
		logger:     logger,
	}, nil
}

// Start registers the sweep and starts the cron loop. Sweeps run under ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.schedule, s.trigger); err != nil {
		return fmt.Errorf("register sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("missing log sweep scheduled")

	if s.runOnStart {
		go s.trigger()
	}
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timed out")
	}
}

// RunNow performs a sweep immediately and reports its outcome.
func (s *Scheduler) RunNow(ctx context.Context) (SweepResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	result, err := s.runner.Run(runCtx)
	if err != nil {
		observability.SweepRuns().WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Dur("duration", time.Since(started)).Msg("missing log sweep failed")
		return result, err
	}

	observability.SweepRuns().WithLabelValues("ok").Inc()
	observability.MissingLogsDetected().Set(float64(result.Missing))
	s.logger.Info().
		Int("missing", result.Missing).
		Int("facilitators", result.Facilitators).
		Int("deadlines_missed", result.DeadlinesMissed).
		Dur("duration", time.Since(started)).
		Msg("missing log sweep complete")
	return result, nil
}

func (s *Scheduler) trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	_, _ = s.RunNow(ctx)
}

// cronLog adapts zerolog to the cron logger interface.
type cronLog struct {
	logger zerolog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
