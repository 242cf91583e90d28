package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
	"github.com/noah-isme/facilitator-activity-tracker/internal/observability"
	"github.com/noah-isme/facilitator-activity-tracker/internal/queue"
)

const (
	sendTimeout  = 30 * time.Second
	promoteBatch = 100
)

// Queue is the subset of the job queue the worker consumes.
type Queue interface {
	Reserve(ctx context.Context, timeout time.Duration) (queue.Delivery, error)
	Ack(ctx context.Context, d queue.Delivery) error
	Retry(ctx context.Context, d queue.Delivery, job models.NotificationJob, readyAt time.Time) error
	DeadLetter(ctx context.Context, d queue.Delivery, job models.NotificationJob, cause error) error
	PromoteDue(ctx context.Context, limit int) (int, error)
	Recover(ctx context.Context) (int, error)
	MarkDelivered(ctx context.Context, jobID string, ttl time.Duration) (bool, error)
	Delivered(ctx context.Context, jobID string) (bool, error)
}

// Config tunes the worker.
type Config struct {
	Concurrency     int
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	PollTimeout     time.Duration
	PromoteInterval time.Duration
	DeliveredTTL    time.Duration
	RecoverOnStart  bool
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = c.BackoffBase
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 2 * time.Second
	}
	if c.PromoteInterval <= 0 {
		c.PromoteInterval = time.Second
	}
	if c.DeliveredTTL <= 0 {
		c.DeliveredTTL = 72 * time.Hour
	}
	return c
}

// Worker consumes notification jobs and hands them to a Sender.
type Worker struct {
	queue     Queue
	sender    Sender
	validator *PayloadValidator
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs a worker.
func New(q Queue, sender Sender, validator *PayloadValidator, cfg Config, logger zerolog.Logger) *Worker {
	return &Worker{
		queue:     q,
		sender:    sender,
		validator: validator,
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "notification_worker").Logger(),
		now:       time.Now,
	}
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.cfg.RecoverOnStart {
		recovered, err := w.queue.Recover(ctx)
		if err != nil {
			return fmt.Errorf("recover in-flight jobs: %w", err)
		}
		if recovered > 0 {
			w.logger.Warn().Int("jobs", recovered).Msg("re-queued jobs left in processing")
		}
	}

	w.logger.Info().Int("concurrency", w.cfg.Concurrency).Int("max_attempts", w.cfg.MaxAttempts).Msg("notification worker started")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		w.promote(groupCtx)
		return nil
	})
	for i := 0; i < w.cfg.Concurrency; i++ {
		consumer := i
		group.Go(func() error {
			w.consume(groupCtx, consumer)
			return nil
		})
	}

	err := group.Wait()
	w.logger.Info().Msg("notification worker stopped")
	return err
}

func (w *Worker) consume(ctx context.Context, consumer int) {
	logger := w.logger.With().Int("consumer", consumer).Logger()
	for {
		if ctx.Err() != nil {
			return
		}

		delivery, err := w.queue.Reserve(ctx, w.cfg.PollTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("reserve job failed")
			w.pause(ctx)
			continue
		}

		w.process(ctx, delivery)
	}
}

func (w *Worker) promote(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moved, err := w.queue.PromoteDue(ctx, promoteBatch)
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Error().Err(err).Msg("promote retries failed")
				}
				continue
			}
			if moved > 0 {
				w.logger.Debug().Int("jobs", moved).Msg("promoted retries")
			}
		}
	}
}

// process handles one reserved job. A job that is being delivered finishes
// even if the worker is shutting down.
func (w *Worker) process(parent context.Context, delivery queue.Delivery) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), sendTimeout)
	defer cancel()

	job := delivery.Job
	logger := w.logger.With().Str("job_id", job.ID).Str("type", string(job.Type)).Int("attempts", job.Attempts).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("notification delivery panicked")
			w.fail(ctx, delivery, job, fmt.Errorf("delivery panic: %v", r), logger)
		}
	}()

	delivered, err := w.queue.Delivered(ctx, job.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("delivered marker lookup failed")
	}
	if delivered {
		observability.Deliveries().WithLabelValues(string(job.Type), "duplicate").Inc()
		if err := w.queue.Ack(ctx, delivery); err != nil {
			logger.Error().Err(err).Msg("ack duplicate job failed")
		}
		logger.Info().Msg("skipping already delivered job")
		return
	}

	if err := w.validator.Validate(job); err != nil {
		w.fail(ctx, delivery, job, Permanent(err), logger)
		return
	}

	msg, err := Render(job)
	if err != nil {
		w.fail(ctx, delivery, job, Permanent(err), logger)
		return
	}

	started := w.now()
	err = w.sender.Send(ctx, job, msg)
	observability.DeliveryLatency().WithLabelValues(string(job.Type)).Observe(w.now().Sub(started).Seconds())
	if err != nil {
		w.fail(ctx, delivery, job, err, logger)
		return
	}

	if _, err := w.queue.MarkDelivered(ctx, job.ID, w.cfg.DeliveredTTL); err != nil {
		logger.Warn().Err(err).Msg("mark delivered failed")
	}
	if err := w.queue.Ack(ctx, delivery); err != nil {
		logger.Error().Err(err).Msg("ack job failed")
	}

	observability.Deliveries().WithLabelValues(string(job.Type), "delivered").Inc()
	logger.Debug().Msg("notification delivered")
}

func (w *Worker) fail(ctx context.Context, delivery queue.Delivery, job models.NotificationJob, cause error, logger zerolog.Logger) {
	job.Attempts++

	if IsPermanent(cause) || job.Attempts >= w.cfg.MaxAttempts {
		final := fmt.Errorf("%w: %v", ErrDeliveryFailure, cause)
		if err := w.queue.DeadLetter(ctx, delivery, job, final); err != nil {
			logger.Error().Err(err).Msg("dead-letter job failed")
			return
		}
		observability.Deliveries().WithLabelValues(string(job.Type), "dead_lettered").Inc()
		logger.Error().Err(cause).Int("attempts", job.Attempts).Bool("permanent", IsPermanent(cause)).Msg("notification dead-lettered")
		return
	}

	delay := w.backoff(job.Attempts)
	if err := w.queue.Retry(ctx, delivery, job, w.now().Add(delay)); err != nil {
		logger.Error().Err(err).Msg("schedule retry failed")
		return
	}
	observability.Deliveries().WithLabelValues(string(job.Type), "retried").Inc()
	logger.Warn().Err(cause).Int("attempts", job.Attempts).Dur("retry_in", delay).Msg("notification delivery failed, retrying")
}

// backoff returns base * 2^(attempts-1), capped at the configured maximum.
func (w *Worker) backoff(attempts int) time.Duration {
	delay := w.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= w.cfg.BackoffMax {
			return w.cfg.BackoffMax
		}
	}
	if delay > w.cfg.BackoffMax {
		return w.cfg.BackoffMax
	}
	return delay
}

func (w *Worker) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.cfg.PollTimeout):
	}
}
