package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
	"github.com/noah-isme/facilitator-activity-tracker/internal/observability"
	"github.com/noah-isme/facilitator-activity-tracker/internal/repository"
)

const (
	defaultDispatchTimeout = 2 * time.Second
	defaultReminderWindow  = 48 * time.Hour
)

// JobEnqueuer places notification jobs on the delivery queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job models.NotificationJob) error
}

// NotificationDispatcher turns domain events into queued notification jobs.
// None of its methods report failure to the caller.
type NotificationDispatcher interface {
	SubmissionNotifier
	OnMissingLogs(ctx context.Context, facilitatorID uint, weeks []models.MissingWeek)
	OnDeadlineMissed(ctx context.Context, facilitatorID, courseOfferingID uint, weekNumber int)
}

// DispatcherConfig tunes the dispatcher.
type DispatcherConfig struct {
	Timeout        time.Duration
	ReminderWindow time.Duration
}

type notificationDispatcher struct {
	queue          JobEnqueuer
	users          repository.UserRepository
	logs           repository.ActivityLogRepository
	timeout        time.Duration
	reminderWindow time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

// NewNotificationDispatcher constructs a dispatcher writing to queue.
func NewNotificationDispatcher(queue JobEnqueuer, users repository.UserRepository, logs repository.ActivityLogRepository, cfg DispatcherConfig, logger zerolog.Logger) NotificationDispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDispatchTimeout
	}
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = defaultReminderWindow
	}
	return &notificationDispatcher{
		queue:          queue,
		users:          users,
		logs:           logs,
		timeout:        cfg.Timeout,
		reminderWindow: cfg.ReminderWindow,
		logger:         logger.With().Str("component", "notification_dispatcher").Logger(),
		now:            time.Now,
	}
}

func (d *notificationDispatcher) OnSubmission(ctx context.Context, logID uint) {
	ctx, cancel := d.detach(ctx)
	defer cancel()

	entry, err := d.logs.GetByID(ctx, logID)
	if err != nil {
		d.fail(models.JobActivitySubmitted, err, "load activity log", zerolog.Dict().Uint("activity_log_id", logID))
		return
	}

	managers, err := d.users.ListActiveByRole(ctx, models.RoleManager)
	if err != nil {
		d.fail(models.JobActivitySubmitted, err, "load managers", zerolog.Dict().Uint("activity_log_id", logID))
		return
	}

	payload := models.ActivitySubmittedPayload{
		FacilitatorName:  entry.CourseOffering.Facilitator.FullName(),
		WeekNumber:       entry.WeekNumber,
		CourseOfferingID: entry.CourseOfferingID,
		SubmittedAt:      entry.SubmittedAt,
	}
	for _, manager := range managers {
		d.enqueue(ctx, models.JobActivitySubmitted, manager, payload)
	}
}

func (d *notificationDispatcher) OnMissingLogs(ctx context.Context, facilitatorID uint, weeks []models.MissingWeek) {
	if len(weeks) == 0 {
		return
	}

	ctx, cancel := d.detach(ctx)
	defer cancel()

	facilitator, err := d.users.GetByID(ctx, facilitatorID)
	if err != nil {
		d.fail(models.JobMissingLogsReminder, err, "load facilitator", zerolog.Dict().Uint("facilitator_id", facilitatorID))
		return
	}

	missing := make([]models.MissingWeek, len(weeks))
	copy(missing, weeks)

	d.enqueue(ctx, models.JobMissingLogsReminder, facilitator, models.MissingLogsReminderPayload{
		MissingWeeks: missing,
		Deadline:     d.now().UTC().Add(d.reminderWindow),
	})
}

func (d *notificationDispatcher) OnDeadlineMissed(ctx context.Context, facilitatorID, courseOfferingID uint, weekNumber int) {
	ctx, cancel := d.detach(ctx)
	defer cancel()

	facilitator, err := d.users.GetByID(ctx, facilitatorID)
	if err != nil {
		d.fail(models.JobDeadlineMissed, err, "load facilitator", zerolog.Dict().Uint("facilitator_id", facilitatorID))
		return
	}

	d.enqueue(ctx, models.JobDeadlineMissed, facilitator, models.DeadlineMissedPayload{
		CourseOfferingID: courseOfferingID,
		WeekNumber:       weekNumber,
	})

	managers, err := d.users.ListActiveByRole(ctx, models.RoleManager)
	if err != nil {
		d.fail(models.JobFacilitatorDeadlineMissed, err, "load managers", zerolog.Dict().Uint("facilitator_id", facilitatorID))
		return
	}

	payload := models.FacilitatorDeadlineMissedPayload{
		FacilitatorName:  facilitator.FullName(),
		CourseOfferingID: courseOfferingID,
		WeekNumber:       weekNumber,
	}
	for _, manager := range managers {
		d.enqueue(ctx, models.JobFacilitatorDeadlineMissed, manager, payload)
	}
}

// detach keeps dispatch alive after the caller's context is cancelled while
// still bounding it by the dispatch timeout.
func (d *notificationDispatcher) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
}

func (d *notificationDispatcher) enqueue(ctx context.Context, jobType models.JobType, recipient models.User, payload interface{}) {
	job, err := models.NewNotificationJob(jobType, recipient, payload, d.now())
	if err != nil {
		d.fail(jobType, err, "build job", zerolog.Dict().Uint("recipient_id", recipient.ID))
		return
	}

	if err := d.queue.Enqueue(ctx, job); err != nil {
		d.fail(jobType, err, "enqueue job", zerolog.Dict().Uint("recipient_id", recipient.ID).Str("job_id", job.ID))
		return
	}

	observability.JobsEnqueued().WithLabelValues(string(jobType)).Inc()
	d.logger.Debug().Str("job_id", job.ID).Str("type", string(jobType)).Uint("recipient_id", recipient.ID).Msg("notification job enqueued")
}

func (d *notificationDispatcher) fail(jobType models.JobType, err error, stage string, fields *zerolog.Event) {
	observability.DispatchFailures().WithLabelValues(string(jobType)).Inc()
	d.logger.Error().Err(err).Str("type", string(jobType)).Str("stage", stage).Dict("context", fields).Msg("notification dispatch failed")
}
