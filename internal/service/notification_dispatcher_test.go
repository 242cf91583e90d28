package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facilitator-activity-tracker/internal/dto"
	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
	"github.com/noah-isme/facilitator-activity-tracker/internal/repository"
)

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []models.NotificationJob
	err  error
}

func (r *recordingEnqueuer) Enqueue(ctx context.Context, job models.NotificationJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recordingEnqueuer) enqueued() []models.NotificationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.NotificationJob(nil), r.jobs...)
}

type dispatcherFixture struct {
	f          activityFixture
	queue      *recordingEnqueuer
	dispatcher NotificationDispatcher
	managers   []models.User
}

func setupDispatcher(t *testing.T) dispatcherFixture {
	t.Helper()
	f := setupActivityLogService(t)
	managers := []models.User{
		f.manager,
		seedUser(t, f.db, "Edsger", "Dijkstra", models.RoleManager, true),
		seedUser(t, f.db, "Barbara", "Liskov", models.RoleManager, true),
	}
	seedUser(t, f.db, "Retired", "Manager", models.RoleManager, false)

	queue := &recordingEnqueuer{}
	dispatcher := NewNotificationDispatcher(
		queue,
		repository.NewUserRepository(f.db),
		repository.NewActivityLogRepository(f.db),
		DispatcherConfig{Timeout: time.Second, ReminderWindow: 48 * time.Hour},
		zerolog.Nop(),
	)

	return dispatcherFixture{f: f, queue: queue, dispatcher: dispatcher, managers: managers}
}

func TestNotificationDispatcherOnSubmissionNotifiesEveryManager(t *testing.T) {
	d := setupDispatcher(t)
	entry := createLog(t, d.f, d.f.owner, d.f.offering.ID, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.dispatcher.OnSubmission(ctx, entry.ID)

	jobs := d.queue.enqueued()
	require.Len(t, jobs, 3)

	recipients := make([]uint, 0, len(jobs))
	for _, job := range jobs {
		require.Equal(t, models.JobActivitySubmitted, job.Type)
		require.NotEmpty(t, job.ID)
		require.Zero(t, job.Attempts)
		recipients = append(recipients, job.RecipientID)

		var payload models.ActivitySubmittedPayload
		require.NoError(t, job.DecodePayload(&payload))
		require.Equal(t, "Grace Hopper", payload.FacilitatorName)
		require.Equal(t, 3, payload.WeekNumber)
		require.Equal(t, d.f.offering.ID, payload.CourseOfferingID)
	}
	require.ElementsMatch(t, []uint{d.managers[0].ID, d.managers[1].ID, d.managers[2].ID}, recipients)
}

func TestNotificationDispatcherSwallowsQueueFailure(t *testing.T) {
	d := setupDispatcher(t)
	d.queue.err = errors.New("redis unavailable")
	entry := createLog(t, d.f, d.f.owner, d.f.offering.ID, 1)

	require.NotPanics(t, func() {
		d.dispatcher.OnSubmission(context.Background(), entry.ID)
		d.dispatcher.OnMissingLogs(context.Background(), d.f.owner.ID, []models.MissingWeek{{CourseOfferingID: d.f.offering.ID, WeekNumber: 2}})
		d.dispatcher.OnDeadlineMissed(context.Background(), d.f.owner.ID, d.f.offering.ID, 2)
	})
	require.Empty(t, d.queue.enqueued())
}

func TestActivityLogCreateSucceedsWhenQueueFails(t *testing.T) {
	d := setupDispatcher(t)
	d.queue.err = errors.New("redis unavailable")

	svc := NewActivityLogService(
		repository.NewActivityLogRepository(d.f.db),
		repository.NewCourseOfferingRepository(d.f.db),
		d.dispatcher,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)

	resp, err := svc.Create(context.Background(), Actor{ID: d.f.owner.ID, Role: models.RoleFacilitator}, dto.ActivityLogCreateRequest{
		CourseOfferingID: d.f.offering.ID,
		WeekNumber:       7,
	})
	require.NoError(t, err)
	require.Equal(t, 7, resp.WeekNumber)
}

func TestNotificationDispatcherOnMissingLogs(t *testing.T) {
	d := setupDispatcher(t)
	now := time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC)
	d.dispatcher.(*notificationDispatcher).now = func() time.Time { return now }

	weeks := []models.MissingWeek{
		{CourseOfferingID: d.f.offering.ID, WeekNumber: 3},
		{CourseOfferingID: d.f.offering.ID, WeekNumber: 5},
	}
	d.dispatcher.OnMissingLogs(context.Background(), d.f.owner.ID, weeks)

	jobs := d.queue.enqueued()
	require.Len(t, jobs, 1)
	require.Equal(t, models.JobMissingLogsReminder, jobs[0].Type)
	require.Equal(t, d.f.owner.ID, jobs[0].RecipientID)
	require.Equal(t, d.f.owner.Email, jobs[0].RecipientEmail)

	var payload models.MissingLogsReminderPayload
	require.NoError(t, jobs[0].DecodePayload(&payload))
	require.Equal(t, weeks, payload.MissingWeeks)
	require.True(t, payload.Deadline.Equal(now.Add(48*time.Hour)))

	d.dispatcher.OnMissingLogs(context.Background(), d.f.owner.ID, nil)
	d.dispatcher.OnMissingLogs(context.Background(), 424242, weeks)
	require.Len(t, d.queue.enqueued(), 1)
}

func TestNotificationDispatcherOnDeadlineMissed(t *testing.T) {
	d := setupDispatcher(t)

	d.dispatcher.OnDeadlineMissed(context.Background(), d.f.owner.ID, d.f.offering.ID, 4)

	jobs := d.queue.enqueued()
	require.Len(t, jobs, 4)

	var facilitatorJobs, managerJobs int
	for _, job := range jobs {
		switch job.Type {
		case models.JobDeadlineMissed:
			facilitatorJobs++
			require.Equal(t, d.f.owner.ID, job.RecipientID)
			var payload models.DeadlineMissedPayload
			require.NoError(t, job.DecodePayload(&payload))
			require.Equal(t, 4, payload.WeekNumber)
		case models.JobFacilitatorDeadlineMissed:
			managerJobs++
			var payload models.FacilitatorDeadlineMissedPayload
			require.NoError(t, job.DecodePayload(&payload))
			require.Equal(t, "Grace Hopper", payload.FacilitatorName)
			require.Equal(t, d.f.offering.ID, payload.CourseOfferingID)
		}
	}
	require.Equal(t, 1, facilitatorJobs)
	require.Equal(t, 3, managerJobs)
}
