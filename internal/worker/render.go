package worker

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

// Message is the rendered, channel independent form of a notification.
type Message struct {
	Subject string
	Body    string
}

type renderFunc func(job models.NotificationJob) (Message, error)

var renderers = map[models.JobType]renderFunc{
	models.JobActivitySubmitted:         renderActivitySubmitted,
	models.JobMissingLogsReminder:       renderMissingLogsReminder,
	models.JobDeadlineMissed:            renderDeadlineMissed,
	models.JobFacilitatorDeadlineMissed: renderFacilitatorDeadlineMissed,
}

// Render builds the message for job.
func Render(job models.NotificationJob) (Message, error) {
	render, ok := renderers[job.Type]
	if !ok {
		return Message{}, fmt.Errorf("no renderer for job type %q", job.Type)
	}
	return render(job)
}

func renderActivitySubmitted(job models.NotificationJob) (Message, error) {
	var payload models.ActivitySubmittedPayload
	if err := job.DecodePayload(&payload); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("Activity log submitted for week %d", payload.WeekNumber),
		Body: fmt.Sprintf("%s submitted the week %d activity log for course offering %d at %s.",
			payload.FacilitatorName, payload.WeekNumber, payload.CourseOfferingID, payload.SubmittedAt.UTC().Format(time.RFC1123)),
	}, nil
}

func renderMissingLogsReminder(job models.NotificationJob) (Message, error) {
	var payload models.MissingLogsReminderPayload
	if err := job.DecodePayload(&payload); err != nil {
		return Message{}, err
	}

	weeks := append([]models.MissingWeek(nil), payload.MissingWeeks...)
	sort.Slice(weeks, func(i, j int) bool {
		if weeks[i].CourseOfferingID != weeks[j].CourseOfferingID {
			return weeks[i].CourseOfferingID < weeks[j].CourseOfferingID
		}
		return weeks[i].WeekNumber < weeks[j].WeekNumber
	})

	lines := make([]string, 0, len(weeks))
	for _, week := range weeks {
		lines = append(lines, fmt.Sprintf("- course offering %d, week %d", week.CourseOfferingID, week.WeekNumber))
	}

	return Message{
		Subject: fmt.Sprintf("Reminder: %d activity log(s) outstanding", len(weeks)),
		Body: fmt.Sprintf("The following activity logs have not been submitted:\n%s\nPlease submit them before %s.",
			strings.Join(lines, "\n"), payload.Deadline.UTC().Format(time.RFC1123)),
	}, nil
}

func renderDeadlineMissed(job models.NotificationJob) (Message, error) {
	var payload models.DeadlineMissedPayload
	if err := job.DecodePayload(&payload); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("Deadline missed for week %d", payload.WeekNumber),
		Body: fmt.Sprintf("The activity log for course offering %d, week %d was not submitted before its deadline.",
			payload.CourseOfferingID, payload.WeekNumber),
	}, nil
}

func renderFacilitatorDeadlineMissed(job models.NotificationJob) (Message, error) {
	var payload models.FacilitatorDeadlineMissedPayload
	if err := job.DecodePayload(&payload); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: fmt.Sprintf("%s missed the week %d deadline", payload.FacilitatorName, payload.WeekNumber),
		Body: fmt.Sprintf("%s has not submitted the activity log for course offering %d, week %d.",
			payload.FacilitatorName, payload.CourseOfferingID, payload.WeekNumber),
	}, nil
}
