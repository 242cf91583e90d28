package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

func TestRenderMissingLogsReminder(t *testing.T) {
	job, err := models.NewNotificationJob(models.JobMissingLogsReminder, models.User{ID: 1}, models.MissingLogsReminderPayload{
		MissingWeeks: []models.MissingWeek{{CourseOfferingID: 4, WeekNumber: 5}, {CourseOfferingID: 4, WeekNumber: 3}},
		Deadline:     time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC),
	}, time.Now())
	require.NoError(t, err)

	msg, err := Render(job)
	require.NoError(t, err)
	require.Equal(t, "Reminder: 2 activity log(s) outstanding", msg.Subject)
	require.Contains(t, msg.Body, "- course offering 4, week 3\n- course offering 4, week 5")
}

func TestRenderFacilitatorDeadlineMissed(t *testing.T) {
	job, err := models.NewNotificationJob(models.JobFacilitatorDeadlineMissed, models.User{ID: 1}, models.FacilitatorDeadlineMissedPayload{
		FacilitatorName:  "Grace Hopper",
		CourseOfferingID: 9,
		WeekNumber:       6,
	}, time.Now())
	require.NoError(t, err)

	msg, err := Render(job)
	require.NoError(t, err)
	require.Equal(t, "Grace Hopper missed the week 6 deadline", msg.Subject)
}

func TestRenderRejectsUnknownType(t *testing.T) {
	_, err := Render(models.NotificationJob{Type: "BROADCAST", Payload: json.RawMessage(`{}`)})
	require.Error(t, err)
}

func TestPayloadValidator(t *testing.T) {
	validator, err := NewPayloadValidator()
	require.NoError(t, err)

	valid, err := models.NewNotificationJob(models.JobActivitySubmitted, models.User{ID: 1}, models.ActivitySubmittedPayload{
		FacilitatorName:  "Grace Hopper",
		WeekNumber:       3,
		CourseOfferingID: 2,
		SubmittedAt:      time.Now(),
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, validator.Validate(valid))

	cases := map[string]models.NotificationJob{
		"unknown type":      {Type: "BROADCAST", Payload: json.RawMessage(`{}`)},
		"missing fields":    {Type: models.JobActivitySubmitted, Payload: json.RawMessage(`{"week_number": 3}`)},
		"empty reminder":    {Type: models.JobMissingLogsReminder, Payload: json.RawMessage(`{"missing_weeks": [], "deadline": "2024-01-01T00:00:00Z"}`)},
		"malformed payload": {Type: models.JobDeadlineMissed, Payload: json.RawMessage(`{`)},
	}
	for name, job := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, validator.Validate(job))
		})
	}
}
