package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is an inbox entry produced by delivering a notification job.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     string    `gorm:"size:64;uniqueIndex;not null" json:"job_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Subject   string    `gorm:"size:255" json:"subject"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobType identifies the kind of notification a job carries.
type JobType string

const (
	JobActivitySubmitted         JobType = "ACTIVITY_SUBMITTED"
	JobMissingLogsReminder       JobType = "MISSING_LOGS_REMINDER"
	JobDeadlineMissed            JobType = "DEADLINE_MISSED"
	JobFacilitatorDeadlineMissed JobType = "FACILITATOR_DEADLINE_MISSED"
)

// JobTypes lists every job type a worker must handle.
var JobTypes = []JobType{
	JobActivitySubmitted,
	JobMissingLogsReminder,
	JobDeadlineMissed,
	JobFacilitatorDeadlineMissed,
}

// NotificationJob is a queued unit of notification work. Only Attempts changes
// after the job has been enqueued.
type NotificationJob struct {
	ID             string          `json:"id"`
	Type           JobType         `json:"type"`
	RecipientID    uint            `json:"recipient_id"`
	RecipientEmail string          `json:"recipient_email"`
	Payload        json.RawMessage `json:"payload"`
	EnqueuedAt     time.Time       `json:"enqueued_at"`
	Attempts       int             `json:"attempts"`
}

// NewNotificationJob builds a job addressed to recipient with the encoded payload.
func NewNotificationJob(jobType JobType, recipient User, payload interface{}, now time.Time) (NotificationJob, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return NotificationJob{}, fmt.Errorf("encode %s payload: %w", jobType, err)
	}

	return NotificationJob{
		ID:             uuid.NewString(),
		Type:           jobType,
		RecipientID:    recipient.ID,
		RecipientEmail: recipient.Email,
		Payload:        encoded,
		EnqueuedAt:     now.UTC(),
	}, nil
}

// DecodePayload unmarshals the job payload into target.
func (j NotificationJob) DecodePayload(target interface{}) error {
	if err := json.Unmarshal(j.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// DeadLetter records a job that exhausted its delivery attempts.
type DeadLetter struct {
	Job      NotificationJob `json:"job"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failed_at"`
}

// MissingWeek is one (offering, week) pair without an activity log.
type MissingWeek struct {
	CourseOfferingID uint `json:"course_offering_id"`
	WeekNumber       int  `json:"week_number"`
}

// ActivitySubmittedPayload is sent to managers when a facilitator submits a log.
type ActivitySubmittedPayload struct {
	FacilitatorName  string    `json:"facilitator_name"`
	WeekNumber       int       `json:"week_number"`
	CourseOfferingID uint      `json:"course_offering_id"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// MissingLogsReminderPayload reminds a facilitator of unsubmitted weeks.
type MissingLogsReminderPayload struct {
	MissingWeeks []MissingWeek `json:"missing_weeks"`
	Deadline     time.Time     `json:"deadline"`
}

// DeadlineMissedPayload tells a facilitator a week's deadline passed.
type DeadlineMissedPayload struct {
	CourseOfferingID uint `json:"course_offering_id"`
	WeekNumber       int  `json:"week_number"`
}

// FacilitatorDeadlineMissedPayload tells a manager which facilitator missed a deadline.
type FacilitatorDeadlineMissedPayload struct {
	FacilitatorName  string `json:"facilitator_name"`
	CourseOfferingID uint   `json:"course_offering_id"`
	WeekNumber       int    `json:"week_number"`
}
