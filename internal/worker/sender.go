package worker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
	"github.com/noah-isme/facilitator-activity-tracker/internal/repository"
)

// Sender delivers a rendered message to the job's recipient.
type Sender interface {
	Send(ctx context.Context, job models.NotificationJob, msg Message) error
}

// LogSender writes notifications to the structured log.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender constructs a sender that logs every notification.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "log_sender").Logger()}
}

func (s *LogSender) Send(ctx context.Context, job models.NotificationJob, msg Message) error {
	s.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Uint("recipient_id", job.RecipientID).
		Str("recipient_email", job.RecipientEmail).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("notification delivered")
	return nil
}

// InboxSender stores notifications in the recipient's inbox.
type InboxSender struct {
	repo   repository.NotificationRepository
	logger zerolog.Logger
}

// NewInboxSender constructs a sender backed by the notifications table.
func NewInboxSender(repo repository.NotificationRepository, logger zerolog.Logger) *InboxSender {
	return &InboxSender{repo: repo, logger: logger.With().Str("component", "inbox_sender").Logger()}
}

func (s *InboxSender) Send(ctx context.Context, job models.NotificationJob, msg Message) error {
	created, err := s.repo.CreateOnce(ctx, &models.Notification{
		JobID:   job.ID,
		UserID:  job.RecipientID,
		Type:    string(job.Type),
		Subject: msg.Subject,
		Message: msg.Body,
	})
	if err != nil {
		return err
	}
	if !created {
		s.logger.Debug().Str("job_id", job.ID).Msg("inbox notification already stored")
	}
	return nil
}
