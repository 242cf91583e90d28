package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/facilitator-activity-tracker/internal/dto"
	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

// Detector finds offering weeks without an activity log.
type Detector interface {
	Detect(ctx context.Context) ([]dto.MissingEntry, error)
}

// Dispatcher receives the notifications a sweep produces.
type Dispatcher interface {
	OnMissingLogs(ctx context.Context, facilitatorID uint, weeks []models.MissingWeek)
	OnDeadlineMissed(ctx context.Context, facilitatorID, courseOfferingID uint, weekNumber int)
}

// NoticeRecorder remembers which overdue weeks were already announced.
type NoticeRecorder interface {
	Record(ctx context.Context, courseOfferingID uint, weekNumber int) (bool, error)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Missing         int
	Facilitators    int
	DeadlinesMissed int
}

// Sweep reminds facilitators about missing logs and announces missed deadlines.
type Sweep struct {
	detector   Detector
	dispatcher Dispatcher
	notices    NoticeRecorder
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSweep constructs a sweep. A nil notices recorder disables deadline notices.
func NewSweep(detector Detector, dispatcher Dispatcher, notices NoticeRecorder, logger zerolog.Logger) *Sweep {
	return &Sweep{
		detector:   detector,
		dispatcher: dispatcher,
		notices:    notices,
		logger:     logger.With().Str("component", "missing_log_sweep").Logger(),
		now:        time.Now,
	}
}

// Run performs one sweep. Panics are converted into errors.
func (s *Sweep) Run(ctx context.Context) (result SweepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
	}()

	missing, err := s.detector.Detect(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("detect missing logs: %w", err)
	}
	result.Missing = len(missing)

	byFacilitator := make(map[uint][]models.MissingWeek)
	for _, entry := range missing {
		byFacilitator[entry.Facilitator.ID] = append(byFacilitator[entry.Facilitator.ID], models.MissingWeek{
			CourseOfferingID: entry.CourseOfferingID,
			WeekNumber:       entry.WeekNumber,
		})
	}

	facilitators := make([]uint, 0, len(byFacilitator))
	for id := range byFacilitator {
		facilitators = append(facilitators, id)
	}
	sort.Slice(facilitators, func(i, j int) bool { return facilitators[i] < facilitators[j] })

	for _, id := range facilitators {
		s.dispatcher.OnMissingLogs(ctx, id, byFacilitator[id])
	}
	result.Facilitators = len(facilitators)

	if s.notices == nil {
		return result, nil
	}

	now := s.now()
	for _, entry := range missing {
		if !entry.DueAt.Before(now) {
			continue
		}
		created, err := s.notices.Record(ctx, entry.CourseOfferingID, entry.WeekNumber)
		if err != nil {
			s.logger.Error().Err(err).
				Uint("course_offering_id", entry.CourseOfferingID).
				Int("week_number", entry.WeekNumber).
				Msg("record deadline notice failed")
			continue
		}
		if !created {
			continue
		}
		s.dispatcher.OnDeadlineMissed(ctx, entry.Facilitator.ID, entry.CourseOfferingID, entry.WeekNumber)
		result.DeadlinesMissed++
	}

	return result, nil
}
