package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/facilitator-activity-tracker/internal/config"
	"github.com/noah-isme/facilitator-activity-tracker/internal/dto"
	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
	"github.com/noah-isme/facilitator-activity-tracker/internal/repository"
)

// WeekConfig controls how teaching weeks and deadlines are derived.
type WeekConfig struct {
	Mode  string
	Epoch time.Time
	Grace time.Duration
}

// MissingLogService finds active offering weeks that have no activity log.
type MissingLogService interface {
	Detect(ctx context.Context) ([]dto.MissingEntry, error)
}

type missingLogService struct {
	offerings repository.CourseOfferingRepository
	logs      repository.ActivityLogRepository
	weeks     WeekConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewMissingLogService constructs the missing log detector.
func NewMissingLogService(offerings repository.CourseOfferingRepository, logs repository.ActivityLogRepository, weeks WeekConfig, logger zerolog.Logger) MissingLogService {
	if weeks.Mode == "" {
		weeks.Mode = config.WeekModeOffering
	}
	return &missingLogService{
		offerings: offerings,
		logs:      logs,
		weeks:     weeks,
		logger:    logger.With().Str("component", "missing_log_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/facilitator-activity-tracker/internal/service/missing_logs"),
		now:       time.Now,
	}
}

func (s *missingLogService) Detect(ctx context.Context) ([]dto.MissingEntry, error) {
	ctx, span := s.tracer.Start(ctx, "missing_logs.detect")
	defer span.End()

	offerings, err := s.offerings.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list active offerings: %w", err)
	}
	if len(offerings) == 0 {
		return []dto.MissingEntry{}, nil
	}

	ids := make([]uint, 0, len(offerings))
	for _, offering := range offerings {
		ids = append(ids, offering.ID)
	}

	existing, err := s.logs.ExistingWeeks(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load submitted weeks: %w", err)
	}

	submitted := make(map[repository.OfferingWeek]struct{}, len(existing))
	for _, pair := range existing {
		submitted[pair] = struct{}{}
	}

	sort.Slice(offerings, func(i, j int) bool { return offerings[i].ID < offerings[j].ID })

	now := s.now().UTC()
	missing := make([]dto.MissingEntry, 0)
	for _, offering := range offerings {
		base := s.baseDate(offering)
		current := CurrentWeek(base, now)
		for week := models.MinWeekNumber; week <= current; week++ {
			if _, ok := submitted[repository.OfferingWeek{CourseOfferingID: offering.ID, WeekNumber: week}]; ok {
				continue
			}
			missing = append(missing, dto.MissingEntry{
				CourseOfferingID: offering.ID,
				ModuleCode:       offering.Module.Code,
				Facilitator:      dto.NewFacilitatorSummary(offering.Facilitator),
				WeekNumber:       week,
				DueAt:            WeekDueAt(base, week, s.weeks.Grace),
			})
		}
	}

	span.SetAttributes(
		attribute.Int("missing_logs.offerings", len(offerings)),
		attribute.Int("missing_logs.count", len(missing)),
	)
	s.logger.Debug().Int("offerings", len(offerings)).Int("missing", len(missing)).Msg("missing log detection complete")

	return missing, nil
}

func (s *missingLogService) baseDate(offering models.CourseOffering) time.Time {
	if s.weeks.Mode == config.WeekModeEpoch {
		return s.weeks.Epoch.UTC()
	}
	return offering.StartDate.UTC()
}
