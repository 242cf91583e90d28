package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/facilitator-activity-tracker/internal/dto"
	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
	"github.com/noah-isme/facilitator-activity-tracker/internal/observability"
	"github.com/noah-isme/facilitator-activity-tracker/internal/repository"
)

// Actor represents the authenticated caller of an activity log operation.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) isFacilitator() bool {
	return normalizeRole(a.Role) == models.RoleFacilitator
}

// SubmissionNotifier is told about every newly created activity log.
type SubmissionNotifier interface {
	OnSubmission(ctx context.Context, logID uint)
}

// ActivityLogService exposes the weekly activity log workflow.
type ActivityLogService interface {
	Create(ctx context.Context, actor Actor, payload dto.ActivityLogCreateRequest) (dto.ActivityLogResponse, error)
	List(ctx context.Context, actor Actor, filter dto.ActivityLogFilter) ([]dto.ActivityLogResponse, error)
	GetByID(ctx context.Context, actor Actor, id uint) (dto.ActivityLogResponse, error)
	Update(ctx context.Context, actor Actor, id uint, fields map[string]interface{}) (dto.ActivityLogResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	Summary(ctx context.Context, dateRange dto.DateRange) (dto.ActivitySummaryResponse, error)
}

type activityLogService struct {
	logs      repository.ActivityLogRepository
	offerings repository.CourseOfferingRepository
	notifier  SubmissionNotifier
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewActivityLogService constructs the activity log service. notifier may be nil.
func NewActivityLogService(logs repository.ActivityLogRepository, offerings repository.CourseOfferingRepository, notifier SubmissionNotifier, validate *validator.Validate, logger zerolog.Logger) ActivityLogService {
	return &activityLogService{
		logs:      logs,
		offerings: offerings,
		notifier:  notifier,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "activity_log_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/facilitator-activity-tracker/internal/service/activity_log"),
		now:       time.Now,
	}
}

func (s *activityLogService) Create(ctx context.Context, actor Actor, payload dto.ActivityLogCreateRequest) (dto.ActivityLogResponse, error) {
	ctx, span := s.tracer.Start(ctx, "activity_logs.create", trace.WithAttributes(
		attribute.Int64("activity_log.course_offering_id", int64(payload.CourseOfferingID)),
		attribute.Int("activity_log.week_number", payload.WeekNumber),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		observability.ActivityLogsCreated().WithLabelValues("invalid").Inc()
		return dto.ActivityLogResponse{}, validationError(err)
	}

	offering, err := s.offerings.GetByID(ctx, payload.CourseOfferingID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.ActivityLogResponse{}, err
	}
	if err != nil || offering.FacilitatorID != actor.ID {
		span.SetStatus(codes.Error, "not offering owner")
		observability.ActivityLogsCreated().WithLabelValues("forbidden").Inc()
		return dto.ActivityLogResponse{}, ErrForbidden
	}

	entry := models.ActivityLog{
		CourseOfferingID:    payload.CourseOfferingID,
		WeekNumber:          payload.WeekNumber,
		Attendance:          copyAttendance(payload.Attendance),
		FormativeOneGrading: statusOrDefault(payload.FormativeOneGrading),
		FormativeTwoGrading: statusOrDefault(payload.FormativeTwoGrading),
		SummativeGrading:    statusOrDefault(payload.SummativeGrading),
		CourseModeration:    statusOrDefault(payload.CourseModeration),
		IntranetSync:        statusOrDefault(payload.IntranetSync),
		GradeBookStatus:     statusOrDefault(payload.GradeBookStatus),
		Notes:               s.sanitizeNotes(payload.Notes),
		SubmittedAt:         s.now().UTC(),
	}

	if err := s.logs.Create(ctx, &entry); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			span.SetStatus(codes.Error, "duplicate week")
			observability.ActivityLogsCreated().WithLabelValues("conflict").Inc()
			return dto.ActivityLogResponse{}, ErrActivityLogConflict
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		observability.ActivityLogsCreated().WithLabelValues("error").Inc()
		return dto.ActivityLogResponse{}, err
	}

	observability.ActivityLogsCreated().WithLabelValues("created").Inc()

	if s.notifier != nil {
		s.notifier.OnSubmission(ctx, entry.ID)
	}

	created, err := s.logs.GetByID(ctx, entry.ID)
	if err != nil {
		span.RecordError(err)
		return dto.ActivityLogResponse{}, err
	}

	s.logger.Info().
		Uint("activity_log_id", created.ID).
		Uint("course_offering_id", created.CourseOfferingID).
		Int("week_number", created.WeekNumber).
		Msg("activity log submitted")

	return dto.NewActivityLogResponse(created), nil
}

func (s *activityLogService) List(ctx context.Context, actor Actor, filter dto.ActivityLogFilter) ([]dto.ActivityLogResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, validationError(err)
	}

	repoFilter := repository.ActivityLogFilter{
		CourseOfferingID: filter.CourseOfferingID,
		WeekNumber:       filter.WeekNumber,
	}
	if actor.isFacilitator() {
		facilitatorID := actor.ID
		repoFilter.FacilitatorID = &facilitatorID
	}

	entries, err := s.logs.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewActivityLogResponseSlice(entries), nil
}

func (s *activityLogService) GetByID(ctx context.Context, actor Actor, id uint) (dto.ActivityLogResponse, error) {
	entry, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return dto.ActivityLogResponse{}, err
	}
	return dto.NewActivityLogResponse(entry), nil
}

func (s *activityLogService) Update(ctx context.Context, actor Actor, id uint, fields map[string]interface{}) (dto.ActivityLogResponse, error) {
	ctx, span := s.tracer.Start(ctx, "activity_logs.update", trace.WithAttributes(
		attribute.Int64("activity_log.id", int64(id)),
	))
	defer span.End()

	entry, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return dto.ActivityLogResponse{}, err
	}

	patch, err := decodeUpdate(fields)
	if err != nil {
		return dto.ActivityLogResponse{}, err
	}
	if err := s.validator.Struct(patch); err != nil {
		return dto.ActivityLogResponse{}, validationError(err)
	}

	updates := s.buildUpdates(patch)
	if err := s.logs.Update(ctx, entry.ID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityLogResponse{}, ErrActivityLogNotFound
		}
		span.RecordError(err)
		return dto.ActivityLogResponse{}, err
	}

	updated, err := s.logs.GetByID(ctx, entry.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityLogResponse{}, ErrActivityLogNotFound
		}
		return dto.ActivityLogResponse{}, err
	}

	s.logger.Info().Uint("activity_log_id", updated.ID).Int("fields", len(updates)).Msg("activity log updated")

	return dto.NewActivityLogResponse(updated), nil
}

func (s *activityLogService) Delete(ctx context.Context, actor Actor, id uint) error {
	entry, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.logs.Delete(ctx, entry.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrActivityLogNotFound
		}
		return err
	}

	s.logger.Info().Uint("activity_log_id", entry.ID).Uint("actor_id", actor.ID).Msg("activity log deleted")
	return nil
}

func (s *activityLogService) Summary(ctx context.Context, dateRange dto.DateRange) (dto.ActivitySummaryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "activity_logs.summary")
	defer span.End()

	if dateRange.Start != nil && dateRange.End != nil && dateRange.Start.After(*dateRange.End) {
		return dto.ActivitySummaryResponse{}, fmt.Errorf("%w: start date is after end date", ErrValidation)
	}

	entries, err := s.logs.List(ctx, repository.ActivityLogFilter{
		CreatedFrom: dateRange.Start,
		CreatedTo:   dateRange.End,
	})
	if err != nil {
		span.RecordError(err)
		return dto.ActivitySummaryResponse{}, err
	}

	stats := dto.ActivityStats{
		TotalLogs: int64(len(entries)),
		ByStatus:  make(map[string]dto.StatusCounts, len(models.StatusColumns)),
	}
	for _, column := range models.StatusColumns {
		counts := dto.StatusCounts{}
		for _, status := range models.ActivityStatuses {
			counts[status] = 0
		}
		stats.ByStatus[column] = counts
	}

	for _, entry := range entries {
		for column, status := range entry.StatusFields() {
			stats.ByStatus[column][status]++
		}
	}

	span.SetAttributes(attribute.Int64("activity_logs.total", stats.TotalLogs))

	return dto.ActivitySummaryResponse{
		Records: dto.NewActivityLogResponseSlice(entries),
		Stats:   stats,
	}, nil
}

// loadAuthorized fetches the log and applies the facilitator ownership rule.
func (s *activityLogService) loadAuthorized(ctx context.Context, actor Actor, id uint) (models.ActivityLog, error) {
	entry, err := s.logs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ActivityLog{}, ErrActivityLogNotFound
		}
		return models.ActivityLog{}, err
	}

	if actor.isFacilitator() && entry.CourseOffering.FacilitatorID != actor.ID {
		return models.ActivityLog{}, ErrForbidden
	}

	return entry, nil
}

func (s *activityLogService) buildUpdates(patch dto.ActivityLogUpdateRequest) map[string]interface{} {
	updates := map[string]interface{}{}

	if patch.Attendance != nil {
		updates["attendance"] = copyAttendance(*patch.Attendance)
	}

	statuses := map[string]*models.ActivityStatus{
		"formative_one_grading": patch.FormativeOneGrading,
		"formative_two_grading": patch.FormativeTwoGrading,
		"summative_grading":     patch.SummativeGrading,
		"course_moderation":     patch.CourseModeration,
		"intranet_sync":         patch.IntranetSync,
		"grade_book_status":     patch.GradeBookStatus,
	}
	for column, status := range statuses {
		if status != nil {
			updates[column] = *status
		}
	}

	if patch.Notes != nil {
		updates["notes"] = s.sanitizeNotes(patch.Notes)
	}

	return updates
}

func (s *activityLogService) sanitizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	clean := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(*notes)))
	if clean == "" {
		return nil
	}
	return &clean
}

// decodeUpdate keeps only the allow-listed mutable fields of a raw patch.
func decodeUpdate(fields map[string]interface{}) (dto.ActivityLogUpdateRequest, error) {
	var patch dto.ActivityLogUpdateRequest
	if len(fields) == 0 {
		return patch, nil
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return patch, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return patch, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return patch, nil
}

func validationError(err error) error {
	return fmt.Errorf("%w: %s", ErrValidation, err.Error())
}

func statusOrDefault(status *models.ActivityStatus) models.ActivityStatus {
	if status == nil || *status == "" {
		return models.StatusNotStarted
	}
	return *status
}

func copyAttendance(values []bool) datatypes.JSONSlice[bool] {
	attendance := make([]bool, len(values))
	copy(attendance, values)
	return datatypes.NewJSONSlice(attendance)
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
