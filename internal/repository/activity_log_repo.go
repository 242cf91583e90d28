package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

// ActivityLogFilter narrows activity log queries.
type ActivityLogFilter struct {
	CourseOfferingID *uint
	WeekNumber       *int
	FacilitatorID    *uint
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
}

// OfferingWeek identifies one logged week of an offering.
type OfferingWeek struct {
	CourseOfferingID uint
	WeekNumber       int
}

// ActivityLogRepository persists weekly activity logs.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	GetByID(ctx context.Context, id uint) (models.ActivityLog, error)
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	ExistingWeeks(ctx context.Context, offeringIDs []uint) ([]OfferingWeek, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Preload("CourseOffering").
		Preload("CourseOffering.Module").
		Preload("CourseOffering.Facilitator")
}

// Create inserts entry and relies on the (offering, week) unique index to reject
// duplicates, which surface as ErrDuplicateKey.
func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if err := r.db.WithContext(ctx).Omit("CourseOffering").Create(entry).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *activityLogRepository) GetByID(ctx context.Context, id uint) (models.ActivityLog, error) {
	var entry models.ActivityLog
	if err := r.baseQuery(ctx).First(&entry, id).Error; err != nil {
		return models.ActivityLog{}, err
	}
	return entry, nil
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, error) {
	query := r.baseQuery(ctx)

	if filter.CourseOfferingID != nil {
		query = query.Where("activity_logs.course_offering_id = ?", *filter.CourseOfferingID)
	}

	if filter.WeekNumber != nil {
		query = query.Where("activity_logs.week_number = ?", *filter.WeekNumber)
	}

	if filter.FacilitatorID != nil {
		query = query.
			Joins("JOIN course_offerings ON course_offerings.id = activity_logs.course_offering_id").
			Where("course_offerings.facilitator_id = ?", *filter.FacilitatorID)
	}

	if filter.CreatedFrom != nil {
		query = query.Where("activity_logs.created_at >= ?", *filter.CreatedFrom)
	}

	if filter.CreatedTo != nil {
		query = query.Where("activity_logs.created_at <= ?", *filter.CreatedTo)
	}

	var entries []models.ActivityLog
	if err := query.
		Order("activity_logs.week_number DESC").
		Order("activity_logs.created_at DESC").
		Order("activity_logs.id DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *activityLogRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.ActivityLog{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *activityLogRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Unscoped().Delete(&models.ActivityLog{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ExistingWeeks returns every logged (offering, week) pair for the given offerings
// in a single query.
func (r *activityLogRepository) ExistingWeeks(ctx context.Context, offeringIDs []uint) ([]OfferingWeek, error) {
	if len(offeringIDs) == 0 {
		return nil, nil
	}

	var weeks []OfferingWeek
	if err := r.db.WithContext(ctx).
		Model(&models.ActivityLog{}).
		Select("course_offering_id, week_number").
		Where("course_offering_id IN ?", offeringIDs).
		Scan(&weeks).Error; err != nil {
		return nil, err
	}

	return weeks, nil
}
