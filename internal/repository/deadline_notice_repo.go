package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

// DeadlineNoticeRepository remembers which missed deadlines were already announced.
type DeadlineNoticeRepository interface {
	// Record stores the notice and reports whether it was new.
	Record(ctx context.Context, courseOfferingID uint, weekNumber int) (bool, error)
}

type deadlineNoticeRepository struct {
	db *gorm.DB
}

// NewDeadlineNoticeRepository constructs a repository backed by GORM.
func NewDeadlineNoticeRepository(db *gorm.DB) DeadlineNoticeRepository {
	return &deadlineNoticeRepository{db: db}
}

func (r *deadlineNoticeRepository) Record(ctx context.Context, courseOfferingID uint, weekNumber int) (bool, error) {
	notice := models.DeadlineNotice{CourseOfferingID: courseOfferingID, WeekNumber: weekNumber}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&notice)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
