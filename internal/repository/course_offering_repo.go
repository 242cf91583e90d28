package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

// CourseOfferingRepository reads course offerings owned by the course catalogue.
type CourseOfferingRepository interface {
	GetByID(ctx context.Context, id uint) (models.CourseOffering, error)
	ListActive(ctx context.Context) ([]models.CourseOffering, error)
}

type courseOfferingRepository struct {
	db *gorm.DB
}

// NewCourseOfferingRepository constructs a repository backed by GORM.
func NewCourseOfferingRepository(db *gorm.DB) CourseOfferingRepository {
	return &courseOfferingRepository{db: db}
}

func (r *courseOfferingRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.CourseOffering{}).
		Preload("Module").
		Preload("Facilitator")
}

func (r *courseOfferingRepository) GetByID(ctx context.Context, id uint) (models.CourseOffering, error) {
	var offering models.CourseOffering
	if err := r.baseQuery(ctx).First(&offering, id).Error; err != nil {
		return models.CourseOffering{}, err
	}
	return offering, nil
}

func (r *courseOfferingRepository) ListActive(ctx context.Context) ([]models.CourseOffering, error) {
	var offerings []models.CourseOffering
	if err := r.baseQuery(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&offerings).Error; err != nil {
		return nil, err
	}
	return offerings, nil
}
