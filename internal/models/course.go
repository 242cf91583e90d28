package models

import "time"

// Module is a unit of study that offerings are scheduled from.
type Module struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CourseOffering is a scheduled instance of a module taught by one facilitator.
type CourseOffering struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ModuleID      uint      `gorm:"index;not null" json:"module_id"`
	Module        Module    `json:"module"`
	FacilitatorID uint      `gorm:"index;not null" json:"facilitator_id"`
	Facilitator   User      `gorm:"foreignKey:FacilitatorID" json:"facilitator"`
	Trimester     string    `gorm:"size:8" json:"trimester"`
	IntakePeriod  string    `gorm:"size:8" json:"intake_period"`
	StartDate     time.Time `gorm:"not null" json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	IsActive      bool      `gorm:"index;not null" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
