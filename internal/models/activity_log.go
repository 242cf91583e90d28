package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const (
	// MinWeekNumber is the first teaching week of an offering.
	MinWeekNumber = 1
	// MaxWeekNumber is the last teaching week of an offering.
	MaxWeekNumber = 16
)

// ActivityStatus is the progress of one grading or administrative task.
type ActivityStatus string

const (
	StatusDone       ActivityStatus = "DONE"
	StatusPending    ActivityStatus = "PENDING"
	StatusNotStarted ActivityStatus = "NOT_STARTED"
)

// ActivityStatuses lists every valid status in reporting order.
var ActivityStatuses = []ActivityStatus{StatusDone, StatusPending, StatusNotStarted}

// ParseActivityStatus converts raw input into a status, rejecting unknown values.
func ParseActivityStatus(raw string) (ActivityStatus, error) {
	status := ActivityStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("invalid activity status %q", raw)
	}
	return status, nil
}

// Valid reports whether s is one of the known statuses.
func (s ActivityStatus) Valid() bool {
	switch s {
	case StatusDone, StatusPending, StatusNotStarted:
		return true
	}
	return false
}

func (s ActivityStatus) String() string {
	return string(s)
}

// UnmarshalText rejects values outside the closed status set.
func (s *ActivityStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseActivityStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Scan implements sql.Scanner.
func (s *ActivityStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = StatusNotStarted
		return nil
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("unsupported activity status type %T", value)
	}
}

// Value implements driver.Valuer.
func (s ActivityStatus) Value() (driver.Value, error) {
	if s == "" {
		return string(StatusNotStarted), nil
	}
	if !s.Valid() {
		return nil, fmt.Errorf("invalid activity status %q", string(s))
	}
	return string(s), nil
}

// ActivityLog is the weekly submission record of a course offering.
type ActivityLog struct {
	ID                  uint                      `gorm:"primaryKey" json:"id"`
	CourseOfferingID    uint                      `gorm:"not null;uniqueIndex:idx_activity_logs_offering_week,priority:1" json:"course_offering_id"`
	CourseOffering      CourseOffering            `json:"course_offering"`
	WeekNumber          int                       `gorm:"not null;uniqueIndex:idx_activity_logs_offering_week,priority:2" json:"week_number"`
	Attendance          datatypes.JSONSlice[bool] `json:"attendance"`
	FormativeOneGrading ActivityStatus            `gorm:"size:16;not null" json:"formative_one_grading"`
	FormativeTwoGrading ActivityStatus            `gorm:"size:16;not null" json:"formative_two_grading"`
	SummativeGrading    ActivityStatus            `gorm:"size:16;not null" json:"summative_grading"`
	CourseModeration    ActivityStatus            `gorm:"size:16;not null" json:"course_moderation"`
	IntranetSync        ActivityStatus            `gorm:"size:16;not null" json:"intranet_sync"`
	GradeBookStatus     ActivityStatus            `gorm:"size:16;not null" json:"grade_book_status"`
	SubmittedAt         time.Time                 `gorm:"not null" json:"submitted_at"`
	Notes               *string                   `gorm:"type:text" json:"notes"`
	CreatedAt           time.Time                 `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

// StatusFields returns the six tracked statuses keyed by column name.
func (l ActivityLog) StatusFields() map[string]ActivityStatus {
	return map[string]ActivityStatus{
		"formative_one_grading": l.FormativeOneGrading,
		"formative_two_grading": l.FormativeTwoGrading,
		"summative_grading":     l.SummativeGrading,
		"course_moderation":     l.CourseModeration,
		"intranet_sync":         l.IntranetSync,
		"grade_book_status":     l.GradeBookStatus,
	}
}

// StatusColumns lists the status columns in display order.
var StatusColumns = []string{
	"formative_one_grading",
	"formative_two_grading",
	"summative_grading",
	"course_moderation",
	"intranet_sync",
	"grade_book_status",
}

// DeadlineNotice marks that deadline-missed notifications went out for one week.
type DeadlineNotice struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CourseOfferingID uint      `gorm:"not null;uniqueIndex:idx_deadline_notices_offering_week,priority:1" json:"course_offering_id"`
	WeekNumber       int       `gorm:"not null;uniqueIndex:idx_deadline_notices_offering_week,priority:2" json:"week_number"`
	CreatedAt        time.Time `json:"created_at"`
}
