package dto

import (
	"time"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

// ActivityLogCreateRequest is the payload a facilitator submits for one week.
type ActivityLogCreateRequest struct {
	CourseOfferingID    uint                   `json:"course_offering_id" validate:"required,gt=0"`
	WeekNumber          int                    `json:"week_number" validate:"min=1,max=16"`
	Attendance          []bool                 `json:"attendance"`
	FormativeOneGrading *models.ActivityStatus `json:"formative_one_grading" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	FormativeTwoGrading *models.ActivityStatus `json:"formative_two_grading" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	SummativeGrading    *models.ActivityStatus `json:"summative_grading" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	CourseModeration    *models.ActivityStatus `json:"course_moderation" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	IntranetSync        *models.ActivityStatus `json:"intranet_sync" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	GradeBookStatus     *models.ActivityStatus `json:"grade_book_status" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	Notes               *string                `json:"notes" validate:"omitempty,max=5000"`
}

// ActivityLogUpdateRequest holds the mutable fields of an activity log. Keys that
// are not listed here are dropped when a raw field map is decoded into it.
type ActivityLogUpdateRequest struct {
	Attendance          *[]bool                `json:"attendance"`
	FormativeOneGrading *models.ActivityStatus `json:"formative_one_grading" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	FormativeTwoGrading *models.ActivityStatus `json:"formative_two_grading" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	SummativeGrading    *models.ActivityStatus `json:"summative_grading" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	CourseModeration    *models.ActivityStatus `json:"course_moderation" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	IntranetSync        *models.ActivityStatus `json:"intranet_sync" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	GradeBookStatus     *models.ActivityStatus `json:"grade_book_status" validate:"omitempty,oneof=DONE PENDING NOT_STARTED"`
	Notes               *string                `json:"notes" validate:"omitempty,max=5000"`
}

// ActivityLogFilter describes query filters for listing activity logs.
type ActivityLogFilter struct {
	CourseOfferingID *uint `query:"course_offering_id"`
	WeekNumber       *int  `query:"week_number" validate:"omitempty,min=1,max=16"`
}

// DateRange bounds a report by creation time; nil bounds are open.
type DateRange struct {
	Start *time.Time `query:"start_date"`
	End   *time.Time `query:"end_date"`
}

// FacilitatorSummary is the display view of a facilitator.
type FacilitatorSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CourseOfferingSummary is the display view of the offering a log belongs to.
type CourseOfferingSummary struct {
	ID          uint               `json:"id"`
	ModuleCode  string             `json:"module_code"`
	ModuleTitle string             `json:"module_title"`
	Trimester   string             `json:"trimester"`
	Facilitator FacilitatorSummary `json:"facilitator"`
}

// ActivityLogResponse is returned to API clients when viewing activity logs.
type ActivityLogResponse struct {
	ID                  uint                  `json:"id"`
	CourseOfferingID    uint                  `json:"course_offering_id"`
	WeekNumber          int                   `json:"week_number"`
	Attendance          []bool                `json:"attendance"`
	FormativeOneGrading models.ActivityStatus `json:"formative_one_grading"`
	FormativeTwoGrading models.ActivityStatus `json:"formative_two_grading"`
	SummativeGrading    models.ActivityStatus `json:"summative_grading"`
	CourseModeration    models.ActivityStatus `json:"course_moderation"`
	IntranetSync        models.ActivityStatus `json:"intranet_sync"`
	GradeBookStatus     models.ActivityStatus `json:"grade_book_status"`
	Notes               *string               `json:"notes"`
	SubmittedAt         time.Time             `json:"submitted_at"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
	CourseOffering      CourseOfferingSummary `json:"course_offering"`
}

// NewFacilitatorSummary converts a user into its display view.
func NewFacilitatorSummary(user models.User) FacilitatorSummary {
	return FacilitatorSummary{ID: user.ID, Name: user.FullName(), Email: user.Email}
}

// NewActivityLogResponse converts the model into an API response.
func NewActivityLogResponse(entry models.ActivityLog) ActivityLogResponse {
	attendance := make([]bool, len(entry.Attendance))
	copy(attendance, entry.Attendance)

	offering := entry.CourseOffering
	return ActivityLogResponse{
		ID:                  entry.ID,
		CourseOfferingID:    entry.CourseOfferingID,
		WeekNumber:          entry.WeekNumber,
		Attendance:          attendance,
		FormativeOneGrading: entry.FormativeOneGrading,
		FormativeTwoGrading: entry.FormativeTwoGrading,
		SummativeGrading:    entry.SummativeGrading,
		CourseModeration:    entry.CourseModeration,
		IntranetSync:        entry.IntranetSync,
		GradeBookStatus:     entry.GradeBookStatus,
		Notes:               entry.Notes,
		SubmittedAt:         entry.SubmittedAt,
		CreatedAt:           entry.CreatedAt,
		UpdatedAt:           entry.UpdatedAt,
		CourseOffering: CourseOfferingSummary{
			ID:          offering.ID,
			ModuleCode:  offering.Module.Code,
			ModuleTitle: offering.Module.Title,
			Trimester:   offering.Trimester,
			Facilitator: NewFacilitatorSummary(offering.Facilitator),
		},
	}
}

// NewActivityLogResponseSlice converts a slice of models.
func NewActivityLogResponseSlice(entries []models.ActivityLog) []ActivityLogResponse {
	responses := make([]ActivityLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewActivityLogResponse(entry))
	}
	return responses
}

// StatusCounts counts how many logs hold each status for one field.
type StatusCounts map[models.ActivityStatus]int64

// ActivityStats aggregates status counts across the six tracked fields.
type ActivityStats struct {
	TotalLogs int64                   `json:"total_logs"`
	ByStatus  map[string]StatusCounts `json:"by_status"`
}

// ActivitySummaryResponse is the reporting view over a date range.
type ActivitySummaryResponse struct {
	Records []ActivityLogResponse `json:"records"`
	Stats   ActivityStats         `json:"stats"`
}

// MissingEntry is an active offering week without an activity log.
type MissingEntry struct {
	CourseOfferingID uint               `json:"course_offering_id"`
	ModuleCode       string             `json:"module_code"`
	Facilitator      FacilitatorSummary `json:"facilitator"`
	WeekNumber       int                `json:"week_number"`
	DueAt            time.Time          `json:"due_at"`
}
