package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

func TestActivityLogRepositoryRejectsDuplicateWeek(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	offering := seedOffering(t, db, "MOD101", true)

	first := newLog(offering.ID, 3)
	require.NoError(t, repo.Create(context.Background(), &first))

	second := newLog(offering.ID, 3)
	err := repo.Create(context.Background(), &second)
	require.ErrorIs(t, err, ErrDuplicateKey)

	other := newLog(offering.ID, 4)
	require.NoError(t, repo.Create(context.Background(), &other))
}

func TestActivityLogRepositoryListFiltersAndOrders(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	mine := seedOffering(t, db, "MOD101", true)
	theirs := seedOffering(t, db, "MOD202", true)

	for _, entry := range []models.ActivityLog{
		newLog(mine.ID, 1),
		newLog(mine.ID, 3),
		newLog(theirs.ID, 2),
	} {
		entry := entry
		require.NoError(t, repo.Create(context.Background(), &entry))
	}

	all, err := repo.List(context.Background(), ActivityLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []int{3, 2, 1}, []int{all[0].WeekNumber, all[1].WeekNumber, all[2].WeekNumber})
	require.Equal(t, "MOD101", all[0].CourseOffering.Module.Code, "expected module preloaded")

	facilitatorID := mine.FacilitatorID
	owned, err := repo.List(context.Background(), ActivityLogFilter{FacilitatorID: &facilitatorID})
	require.NoError(t, err)
	require.Len(t, owned, 2)
	for _, entry := range owned {
		require.Equal(t, mine.ID, entry.CourseOfferingID)
	}

	week := 2
	byWeek, err := repo.List(context.Background(), ActivityLogFilter{WeekNumber: &week})
	require.NoError(t, err)
	require.Len(t, byWeek, 1)
	require.Equal(t, theirs.ID, byWeek[0].CourseOfferingID)
}

func TestActivityLogRepositoryExistingWeeks(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	first := seedOffering(t, db, "MOD101", true)
	second := seedOffering(t, db, "MOD202", true)
	ignored := seedOffering(t, db, "MOD303", true)

	for _, entry := range []models.ActivityLog{
		newLog(first.ID, 1),
		newLog(first.ID, 2),
		newLog(second.ID, 5),
		newLog(ignored.ID, 1),
	} {
		entry := entry
		require.NoError(t, repo.Create(context.Background(), &entry))
	}

	weeks, err := repo.ExistingWeeks(context.Background(), []uint{first.ID, second.ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []OfferingWeek{
		{CourseOfferingID: first.ID, WeekNumber: 1},
		{CourseOfferingID: first.ID, WeekNumber: 2},
		{CourseOfferingID: second.ID, WeekNumber: 5},
	}, weeks)

	none, err := repo.ExistingWeeks(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestActivityLogRepositoryUpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	offering := seedOffering(t, db, "MOD101", true)

	entry := newLog(offering.ID, 1)
	require.NoError(t, repo.Create(context.Background(), &entry))

	require.NoError(t, repo.Update(context.Background(), entry.ID, map[string]interface{}{
		"summative_grading": models.StatusDone,
		"attendance":        datatypes.NewJSONSlice([]bool{true, true}),
	}))

	stored, err := repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDone, stored.SummativeGrading)
	require.Equal(t, []bool{true, true}, []bool(stored.Attendance))

	require.NoError(t, repo.Delete(context.Background(), entry.ID))
	_, err = repo.GetByID(context.Background(), entry.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.ErrorIs(t, repo.Delete(context.Background(), entry.ID), gorm.ErrRecordNotFound)
}

func TestDeadlineNoticeRepositoryRecordsOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDeadlineNoticeRepository(db)

	created, err := repo.Record(context.Background(), 7, 2)
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.Record(context.Background(), 7, 2)
	require.NoError(t, err)
	require.False(t, created)

	created, err = repo.Record(context.Background(), 7, 3)
	require.NoError(t, err)
	require.True(t, created)
}

func TestCourseOfferingRepositoryListActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseOfferingRepository(db)
	active := seedOffering(t, db, "MOD101", true)
	seedOffering(t, db, "MOD202", false)

	offerings, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	require.Equal(t, active.ID, offerings[0].ID)
	require.Equal(t, "MOD101", offerings[0].Module.Code)
	require.NotEmpty(t, offerings[0].Facilitator.Email)
}

func TestUserRepositoryListActiveByRole(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	users := []models.User{
		{FirstName: "Ada", LastName: "Manager", Email: "ada@example.com", Role: models.RoleManager, IsActive: true},
		{FirstName: "Ben", LastName: "Manager", Email: "ben@example.com", Role: models.RoleManager, IsActive: false},
		{FirstName: "Cy", LastName: "Facilitator", Email: "cy@example.com", Role: models.RoleFacilitator, IsActive: true},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}

	managers, err := repo.ListActiveByRole(context.Background(), models.RoleManager)
	require.NoError(t, err)
	require.Len(t, managers, 1)
	require.Equal(t, "ada@example.com", managers[0].Email)
}

func TestNotificationRepositoryCreateOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)

	first := models.Notification{JobID: "job-1", UserID: 9, Type: "ACTIVITY_SUBMITTED", Message: "hello"}
	created, err := repo.CreateOnce(context.Background(), &first)
	require.NoError(t, err)
	require.True(t, created)

	again := models.Notification{JobID: "job-1", UserID: 9, Type: "ACTIVITY_SUBMITTED", Message: "hello"}
	created, err = repo.CreateOnce(context.Background(), &again)
	require.NoError(t, err)
	require.False(t, created)

	inbox, err := repo.ListByUser(context.Background(), 9, 0, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Module{},
		&models.CourseOffering{},
		&models.ActivityLog{},
		&models.DeadlineNotice{},
		&models.Notification{},
	))
	return db
}

func seedOffering(t *testing.T, db *gorm.DB, code string, active bool) models.CourseOffering {
	t.Helper()
	facilitator := models.User{
		FirstName: "Fac",
		LastName:  code,
		Email:     fmt.Sprintf("%s@example.com", code),
		Role:      models.RoleFacilitator,
		IsActive:  true,
	}
	require.NoError(t, db.Create(&facilitator).Error)

	module := models.Module{Code: code, Title: "Module " + code}
	require.NoError(t, db.Create(&module).Error)

	offering := models.CourseOffering{
		ModuleID:      module.ID,
		FacilitatorID: facilitator.ID,
		Trimester:     "T1",
		IntakePeriod:  "FT",
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		IsActive:      active,
	}
	require.NoError(t, db.Omit("Module", "Facilitator").Create(&offering).Error)
	return offering
}

func newLog(offeringID uint, week int) models.ActivityLog {
	return models.ActivityLog{
		CourseOfferingID:    offeringID,
		WeekNumber:          week,
		Attendance:          datatypes.NewJSONSlice([]bool{}),
		FormativeOneGrading: models.StatusNotStarted,
		FormativeTwoGrading: models.StatusNotStarted,
		SummativeGrading:    models.StatusNotStarted,
		CourseModeration:    models.StatusNotStarted,
		IntranetSync:        models.StatusNotStarted,
		GradeBookStatus:     models.StatusNotStarted,
		SubmittedAt:         time.Now().UTC(),
	}
}
