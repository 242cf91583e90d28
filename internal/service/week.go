package service

import (
	"math"
	"time"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

const day = 24 * time.Hour

// CurrentWeek returns the teaching week reached at now when counting from base.
// Whole elapsed days are divided by seven and rounded up. The result is never
// negative and never exceeds models.MaxWeekNumber.
func CurrentWeek(base, now time.Time) int {
	elapsed := now.Sub(base)
	if elapsed <= 0 {
		return 0
	}

	days := int(elapsed / day)
	week := int(math.Ceil(float64(days) / 7))
	if week > models.MaxWeekNumber {
		return models.MaxWeekNumber
	}
	return week
}

// WeekDueAt returns the moment a week's log becomes overdue.
func WeekDueAt(base time.Time, week int, grace time.Duration) time.Time {
	return base.Add(time.Duration(week) * 7 * day).Add(grace)
}
