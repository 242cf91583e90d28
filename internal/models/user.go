package models

import (
	"strings"
	"time"
)

const (
	// RoleManager reviews submissions and receives aggregate notifications.
	RoleManager = "manager"
	// RoleFacilitator submits weekly activity logs for owned offerings.
	RoleFacilitator = "facilitator"
)

// User is an account that can own offerings or receive notifications.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FirstName string    `gorm:"size:128;not null" json:"first_name"`
	LastName  string    `gorm:"size:128;not null" json:"last_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;index;not null" json:"role"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the display name used in notifications.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
