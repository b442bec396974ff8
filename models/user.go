package models

import "time"

// User is the profile returned by GET /users/me.
type User struct {
	ID                     string     `json:"id"`
	Email                  string     `json:"email"`
	IsActive               bool       `json:"is_active"`
	IsVerified             bool       `json:"is_verified"`
	HasCompletedOnboarding bool       `json:"has_completed_onboarding"`
	CreatedAt              time.Time  `json:"created_at"`
	LastLoginAt            *time.Time `json:"last_login_at"`
}
