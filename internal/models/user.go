package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated customer. Email doubles as the login name.
type User struct {
	BaseModel
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Email        string   `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string   `json:"-"`
	IsStaff      bool     `json:"is_staff"`
	IsActive     bool     `gorm:"not null" json:"is_active"`
	Profile      *Profile `json:"profile,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserOTP is the one-time password issued for a password reset. There is at
// most one row per user; requesting a new code overwrites it.
type UserOTP struct {
	BaseModel
	UserID        uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Code          string     `gorm:"size:5;not null" json:"-"`
	Verified      bool       `json:"verified"`
	Attempts      int        `gorm:"not null" json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at"`
}

// PasswordReset is the outstanding reset token issued after a verified OTP.
// Redeeming it deletes the row, so every token works once.
type PasswordReset struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	TokenID   string    `gorm:"size:36;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
}
