package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// Profile keeps the personal details collected at registration.
type Profile struct {
	BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `gorm:"size:1" json:"gender"`
	Phone       string    `gorm:"size:15" json:"phone"`
	Image       string    `json:"image"`
}
