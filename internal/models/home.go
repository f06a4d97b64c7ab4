package models

import "github.com/google/uuid"

// Testimonial is a customer review shown on the landing page.
type Testimonial struct {
	BaseModel
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	User   *User     `json:"-"`
	Review string    `gorm:"not null" json:"review"`
	Image  string    `json:"image"`
}

// ContactMessage is a submission of the public contact form.
type ContactMessage struct {
	BaseModel
	Name    string `gorm:"size:255;not null" json:"name"`
	Email   string `gorm:"not null" json:"email"`
	Phone   string `gorm:"size:15" json:"phone"`
	Message string `gorm:"not null" json:"message"`
}
