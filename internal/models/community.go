package models

import "github.com/google/uuid"

type Post struct {
	BaseModel
	PostName string    `gorm:"size:50;not null" json:"post_name"`
	UserID   uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	User     *User     `json:"-"`
	Content  string    `gorm:"not null" json:"content"`
	Image    string    `json:"image"`
	Comments []Comment `json:"comments,omitempty"`
}

type Comment struct {
	BaseModel
	PostID  uuid.UUID `gorm:"type:uuid;index;not null" json:"post_id"`
	UserID  uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	User    *User     `json:"-"`
	Comment string    `gorm:"not null" json:"comment"`
}
