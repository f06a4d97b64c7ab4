package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CategoryPlants = "Plants"
	CategorySeeds  = "Seeds"
	CategoryPots   = "Pots"
)

// Categories lists every accepted product category.
var Categories = []string{CategoryPlants, CategorySeeds, CategoryPots}

type Product struct {
	BaseModel
	Name        string          `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Slug        string          `gorm:"uniqueIndex;not null" json:"slug"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Description string          `json:"description"`
	CareGuide   string          `json:"care_guide"`
	Image       string          `json:"image"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Category    string          `gorm:"size:10;index" json:"category"`
	Rating      float64         `gorm:"not null;default:0" json:"rating"`
}

// Review is a single user's rating of a product.
type Review struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_review_user_product;not null" json:"-"`
	User      *User     `json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_review_user_product;not null" json:"-"`
	Product   *Product  `json:"-"`
	Rating    float64   `gorm:"not null" json:"rating"`
}

type WishlistItem struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wishlist_user_product;not null" json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wishlist_user_product;not null" json:"-"`
	Product   *Product  `json:"product,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}
