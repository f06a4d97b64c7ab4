package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivered OrderStatus = "Delivered"
)

var orderStatusFlow = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	return s.rank() >= 0
}

// CanTransitionTo reports whether an order may move from s to next.
// Orders only move forward, one step at a time.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to == from+1
}

func (s OrderStatus) rank() int {
	for i, st := range orderStatusFlow {
		if st == s {
			return i
		}
	}
	return -1
}

// CartItem is a mutable line in a user's cart.
type CartItem struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_user_product;not null" json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_user_product;not null" json:"-"`
	Product   *Product  `json:"product,omitempty"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Order is the immutable snapshot produced by checkout.
type Order struct {
	BaseModel
	UserID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	User       *User           `json:"-"`
	Phone      string          `gorm:"size:15" json:"phone"`
	Email      string          `json:"email"`
	Address    string          `json:"address"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_price"`
	Status     OrderStatus     `gorm:"size:20;not null;default:Pending;index" json:"status"`
	Items      []OrderItem     `json:"items,omitempty"`
}

// OrderItem records the price paid at checkout, independent of later product changes.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSlug string          `json:"product_slug"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
