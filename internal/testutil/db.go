// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/verdant/internal/database"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

// Password is the plaintext password of every user created by CreateUser.
const Password = "password123"

// NewDB opens a migrated in-memory SQLite database that lives for the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser inserts an active user with a profile and the shared test password.
func CreateUser(t *testing.T, db *gorm.DB, email string, staff bool) models.User {
	t.Helper()

	hash, err := utils.HashPassword(Password)
	require.NoError(t, err)

	user := models.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: hash,
		IsStaff:      staff,
		IsActive:     true,
		Profile: &models.Profile{
			DateOfBirth: time.Date(1995, 4, 12, 0, 0, 0, 0, time.UTC),
			Gender:      models.GenderFemale,
			Phone:       "0123456789",
		},
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateProduct inserts a product in the Plants category.
func CreateProduct(t *testing.T, db *gorm.DB, name, slug, price string, quantity int) models.Product {
	t.Helper()

	product := models.Product{
		Name:     name,
		Slug:     slug,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
		Category: models.CategoryPlants,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

// AddToCart inserts a cart row directly.
func AddToCart(t *testing.T, db *gorm.DB, userID uuid.UUID, product models.Product, quantity int) models.CartItem {
	t.Helper()

	item := models.CartItem{
		UserID:    userID,
		ProductID: product.ID,
		Quantity:  quantity,
		AddedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}
