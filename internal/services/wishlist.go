package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/models"
)

// AddToWishlist saves a product to the user's wishlist.
func (s *CatalogService) AddToWishlist(ctx context.Context, userID uuid.UUID, productSlug string) (*models.WishlistItem, error) {
	productSlug = strings.TrimSpace(productSlug)
	if productSlug == "" {
		return nil, apperror.NewValidationError("product_slug is required.")
	}

	var item models.WishlistItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := productBySlug(tx, productSlug)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.WishlistItem{}).
			Where("user_id = ? AND product_id = ?", userID, product.ID).
			Count(&existing).Error; err != nil {
			return apperror.NewDatabaseError("check wishlist", err)
		}
		if existing > 0 {
			return apperror.NewValidationError("Product is already in your wishlist.")
		}

		item = models.WishlistItem{
			UserID:    userID,
			ProductID: product.ID,
			Product:   product,
			AddedAt:   time.Now().UTC(),
		}
		if err := tx.Omit("Product").Create(&item).Error; err != nil {
			return apperror.NewDatabaseError("add to wishlist", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListWishlist returns the user's wishlist, newest first.
func (s *CatalogService) ListWishlist(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	if err := s.db.WithContext(ctx).Preload("Product").
		Where("user_id = ?", userID).
		Order("added_at desc").
		Find(&items).Error; err != nil {
		return nil, apperror.NewDatabaseError("list wishlist", err)
	}
	return items, nil
}

// RemoveFromWishlist deletes the product from the user's wishlist.
func (s *CatalogService) RemoveFromWishlist(ctx context.Context, userID uuid.UUID, productSlug string) error {
	db := s.db.WithContext(ctx)

	product, err := productBySlug(db, productSlug)
	if err != nil {
		return err
	}

	res := db.Where("user_id = ? AND product_id = ?", userID, product.ID).Delete(&models.WishlistItem{})
	if res.Error != nil {
		return apperror.NewDatabaseError("remove from wishlist", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NewNotFoundError("Product not found in your wishlist.")
	}
	return nil
}
