package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/cache"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

// ProductCacheKey is the cache key of a product detail.
func ProductCacheKey(productSlug string) string {
	return "product:" + productSlug
}

// CatalogService manages products, reviews and wishlists.
type CatalogService struct {
	db    *gorm.DB
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

// NewCatalogService constructs a CatalogService. A nil cache disables caching.
func NewCatalogService(db *gorm.DB, c cache.Cache, ttl time.Duration, log *zap.Logger) *CatalogService {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{db: db, cache: c, ttl: ttl, log: log}
}

// ProductFilter narrows a product listing. Empty fields are ignored.
type ProductFilter struct {
	Category string
	Name     string
	Keyword  string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Limit    int
	Offset   int
}

// ListProducts returns one page of products and the total matching count.
func (s *CatalogService) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})

	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		query = query.Where("LOWER(name) = LOWER(?)", name)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		query = query.Where(`LOWER(name) LIKE LOWER(?) ESCAPE '\'`, utils.ContainsPattern(kw))
	}
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.NewDatabaseError("count products", err)
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}

	var products []models.Product
	if err := query.Order("created_at desc").
		Limit(f.Limit).Offset(f.Offset).
		Find(&products).Error; err != nil {
		return nil, 0, apperror.NewDatabaseError("list products", err)
	}
	return products, total, nil
}

// GetProduct loads a product by slug through the cache.
func (s *CatalogService) GetProduct(ctx context.Context, productSlug string) (*models.Product, error) {
	var product models.Product
	key := ProductCacheKey(productSlug)

	err := s.cache.Get(ctx, key, &product)
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("product cache read failed", zap.String("slug", productSlug), zap.Error(err))
	}

	loaded, err := productBySlug(s.db.WithContext(ctx), productSlug)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, loaded, s.ttl); err != nil {
		s.log.Warn("product cache write failed", zap.String("slug", productSlug), zap.Error(err))
	}
	return loaded, nil
}

// ProductInput carries the writable product fields. Nil pointers are left unchanged on update.
type ProductInput struct {
	Name        *string
	Price       *decimal.Decimal
	Description *string
	CareGuide   *string
	Image       *string
	Quantity    *int
	Category    *string
}

func (in ProductInput) validate(create bool) error {
	if create && (in.Name == nil || in.Price == nil || in.Category == nil) {
		return apperror.NewValidationError("name, price and category are required")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return apperror.NewValidationError("name may not be blank")
	}
	if in.Name != nil && slug.Make(*in.Name) == "" {
		return apperror.NewValidationError("name must contain letters or digits")
	}
	if in.Price != nil && in.Price.IsNegative() {
		return apperror.NewValidationError("price must not be negative")
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return apperror.NewValidationError("quantity must not be negative")
	}
	if in.Category != nil && !validCategory(*in.Category) {
		return apperror.NewValidationError(fmt.Sprintf("category must be one of %s", strings.Join(models.Categories, ", ")))
	}
	return nil
}

func validCategory(c string) bool {
	for _, known := range models.Categories {
		if c == known {
			return true
		}
	}
	return false
}

// CreateProduct adds a product. The slug is derived from the name.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	product := models.Product{
		Name:     strings.TrimSpace(*in.Name),
		Price:    in.Price.Round(2),
		Category: *in.Category,
	}
	product.Slug = slug.Make(product.Name)
	applyOptional(&product, in)

	db := s.db.WithContext(ctx)
	if err := s.ensureUnique(db, product.Name, product.Slug, uuid.Nil); err != nil {
		return nil, err
	}
	if err := db.Create(&product).Error; err != nil {
		return nil, apperror.NewDatabaseError("create product", err)
	}

	s.log.Info("product created", zap.String("slug", product.Slug))
	return &product, nil
}

// UpdateProduct changes the fields set in in. Renaming a product changes its slug.
func (s *CatalogService) UpdateProduct(ctx context.Context, productSlug string, in ProductInput) (*models.Product, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	var product *models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		product, err = productBySlug(tx, productSlug)
		if err != nil {
			return err
		}

		if in.Name != nil {
			product.Name = strings.TrimSpace(*in.Name)
			product.Slug = slug.Make(product.Name)
			if err := s.ensureUnique(tx, product.Name, product.Slug, product.ID); err != nil {
				return err
			}
		}
		if in.Price != nil {
			product.Price = in.Price.Round(2)
		}
		if in.Category != nil {
			product.Category = *in.Category
		}
		applyOptional(product, in)

		if err := tx.Save(product).Error; err != nil {
			return apperror.NewDatabaseError("update product", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, productSlug, product.Slug)
	return product, nil
}

// DeleteProduct removes a product together with the cart, wishlist and review rows pointing at it.
// Order items keep their snapshot.
func (s *CatalogService) DeleteProduct(ctx context.Context, productSlug string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := productBySlug(tx, productSlug)
		if err != nil {
			return err
		}

		for _, dependent := range []interface{}{&models.CartItem{}, &models.WishlistItem{}, &models.Review{}} {
			if err := tx.Where("product_id = ?", product.ID).Delete(dependent).Error; err != nil {
				return apperror.NewDatabaseError("delete product dependents", err)
			}
		}
		if err := tx.Delete(product).Error; err != nil {
			return apperror.NewDatabaseError("delete product", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, productSlug)
	return nil
}

// AddReview records the user's rating of a product and refreshes the product's
// average rating. Each user may review a product once.
func (s *CatalogService) AddReview(ctx context.Context, userID uuid.UUID, productSlug string, rating float64) (*models.Review, *models.Product, error) {
	if math.IsNaN(rating) || rating < 0 || rating > 5 {
		return nil, nil, apperror.NewValidationError("Rating must be between 0 and 5.")
	}
	rating = roundRating(rating)

	var (
		review  models.Review
		product *models.Product
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		product, err = productBySlug(tx, productSlug)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Review{}).
			Where("user_id = ? AND product_id = ?", userID, product.ID).
			Count(&existing).Error; err != nil {
			return apperror.NewDatabaseError("check review", err)
		}
		if existing > 0 {
			return apperror.NewValidationError("You have already reviewed this product.")
		}

		review = models.Review{UserID: userID, ProductID: product.ID, Rating: rating}
		if err := tx.Create(&review).Error; err != nil {
			return apperror.NewDatabaseError("create review", err)
		}

		var avg float64
		if err := tx.Model(&models.Review{}).
			Where("product_id = ?", product.ID).
			Select("COALESCE(AVG(rating), 0)").
			Scan(&avg).Error; err != nil {
			return apperror.NewDatabaseError("aggregate rating", err)
		}

		product.Rating = roundRating(avg)
		if err := tx.Model(product).UpdateColumn("rating", product.Rating).Error; err != nil {
			return apperror.NewDatabaseError("update rating", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.invalidate(ctx, product.Slug)
	return &review, product, nil
}

func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

func applyOptional(p *models.Product, in ProductInput) {
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.CareGuide != nil {
		p.CareGuide = *in.CareGuide
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
	if in.Quantity != nil {
		p.Quantity = *in.Quantity
	}
}

func (s *CatalogService) ensureUnique(db *gorm.DB, name, productSlug string, except uuid.UUID) error {
	query := db.Model(&models.Product{}).Where("(LOWER(name) = LOWER(?) OR slug = ?)", name, productSlug)
	if except != uuid.Nil {
		query = query.Where("id <> ?", except)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return apperror.NewDatabaseError("check product name", err)
	}
	if count > 0 {
		return apperror.NewConflictError("product with this name already exists")
	}
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, slugs ...string) {
	invalidateProducts(ctx, s.cache, s.log, slugs...)
}

func invalidateProducts(ctx context.Context, c cache.Cache, log *zap.Logger, slugs ...string) {
	keys := make([]string, 0, len(slugs))
	for _, sl := range slugs {
		keys = append(keys, ProductCacheKey(sl))
	}
	if err := c.Delete(ctx, keys...); err != nil {
		log.Warn("product cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
