package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/cache"
	"github.com/example/verdant/internal/metrics"
	"github.com/example/verdant/internal/models"
)

// CartService owns the cart and turns it into orders.
type CartService struct {
	db       *gorm.DB
	cache    cache.Cache
	notifier *OrderNotifier
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewCartService constructs a CartService. notifier and m may be nil.
func NewCartService(db *gorm.DB, c cache.Cache, notifier *OrderNotifier, m *metrics.Metrics, log *zap.Logger) *CartService {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{db: db, cache: c, notifier: notifier, metrics: m, log: log}
}

// Cart is the user's current cart with its total.
type Cart struct {
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

// CheckoutInput is the contact information attached to an order.
type CheckoutInput struct {
	Phone   string
	Email   string
	Address string
}

// AddToCart adds one unit of the product. created reports whether a new cart
// row was inserted rather than an existing one incremented.
func (s *CartService) AddToCart(ctx context.Context, userID uuid.UUID, productSlug string) (item *models.CartItem, created bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := productBySlug(tx, productSlug)
		if err != nil {
			return err
		}

		var row models.CartItem
		err = tx.Where("user_id = ? AND product_id = ?", userID, product.ID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if product.Quantity < 1 {
				return apperror.NewValidationError(fmt.Sprintf("Not enough stock for %s", product.Name))
			}
			row = models.CartItem{
				UserID:    userID,
				ProductID: product.ID,
				Quantity:  1,
				AddedAt:   time.Now().UTC(),
			}
			if err := tx.Create(&row).Error; err != nil {
				return apperror.NewDatabaseError("add to cart", err)
			}
			created = true
		case err != nil:
			return apperror.NewDatabaseError("load cart item", err)
		default:
			if row.Quantity+1 > product.Quantity {
				return apperror.NewValidationError(fmt.Sprintf("Only %d of %s available.", product.Quantity, product.Name))
			}
			if err := tx.Model(&row).Update("quantity", gorm.Expr("quantity + ?", 1)).Error; err != nil {
				return apperror.NewDatabaseError("update cart item", err)
			}
			row.Quantity++
		}

		row.Product = product
		item = &row
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return item, created, nil
}

// ReduceOrRemove takes one unit of the product out of the cart. When the last
// unit is removed the row is deleted and nil is returned.
func (s *CartService) ReduceOrRemove(ctx context.Context, userID uuid.UUID, productSlug string) (*models.CartItem, error) {
	var result *models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := cartRow(tx, userID, productSlug)
		if err != nil {
			return err
		}

		if row.Quantity <= 1 {
			if err := tx.Delete(row).Error; err != nil {
				return apperror.NewDatabaseError("remove cart item", err)
			}
			return nil
		}

		if err := tx.Model(row).Update("quantity", gorm.Expr("quantity - ?", 1)).Error; err != nil {
			return apperror.NewDatabaseError("update cart item", err)
		}
		row.Quantity--
		result = row
		return nil
	})
	return result, err
}

// RemoveFromCart deletes the product's cart row regardless of quantity.
func (s *CartService) RemoveFromCart(ctx context.Context, userID uuid.UUID, productSlug string) error {
	db := s.db.WithContext(ctx)
	row, err := cartRow(db, userID, productSlug)
	if err != nil {
		return err
	}
	if err := db.Delete(row).Error; err != nil {
		return apperror.NewDatabaseError("remove cart item", err)
	}
	return nil
}

// ListCart returns the cart rows, oldest first, with their products.
func (s *CartService) ListCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	var items []models.CartItem
	if err := s.db.WithContext(ctx).Preload("Product").
		Where("user_id = ?", userID).
		Order("added_at asc").
		Find(&items).Error; err != nil {
		return nil, apperror.NewDatabaseError("list cart", err)
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Product != nil {
			total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return &Cart{Items: items, Total: total}, nil
}

// Checkout converts the whole cart into a pending order in a single
// transaction. Stock is decremented with a conditional update so that
// concurrent checkouts can never oversell; if any line lacks stock nothing
// is written.
func (s *CartService) Checkout(ctx context.Context, userID uuid.UUID, in CheckoutInput) (order *models.Order, err error) {
	defer func() { s.metrics.CheckoutOutcome(metrics.OutcomeOf(err)) }()

	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.Address = strings.TrimSpace(in.Address)
	if in.Phone == "" || in.Email == "" || in.Address == "" {
		return nil, apperror.NewValidationError("Phone, email and address are required.")
	}

	var slugs []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Preload("Product").
			Where("user_id = ?", userID).
			Order("added_at asc").
			Find(&items).Error; err != nil {
			return apperror.NewDatabaseError("load cart", err)
		}
		if len(items) == 0 {
			return apperror.NewValidationError("Cart is empty")
		}

		now := time.Now().UTC()
		total := decimal.Zero
		lines := make([]models.OrderItem, 0, len(items))

		for _, item := range items {
			product := item.Product
			if product == nil {
				return apperror.NewNotFoundError("Product not found.")
			}

			res := tx.Model(&models.Product{}).
				Where("id = ? AND quantity >= ?", product.ID, item.Quantity).
				UpdateColumns(map[string]interface{}{
					"quantity":   gorm.Expr("quantity - ?", item.Quantity),
					"updated_at": now,
				})
			if res.Error != nil {
				return apperror.NewDatabaseError("decrement stock", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperror.NewValidationError(fmt.Sprintf("Not enough stock for %s", product.Name))
			}

			line := models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				ProductSlug: product.Slug,
				Quantity:    item.Quantity,
				Price:       product.Price,
			}
			total = total.Add(line.LineTotal())
			lines = append(lines, line)
			slugs = append(slugs, product.Slug)
		}

		order = &models.Order{
			UserID:     userID,
			Phone:      in.Phone,
			Email:      in.Email,
			Address:    in.Address,
			TotalPrice: total,
			Status:     models.OrderStatusPending,
		}
		if err := tx.Create(order).Error; err != nil {
			return apperror.NewDatabaseError("create order", err)
		}

		for i := range lines {
			lines[i].OrderID = order.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return apperror.NewDatabaseError("create order items", err)
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return apperror.NewDatabaseError("clear cart", err)
		}

		order.Items = lines
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateProducts(ctx, s.cache, s.log, slugs...)
	s.log.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", order.TotalPrice.StringFixed(2)),
	)

	if s.notifier != nil {
		if err := s.notifier.NotifyNewOrder(ctx, order); err != nil {
			s.log.Warn("order notification failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}
	return order, nil
}

// ListOrders returns one page of the user's orders, newest first.
func (s *CartService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.NewDatabaseError("count orders", err)
	}

	if limit <= 0 {
		limit = 20
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, 0, apperror.NewDatabaseError("list orders", err)
	}
	return orders, total, nil
}

// GetOrder loads one of the user's orders.
func (s *CartService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Order not found.")
		}
		return nil, apperror.NewDatabaseError("load order", err)
	}
	return &order, nil
}

// UpdateOrderStatus moves an order one step forward in its lifecycle.
func (s *CartService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperror.NewValidationError(fmt.Sprintf("Invalid status %q.", status))
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFoundError("Order not found.")
			}
			return apperror.NewDatabaseError("load order", err)
		}

		if !order.Status.CanTransitionTo(status) {
			return apperror.NewValidationError(fmt.Sprintf("Cannot change status from %s to %s.", order.Status, status))
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Update("status", status)
		if res.Error != nil {
			return apperror.NewDatabaseError("update order status", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperror.NewConflictError("Order status changed concurrently.")
		}
		order.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status updated", zap.String("order_id", order.ID.String()), zap.String("status", string(status)))
	return &order, nil
}

func productBySlug(db *gorm.DB, productSlug string) (*models.Product, error) {
	var product models.Product
	if err := db.Where("slug = ?", productSlug).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Product not found.")
		}
		return nil, apperror.NewDatabaseError("load product", err)
	}
	return &product, nil
}

func cartRow(db *gorm.DB, userID uuid.UUID, productSlug string) (*models.CartItem, error) {
	product, err := productBySlug(db, productSlug)
	if err != nil {
		return nil, err
	}

	var row models.CartItem
	if err := db.Where("user_id = ? AND product_id = ?", userID, product.ID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Product not found in your cart.")
		}
		return nil, apperror.NewDatabaseError("load cart item", err)
	}
	row.Product = product
	return &row, nil
}
