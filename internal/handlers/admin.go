package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db, now: time.Now}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return apperror.NewDatabaseError("count users", err)
	}

	var totalProducts int64
	if err := db.Model(&models.Product{}).Count(&totalProducts).Error; err != nil {
		return apperror.NewDatabaseError("count products", err)
	}

	var totalOrders int64
	if err := db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return apperror.NewDatabaseError("count orders", err)
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var statusCounts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return apperror.NewDatabaseError("count orders by status", err)
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	// Pending orders have not been confirmed yet and do not count as revenue.
	totalRevenue, err := h.revenue(db.Where("status <> ?", models.OrderStatusPending))
	if err != nil {
		return err
	}

	now := h.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var todayOrders int64
	if err := db.Model(&models.Order{}).
		Where("created_at >= ?", startOfDay).
		Count(&todayOrders).Error; err != nil {
		return apperror.NewDatabaseError("count today's orders", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":      totalUsers,
			"total_products":   totalProducts,
			"total_orders":     totalOrders,
			"today_orders":     todayOrders,
			"total_revenue":    totalRevenue,
			"orders_by_status": ordersByStatus,
		},
	})
}

func (h *AdminHandler) revenue(scope *gorm.DB) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := scope.Model(&models.Order{}).
		Select("COALESCE(SUM(total_price), 0)").
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, apperror.NewDatabaseError("sum revenue", err)
	}
	return total, nil
}

type adminOrderResponse struct {
	ID         uuid.UUID          `json:"id"`
	User       *authorResponse    `json:"user,omitempty"`
	Email      string             `json:"email"`
	Phone      string             `json:"phone"`
	Address    string             `json:"address"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	Status     models.OrderStatus `json:"status"`
	Items      []models.OrderItem `json:"items"`
	CreatedAt  time.Time          `json:"created_at"`
}

func newAdminOrderResponse(o *models.Order) adminOrderResponse {
	return adminOrderResponse{
		ID:         o.ID,
		User:       newAuthor(o.User),
		Email:      o.Email,
		Phone:      o.Phone,
		Address:    o.Address,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
		Items:      o.Items,
		CreatedAt:  o.CreatedAt,
	}
}

// ListAllOrders returns all orders with pagination, filtering, and user info.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	pg := utils.ParsePagination(c)
	query := db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if search := c.Query("search"); search != "" {
		like := utils.ContainsPattern(search)
		query = query.Where(`LOWER(email) LIKE LOWER(?) ESCAPE '\' OR LOWER(address) LIKE LOWER(?) ESCAPE '\'`, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return apperror.NewDatabaseError("count orders", err)
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return apperror.NewDatabaseError("list orders", err)
	}

	out := make([]adminOrderResponse, len(orders))
	for i := range orders {
		out[i] = newAdminOrderResponse(&orders[i])
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       out,
		"pagination": pg.Meta(total),
	})
}

// ListAllUsers returns all registered users with pagination and search.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	pg := utils.ParsePagination(c)
	query := db.Model(&models.User{})

	if search := c.Query("search"); search != "" {
		like := utils.ContainsPattern(search)
		query = query.Where(
			`LOWER(first_name) LIKE LOWER(?) ESCAPE '\' OR LOWER(last_name) LIKE LOWER(?) ESCAPE '\' OR LOWER(email) LIKE LOWER(?) ESCAPE '\'`,
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return apperror.NewDatabaseError("count users", err)
	}

	var users []models.User
	if err := query.Preload("Profile").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return apperror.NewDatabaseError("list users", err)
	}

	// Enrich users with order counts and total spent
	type userStats struct {
		UserID     uuid.UUID
		OrderCount int64
		TotalSpent decimal.Decimal
	}

	var stats []userStats
	if err := db.Model(&models.Order{}).
		Select("user_id, count(*) as order_count, COALESCE(SUM(total_price), 0) as total_spent").
		Group("user_id").
		Scan(&stats).Error; err != nil {
		return apperror.NewDatabaseError("aggregate orders", err)
	}

	statsMap := make(map[uuid.UUID]userStats, len(stats))
	for _, s := range stats {
		statsMap[s.UserID] = s
	}

	type adminUserResponse struct {
		userResponse
		OrderCount int64           `json:"order_count"`
		TotalSpent decimal.Decimal `json:"total_spent"`
	}

	result := make([]adminUserResponse, len(users))
	for i := range users {
		result[i] = adminUserResponse{userResponse: newUserResponse(c, &users[i]), TotalSpent: decimal.Zero}
		if s, ok := statsMap[users[i].ID]; ok {
			result[i].OrderCount = s.OrderCount
			result[i].TotalSpent = s.TotalSpent
		}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       result,
		"pagination": pg.Meta(total),
	})
}

// RecentOrders returns the most recent 5 orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var orders []models.Order
	if err := db.Preload("Items").Preload("User").
		Order("created_at desc").
		Limit(5).
		Find(&orders).Error; err != nil {
		return apperror.NewDatabaseError("list recent orders", err)
	}

	out := make([]adminOrderResponse, len(orders))
	for i := range orders {
		out[i] = newAdminOrderResponse(&orders[i])
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}
