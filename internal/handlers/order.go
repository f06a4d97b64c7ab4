package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/services"
	"github.com/example/verdant/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	cart *services.CartService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(cart *services.CartService) *OrderHandler {
	return &OrderHandler{cart: cart}
}

// ListOrders returns the authenticated user's orders, newest first.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.cart.ListOrders(c.UserContext(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns a single order owned by the user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	orderID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.cart.GetOrder(c.UserContext(), userID, orderID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus moves an order to its next status. Staff only.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	orderID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.cart.UpdateOrderStatus(c.UserContext(), orderID, models.OrderStatus(req.Status))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}
