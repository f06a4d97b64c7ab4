package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/verdant/internal/services"
)

// CartHandler manages the shopping cart and checkout.
type CartHandler struct {
	cart *services.CartService
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(cart *services.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

// ListCart returns the caller's cart with its total.
func (h *CartHandler) ListCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	cart, err := h.cart.ListCart(c.UserContext(), userID)
	if err != nil {
		return err
	}

	items := make([]cartItemResponse, len(cart.Items))
	for i := range cart.Items {
		items[i] = newCartItemResponse(c, &cart.Items[i])
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"items": items,
			"total": cart.Total,
		},
	})
}

type addToCartRequest struct {
	ProductSlug string `json:"product_slug" validate:"required"`
}

// AddToCart adds one unit of a product to the cart.
func (h *CartHandler) AddToCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req addToCartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	item, created, err := h.cart.AddToCart(c.UserContext(), userID, req.ProductSlug)
	if err != nil {
		return err
	}

	status, message := fiber.StatusOK, "Quantity updated."
	if created {
		status, message = fiber.StatusCreated, "Item added to cart."
	}

	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    newCartItemResponse(c, item),
	})
}

// ReduceOrRemove takes one unit of a product out of the cart.
func (h *CartHandler) ReduceOrRemove(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	item, err := h.cart.ReduceOrRemove(c.UserContext(), userID, c.Params("slug"))
	if err != nil {
		return err
	}

	if item == nil {
		return c.JSON(fiber.Map{"success": true, "message": "Item removed from cart."})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Quantity reduced.",
		"data":    newCartItemResponse(c, item),
	})
}

// RemoveFromCart deletes a product from the cart.
func (h *CartHandler) RemoveFromCart(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	if err := h.cart.RemoveFromCart(c.UserContext(), userID, c.Params("slug")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Item removed from cart."})
}

type checkoutRequest struct {
	Phone   string `json:"phone" validate:"required,max=15"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required"`
}

// Checkout turns the cart into an order.
func (h *CartHandler) Checkout(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.cart.Checkout(c.UserContext(), userID, services.CheckoutInput{
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Order placed successfully.",
		"data":    order,
	})
}
