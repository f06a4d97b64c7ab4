package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/verdant/internal/services"
)

type WishlistHandler struct {
	catalog *services.CatalogService
}

func NewWishlistHandler(catalog *services.CatalogService) *WishlistHandler {
	return &WishlistHandler{catalog: catalog}
}

func (h *WishlistHandler) List(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	items, err := h.catalog.ListWishlist(c.UserContext(), userID)
	if err != nil {
		return err
	}

	out := make([]wishlistItemResponse, len(items))
	for i := range items {
		out[i] = newWishlistItemResponse(c, &items[i])
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

type wishlistRequest struct {
	ProductSlug string `json:"product_slug"`
}

func (h *WishlistHandler) Add(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req wishlistRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	item, err := h.catalog.AddToWishlist(c.UserContext(), userID, req.ProductSlug)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Product added to wishlist.",
		"data":    newWishlistItemResponse(c, item),
	})
}

func (h *WishlistHandler) Remove(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	if err := h.catalog.RemoveFromWishlist(c.UserContext(), userID, c.Params("slug")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Product removed from wishlist."})
}
