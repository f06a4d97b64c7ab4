package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/services"
	"github.com/example/verdant/internal/utils"
)

// ProductHandler manages the catalog and product reviews.
type ProductHandler struct {
	catalog *services.CatalogService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(catalog *services.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// RegisterProductRoutes mounts the product endpoints. auth guards reviews, staff guards writes.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router, auth, staff fiber.Handler) {
	router.Get("/", h.ListProducts)
	router.Post("/", auth, staff, h.CreateProduct)
	router.Get("/:slug", h.GetProduct)
	router.Put("/:slug", auth, staff, h.UpdateProduct)
	router.Delete("/:slug", auth, staff, h.DeleteProduct)
	router.Post("/:slug/rate", auth, h.RateProduct)
}

// ListProducts returns paginated products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	filter := services.ProductFilter{
		Category: c.Query("category"),
		Name:     c.Query("name"),
		Keyword:  c.Query("keyword"),
		Limit:    pg.Limit,
		Offset:   pg.Offset,
	}

	var err error
	if filter.MinPrice, err = queryDecimal(c, "minPrice"); err != nil {
		return err
	}
	if filter.MaxPrice, err = queryDecimal(c, "maxPrice"); err != nil {
		return err
	}

	products, total, err := h.catalog.ListProducts(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       newProductList(c, products),
		"pagination": pg.Meta(total),
	})
}

func queryDecimal(c *fiber.Ctx, key string) (*decimal.Decimal, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperror.NewValidationError(key + " must be a number")
	}
	return &v, nil
}

// GetProduct loads a product by slug.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.catalog.GetProduct(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": newProductResponse(c, product)})
}

type productRequest struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description"`
	CareGuide   *string          `json:"care_guide"`
	Image       *string          `json:"image"`
	Quantity    *int             `json:"quantity"`
	Category    *string          `json:"category"`
}

func (r productRequest) input() services.ProductInput {
	return services.ProductInput{
		Name:        r.Name,
		Price:       r.Price,
		Description: r.Description,
		CareGuide:   r.CareGuide,
		Image:       r.Image,
		Quantity:    r.Quantity,
		Category:    r.Category,
	}
}

// CreateProduct adds a product to the catalog.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.CreateProduct(c.UserContext(), req.input())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": newProductResponse(c, product)})
}

// UpdateProduct changes the fields present in the body.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.catalog.UpdateProduct(c.UserContext(), c.Params("slug"), req.input())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": newProductResponse(c, product)})
}

// DeleteProduct removes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	if err := h.catalog.DeleteProduct(c.UserContext(), c.Params("slug")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Product deleted."})
}

type rateRequest struct {
	Rating *float64 `json:"rating" validate:"required"`
}

// RateProduct records the caller's review of a product.
func (h *ProductHandler) RateProduct(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req rateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	review, product, err := h.catalog.AddReview(c.UserContext(), userID, c.Params("slug"), *req.Rating)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Review added successfully.",
		"data": fiber.Map{
			"rating":         review.Rating,
			"product":        product.Slug,
			"product_rating": product.Rating,
		},
	})
}
