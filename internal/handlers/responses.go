package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

const dateLayout = "2006-01-02"

type profileResponse struct {
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	Phone       string `json:"phone"`
	Image       string `json:"image"`
}

type userResponse struct {
	ID        uuid.UUID        `json:"id"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	Email     string           `json:"email"`
	IsStaff   bool             `json:"is_staff"`
	Profile   *profileResponse `json:"profile,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func newUserResponse(c *fiber.Ctx, u *models.User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		IsStaff:   u.IsStaff,
		CreatedAt: u.CreatedAt,
	}
	if p := u.Profile; p != nil {
		resp.Profile = &profileResponse{
			Gender: p.Gender,
			Phone:  p.Phone,
			Image:  utils.MediaURL(c, p.Image),
		}
		if !p.DateOfBirth.IsZero() {
			resp.Profile.DateOfBirth = p.DateOfBirth.Format(dateLayout)
		}
	}
	return resp
}

type authorResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func newAuthor(u *models.User) *authorResponse {
	if u == nil {
		return nil
	}
	return &authorResponse{ID: u.ID, Name: u.FullName()}
}

type productResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	CareGuide   string          `json:"care_guide"`
	Image       string          `json:"image"`
	Quantity    int             `json:"quantity"`
	Category    string          `json:"category"`
	Rating      float64         `json:"rating"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newProductResponse(c *fiber.Ctx, p *models.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Price:       p.Price,
		Description: p.Description,
		CareGuide:   p.CareGuide,
		Image:       utils.MediaURL(c, p.Image),
		Quantity:    p.Quantity,
		Category:    p.Category,
		Rating:      p.Rating,
		CreatedAt:   p.CreatedAt,
	}
}

func newProductList(c *fiber.Ctx, products []models.Product) []productResponse {
	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = newProductResponse(c, &products[i])
	}
	return out
}

type cartItemResponse struct {
	ID        uuid.UUID        `json:"id"`
	Product   *productResponse `json:"product,omitempty"`
	Quantity  int              `json:"quantity"`
	LineTotal decimal.Decimal  `json:"line_total"`
	AddedAt   time.Time        `json:"added_at"`
}

func newCartItemResponse(c *fiber.Ctx, item *models.CartItem) cartItemResponse {
	resp := cartItemResponse{ID: item.ID, Quantity: item.Quantity, AddedAt: item.AddedAt}
	if item.Product != nil {
		p := newProductResponse(c, item.Product)
		resp.Product = &p
		resp.LineTotal = item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
	}
	return resp
}

type wishlistItemResponse struct {
	ID      uuid.UUID        `json:"id"`
	Product *productResponse `json:"product,omitempty"`
	AddedAt time.Time        `json:"added_at"`
}

func newWishlistItemResponse(c *fiber.Ctx, item *models.WishlistItem) wishlistItemResponse {
	resp := wishlistItemResponse{ID: item.ID, AddedAt: item.AddedAt}
	if item.Product != nil {
		p := newProductResponse(c, item.Product)
		resp.Product = &p
	}
	return resp
}

type commentResponse struct {
	ID        uuid.UUID       `json:"id"`
	PostID    uuid.UUID       `json:"post_id"`
	Comment   string          `json:"comment"`
	Author    *authorResponse `json:"author,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func newCommentResponse(cm *models.Comment) commentResponse {
	return commentResponse{
		ID:        cm.ID,
		PostID:    cm.PostID,
		Comment:   cm.Comment,
		Author:    newAuthor(cm.User),
		CreatedAt: cm.CreatedAt,
	}
}

type postResponse struct {
	ID        uuid.UUID         `json:"id"`
	PostName  string            `json:"post_name"`
	Content   string            `json:"content"`
	Image     string            `json:"image"`
	Author    *authorResponse   `json:"author,omitempty"`
	Comments  []commentResponse `json:"comments,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func newPostResponse(c *fiber.Ctx, p *models.Post) postResponse {
	resp := postResponse{
		ID:        p.ID,
		PostName:  p.PostName,
		Content:   p.Content,
		Image:     utils.MediaURL(c, p.Image),
		Author:    newAuthor(p.User),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	for i := range p.Comments {
		resp.Comments = append(resp.Comments, newCommentResponse(&p.Comments[i]))
	}
	return resp
}

type testimonialResponse struct {
	ID     uuid.UUID       `json:"id"`
	Review string          `json:"review"`
	Image  string          `json:"image"`
	Author *authorResponse `json:"author,omitempty"`
	Date   time.Time       `json:"date"`
}

func newTestimonialResponse(c *fiber.Ctx, t *models.Testimonial) testimonialResponse {
	return testimonialResponse{
		ID:     t.ID,
		Review: t.Review,
		Image:  utils.MediaURL(c, t.Image),
		Author: newAuthor(t.User),
		Date:   t.CreatedAt,
	}
}
