package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/mail"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

// HomeHandler serves the landing page resources: testimonials and the contact form.
type HomeHandler struct {
	db        *gorm.DB
	mailer    mail.Mailer
	inbox     string
	appName   string
	mediaRoot string
	log       *zap.Logger
}

// HomeOptions configures HomeHandler.
type HomeOptions struct {
	Mailer    mail.Mailer
	Inbox     string
	AppName   string
	MediaRoot string
	Log       *zap.Logger
}

// NewHomeHandler constructs HomeHandler.
func NewHomeHandler(db *gorm.DB, opts HomeOptions) *HomeHandler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &HomeHandler{
		db:        db,
		mailer:    opts.Mailer,
		inbox:     opts.Inbox,
		appName:   opts.AppName,
		mediaRoot: opts.MediaRoot,
		log:       log,
	}
}

// ListTestimonials returns client testimonials, newest first.
func (h *HomeHandler) ListTestimonials(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var testimonials []models.Testimonial
	if err := db.Preload("User").Order("created_at desc").Find(&testimonials).Error; err != nil {
		return apperror.NewDatabaseError("list testimonials", err)
	}

	out := make([]testimonialResponse, len(testimonials))
	for i := range testimonials {
		out[i] = newTestimonialResponse(c, &testimonials[i])
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

type testimonialRequest struct {
	Review string `json:"review" form:"review" validate:"required"`
}

// CreateTestimonial stores the caller's testimonial with an optional multipart "image".
func (h *HomeHandler) CreateTestimonial(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req testimonialRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	image, err := optionalUpload(c, "image", h.mediaRoot, "testimonials")
	if err != nil {
		return err
	}

	t := models.Testimonial{UserID: userID, Review: req.Review, Image: image}
	if err := db.Create(&t).Error; err != nil {
		return apperror.NewDatabaseError("create testimonial", err)
	}
	if err := db.Preload("User").First(&t, "id = ?", t.ID).Error; err != nil {
		return apperror.NewDatabaseError("load testimonial", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": newTestimonialResponse(c, &t)})
}

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=15"`
	Message string `json:"message" validate:"required"`
}

// Contact stores a contact form submission and forwards it to the shop inbox.
func (h *HomeHandler) Contact(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var req contactRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	msg := models.ContactMessage{
		Name:    req.Name,
		Email:   utils.NormalizeEmail(req.Email),
		Phone:   req.Phone,
		Message: req.Message,
	}
	if err := db.Create(&msg).Error; err != nil {
		return apperror.NewDatabaseError("save contact message", err)
	}

	err := h.mailer.Send(c.UserContext(), mail.Message{
		To:      []string{h.inbox},
		ReplyTo: msg.Email,
		Subject: fmt.Sprintf("%s - Contact form: %s", h.appName, msg.Name),
		Body: fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\n\n%s\n",
			msg.Name, msg.Email, msg.Phone, msg.Message),
	})
	if err != nil {
		h.log.Error("contact mail failed", zap.String("contact_id", msg.ID.String()), zap.Error(err))
		return apperror.NewInternalError("Failed to send message.", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Your message has been sent.",
	})
}
