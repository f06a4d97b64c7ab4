package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/config"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
	log *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, log: log}
}

type registerRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	DateOfBirth     string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender          string `json:"gender" validate:"required,oneof=M F"`
	Phone           string `json:"phone" validate:"required,max=15"`
}

// Register creates a new user account with its profile.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if req.Password != req.ConfirmPassword {
		return apperror.NewValidationError("Passwords do not match")
	}

	dob, err := time.Parse(dateLayout, req.DateOfBirth)
	if err != nil {
		return apperror.NewValidationError("date_of_birth must match the format 2006-01-02")
	}

	email := utils.NormalizeEmail(req.Email)

	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return apperror.NewDatabaseError("check email", err)
	}
	if existing > 0 {
		return apperror.NewValidationError("Email already exists")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return apperror.NewInternalError("failed to hash password", err)
	}

	user := models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		Profile: &models.Profile{
			DateOfBirth: dob,
			Gender:      req.Gender,
			Phone:       req.Phone,
		},
	}

	// User and profile are inserted in one transaction by gorm's association save.
	if err := db.Create(&user).Error; err != nil {
		return apperror.NewDatabaseError("create user", err)
	}

	tokens, err := utils.GenerateTokenPair(h.cfg.JWTSecret, user.ID, h.cfg.TokenExpires, h.cfg.RefreshExpires)
	if err != nil {
		return apperror.NewInternalError("failed to generate token", err)
	}

	h.log.Info("user registered", zap.String("user_id", user.ID.String()))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    newUserResponse(c, &user),
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an existing user and returns an access and a refresh token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var user models.User
	if err := db.Where("email = ?", utils.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NewUnauthorizedError("No active account found with the given credentials")
		}
		return apperror.NewDatabaseError("load user", err)
	}

	if !user.IsActive || !utils.CheckPassword(user.PasswordHash, req.Password) {
		return apperror.NewUnauthorizedError("No active account found with the given credentials")
	}

	tokens, err := utils.GenerateTokenPair(h.cfg.JWTSecret, user.ID, h.cfg.TokenExpires, h.cfg.RefreshExpires)
	if err != nil {
		return apperror.NewInternalError("failed to generate token", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.FullName(),
		},
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	userID, err := utils.ParseTypedToken(h.cfg.JWTSecret, utils.TokenRefresh, req.Refresh)
	if err != nil {
		return apperror.NewUnauthorizedError("Token is invalid or expired")
	}

	var user models.User
	if err := db.Select("id", "is_active").First(&user, "id = ?", userID).Error; err != nil || !user.IsActive {
		return apperror.NewUnauthorizedError("Token is invalid or expired")
	}

	access, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenExpires)
	if err != nil {
		return apperror.NewInternalError("failed to generate token", err)
	}

	return c.JSON(fiber.Map{"success": true, "access": access})
}
