package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

const (
	userContextKey  = "currentUserID"
	staffContextKey = "currentUserIsStaff"
)

// AuthMiddleware validates the Bearer access token and loads the user ID into context.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperror.NewUnauthorizedError("Authentication credentials were not provided.")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperror.NewUnauthorizedError("invalid authorization header")
		}

		userID, err := utils.ParseToken(secret, parts[1])
		if err != nil {
			return apperror.NewUnauthorizedError("invalid token")
		}

		c.Locals(userContextKey, userID)
		return c.Next()
	}
}

// StaffOnly rejects authenticated users without the staff flag. It must run after AuthMiddleware.
func StaffOnly(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staff, err := IsStaff(c, db)
		if err != nil {
			return err
		}
		if !staff {
			return apperror.NewForbiddenError("You do not have permission to perform this action.")
		}
		return c.Next()
	}
}

// IsStaff reports whether the current user is staff. The answer is cached on the request.
func IsStaff(c *fiber.Ctx, db *gorm.DB) (bool, error) {
	if v, ok := c.Locals(staffContextKey).(bool); ok {
		return v, nil
	}

	userID, ok := GetCurrentUserID(c)
	if !ok {
		return false, apperror.NewUnauthorizedError("Authentication credentials were not provided.")
	}

	var user models.User
	if err := db.WithContext(c.UserContext()).Select("id", "is_staff", "is_active").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperror.NewUnauthorizedError("user not found")
		}
		return false, apperror.NewDatabaseError("load user", err)
	}

	staff := user.IsStaff && user.IsActive
	c.Locals(staffContextKey, staff)
	return staff, nil
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}
