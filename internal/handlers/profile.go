package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

// ProfileHandler manages user profile endpoints.
type ProfileHandler struct {
	db        *gorm.DB
	mediaRoot string
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB, mediaRoot string) *ProfileHandler {
	return &ProfileHandler{db: db, mediaRoot: mediaRoot}
}

func loadUser(db *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.Preload("Profile").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("user not found")
		}
		return nil, apperror.NewDatabaseError("load user", err)
	}
	if user.Profile == nil {
		user.Profile = &models.Profile{UserID: user.ID}
	}
	return &user, nil
}

// GetProfile returns the authenticated user with profile details.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	user, err := loadUser(db, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": newUserResponse(c, user)})
}

type updateProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=150"`
	LastName    *string `json:"last_name" validate:"omitempty,max=150"`
	Email       *string `json:"email" validate:"omitempty,email"`
	DateOfBirth *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Gender      *string `json:"gender" validate:"omitempty,oneof=M F"`
	Phone       *string `json:"phone" validate:"omitempty,max=15"`
	Password    *string `json:"password" validate:"omitempty,min=8"`
}

// UpdateProfile updates user and profile fields. Only fields present in the body change.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := loadUser(db, userID)
	if err != nil {
		return err
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Email != nil {
		email := utils.NormalizeEmail(*req.Email)
		if email != user.Email {
			var taken int64
			if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&taken).Error; err != nil {
				return apperror.NewDatabaseError("check email", err)
			}
			if taken > 0 {
				return apperror.NewValidationError("Email already exists")
			}
			user.Email = email
		}
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return apperror.NewInternalError("failed to hash password", err)
		}
		user.PasswordHash = hash
	}
	passwordChanged := req.Password != nil

	profile := user.Profile
	if req.DateOfBirth != nil {
		dob, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			return apperror.NewValidationError("date_of_birth must match the format 2006-01-02")
		}
		profile.DateOfBirth = dob
	}
	if req.Gender != nil {
		profile.Gender = *req.Gender
	}
	if req.Phone != nil {
		profile.Phone = *req.Phone
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profile").Save(user).Error; err != nil {
			return err
		}
		if passwordChanged {
			if err := revokePasswordResets(tx, user.ID); err != nil {
				return err
			}
		}
		return tx.Save(profile).Error
	})
	if err != nil {
		return apperror.NewDatabaseError("update profile", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully.",
		"data":    newUserResponse(c, user),
	})
}

// UploadImage replaces the profile picture with the multipart file "image".
func (h *ProfileHandler) UploadImage(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	rel, err := optionalUpload(c, "image", h.mediaRoot, "profile_images")
	if err != nil {
		return err
	}
	if rel == "" {
		return apperror.NewValidationError("image is required")
	}

	user, err := loadUser(db, userID)
	if err != nil {
		return err
	}
	user.Profile.Image = rel
	if err := db.Save(user.Profile).Error; err != nil {
		return apperror.NewDatabaseError("save profile image", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"image": utils.MediaURL(c, rel)},
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword sets a new password after checking the old one.
func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		return apperror.NewDatabaseError("load user", err)
	}

	if !utils.CheckPassword(user.PasswordHash, req.OldPassword) {
		return apperror.NewValidationError("Old password is incorrect.")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return apperror.NewInternalError("failed to hash password", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password_hash", hash).Error; err != nil {
			return err
		}
		return revokePasswordResets(tx, user.ID)
	})
	if err != nil {
		return apperror.NewDatabaseError("update password", err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Password updated successfully."})
}

// revokePasswordResets drops outstanding reset grants so tokens issued
// before a password change stop working.
func revokePasswordResets(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Where("user_id = ?", userID).Delete(&models.PasswordReset{}).Error
}
