package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/verdant/internal/services"
)

// PasswordResetHandler manages the forgot-password endpoints.
type PasswordResetHandler struct {
	otp *services.OTPService
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(otp *services.OTPService) *PasswordResetHandler {
	return &PasswordResetHandler{otp: otp}
}

type requestOTPRequest struct {
	Email string `json:"email"`
}

// RequestOTP mails a one-time code to the account's address.
func (h *PasswordResetHandler) RequestOTP(c *fiber.Ctx) error {
	var req requestOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.otp.RequestOTP(c.UserContext(), req.Email); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "OTP sent to your email."})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP consumes a valid code and returns a password reset token.
func (h *PasswordResetHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	token, err := h.otp.VerifyOTP(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "OTP verified successfully.",
		"reset_token": token,
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
	ResetToken  string `json:"reset_token"`
}

// ResetPassword sets a new password using the token from VerifyOTP.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.otp.ResetPassword(c.UserContext(), req.Email, req.NewPassword, req.ResetToken); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "Password reset successfully."})
}
