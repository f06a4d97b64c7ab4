package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/logger"
	"github.com/example/verdant/internal/mail"
	"github.com/example/verdant/internal/metrics"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

const (
	OTPLength      = 5
	OTPLifetime    = 5 * time.Minute
	OTPMaxAttempts = 3
	OTPLockout     = 5 * time.Minute
	ResetTokenTTL  = 10 * time.Minute
)

// CodeSource produces one-time codes.
type CodeSource interface {
	Generate() (string, error)
}

// OTPService issues and verifies password reset codes.
type OTPService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	secret  string
	appName string
	codes   CodeSource
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

// OTPOption customizes an OTPService.
type OTPOption func(*OTPService)

// WithClock overrides the time source used for expiry and lockout.
func WithClock(now func() time.Time) OTPOption {
	return func(s *OTPService) { s.now = now }
}

// WithCodeSource overrides the code generator.
func WithCodeSource(src CodeSource) OTPOption {
	return func(s *OTPService) { s.codes = src }
}

func WithOTPMetrics(m *metrics.Metrics) OTPOption {
	return func(s *OTPService) { s.metrics = m }
}

func WithAppName(name string) OTPOption {
	return func(s *OTPService) { s.appName = name }
}

// NewOTPService constructs an OTPService. secret signs the reset tokens.
func NewOTPService(db *gorm.DB, mailer mail.Mailer, secret string, log *zap.Logger, opts ...OTPOption) *OTPService {
	s := &OTPService{
		db:      db,
		mailer:  mailer,
		secret:  secret,
		appName: "Verdant",
		codes:   utils.NewCodeGenerator(OTPLength),
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// RequestOTP stores a fresh code for the user owning email and mails it.
// Any previous code and attempt counter are replaced.
func (s *OTPService) RequestOTP(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.OTPEvent("request", metrics.OutcomeOf(err)) }()

	email = utils.NormalizeEmail(email)
	if email == "" {
		return apperror.NewValidationError("Email is required.")
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.codes.Generate()
	if err != nil {
		return apperror.NewInternalError("failed to generate code", err)
	}

	now := s.now()
	otp := models.UserOTP{
		UserID:   user.ID,
		Code:     code,
		Verified: false,
		Attempts: 0,
	}
	otp.CreatedAt = now
	otp.UpdatedAt = now

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "verified", "attempts", "last_attempt_at", "created_at", "updated_at"}),
	}).Create(&otp).Error; err != nil {
		return apperror.NewDatabaseError("store otp", err)
	}

	msg := mail.Message{
		To:      []string{user.Email},
		Subject: fmt.Sprintf("%s - Your Password Reset Code", s.appName),
		Body: fmt.Sprintf(
			"Hello %s,\n\n"+
				"Your OTP code for password reset is: %s\n\n"+
				"This code will expire in %d minutes.\n\n"+
				"Best regards,\nThe %s Team",
			user.FullName(), code, int(OTPLifetime.Minutes()), s.appName),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error("otp email failed", zap.String("email", logger.MaskEmail(user.Email)), zap.Error(err))
		return apperror.NewServiceUnavailableError("Failed to send OTP. Please try again later.", err)
	}

	s.log.Info("otp issued", zap.String("user_id", user.ID.String()))
	return nil
}

// VerifyOTP checks code against the stored OTP. On success the OTP is consumed
// and a short-lived password reset token is returned.
func (s *OTPService) VerifyOTP(ctx context.Context, email, code string) (token string, err error) {
	defer func() { s.metrics.OTPEvent("verify", metrics.OutcomeOf(err)) }()

	email, code = utils.NormalizeEmail(email), strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", apperror.NewValidationError("Email and OTP are required.")
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return "", err
	}

	db := s.db.WithContext(ctx)

	var otp models.UserOTP
	if err := db.Where("user_id = ?", user.ID).First(&otp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperror.NewNotFoundError("OTP not found. Please request a new one.")
		}
		return "", apperror.NewDatabaseError("load otp", err)
	}

	now := s.now()

	if otp.Attempts >= OTPMaxAttempts {
		if otp.LastAttemptAt != nil && now.Sub(*otp.LastAttemptAt) < OTPLockout {
			return "", apperror.NewForbiddenError("Too many failed attempts. Please try again later.")
		}
		// Only clear a lockout that is still the one observed above.
		if err := db.Model(&models.UserOTP{}).
			Where("id = ? AND attempts >= ? AND (last_attempt_at IS NULL OR last_attempt_at <= ?)",
				otp.ID, OTPMaxAttempts, now.Add(-OTPLockout)).
			Update("attempts", 0).Error; err != nil {
			return "", apperror.NewDatabaseError("reset otp attempts", err)
		}
	}

	if now.Sub(otp.CreatedAt) > OTPLifetime {
		return "", apperror.NewValidationError("OTP has expired.")
	}

	// Claim the attempt before comparing so concurrent guesses cannot exceed the cap.
	claim := db.Model(&models.UserOTP{}).
		Where("id = ? AND attempts < ?", otp.ID, OTPMaxAttempts).
		Updates(map[string]interface{}{
			"attempts":        gorm.Expr("attempts + ?", 1),
			"last_attempt_at": now,
		})
	if claim.Error != nil {
		return "", apperror.NewDatabaseError("record otp attempt", claim.Error)
	}
	if claim.RowsAffected == 0 {
		return "", apperror.NewForbiddenError("Too many failed attempts. Please try again later.")
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(otp.Code)) != 1 {
		return "", apperror.NewValidationError("Invalid OTP.")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		consumed := tx.Where("id = ?", otp.ID).Delete(&models.UserOTP{})
		if consumed.Error != nil {
			return apperror.NewDatabaseError("consume otp", consumed.Error)
		}
		if consumed.RowsAffected == 0 {
			return apperror.NewNotFoundError("OTP not found. Please request a new one.")
		}

		var tokenID string
		token, tokenID, err = utils.IssueTypedToken(s.secret, utils.TokenPasswordReset, user.ID, ResetTokenTTL)
		if err != nil {
			return apperror.NewInternalError("failed to generate reset token", err)
		}

		// A newer reset token replaces any older one for the same user.
		grant := models.PasswordReset{UserID: user.ID, TokenID: tokenID, ExpiresAt: now.Add(ResetTokenTTL)}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token_id", "expires_at", "updated_at"}),
		}).Create(&grant).Error; err != nil {
			return apperror.NewDatabaseError("store reset token", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword sets a new password for the user owning email. resetToken must
// be a password reset token issued to that same user.
func (s *OTPService) ResetPassword(ctx context.Context, email, newPassword, resetToken string) (err error) {
	defer func() { s.metrics.OTPEvent("reset", metrics.OutcomeOf(err)) }()

	email = utils.NormalizeEmail(email)
	if email == "" || newPassword == "" || resetToken == "" {
		return apperror.NewValidationError("Email, new password and reset token are required.")
	}
	if len(newPassword) < utils.MinPasswordLength {
		return apperror.NewValidationError(fmt.Sprintf("Password must be at least %d characters.", utils.MinPasswordLength))
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}

	claims, err := utils.ParseTypedClaims(s.secret, utils.TokenPasswordReset, resetToken)
	if err != nil || claims.UserID != user.ID {
		return apperror.NewForbiddenError("Invalid or expired reset token.")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperror.NewInternalError("failed to hash password", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Redeeming the grant makes the token single-use.
		redeemed := tx.Where("user_id = ? AND token_id = ? AND expires_at > ?", user.ID, claims.ID, s.now()).
			Delete(&models.PasswordReset{})
		if redeemed.Error != nil {
			return apperror.NewDatabaseError("redeem reset token", redeemed.Error)
		}
		if redeemed.RowsAffected == 0 {
			return apperror.NewForbiddenError("Invalid or expired reset token.")
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("password_hash", hash).Error; err != nil {
			return apperror.NewDatabaseError("update password", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("password reset", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *OTPService) findUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("User with this email does not exist.")
		}
		return nil, apperror.NewDatabaseError("load user", err)
	}
	return &user, nil
}
