package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/example/verdant/internal/apperror"
)

// ErrorHandler renders every error returned by a handler as a JSON body.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := "INTERNAL_ERROR"
		message := "internal server error"

		var fiberErr *fiber.Error
		if appErr, ok := apperror.As(err); ok {
			status, code, message = appErr.HTTPStatus, appErr.Code, appErr.Message
			if status >= fiber.StatusInternalServerError {
				log.Error("request failed",
					zap.String("path", c.Path()),
					zap.String("code", code),
					zap.Error(err),
				)
			}
		} else if errors.As(err, &fiberErr) {
			status = fiberErr.Code
			code = statusCode(status)
			message = fiberErr.Message
		} else {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   code,
			"message": message,
		})
	}
}

// statusCode turns 404 into NOT_FOUND, 429 into TOO_MANY_REQUESTS and so on.
func statusCode(status int) string {
	text := fiberutils.StatusMessage(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}
