package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/verdant/internal/apperror"
)

// RequestLogger logs one line per request. Server errors are logged at error level.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperror.StatusCode(err)
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}

		level := zapcore.InfoLevel
		switch {
		case status >= fiber.StatusInternalServerError:
			level = zapcore.ErrorLevel
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
		case status >= fiber.StatusBadRequest:
			level = zapcore.WarnLevel
		}

		if ce := log.Check(level, "http request"); ce != nil {
			ce.Write(fields...)
		}
		return err
	}
}
