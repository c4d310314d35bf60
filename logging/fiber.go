package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kalinanews/newsroom/auth"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request. Server errors log at error
// level and client errors at warn.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.L()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// render errors here so the logged status is the one sent
		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Duration("latency", time.Since(start)),
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}
		if claims, ok := auth.GetClaims(c.UserContext()); ok {
			fields = append(fields,
				zap.String("user_id", claims.Subject),
				zap.String("token_id", claims.ID),
			)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request handled", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request handled", fields...)
		default:
			logger.Info("request handled", fields...)
		}
		return nil
	}
}
