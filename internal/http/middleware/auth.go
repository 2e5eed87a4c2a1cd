package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"linkpage/internal/auth"
)

const (
	userIDKey    = "user_id"
	userEmailKey = "user_email"
)

// BearerAuth middleware validates the token of dashboard API requests.
// Expects: Authorization: Bearer <token>
func BearerAuth(tokens *auth.TokenService, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Missing Authorization header")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid Authorization header format. Expected: Bearer <token>")
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, "Token is empty")
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				logger.Error("Token validation failed", slog.Any("error", err))
			}
			logger.Debug("Rejected bearer token", slog.String("path", c.Path()), slog.Any("error", err))
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(userIDKey, claims.UserID)
		c.Locals(userEmailKey, claims.Email)
		return c.Next()
	}
}

// CurrentUserID returns the user authenticated by BearerAuth.
func CurrentUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(userIDKey).(uint)
	return id, ok && id != 0
}

// CurrentUserEmail returns the email claim of the authenticated user.
func CurrentUserEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(userEmailKey).(string)
	return email
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": message,
	})
}
