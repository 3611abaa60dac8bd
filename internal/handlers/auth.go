package handlers

import (
	"strings"

	"meter-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware requires a valid bearer token when tokens are enabled.
// The token is read from the Authorization header or the access_token query
// parameter, which browsers need for websocket upgrades.
func AuthMiddleware(tokens *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !tokens.Enabled() {
			return c.Next()
		}

		token := c.Query("access_token")
		if token == "" {
			authHeader := c.Get(fiber.HeaderAuthorization)
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimSpace(authHeader[len("Bearer "):])
			}
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}

		subject, err := tokens.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals("subject", subject)
		return c.Next()
	}
}
