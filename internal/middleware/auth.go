package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/idkjulii/PetAlertBack/pkg/utils"
)

func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			// Websocket clients cannot set headers from the browser, so the
			// token may ride in as a query parameter instead.
			authHeader = tokenFromQuery(c)
		}
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		tokenString := parts[1]
		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)

		return c.Next()
	}
}

func tokenFromQuery(c *fiber.Ctx) string {
	token := c.Query("token")
	if token == "" {
		return ""
	}
	return "Bearer " + token
}
