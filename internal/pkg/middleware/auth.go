package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mensajeropro/mensajero/internal/pkg/usercontext"
)

// RequireAPIAuth answers 401 unless an earlier middleware authenticated the
// request.
func RequireAPIAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireSuperadmin answers 403 for everyone but superadmins.
func RequireSuperadmin(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}
	if !usercontext.GetUserContext(c).IsSuperadmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "superadmin only"})
	}
	return c.Next()
}
