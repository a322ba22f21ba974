package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// RestrictAdmin hides the routes behind it from everyone but active
// superusers. Others get the same 404 as an unknown route.
func RestrictAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil || !user.IsActive || !user.IsSuperuser {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Cannot %s %s", c.Method(), c.Path()))
		}
		return c.Next()
	}
}
