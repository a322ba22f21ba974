package middleware

import (
	"errors"
	"strings"

	"tiendatec/internal/models"
	"tiendatec/internal/services"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const userLocalKey = "user"

// Authenticate resolves a bearer token to the calling user. Requests without
// an Authorization header continue anonymously; a header that does not carry
// a valid access token for an active user is rejected with 401.
func Authenticate(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Next()
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		user, err := authService.Authenticate(strings.TrimSpace(parts[1]))
		if err != nil {
			if !errors.Is(err, services.ErrInvalidToken) {
				log.WithError(err).Error("authentication failed")
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Internal server error",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		// Store the user in Fiber context for subsequent handlers
		c.Locals(userLocalKey, user)
		return c.Next()
	}
}

// CurrentUser returns the authenticated caller, or nil for anonymous requests.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocalKey).(*models.User)
	return user
}

// SetCurrentUser stores user as the caller of the request.
func SetCurrentUser(c *fiber.Ctx, user *models.User) {
	c.Locals(userLocalKey, user)
}
