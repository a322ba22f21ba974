package handlers

import (
	"errors"

	"tiendatec/internal/repositories"
	"tiendatec/internal/services"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// respondError maps service and repository errors to HTTP responses.
// Anything unexpected is logged and answered with a generic 500.
func respondError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	var ferr *fiber.Error

	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  verr.Fields,
		})
	case errors.As(err, &ferr):
		return c.Status(ferr.Code).JSON(fiber.Map{
			"message": ferr.Message,
		})
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Not found.",
		})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": msgPermissionDenied,
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication failed",
			"error":   err.Error(),
		})
	case errors.Is(err, services.ErrInvalidToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid or expired token",
			"error":   err.Error(),
		})
	case errors.Is(err, services.ErrCategoryProtected):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Deletion failed",
			"error":   services.ErrCategoryProtected.Error(),
		})
	case errors.Is(err, repositories.ErrDuplicate):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Duplicate record",
			"error":   err.Error(),
		})
	}

	log.WithError(err).WithFields(log.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).Error("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Internal server error",
	})
}
