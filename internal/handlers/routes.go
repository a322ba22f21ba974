package handlers

import (
	"tiendatec/internal/middleware"
	"tiendatec/internal/permissions"

	"github.com/gofiber/fiber/v2"
)

const (
	msgNotAuthenticated = "Authentication credentials were not provided."
	msgPermissionDenied = "You do not have permission to perform this action."
)

// Route is one entry of a handler's route table. Permissions are checked in
// order before Middleware and Handler run.
type Route struct {
	Method      string
	Path        string
	Handler     fiber.Handler
	Permissions []permissions.Predicate
	Middleware  []fiber.Handler
}

// Mount registers every route of the table on router.
func Mount(router fiber.Router, routes []Route) {
	for _, r := range routes {
		chain := make([]fiber.Handler, 0, len(r.Middleware)+2)
		chain = append(chain, r.Middleware...)
		chain = append(chain, gate(r.Permissions))
		chain = append(chain, r.Handler)
		router.Add(r.Method, r.Path, chain...)
	}
}

func gate(predicates []permissions.Predicate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := middleware.CurrentUser(c)
		if permissions.Allow(c.Method(), caller, predicates...) {
			return c.Next()
		}
		return permissionDenied(c)
	}
}

// objectGate checks an object-level predicate, taking the owner id from the
// named path parameter.
func objectGate(predicate permissions.ObjectPredicate, param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if predicate(c.Method(), middleware.CurrentUser(c), c.Params(param)) {
			return c.Next()
		}
		return permissionDenied(c)
	}
}

// permissionDenied answers 401 to anonymous callers and 403 to everyone else.
func permissionDenied(c *fiber.Ctx) error {
	if middleware.CurrentUser(c) == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": msgNotAuthenticated,
		})
	}
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"message": msgPermissionDenied,
	})
}
