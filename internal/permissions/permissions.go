// Package permissions holds the access rules routes are gated with. Every
// rule is a pure function of the request method and the caller.
package permissions

import (
	"net/http"

	"tiendatec/internal/models"
)

// Predicate decides whether caller may use method on a route. caller is nil
// for anonymous requests.
type Predicate func(method string, caller *models.User) bool

// ObjectPredicate decides whether caller may use method on a record owned by ownerID.
type ObjectPredicate func(method string, caller *models.User, ownerID string) bool

// IsSafeMethod reports whether method only reads.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isActiveAdmin(caller *models.User) bool {
	return caller != nil && caller.IsActive && caller.IsAdmin()
}

// IsAdminOrReadOnly lets anyone read and only active admins write.
func IsAdminOrReadOnly(method string, caller *models.User) bool {
	return IsSafeMethod(method) || isActiveAdmin(caller)
}

// ReadOnlyOrAdmin is the catalog wide rule used for categories. It has the
// same shape as IsAdminOrReadOnly.
func ReadOnlyOrAdmin(method string, caller *models.User) bool {
	return IsSafeMethod(method) || isActiveAdmin(caller)
}

// IsAuthenticated requires a caller.
func IsAuthenticated(method string, caller *models.User) bool {
	return caller != nil
}

// IsAdmin requires an active admin whatever the method.
func IsAdmin(method string, caller *models.User) bool {
	return isActiveAdmin(caller)
}

// IsOwnerOrAdmin lets anyone read, and lets the owner or an admin write.
func IsOwnerOrAdmin(method string, caller *models.User, ownerID string) bool {
	if IsSafeMethod(method) {
		return true
	}
	if caller == nil {
		return false
	}
	return caller.ID == ownerID || caller.IsAdmin()
}

// Allow evaluates predicates in order and stops at the first refusal.
func Allow(method string, caller *models.User, predicates ...Predicate) bool {
	for _, p := range predicates {
		if !p(method, caller) {
			return false
		}
	}
	return true
}
