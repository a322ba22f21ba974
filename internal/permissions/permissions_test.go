package permissions_test

import (
	"net/http"
	"testing"

	"tiendatec/internal/models"
	"tiendatec/internal/permissions"

	"github.com/stretchr/testify/assert"
)

var (
	admin    = &models.User{ID: "a", Roles: models.RoleAdmin, IsActive: true}
	inactive = &models.User{ID: "i", Roles: models.RoleAdmin, IsActive: false}
	client   = &models.User{ID: "c", Roles: models.RoleClient, IsActive: true}
)

func TestAdminOnlyWrite(t *testing.T) {
	for name, rule := range map[string]permissions.Predicate{
		"IsAdminOrReadOnly": permissions.IsAdminOrReadOnly,
		"ReadOnlyOrAdmin":   permissions.ReadOnlyOrAdmin,
	} {
		t.Run(name, func(t *testing.T) {
			for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
				assert.True(t, rule(method, nil), method)
				assert.True(t, rule(method, client), method)
			}
			for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
				assert.False(t, rule(method, nil), method)
				assert.False(t, rule(method, client), method)
				assert.False(t, rule(method, inactive), method)
				assert.True(t, rule(method, admin), method)
			}
		})
	}
}

func TestIsOwnerOrAdmin(t *testing.T) {
	assert.True(t, permissions.IsOwnerOrAdmin(http.MethodGet, nil, "c"))
	assert.True(t, permissions.IsOwnerOrAdmin(http.MethodPatch, client, "c"))
	assert.False(t, permissions.IsOwnerOrAdmin(http.MethodPatch, client, "other"))
	assert.True(t, permissions.IsOwnerOrAdmin(http.MethodDelete, admin, "other"))
	assert.False(t, permissions.IsOwnerOrAdmin(http.MethodPut, nil, "c"))
}

func TestAllowShortCircuits(t *testing.T) {
	calls := 0
	counting := func(method string, caller *models.User) bool {
		calls++
		return true
	}

	assert.False(t, permissions.Allow(http.MethodPost, client, permissions.IsAuthenticated, permissions.IsAdmin, counting))
	assert.Zero(t, calls)

	assert.True(t, permissions.Allow(http.MethodPost, admin, permissions.IsAuthenticated, permissions.IsAdmin, counting))
	assert.Equal(t, 1, calls)

	assert.True(t, permissions.Allow(http.MethodGet, nil), "no predicates allows everything")
}
