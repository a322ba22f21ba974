package middleware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tiendatec/internal/database"
	"tiendatec/internal/middleware"
	"tiendatec/internal/models"
	"tiendatec/internal/repositories"
	"tiendatec/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoAmI(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return c.SendString("anonymous")
	}
	return c.SendString(user.ID)
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestAuthenticate(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer database.Close(db)

	users := repositories.NewGORMUserRepository(db)
	auth := services.NewAuthService(users, repositories.NewGORMTokenBlacklist(db), nil, "secret", time.Hour, time.Hour)

	active := &models.User{Email: "on@example.com", Nombre: "On", Apellido: "User", Roles: models.RoleClient, IsActive: true}
	require.NoError(t, users.Create(active))
	disabled := &models.User{Email: "off@example.com", Nombre: "Off", Apellido: "User", Roles: models.RoleClient, IsActive: true}
	require.NoError(t, users.Create(disabled))

	activeTokens, err := auth.IssueTokens(active)
	require.NoError(t, err)
	disabledTokens, err := auth.IssueTokens(disabled)
	require.NoError(t, err)
	disabled.IsActive = false
	require.NoError(t, users.Update(disabled))

	app := fiber.New()
	app.Use(middleware.Authenticate(auth))
	app.Get("/whoami", whoAmI)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"anonymous", "", http.StatusOK, "anonymous"},
		{"valid access token", "Bearer " + activeTokens.Access, http.StatusOK, active.ID},
		{"refresh token is not an access token", "Bearer " + activeTokens.Refresh, http.StatusUnauthorized, ""},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong scheme", "Token " + activeTokens.Access, http.StatusUnauthorized, ""},
		{"inactive user", "Bearer " + disabledTokens.Access, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				assert.Equal(t, tt.body, body(t, resp))
			}
		})
	}
}

func withUser(user *models.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user != nil {
			middleware.SetCurrentUser(c, user)
		}
		return c.Next()
	}
}

func TestRestrictAdmin(t *testing.T) {
	tests := []struct {
		name   string
		user   *models.User
		status int
	}{
		{"anonymous", nil, http.StatusNotFound},
		{"admin role without superuser", &models.User{ID: "a", Roles: models.RoleAdmin, IsActive: true}, http.StatusNotFound},
		{"inactive superuser", &models.User{ID: "s", IsSuperuser: true}, http.StatusNotFound},
		{"active superuser", &models.User{ID: "s", IsSuperuser: true, IsActive: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(withUser(tt.user))
			app.Get("/admin/", middleware.RestrictAdmin(), func(c *fiber.Ctx) error { return c.SendString("dashboard") })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusNotFound {
				assert.Equal(t, "Cannot GET /admin/", body(t, resp))
			}
		})
	}
}

type countingLimiter struct {
	hits map[string]int64
	err  error
}

func (l *countingLimiter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if l.err != nil {
		return 0, l.err
	}
	l.hits[key]++
	return l.hits[key], nil
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int64{}}
	app := fiber.New()
	app.Post("/login", middleware.RateLimit(limiter, "login", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil), -1)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			assert.Equal(t, "60", resp.Header.Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, statuses)

	// A broken counter never blocks logins.
	limiter.err = errors.New("redis down")
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Without a counter the middleware is a no-op.
	open := fiber.New()
	open.Post("/login", middleware.RateLimit(nil, "login", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		resp, err := open.Test(httptest.NewRequest(http.MethodPost, "/login", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(registry)

	app := fiber.New()
	app.Use(metrics.Handler())
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", metrics.Endpoint())

	for _, id := range []string{"1", "2"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+id, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/items/:id", "200")))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.True(t, strings.Contains(body(t, resp), "tiendatec_http_requests_total"))
}
