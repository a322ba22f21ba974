package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"tiendatec/internal/app"
	"tiendatec/internal/config"
	"tiendatec/internal/database"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	apiPrefix     = "/ecommerce/api/v1"
	adminEmail    = "admin@tiendatec.test"
	adminPassword = "Admin1234"
)

// setupApp builds the full application on a private in-memory SQLite database.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		APIPrefix:       apiPrefix,
		LogLevel:        "error",
		DatabaseDriver:  "sqlite",
		DatabaseDSN:     database.InMemoryDSN(),
		JWTSecret:       "test_jwt_secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		ImageStorage:    "local",
		MediaRoot:       t.TempDir(),
		MediaURL:        "/media",
		NewFlagSchedule: "@hourly",
		CORSOrigins:     "*",
		AdminEmail:      adminEmail,
		AdminPassword:   adminPassword,
	}
	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a.Fiber
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// call sends a JSON request and decodes the JSON response, if any.
func call(t *testing.T, app *fiber.App, method, path, token string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, apiPrefix+path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/login/", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, "login failed: %v", body)
	return body["access"].(string)
}

func registerClient(t *testing.T, app *fiber.App, email string) (id, access string) {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/registro/", "", map[string]string{
		"email": email, "nombre": "Ana", "apellido": "Lopez", "password": "clave123",
	})
	require.Equal(t, http.StatusCreated, status, "register failed: %v", body)
	return body["user"].(map[string]interface{})["id"].(string), body["access"].(string)
}

func createCategory(t *testing.T, app *fiber.App, token, name string) string {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/categorias/", token, map[string]string{"nombre": name})
	require.Equal(t, http.StatusCreated, status, "category failed: %v", body)
	return body["id"].(string)
}

func createProduct(t *testing.T, app *fiber.App, token, categoryID, name, tipo string, stock int) map[string]interface{} {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/productos/", token, map[string]interface{}{
		"nombre": name, "descripcion": "descripcion de " + name, "precio": "199.99",
		"categoria": categoryID, "tipo": tipo, "stock": stock,
	})
	require.Equal(t, http.StatusCreated, status, "product failed: %v", body)
	return body
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app := setupApp(t)

	// Test Registration
	status, body := call(t, app, http.MethodPost, "/registro/", "", map[string]string{
		"email": "Test@Example.com", "nombre": "Test", "apellido": "User",
		"password": "password123", "roles": "admin",
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotEmpty(t, body["access"])
	assert.NotEmpty(t, body["refresh"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "test@example.com", user["email"])
	assert.Equal(t, "cliente", user["roles"], "registration never grants admin")
	assert.NotContains(t, user, "password")

	// Test Duplicate Registration (email, any case)
	status, body = call(t, app, http.MethodPost, "/registro/", "", map[string]string{
		"email": "TEST@example.com", "nombre": "Otro", "apellido": "User", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "email")

	// Test Login
	status, body = call(t, app, http.MethodPost, "/login/", "", map[string]string{"email": "test@example.com", "password": "password123"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful", body["message"])
	refresh := body["refresh"].(string)
	access := body["access"].(string)

	status, _ = call(t, app, http.MethodPost, "/login/", "", map[string]string{"email": "test@example.com", "password": "wrong-pass1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, app, http.MethodPost, "/login/", "", map[string]string{"email": "nobody@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = call(t, app, http.MethodGet, "/perfil/", access, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "test@example.com", body["email"])

	status, body = call(t, app, http.MethodPost, "/token/refresh/", "", map[string]string{"refresh": refresh})
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["access"])

	status, _ = call(t, app, http.MethodPost, "/logout/", access, map[string]string{"refresh": refresh})
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, app, http.MethodPost, "/token/refresh/", "", map[string]string{"refresh": refresh})
	assert.Equal(t, http.StatusUnauthorized, status, "a revoked refresh token is refused")

	status, _ = call(t, app, http.MethodPost, "/logout/", access, map[string]string{"refresh": "not-a-token"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = call(t, app, http.MethodPost, "/logout/", access, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRegistrationPasswordPolicy(t *testing.T) {
	app := setupApp(t)

	tests := []struct {
		password string
		status   int
	}{
		{"abc12", http.StatusBadRequest},
		{"123456", http.StatusBadRequest},
		{"abcdef", http.StatusBadRequest},
		{"abc123", http.StatusCreated},
	}
	for i, tt := range tests {
		status, body := call(t, app, http.MethodPost, "/registro/", "", map[string]string{
			"email": fmt.Sprintf("user%d@example.com", i), "nombre": "N", "apellido": "A", "password": tt.password,
		})
		assert.Equal(t, tt.status, status, "password %q", tt.password)
		if tt.status == http.StatusBadRequest {
			assert.Contains(t, body["errors"], "password")
		}
	}

	status, body := call(t, app, http.MethodPost, "/registro/", "", map[string]string{
		"email": "mismatch@example.com", "nombre": "N", "apellido": "A",
		"password": "abc123", "password_confirmacion": "abc124",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "password_confirmacion")
}

func TestInvalidTokenRejectedOnPublicEndpoint(t *testing.T) {
	app := setupApp(t)

	status, _ := call(t, app, http.MethodGet, "/productos/", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := call(t, app, http.MethodGet, "/productos/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestProductWritesRequireAdmin(t *testing.T) {
	app := setupApp(t)
	admin := login(t, app, adminEmail, adminPassword)
	_, client := registerClient(t, app, "cliente@example.com")
	categoryID := createCategory(t, app, admin, "Portatiles")

	payload := map[string]interface{}{
		"nombre": "Laptop", "descripcion": "14 pulgadas", "precio": "0.01",
		"categoria": categoryID, "tipo": "portatil", "stock": 3,
	}
	status, body := call(t, app, http.MethodPost, "/productos/", "", payload)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication credentials were not provided.", body["message"])

	status, _ = call(t, app, http.MethodPost, "/productos/", client, payload)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = call(t, app, http.MethodPost, "/productos/", admin, payload)
	require.Equal(t, http.StatusCreated, status, "%v", body)
	assert.Equal(t, "0.01", body["precio"])
	assert.Equal(t, "Portatiles", body["categoria_nombre"])
	assert.Equal(t, true, body["es_nuevo"])
	assert.Equal(t, true, body["stock_bajo"])
	assert.Equal(t, false, body["esta_agotado"])
	assert.NotEmpty(t, body["creado_por"])
	productID := body["id"].(string)

	payload["precio"] = "0"
	status, body = call(t, app, http.MethodPost, "/productos/", admin, payload)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "precio")

	status, body = call(t, app, http.MethodPatch, "/productos/"+productID+"/", admin, map[string]interface{}{"stock": 0})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["esta_agotado"])
	assert.Equal(t, false, body["stock_bajo"])

	status, _ = call(t, app, http.MethodPut, "/productos/"+productID+"/", admin, map[string]interface{}{"stock": 1})
	assert.Equal(t, http.StatusBadRequest, status, "PUT needs every required field")

	status, _ = call(t, app, http.MethodDelete, "/productos/"+productID+"/", client, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, app, http.MethodDelete, "/productos/"+productID+"/", admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, app, http.MethodGet, "/productos/"+productID+"/", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestNamedListings(t *testing.T) {
	app := setupApp(t)
	admin := login(t, app, adminEmail, adminPassword)
	categoryID := createCategory(t, app, admin, "Hardware")
	createProduct(t, app, admin, categoryID, "Tablet A", "tablet", 0)
	createProduct(t, app, admin, categoryID, "Tablet B", "tablet", 2)
	laptop := createProduct(t, app, admin, categoryID, "Laptop", "portatil", 20)

	status, body := call(t, app, http.MethodGet, "/productos/por_tipo/", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "tipo")

	status, _ = call(t, app, http.MethodGet, "/productos/por_tipo/?tipo=smartphone", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, app, http.MethodGet, "/productos/por_tipo/?tipo=tablet", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])
	for _, item := range body["results"].([]interface{}) {
		assert.Equal(t, "tablet", item.(map[string]interface{})["tipo"])
	}

	status, body = call(t, app, http.MethodGet, "/productos-tipo/tablet/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, body = call(t, app, http.MethodGet, "/productos/agotados/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = call(t, app, http.MethodGet, "/productos/stock_bajo/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = call(t, app, http.MethodGet, "/productos/nuevos/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["count"])

	status, body = call(t, app, http.MethodGet, "/productos/mas_vendidos/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["count"])

	status, _ = call(t, app, http.MethodPatch, "/productos/"+laptop["id"].(string)+"/", admin, map[string]interface{}{"cantidad_vendida": 10})
	require.Equal(t, http.StatusOK, status)
	status, body = call(t, app, http.MethodGet, "/mas-vendidos/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])
	status, body = call(t, app, http.MethodGet, "/mas-vendidos/"+laptop["id"].(string)+"/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["es_mas_vendido"])

	status, body = call(t, app, http.MethodGet, "/productos/?search=TABLET&ordering=-nombre", "", nil)
	assert.Equal(t, http.StatusOK, status)
	results := body["results"].([]interface{})
	require.Len(t, results, 2)
	assert.Equal(t, "Tablet B", results[0].(map[string]interface{})["nombre"])

	status, _ = call(t, app, http.MethodGet, "/productos/?precio_min=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPagination(t *testing.T) {
	app := setupApp(t)
	admin := login(t, app, adminEmail, adminPassword)
	categoryID := createCategory(t, app, admin, "Accesorios")
	for i := 0; i < 3; i++ {
		createProduct(t, app, admin, categoryID, fmt.Sprintf("Cable %d", i), "accesorio", 10)
	}

	status, body := call(t, app, http.MethodGet, "/productos/?page_size=2&ordering=nombre", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["count"])
	assert.Len(t, body["results"], 2)
	assert.Nil(t, body["previous"])
	require.NotNil(t, body["next"])
	assert.Contains(t, body["next"], "page=2")
	assert.Contains(t, body["next"], "page_size=2")

	status, body = call(t, app, http.MethodGet, "/productos/?page_size=2&page=2&ordering=nombre", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["results"], 1)
	assert.Nil(t, body["next"])
	assert.NotContains(t, body["previous"], "page=")

	status, body = call(t, app, http.MethodGet, "/productos/?page=9", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Invalid page.", body["message"])

	status, _ = call(t, app, http.MethodGet, "/categorias/"+categoryID+"/productos/?page_size=1", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCategoryDeletion(t *testing.T) {
	app := setupApp(t)
	admin := login(t, app, adminEmail, adminPassword)
	used := createCategory(t, app, admin, "Componentes")
	empty := createCategory(t, app, admin, "Vacia")
	createProduct(t, app, admin, used, "SSD", "componente", 4)

	status, body := call(t, app, http.MethodPost, "/categorias/", admin, map[string]string{"nombre": "componentes"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "nombre")

	status, body = call(t, app, http.MethodDelete, "/categorias/"+used+"/", admin, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "cannot delete category with associated products", body["error"])

	status, _ = call(t, app, http.MethodDelete, "/categorias/"+empty+"/", admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, app, http.MethodGet, "/categorias/"+empty+"/", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUserPermissions(t *testing.T) {
	app := setupApp(t)
	admin := login(t, app, adminEmail, adminPassword)
	_, adminProfile := call(t, app, http.MethodGet, "/perfil/", admin, nil)
	adminID := adminProfile["id"].(string)
	clientID, client := registerClient(t, app, "cliente@example.com")

	status, _ := call(t, app, http.MethodGet, "/usuarios/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := call(t, app, http.MethodGet, "/usuarios/", client, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"], "clients only see themselves")

	status, body = call(t, app, http.MethodGet, "/usuarios/", admin, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, _ = call(t, app, http.MethodPatch, "/usuarios/"+adminID+"/", client, map[string]string{"nombre": "Hacked"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, app, http.MethodGet, "/usuarios/"+adminID+"/", client, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, app, http.MethodPatch, "/usuarios/me/", client, map[string]string{
		"nombre": "Maria", "roles": "admin", "email": "otro@example.com",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Maria", body["nombre"])
	assert.Equal(t, "cliente", body["roles"])
	assert.Equal(t, "cliente@example.com", body["email"])

	status, body = call(t, app, http.MethodPatch, "/usuarios/"+clientID+"/", admin, map[string]string{"roles": "admin"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", body["roles"])

	status, body = call(t, app, http.MethodPost, "/usuarios/cambiar_password/", client, map[string]string{
		"password_actual": "wrong1", "password_nuevo": "nueva123", "password_nuevo_confirmacion": "nueva123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "password_actual")

	status, _ = call(t, app, http.MethodPost, "/usuarios/cambiar_password/", client, map[string]string{
		"password_actual": "clave123", "password_nuevo": "nueva123", "password_nuevo_confirmacion": "nueva123",
	})
	assert.Equal(t, http.StatusOK, status)
	login(t, app, "cliente@example.com", "nueva123")

	status, _ = call(t, app, http.MethodDelete, "/usuarios/"+clientID+"/", client, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, app, http.MethodPost, "/login/", "", map[string]string{"email": "cliente@example.com", "password": "nueva123"})
	assert.Equal(t, http.StatusUnauthorized, status, "deactivated accounts cannot log in")
}

func TestProductImages(t *testing.T) {
	app := setupApp(t)
	admin := login(t, app, adminEmail, adminPassword)
	categoryID := createCategory(t, app, admin, "Monitores")
	product := createProduct(t, app, admin, categoryID, "Monitor 27", "accesorio", 6)
	productID := product["id"].(string)

	upload := func(filename, orden string) (int, map[string]interface{}) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("imagen", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake image"))
		require.NoError(t, err)
		require.NoError(t, writer.WriteField("orden", orden))
		require.NoError(t, writer.WriteField("es_principal", "true"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, apiPrefix+"/productos/"+productID+"/imagenes/", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+admin)
		return send(t, app, req)
	}

	status, image := upload("frente.png", "1")
	require.Equal(t, http.StatusCreated, status, "%v", image)
	assert.Contains(t, image["imagen"], "productos/adicionales/"+productID+"/")

	status, body := upload("lado.png", "1")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "orden")

	status, body = upload("notas.txt", "2")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "imagen")

	status, body = call(t, app, http.MethodGet, "/productos/"+productID+"/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, image["imagen"], body["imagen"])
	assert.Len(t, body["imagenes_adicionales"], 1)

	status, _ = call(t, app, http.MethodDelete, "/productos/"+productID+"/imagenes/"+image["id"].(string)+"/", admin, nil)
	assert.Equal(t, http.StatusNoContent, status)

	req := httptest.NewRequest(http.MethodGet, apiPrefix+"/productos/"+productID+"/imagenes/", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var images []interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&images))
	assert.Empty(t, images)
}
