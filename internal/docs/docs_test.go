package docs

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecJSON(t *testing.T) {
	data, err := SpecJSON()
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])

	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	for _, path := range []string{"/registro/", "/login/", "/productos/", "/productos/por_tipo/", "/categorias/{id}/", "/usuarios/me/"} {
		assert.Contains(t, paths, path)
	}
}

func TestJSONCompatibleStringifiesKeys(t *testing.T) {
	in := map[interface{}]interface{}{200: "ok", "nested": []interface{}{map[interface{}]interface{}{true: 1}}}
	out := jsonCompatible(in)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"200":"ok","nested":[{"true":1}]}`, string(data))
}

func TestRegisterRoutes(t *testing.T) {
	handler, err := NewDocsHandler("/ecommerce/api/v1")
	require.NoError(t, err)

	app := fiber.New()
	handler.RegisterRoutes(app.Group("/ecommerce/api/v1"))

	tests := []struct {
		name        string
		path        string
		contentType string
		contains    string
	}{
		{"json schema", "/ecommerce/api/v1/schema/", fiber.MIMEApplicationJSON, `"openapi":"3.0.3"`},
		{"yaml schema", "/ecommerce/api/v1/schema.yaml", "application/x-yaml", "openapi: 3.0.3"},
		{"swagger ui", "/ecommerce/api/v1/docs/", fiber.MIMETextHTMLCharsetUTF8, "swagger-ui"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get(fiber.HeaderContentType))
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tt.contains)
		})
	}
}
