package docs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openapiSpec []byte

var swaggerUI = template.Must(template.New("swagger").Parse(swaggerUITemplate))

// DocsHandler serves the OpenAPI document and a Swagger UI page for it.
type DocsHandler struct {
	specJSON []byte
	specURL  string
}

// NewDocsHandler converts the embedded document to JSON once. prefix is the
// API prefix the routes are mounted under.
func NewDocsHandler(prefix string) (*DocsHandler, error) {
	specJSON, err := SpecJSON()
	if err != nil {
		return nil, err
	}
	return &DocsHandler{
		specJSON: specJSON,
		specURL:  strings.TrimRight(prefix, "/") + "/schema/",
	}, nil
}

// RegisterRoutes registers the documentation routes.
func (h *DocsHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/schema", h.serveSpecJSON)
	router.Get("/schema.yaml", h.serveSpecYAML)
	router.Get("/docs", h.serveSwaggerUI)
}

func (h *DocsHandler) serveSpecJSON(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(h.specJSON)
}

func (h *DocsHandler) serveSpecYAML(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(openapiSpec)
}

func (h *DocsHandler) serveSwaggerUI(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	if err := swaggerUI.Execute(c, struct{ SpecURL string }{h.specURL}); err != nil {
		log.WithError(err).Error("failed to render swagger ui")
		return fiber.ErrInternalServerError
	}
	return nil
}

// SpecJSON returns the embedded OpenAPI document as JSON.
func SpecJSON() ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(openapiSpec, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse openapi.yaml: %w", err)
	}
	data, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to convert openapi.yaml to json: %w", err)
	}
	return data, nil
}

// jsonCompatible rewrites maps with non-string keys, which YAML allows and
// JSON does not.
func jsonCompatible(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = jsonCompatible(val)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []interface{}:
		for i, val := range t {
			t[i] = jsonCompatible(val)
		}
		return t
	}
	return v
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>TiendaTec API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui.css" />
  <style>
    body {
      margin:0;
      padding:0;
    }
  </style>
</head>
<body>
<div id="swagger-ui"></div>

<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-bundle.js" charset="UTF-8"></script>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-standalone-preset.js" charset="UTF-8"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({
    url: "{{.SpecURL}}",
    dom_id: '#swagger-ui',
    deepLinking: true,
    presets: [
      SwaggerUIBundle.presets.apis,
      SwaggerUIStandalonePreset
    ],
    layout: "StandaloneLayout",
    requestInterceptor: function(request) {
      const token = localStorage.getItem('tiendatec_access_token');
      if (token) {
        request.headers['Authorization'] = 'Bearer ' + token;
      }
      return request;
    }
  });
};
</script>
</body>
</html>`
