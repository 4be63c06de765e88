package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// DocHandler serves an OpenAPI description of the /api routes.
type DocHandler struct {
	routes chi.Routes
	prefix string
}

func NewDocHandler(routes chi.Routes, prefix string) *DocHandler {
	return &DocHandler{routes: routes, prefix: prefix}
}

func (h *DocHandler) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	html := `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>SQLInsight API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
        window.ui = SwaggerUIBundle({
            url: '/docs/openapi.json',
            dom_id: '#swagger-ui',
        });
    };
</script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

var pathParam = regexp.MustCompile(`\{([^}:]+)(?::[^}]*)?\}`)

func (h *DocHandler) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	paths, err := h.paths()
	if err != nil {
		http.Error(w, "Failed to describe routes", http.StatusInternalServerError)
		return
	}

	doc := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "SQLInsight API",
			"version":     "1.0.0",
			"description": "Natural language queries and dashboards over registered databases.",
		},
		"paths": paths,
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"ApiKeyAuth": map[string]interface{}{
					"type": "apiKey",
					"in":   "header",
					"name": "X-API-Key",
				},
			},
		},
		"security": []map[string]interface{}{
			{"ApiKeyAuth": []string{}},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// paths walks the router and builds one OpenAPI operation per route.
func (h *DocHandler) paths() (map[string]map[string]interface{}, error) {
	paths := make(map[string]map[string]interface{})
	err := chi.Walk(h.routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		route = strings.TrimSuffix(route, "/")
		if route == "" {
			return nil
		}
		key := h.prefix + route
		if paths[key] == nil {
			paths[key] = make(map[string]interface{})
		}
		paths[key][strings.ToLower(method)] = operation(method, route)
		return nil
	})
	return paths, err
}

func operation(method, route string) map[string]interface{} {
	op := map[string]interface{}{
		"summary": method + " " + route,
		"tags":    []string{strings.Split(strings.TrimPrefix(route, "/"), "/")[0]},
		"responses": map[string]interface{}{
			"200": map[string]interface{}{"description": "Success envelope"},
			"400": map[string]interface{}{"description": "Bad Request"},
			"401": map[string]interface{}{"description": "Missing or invalid API key"},
			"404": map[string]interface{}{"description": "Not Found"},
			"500": map[string]interface{}{"description": "Internal Server Error"},
		},
	}

	var names []string
	for _, m := range pathParam.FindAllStringSubmatch(route, -1) {
		names = append(names, m[1])
	}
	sort.Strings(names)
	if len(names) > 0 {
		params := make([]map[string]interface{}, 0, len(names))
		for _, name := range names {
			params = append(params, map[string]interface{}{
				"name":     name,
				"in":       "path",
				"required": true,
				"schema":   map[string]string{"type": "integer"},
			})
		}
		op["parameters"] = params
	}

	if method == http.MethodPost || method == http.MethodPut {
		op["requestBody"] = map[string]interface{}{
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]string{"type": "object"},
				},
			},
		}
	}
	return op
}
