package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

// mountDocs serves a generated OpenAPI document plus the Swagger UI. The
// document is rebuilt per request so it always reflects the registered
// resources.
func (h *Handler) mountDocs(r chi.Router) {
	r.Get("/.well-known/openapi.json", h.handleOpenAPI)
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/.well-known/openapi.json"),
	))
}

func (h *Handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.buildOpenAPI())
}

func (h *Handler) buildOpenAPI() map[string]any {
	paths := map[string]any{
		"/users/login": map[string]any{
			"post": operation("Log in", "Exchanges credentials for a session token."),
		},
		"/users/signup": map[string]any{
			"post": operation("Sign up", "Registers an account. The first account becomes an admin."),
		},
		"/users/me": map[string]any{
			"get": operation("Current user", "Returns the authenticated principal."),
		},
	}

	schemas := map[string]any{}
	for _, name := range h.registry.Names() {
		s := h.registry.SchemaOf(name)
		if s == nil {
			continue
		}
		schemas[name] = s.JSONSchema()

		ref := map[string]any{"$ref": "#/components/schemas/" + name}
		paths["/rest/"+name] = map[string]any{
			"get":  listOperation(name, ref),
			"post": bodyOperation("Create a "+name+" record", ref),
		}
		paths["/rest/"+name+"/{id}"] = map[string]any{
			"get":    operation("Read a "+name+" record", ""),
			"put":    bodyOperation("Update a "+name+" record", ref),
			"delete": operation("Delete a "+name+" record", ""),
		}
		paths["/rest/"+name+"/{id}/attachments"] = map[string]any{
			"post": operation("Attach a file", "Multipart upload under the \"file\" field."),
		}
		paths["/rest/"+name+"/{id}/attachments/{attachmentID}"] = map[string]any{
			"get":    operation("Download an attachment", ""),
			"delete": operation("Delete an attachment", ""),
		}
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "recordbase",
			"version": Version,
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": schemas,
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
		},
		"security": []any{map[string]any{"bearerAuth": []any{}}},
	}
}

func operation(summary, description string) map[string]any {
	op := map[string]any{
		"summary":   summary,
		"responses": map[string]any{"200": map[string]any{"description": "OK"}},
	}
	if description != "" {
		op["description"] = description
	}
	return op
}

func bodyOperation(summary string, ref map[string]any) map[string]any {
	op := operation(summary, "")
	op["requestBody"] = map[string]any{
		"content": map[string]any{
			"application/json": map[string]any{"schema": ref},
		},
	}
	return op
}

func listOperation(name string, ref map[string]any) map[string]any {
	op := operation("List "+name+" records", "Pagination via the page and pageSize query parameters; remaining parameters filter by field equality.")
	op["parameters"] = []any{
		queryParam("page", "integer"),
		queryParam("pageSize", "integer"),
	}
	op["responses"] = map[string]any{
		"200": map[string]any{
			"description": "OK",
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"type": "array", "items": ref},
				},
			},
		},
	}
	return op
}

func queryParam(name, typ string) map[string]any {
	return map[string]any{
		"name":   name,
		"in":     "query",
		"schema": map[string]any{"type": typ},
	}
}
