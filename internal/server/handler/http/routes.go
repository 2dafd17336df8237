// Package http provides HTTP routing and middleware configuration
// for the credvault service.
package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vkotelnikov/credvault/internal/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the
// credential API. It applies JSON content-type enforcement, request
// logging and certificate-based authentication, and mounts the CRUD,
// search and export endpoints under /api.
//
// Routes:
//
//	POST   /api/password                → GeneratePassword
//	POST   /api/{kind}                  → Create
//	GET    /api/{kind}                  → List (?container=)
//	GET    /api/{kind}/search           → Search (?q=)
//	GET    /api/{kind}/export/env       → ExportEnv
//	GET    /api/{kind}/export/csv       → ExportCSV
//	GET    /api/{kind}/{id}             → Read (?passphrase= for legacy records)
//	PATCH  /api/{kind}/{id}             → Update
//	DELETE /api/{kind}/{id}             → Delete
func NewRouter(credHandler *CredentialsHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))
	// Enforce certificate-based authentication
	r.Use(middleware.CertAuth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/password", GeneratePassword)

		r.Route("/{kind}", func(r chi.Router) {
			r.Post("/", credHandler.Create)
			r.Get("/", credHandler.List)
			r.Get("/search", credHandler.Search)
			r.Get("/export/env", credHandler.ExportEnv)
			r.Get("/export/csv", credHandler.ExportCSV)
			r.Get("/{id}", credHandler.Read)
			r.Patch("/{id}", credHandler.Update)
			r.Delete("/{id}", credHandler.Delete)
		})
	})

	return r
}
