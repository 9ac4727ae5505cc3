// Package server wires the HTTP API: routing, identity extraction,
// permission enforcement and error mapping.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mlfoundry/metastore/pkg/auth"
	"github.com/mlfoundry/metastore/pkg/rbac"
	"github.com/mlfoundry/metastore/pkg/registry"
	"github.com/mlfoundry/metastore/pkg/secrets"
)

// Server holds the request-handling dependencies.
type Server struct {
	engine   *rbac.Engine
	secrets  *secrets.SecretStore
	registry *registry.ModelStore
	logger   *slog.Logger
}

// New creates a Server.
func New(engine *rbac.Engine, secretStore *secrets.SecretStore, modelStore *registry.ModelStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   engine,
		secrets:  secretStore,
		registry: modelStore,
		logger:   logger,
	}
}

// Engine exposes the RBAC engine for runtime toggling.
func (s *Server) Engine() *rbac.Engine { return s.engine }

// Router builds the HTTP router. Every /api route runs behind the
// identity middleware; handlers may rely on an auth context being
// present. Extra middlewares run after identity extraction.
func (s *Server) Router(extract auth.Extractor, mws ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.HeaderUser, auth.HeaderUserName, auth.HeaderWorkspaces},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.healthzHandler)
	r.Get("/readyz", s.healthzHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(extract))
		r.Use(mws...)

		r.Route("/secrets", func(r chi.Router) {
			r.Post("/", s.createSecretHandler)
			r.Get("/", s.listSecretsHandler)
			r.Get("/{id}", s.getSecretHandler)
			r.Patch("/{id}", s.updateSecretHandler)
			r.Delete("/{id}", s.deleteSecretHandler)
		})

		r.Route("/models", func(r chi.Router) {
			r.Post("/", s.createModelHandler)
			r.Get("/", s.listModelsHandler)
			r.Get("/{id}", s.getModelHandler)
			r.Delete("/{id}", s.deleteModelHandler)
			r.Post("/{id}/versions", s.createVersionHandler)
			r.Get("/{id}/versions", s.listVersionsHandler)
		})

		r.Route("/model_versions/{id}", func(r chi.Router) {
			r.Get("/", s.getVersionHandler)
			r.Put("/stage", s.setStageHandler)
			r.Post("/artifacts", s.linkArtifactHandler)
			r.Get("/artifacts", s.listArtifactLinksHandler)
			r.Post("/runs", s.linkRunHandler)
			r.Get("/runs", s.listRunLinksHandler)
		})

		r.Delete("/users/{id}/secrets", s.purgeUserSecretsHandler)
	})

	return r
}
