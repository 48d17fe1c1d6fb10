package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/docrag/internal/api/handlers"
	"github.com/nikhilbhutani/docrag/internal/api/middleware"
	"github.com/nikhilbhutani/docrag/internal/auth"
)

// Deps are the services behind the HTTP API.
type Deps struct {
	JWTSecret  string
	Checks     map[string]handlers.Pinger
	Uploader   handlers.Uploader
	Documents  handlers.DocumentStore
	Queue      handlers.IngestEnqueuer
	Runner     handlers.IngestRunner
	Retriever  handlers.Retriever
	BatchLimit int
}

type Router struct {
	mux  *chi.Mux
	deps Deps
}

func NewRouter(deps Deps) *Router {
	return &Router{mux: chi.NewRouter(), deps: deps}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)

	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	jwt := auth.NewJWTMiddleware(rt.deps.JWTSecret)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jwt.Authenticate)

		docH := handlers.NewDocumentHandler(rt.deps.Uploader, rt.deps.Documents, rt.deps.Queue)
		r.Route("/documents", func(r chi.Router) {
			r.With(auth.RequireRole(auth.RoleAdmin, auth.RoleEditor)).Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.With(adminOnly).Post("/approve", docH.Approve)
			r.Get("/{id}", docH.Get)
			r.Get("/{id}/status", docH.Status)
			r.With(adminOnly).Post("/{id}/requeue", docH.Requeue)
		})

		ingestH := handlers.NewIngestHandler(rt.deps.Runner, rt.deps.BatchLimit)
		r.With(adminOnly).Post("/ingest/run", ingestH.Run)

		ragH := handlers.NewRAGHandler(rt.deps.Retriever)
		r.Post("/rag/search", ragH.Search)
	})

	return r
}
