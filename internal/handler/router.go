package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	mcpHandler "github.com/logflare-community/logflare-mcp/internal/handler/mcp"
	middlewarePkg "github.com/logflare-community/logflare-mcp/internal/middleware"
	"github.com/logflare-community/logflare-mcp/internal/service/session"
	"github.com/logflare-community/logflare-mcp/internal/service/tools"
)

// NewRouter wires HTTP routes to the session table and tool registry.
func NewRouter(sessions *session.Manager, registry *tools.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	mcpHandler.New(sessions, registry).RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
