package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/driroane/llamachat/internal/handler/chat"
	"github.com/driroane/llamachat/internal/handler/health"
	middlewarePkg "github.com/driroane/llamachat/internal/middleware"
	chatService "github.com/driroane/llamachat/internal/service/chat"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, prober health.Prober) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(chatSvc)
	healthHandler := health.New(prober)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
	})

	r.Get("/health", healthHandler.Handle)

	return r
}
