package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	// CreateRequestsPerMinute throttles link creation per client IP.
	// Zero disables throttling.
	CreateRequestsPerMinute int
}

// NewRouter wires the handler into a chi router. Redirects sit at the
// root so short URLs stay short; the API lives under /api/v1.
func NewRouter(h *Handler, cfg RouterConfig, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.CreateRequestsPerMinute > 0 {
			api.Use(NewRateLimiter(cfg.CreateRequestsPerMinute).Middleware)
		}
		api.Post("/urls", h.Create)
		api.Get("/urls/{code}/stats", h.Stats)
	})

	r.Get("/{code}", h.Redirect)

	return r
}
