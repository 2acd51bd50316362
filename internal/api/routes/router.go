package routes

import (
	"net/http"

	"github.com/zatekoja/creatorexplorer/backend/internal/api/handlers"
	"github.com/zatekoja/creatorexplorer/backend/internal/api/middleware"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	explorerHandler *handlers.ExplorerHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	explorerHandler *handlers.ExplorerHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		explorerHandler: explorerHandler,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Explorer endpoints
	r.mux.HandleFunc("POST /api/explorer/search", r.explorerHandler.Search)
	r.mux.HandleFunc("POST /api/explorer/cache-status", r.explorerHandler.CacheStatus)
	r.mux.HandleFunc("GET /api/explorer/analytics", r.explorerHandler.Analytics)
	r.mux.HandleFunc("GET /api/explorer/popular", r.explorerHandler.PopularSearches)

	// last wrap runs first
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.Compression(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
