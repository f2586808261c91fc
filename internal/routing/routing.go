// Package routing assembles the HTTP mux: API routes behind the logging
// middleware, plus the operational endpoints.
package routing

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"kapitbahay/internal/events"
	"kapitbahay/internal/handlers"
	"kapitbahay/internal/middleware"
)

// Config carries the router dependencies.
type Config struct {
	Handlers *handlers.Handler
	Hub      *events.Hub
	Logger   zerolog.Logger
}

// SetupRouter wires all routes and middleware into a single handler.
func SetupRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()
	h := cfg.Handlers

	mux.HandleFunc("POST /api/posts", h.HandleSubmitPost)
	mux.HandleFunc("DELETE /api/posts/{id}", h.HandleDeletePost)
	mux.HandleFunc("GET /api/feed", h.HandleFeed)
	mux.HandleFunc("POST /api/posts/{id}/reactions", h.HandleReaction)
	mux.HandleFunc("POST /api/posts/{id}/report", h.HandleReport)
	mux.HandleFunc("POST /api/posts/{id}/extend", h.HandleExtend)
	mux.HandleFunc("POST /api/posts/{id}/view", h.HandleView)
	mux.HandleFunc("GET /api/search", h.HandleSearch)
	mux.HandleFunc("GET /api/heatmap", h.HandleHeatmap)
	mux.HandleFunc("POST /api/vendors/location", h.HandleVendorLocation)

	mux.HandleFunc("GET /api/modqueue", h.HandleQueueList)
	mux.HandleFunc("POST /api/modqueue/{id}/resolve", h.HandleQueueResolve)
	mux.HandleFunc("GET /api/modqueue/log", h.HandleModerationLog)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logged := middleware.LoggingMiddleware(cfg.Logger)(mux)

	// The WebSocket upgrade and the metrics scrape bypass the logging
	// middleware: the upgrader needs the raw ResponseWriter, and scrapes
	// would drown the request log.
	root := http.NewServeMux()
	root.Handle("/ws", cfg.Hub)
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/", logged)
	return root
}
