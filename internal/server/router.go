// Package server exposes the gateway over HTTP for the web client.
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"offgate/internal/config"
	"offgate/internal/gateway"
	"offgate/internal/metrics"
	"offgate/internal/server/middleware"
)

// maxBodyBytes caps intercepted request bodies. The client only ever sends
// small JSON documents.
const maxBodyBytes = 1 << 20

// Router adapts net/http traffic to the gateway dispatcher.
type Router struct {
	dispatcher *gateway.Dispatcher
	metrics    *metrics.Metrics
	cfg        *config.Config
	logger     *zap.Logger
	instanceID string
}

// NewRouter creates a router instance.
func NewRouter(
	dispatcher *gateway.Dispatcher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
	instanceID string,
) *Router {
	return &Router{
		dispatcher: dispatcher,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
		instanceID: instanceID,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Handle("/metrics", rt.metrics.Handler())

	// Everything under /api belongs to the intercepted endpoint families.
	router.HandleFunc("/api/*", rt.intercept)

	return router
}

// intercept adapts the incoming request and writes whatever the dispatcher
// decides: the upstream response, a cached reconstruction, or the offline
// error body.
func (rt *Router) intercept(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		buf, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			rt.respondError(w, http.StatusBadRequest, "unreadable request body")
			return
		}
		body = buf
	}

	req := &gateway.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   body,
	}

	resp := rt.dispatcher.Dispatch(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		rt.logger.Error("failed to write response", zap.Error(err))
	}
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	rt.respondJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"instance": rt.instanceID,
	})
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	rt.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (rt *Router) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rt.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (rt *Router) respondError(w http.ResponseWriter, status int, message string) {
	rt.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
