// Package web exposes the REST surface: record CRUD under /rest,
// authentication under /users, plus health, metrics, version and API
// documentation endpoints.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/recordbase/adapters/metrics"
	"github.com/artpar/recordbase/core/access"
	"github.com/artpar/recordbase/core/resource"
	"github.com/artpar/recordbase/core/users"
)

// Version is stamped at build time.
var Version = "dev"

// Handler serves the REST surface.
type Handler struct {
	registry *resource.Registry
	users    *users.Manager
	access   *access.Evaluator
	metrics  *metrics.Collector
	logger   zerolog.Logger

	enableMetrics bool
	metricsPath   string
	enableDocs    bool
}

// Deps contains dependencies for the handler.
type Deps struct {
	Registry *resource.Registry
	Users    *users.Manager
	Access   *access.Evaluator
	Metrics  *metrics.Collector
	Logger   zerolog.Logger

	EnableMetrics bool
	MetricsPath   string
	EnableDocs    bool
}

// NewHandler creates the REST handler.
func NewHandler(deps Deps) *Handler {
	path := deps.MetricsPath
	if path == "" {
		path = "/metrics"
	}
	return &Handler{
		registry:      deps.Registry,
		users:         deps.Users,
		access:        deps.Access,
		metrics:       deps.Metrics,
		logger:        deps.Logger.With().Str("component", "web").Logger(),
		enableMetrics: deps.EnableMetrics,
		metricsPath:   path,
		enableDocs:    deps.EnableDocs,
	}
}

// Router builds the HTTP router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)
	if h.metrics != nil {
		r.Use(h.metricsMiddleware)
	}
	r.Use(h.sessionMiddleware)

	r.Get("/health", h.handleHealth)
	r.Get("/version", h.handleVersion)

	if h.enableMetrics && h.metrics != nil {
		r.Handle(h.metricsPath, promhttp.Handler())
	}
	if h.enableDocs {
		h.mountDocs(r)
	}

	r.Route("/users", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/signup", h.handleSignup)
		r.Get("/me", h.handleMe)
	})

	r.Route("/rest/{resource}", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleRemove)

		r.Post("/{id}/attachments", h.handleAttach)
		r.Get("/{id}/attachments/{attachmentID}", h.handleDownload)
		r.Delete("/{id}/attachments/{attachmentID}", h.handleDeleteAttachment)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "recordbase"})
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"version": Version})
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(ww.Status())).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "X-Page, X-Per-Page, X-Total-Pages")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
