package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gemyard/gemyard/pkg/auth"
	"github.com/gemyard/gemyard/pkg/gems"
	"github.com/gemyard/gemyard/pkg/httputil"
	"github.com/gemyard/gemyard/pkg/middleware"
	"github.com/gemyard/gemyard/pkg/observability"
	"github.com/gemyard/gemyard/pkg/webhooks"
)

// Config holds the dependencies for the API server
type Config struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics // optional
	Keyring auth.Keyring

	HookStore webhooks.Store
	Catalog   gems.Store
	Deliverer *webhooks.Deliverer

	// TracingEnabled wraps the router with otelhttp server instrumentation
	TracingEnabled bool
}

// Server represents the API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: cfg.Logger,
	}

	registry := webhooks.NewRegistry(cfg.HookStore, cfg.Logger, cfg.Metrics)
	resolver := webhooks.NewResolver(cfg.Catalog)
	hookHandler := webhooks.NewHandler(registry, resolver, cfg.Deliverer, cfg.Logger)
	gemsHandler := NewGemsHandler(cfg.Catalog, cfg.HookStore, cfg.Deliverer)

	// Public catalog reads
	s.router.HandleFunc("/api/v1/gems/{name}", gemsHandler.GetGem).Methods(http.MethodGet)

	// Everything else requires an API key
	authed := s.router.PathPrefix("/api/v1").Subrouter()
	authed.Use(middleware.NewAPIKeyMiddleware(cfg.Keyring).Handler)
	hookHandler.Register(authed)
	authed.HandleFunc("/gems", gemsHandler.CreateGem).Methods(http.MethodPost)
	authed.HandleFunc("/gems/{name}/versions", gemsHandler.PublishVersion).Methods(http.MethodPost)

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(cfg.Logger),
		httputil.RecoveryMiddleware(cfg.Logger),
	}
	if cfg.Metrics != nil {
		chain = append(chain, httputil.MetricsMiddleware(cfg.Metrics))
	}

	s.handler = httputil.Chain(chain...)(s.router)
	if cfg.TracingEnabled {
		s.handler = otelhttp.NewHandler(s.handler, "gemyard.api")
	}
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// NewHealthHandler builds the handler served on the health port: liveness,
// readiness, and prometheus metrics. ready may be nil when the server has
// no external dependencies to probe.
func NewHealthHandler(promRegistry *prometheus.Registry, ready func(context.Context) error) http.Handler {
	healthMux := http.NewServeMux()

	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	healthMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	if promRegistry != nil {
		healthMux.Handle("/metrics", observability.Handler(promRegistry))
	}
	return healthMux
}
