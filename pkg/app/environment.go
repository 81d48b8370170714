package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Environment is the post-initialization wiring context. It exposes the
// application router, the admin router (health checks and metrics), the
// lifecycle for managed resources, and the metrics registry.
type Environment struct {
	name string

	router      chi.Router
	adminRouter chi.Router

	lifecycle    *Lifecycle
	healthChecks *HealthCheckRegistry
	metrics      *prometheus.Registry
}

// NewEnvironment creates an environment backed by the given metrics
// registry. A nil registry gets a fresh one.
func NewEnvironment(name string, metrics *prometheus.Registry) *Environment {
	if metrics == nil {
		metrics = prometheus.NewRegistry()
	}
	metrics.MustRegister(collectors.NewGoCollector())

	env := &Environment{
		name:         name,
		router:       chi.NewRouter(),
		adminRouter:  chi.NewRouter(),
		lifecycle:    &Lifecycle{},
		healthChecks: newHealthCheckRegistry(),
		metrics:      metrics,
	}

	env.router.Use(middleware.Recoverer)

	env.adminRouter.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("pong\n"))
	})
	env.adminRouter.Get("/healthcheck", env.healthChecks.handler)
	env.adminRouter.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	return env
}

// Name returns the environment name.
func (e *Environment) Name() string {
	return e.name
}

// Router returns the application router. Applications register their
// endpoints on it during Run.
func (e *Environment) Router() chi.Router {
	return e.router
}

// Admin returns the admin router served on the admin connector.
func (e *Environment) Admin() chi.Router {
	return e.adminRouter
}

// Lifecycle returns the managed-resource lifecycle.
func (e *Environment) Lifecycle() *Lifecycle {
	return e.lifecycle
}

// HealthChecks returns the health check registry.
func (e *Environment) HealthChecks() *HealthCheckRegistry {
	return e.healthChecks
}

// Metrics returns the prometheus registry.
func (e *Environment) Metrics() *prometheus.Registry {
	return e.metrics
}

// Handler returns the handler for the application connector.
func (e *Environment) Handler() http.Handler {
	return e.router
}

// AdminHandler returns the handler for the admin connector.
func (e *Environment) AdminHandler() http.Handler {
	return e.adminRouter
}
