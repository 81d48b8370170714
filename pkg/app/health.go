package app

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
)

// HealthCheck reports whether a single dependency is healthy.
type HealthCheck func(ctx context.Context) error

// HealthCheckRegistry holds named health checks exposed on the admin
// connector under /healthcheck.
type HealthCheckRegistry struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]HealthCheck
}

func newHealthCheckRegistry() *HealthCheckRegistry {
	return &HealthCheckRegistry{checks: make(map[string]HealthCheck)}
}

// Register adds a named check. Re-registering a name replaces the check
// but keeps its original position.
func (r *HealthCheckRegistry) Register(name string, check HealthCheck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checks[name]; !exists {
		r.names = append(r.names, name)
	}
	r.checks[name] = check
}

// Names returns the registered check names in registration order.
func (r *HealthCheckRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Run executes every check and returns the per-check results. A nil map
// value means healthy.
func (r *HealthCheckRegistry) Run(ctx context.Context) map[string]error {
	r.mu.RLock()
	names := append([]string(nil), r.names...)
	checks := make(map[string]HealthCheck, len(r.checks))
	for name, check := range r.checks {
		checks[name] = check
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(names))
	for _, name := range names {
		results[name] = checks[name](ctx)
	}
	return results
}

type healthResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// handler serves the registry as JSON: 200 when everything is healthy,
// 500 otherwise.
func (r *HealthCheckRegistry) handler(w http.ResponseWriter, req *http.Request) {
	results := r.Run(req.Context())

	body := make(map[string]healthResult, len(results))
	status := http.StatusOK
	for name, err := range results {
		if err != nil {
			body[name] = healthResult{Healthy: false, Message: err.Error()}
			status = http.StatusInternalServerError
		} else {
			body[name] = healthResult{Healthy: true}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
