// Package echo is a small reference application built on the framework.
// It registers an echo endpoint, a health check, a request counter, and a
// managed resource, which makes it a convenient target for harness tests.
package echo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fixturelabs/appharness/internal/logger"
	"github.com/fixturelabs/appharness/pkg/app"
	"github.com/fixturelabs/appharness/pkg/server"
)

// Config is the echo application configuration.
type Config struct {
	Server  server.Config `mapstructure:"server" yaml:"server"`
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// Greeting prefixes every echoed message.
	Greeting string `mapstructure:"greeting" yaml:"greeting" validate:"required"`
}

func (c Config) ServerConfig() server.Config {
	return c.Server
}

func (c Config) LoggingConfig() logger.Config {
	return c.Logging
}

// Application echoes request bodies back, prefixed with the configured
// greeting.
type Application struct {
	running atomic.Bool
	echoed  atomic.Int64
}

func NewApplication() *Application {
	return &Application{}
}

// New is the factory the harness and CLI start the application with.
func New() (app.Application[Config], error) {
	return NewApplication(), nil
}

func (a *Application) Initialize(bootstrap *app.Bootstrap[Config]) {}

func (a *Application) Run(cfg Config, env *app.Environment) error {
	requests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "echo_requests_total",
		Help: "Total echo requests served.",
	})
	env.Metrics().MustRegister(requests)

	env.Router().Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		requests.Inc()
		a.echoed.Add(1)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": cfg.Greeting + " " + string(body),
		})
	})

	env.HealthChecks().Register("echo", func(context.Context) error {
		return nil
	})

	return env.Lifecycle().Manage(lifecycleProbe{app: a})
}

// Running reports whether the lifecycle has started the application's
// managed resource and not yet stopped it.
func (a *Application) Running() bool {
	return a.running.Load()
}

// Echoed returns the number of echo requests served.
func (a *Application) Echoed() int64 {
	return a.echoed.Load()
}

type lifecycleProbe struct {
	app *Application
}

func (p lifecycleProbe) Start(context.Context) error {
	p.app.running.Store(true)
	logger.Debug("echo application started")
	return nil
}

func (p lifecycleProbe) Stop(context.Context) error {
	p.app.running.Store(false)
	return nil
}
