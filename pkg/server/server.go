// Package server provides the HTTP server handle managed by the serve
// command and observed by the test harness. A server owns an ordered set of
// connectors (application first, admin last), reports their bound ports,
// and notifies startup listeners synchronously once every listener is
// bound.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/fixturelabs/appharness/internal/logger"
)

// Connector is a single bound listener plus the http.Server draining it.
type Connector struct {
	name       string
	listener   net.Listener
	httpServer *http.Server
}

// Name returns the connector name ("application" or "admin").
func (c *Connector) Name() string {
	return c.name
}

// LocalPort returns the port the connector is bound to. For a configured
// port of 0 this is the ephemeral port the kernel assigned.
func (c *Connector) LocalPort() int {
	return c.listener.Addr().(*net.TCPAddr).Port
}

// StartupListener is notified synchronously from Start once all connectors
// are bound, before Start returns. This is the capture point for anything
// that must observe the server handle even when later startup work fails.
type StartupListener func(*Server)

// ShutdownHook runs during Stop after the connectors have drained.
type ShutdownHook func(ctx context.Context) error

// Server is the runtime handle for the bound HTTP listeners.
//
// The zero value is not usable; construct with New. Start and Stop are
// idempotent in the direction the lifecycle needs: Stop may be called
// multiple times and concurrently with the serve goroutines.
type Server struct {
	config Config

	mu               sync.Mutex
	connectors       []*Connector
	startupListeners []StartupListener
	shutdownHooks    []ShutdownHook
	started          bool

	stopOnce sync.Once
	serveWG  sync.WaitGroup
}

// New creates a server with an application connector serving handler and,
// when adminHandler is non-nil, an admin connector serving it. Connector
// order is fixed: application first, admin last.
func New(config Config, handler, adminHandler http.Handler) *Server {
	config.applyDefaults()

	s := &Server{config: config}

	s.addConnector("application", config.Port, handler)
	if adminHandler != nil {
		s.addConnector("admin", config.AdminPort, adminHandler)
	}

	return s
}

func (s *Server) addConnector(name string, port int, handler http.Handler) {
	s.connectors = append(s.connectors, &Connector{
		name: name,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", s.config.Host, port),
			Handler:      handler,
			ReadTimeout:  s.config.ReadTimeout,
			WriteTimeout: s.config.WriteTimeout,
			IdleTimeout:  s.config.IdleTimeout,
		},
	})
}

// AddStartupListener registers a listener fired once all connectors are
// bound. Must be called before Start.
func (s *Server) AddStartupListener(l StartupListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startupListeners = append(s.startupListeners, l)
}

// AddShutdownHook registers a hook run during Stop after the connectors
// have drained. Hooks run in reverse registration order.
func (s *Server) AddShutdownHook(h ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownHooks = append(s.shutdownHooks, h)
}

// Start binds every connector, notifies startup listeners, and begins
// serving in the background. It does not block on serving: once Start
// returns nil, all ports are bound and queryable.
//
// If any bind fails, already-bound listeners are closed and the error is
// returned; startup listeners are not notified in that case.
//
// When ctx is cancelled after a successful Start, the server shuts itself
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}

	for i, c := range s.connectors {
		ln, err := net.Listen("tcp", c.httpServer.Addr)
		if err != nil {
			for _, bound := range s.connectors[:i] {
				bound.listener.Close()
				bound.listener = nil
			}
			s.mu.Unlock()
			return fmt.Errorf("failed to bind %s connector on %s: %w", c.name, c.httpServer.Addr, err)
		}
		c.listener = ln
	}
	s.started = true
	listeners := append([]StartupListener(nil), s.startupListeners...)
	s.mu.Unlock()

	// Notify synchronously before serving so observers hold the handle
	// before any further startup work runs.
	for _, l := range listeners {
		l(s)
	}

	for _, c := range s.connectors {
		s.serveWG.Add(1)
		go func(c *Connector) {
			defer s.serveWG.Done()
			logger.Info("connector listening", "connector", c.name, "port", c.LocalPort())
			if err := c.httpServer.Serve(c.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("connector serve error", "connector", c.name, "error", err)
			}
		}(c)
	}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
			defer cancel()
			if err := s.Stop(shutdownCtx); err != nil {
				logger.Error("server shutdown error", "error", err)
			}
		}()
	}

	return nil
}

// Stop gracefully shuts down every connector, then runs shutdown hooks in
// reverse registration order. Safe to call multiple times; only the first
// call does work and reports errors.
func (s *Server) Stop(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started := s.started
		connectors := append([]*Connector(nil), s.connectors...)
		hooks := append([]ShutdownHook(nil), s.shutdownHooks...)
		s.mu.Unlock()

		if !started {
			return
		}

		var errs []error
		for _, c := range connectors {
			if err := c.httpServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s connector shutdown: %w", c.name, err))
			}
		}
		s.serveWG.Wait()

		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown hook: %w", err))
			}
		}

		stopErr = errors.Join(errs...)
		if stopErr == nil {
			logger.Info("server stopped")
		}
	})
	return stopErr
}

// Connectors returns the connectors in bind order: application first,
// admin last.
func (s *Server) Connectors() []*Connector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Connector(nil), s.connectors...)
}
