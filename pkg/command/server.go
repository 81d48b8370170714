package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/fixturelabs/appharness/internal/logger"
	"github.com/fixturelabs/appharness/pkg/app"
	"github.com/fixturelabs/appharness/pkg/server"
)

// ServerCommand loads the configuration, wires the application, and starts
// the HTTP server. After a successful Run it exposes the resolved
// configuration and the environment.
type ServerCommand[C any] struct {
	mu            sync.Mutex
	configuration C
	configured    bool
	environment   *app.Environment
}

// NewServerCommand creates the full-server startup command.
func NewServerCommand[C any]() *ServerCommand[C] {
	return &ServerCommand[C]{}
}

func (c *ServerCommand[C]) Name() string {
	return "serve"
}

// Run executes the startup sequence:
//
//  1. Build the configuration through the bootstrap's factory.
//  2. Create the environment and let the application wire itself.
//  3. Start lifecycle-managed resources.
//  4. Bind the server; startup listeners registered on the bootstrap fire
//     as soon as the connectors are bound.
//
// On a bind failure the already-started managed resources are stopped
// before the error propagates.
func (c *ServerCommand[C]) Run(ctx context.Context, bootstrap *app.Bootstrap[C], namespace *Namespace) error {
	factory := bootstrap.FactoryFactory()(bootstrap.Validator(), bootstrap.PropertyPrefix())

	cfg, err := factory.Build(bootstrap.SourceProvider(), namespace.ConfigPath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.configuration = cfg
	c.configured = true
	c.mu.Unlock()

	env := app.NewEnvironment(c.Name(), bootstrap.MetricsRegistry())
	if err := bootstrap.Application().Run(cfg, env); err != nil {
		return fmt.Errorf("application run failed: %w", err)
	}

	c.mu.Lock()
	c.environment = env
	c.mu.Unlock()

	srvCfg := server.Config{}
	if configured, ok := any(cfg).(server.Configured); ok {
		srvCfg = configured.ServerConfig()
	}

	srv := server.New(srvCfg, env.Handler(), env.AdminHandler())
	for _, l := range bootstrap.ServerListeners() {
		srv.AddStartupListener(l)
	}
	srv.AddShutdownHook(env.Lifecycle().Stop)

	if err := env.Lifecycle().Start(ctx); err != nil {
		return err
	}

	if err := srv.Start(ctx); err != nil {
		if stopErr := env.Lifecycle().Stop(ctx); stopErr != nil {
			logger.Warn("lifecycle stop after failed server start", "error", stopErr)
		}
		return err
	}

	return nil
}

// Configuration returns the resolved configuration once Run has loaded it.
// It is populated even when a later startup step fails, so cleanup paths
// can observe it.
func (c *ServerCommand[C]) Configuration() (C, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configuration, c.configured
}

// Environment returns the wiring environment once the application has run.
func (c *ServerCommand[C]) Environment() (*app.Environment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.environment, c.environment != nil
}
