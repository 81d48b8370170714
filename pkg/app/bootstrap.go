package app

import (
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fixturelabs/appharness/pkg/config"
	"github.com/fixturelabs/appharness/pkg/server"
)

// Bootstrap is the pre-start registration point for an application. The
// framework creates one per run, the application customizes it in
// Initialize, and the startup command consumes it.
type Bootstrap[C any] struct {
	application Application[C]

	sourceProvider  config.SourceProvider
	factoryFactory  config.FactoryFactory[C]
	propertyPrefix  string
	validate        *validator.Validate
	metricsRegistry *prometheus.Registry

	serverListeners []server.StartupListener
}

// NewBootstrap creates a bootstrap with the default collaborators: a
// filesystem source provider, the YAML configuration factory, a fresh
// validator, and a fresh metrics registry.
func NewBootstrap[C any](application Application[C]) *Bootstrap[C] {
	return &Bootstrap[C]{
		application:     application,
		sourceProvider:  config.FileSourceProvider{},
		factoryFactory:  config.DefaultFactoryFactory[C](),
		propertyPrefix:  config.DefaultPrefix,
		validate:        config.NewValidator(),
		metricsRegistry: prometheus.NewRegistry(),
	}
}

// Application returns the application being bootstrapped.
func (b *Bootstrap[C]) Application() Application[C] {
	return b.application
}

// SourceProvider returns the configured configuration source provider.
func (b *Bootstrap[C]) SourceProvider() config.SourceProvider {
	return b.sourceProvider
}

// SetSourceProvider replaces the configuration source provider.
func (b *Bootstrap[C]) SetSourceProvider(p config.SourceProvider) {
	b.sourceProvider = p
}

// FactoryFactory returns the constructor for the configuration factory.
func (b *Bootstrap[C]) FactoryFactory() config.FactoryFactory[C] {
	return b.factoryFactory
}

// SetFactoryFactory replaces the configuration factory constructor. The
// test harness uses this to substitute a static factory for explicitly
// configured fixtures.
func (b *Bootstrap[C]) SetFactoryFactory(ff config.FactoryFactory[C]) {
	b.factoryFactory = ff
}

// PropertyPrefix returns the namespace used for environment variables and
// configuration overrides.
func (b *Bootstrap[C]) PropertyPrefix() string {
	return b.propertyPrefix
}

// SetPropertyPrefix replaces the override namespace.
func (b *Bootstrap[C]) SetPropertyPrefix(prefix string) {
	if prefix != "" {
		b.propertyPrefix = prefix
	}
}

// Validator returns the validator passed to configuration factories.
func (b *Bootstrap[C]) Validator() *validator.Validate {
	return b.validate
}

// MetricsRegistry returns the prometheus registry shared by the
// environment and the admin connector.
func (b *Bootstrap[C]) MetricsRegistry() *prometheus.Registry {
	return b.metricsRegistry
}

// AddServerListener registers a callback fired synchronously once the
// server has bound all its connectors, before the startup command
// completes.
func (b *Bootstrap[C]) AddServerListener(l server.StartupListener) {
	b.serverListeners = append(b.serverListeners, l)
}

// ServerListeners returns the registered server startup listeners in
// registration order.
func (b *Bootstrap[C]) ServerListeners() []server.StartupListener {
	return b.serverListeners
}
