// Package harness boots a full application instance around a test: real
// configuration loading, real dependency wiring, real network listeners on
// ephemeral ports. A Harness runs Before to start the application and After
// to tear it down, and exposes the resolved configuration, the wiring
// environment, and the bound ports in between.
//
// Typical use:
//
//	h, err := harness.New(newApp, harness.WithConfigPath[Config]("testdata/app.yaml"),
//		harness.WithOverrides[Config](config.NewOverride("server.port", "0")))
//	...
//	if err := h.Before(ctx); err != nil { ... }
//	defer h.After(ctx)
//	url := fmt.Sprintf("http://localhost:%d", must(h.LocalPort()))
package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/fixturelabs/appharness/internal/logger"
	"github.com/fixturelabs/appharness/pkg/app"
	"github.com/fixturelabs/appharness/pkg/command"
	"github.com/fixturelabs/appharness/pkg/config"
	"github.com/fixturelabs/appharness/pkg/server"
)

// ApplicationFactory builds a fresh application instance. The harness calls
// it on every start, so a fixture reused across tests never leaks instance
// state between runs.
type ApplicationFactory[C any] func() (app.Application[C], error)

// Option customizes a Harness at construction time.
type Option[C any] func(*Harness[C])

// WithConfigPath sets the configuration source locator passed to the
// factory. Without it the application starts from defaults, environment,
// and overrides only.
func WithConfigPath[C any](path string) Option[C] {
	return func(h *Harness[C]) {
		h.configPath = path
	}
}

// WithSourceProvider replaces how the configuration source is opened, e.g.
// to serve config bytes from memory instead of the filesystem.
func WithSourceProvider[C any](p config.SourceProvider) Option[C] {
	return func(h *Harness[C]) {
		h.sourceProvider = p
	}
}

// WithPropertyPrefix namespaces the fixture's overrides and environment
// lookups, so concurrent fixtures with different prefixes cannot clobber
// each other's values.
func WithPropertyPrefix[C any](prefix string) Option[C] {
	return func(h *Harness[C]) {
		h.propertyPrefix = prefix
	}
}

// WithOverrides registers configuration overrides applied for the duration
// of the fixture. Overrides are process-wide while active and always
// reverted by After.
func WithOverrides[C any](overrides ...config.Override) Option[C] {
	return func(h *Harness[C]) {
		h.overrides = append(h.overrides, overrides...)
	}
}

// WithCommand replaces the startup command builder. The default boots the
// full server; CheckBuilder validates configuration without binding a
// listener.
func WithCommand[C any](builder command.Builder[C]) Option[C] {
	return func(h *Harness[C]) {
		h.commandBuilder = builder
	}
}

// Harness drives one application instance through its lifecycle on behalf
// of a test. A harness has a single logical owner: the test scope calling
// Before and After. Accessors may be read from other goroutines while the
// fixture is running, but concurrent Before/After calls on the same
// harness are not supported. Distinct Harness values are independent
// except for the process-wide override namespace.
type Harness[C any] struct {
	id             string
	newApplication ApplicationFactory[C]
	configPath     string
	sourceProvider config.SourceProvider
	propertyPrefix string
	overrides      []config.Override
	commandBuilder command.Builder[C]
	explicit       C
	explicitConfig bool

	mu            sync.Mutex
	state         State
	application   app.Application[C]
	configuration C
	configured    bool
	environment   *app.Environment
	server        *server.Server
	listeners     []ServiceListener[C]
}

// New creates a harness that resolves configuration through the factory
// chain: file source (if any), environment variables, then overrides.
func New[C any](factory ApplicationFactory[C], opts ...Option[C]) (*Harness[C], error) {
	if factory == nil {
		return nil, &ConfigurationError{Reason: "application factory is nil"}
	}

	h := &Harness[C]{
		id:             uuid.NewString(),
		newApplication: factory,
		commandBuilder: command.ServerBuilder[C](),
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// NewWithConfiguration creates a harness that bypasses configuration
// loading entirely: the given object is handed to the application as-is,
// with no parsing, validation, environment merge, or overrides. It is
// mutually exclusive with WithConfigPath, WithSourceProvider, and
// WithOverrides.
func NewWithConfiguration[C any](factory ApplicationFactory[C], configuration C, opts ...Option[C]) (*Harness[C], error) {
	if isNilConfiguration(configuration) {
		return nil, &ConfigurationError{Reason: "explicit configuration is nil"}
	}

	h, err := New(factory, opts...)
	if err != nil {
		return nil, err
	}
	if h.configPath != "" || h.sourceProvider != nil || len(h.overrides) > 0 {
		return nil, &ConfigurationError{Reason: "explicit configuration cannot be combined with a config path, source provider, or overrides"}
	}

	h.explicit = configuration
	h.explicitConfig = true
	return h, nil
}

func isNilConfiguration(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// AddListener registers a lifecycle listener. Listeners fire in
// registration order on run and on stop. Returns the harness for chaining.
func (h *Harness[C]) AddListener(l ServiceListener[C]) *Harness[C] {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
	return h
}

// Manage attaches a start/stop resource to the application's lifecycle as
// soon as the fixture is running. Sugar for a run listener that calls
// Lifecycle().Manage.
func (h *Harness[C]) Manage(m app.Managed) *Harness[C] {
	return h.AddListener(ListenerFuncs[C]{
		Run: func(_ C, environment *app.Environment, _ *Harness[C]) error {
			return environment.Lifecycle().Manage(m)
		},
	})
}

// Before starts the application unless it is already running. It applies
// the fixture's configuration overrides, builds a fresh application
// instance, and runs the startup command.
//
// Any startup failure triggers full teardown before the error returns:
// overrides are reverted and anything partially started is stopped. The
// returned error is always the original failure.
func (h *Harness[C]) Before(ctx context.Context) error {
	if err := config.ApplyOverrides(h.overrides); err != nil {
		err = &StartupError{Err: err}
		h.cleanupAfterFailedStart(ctx)
		return err
	}

	if err := h.startIfRequired(ctx); err != nil {
		h.cleanupAfterFailedStart(ctx)
		return err
	}
	return nil
}

func (h *Harness[C]) cleanupAfterFailedStart(ctx context.Context) {
	if err := h.After(ctx); err != nil {
		logger.Warn("cleanup after failed start reported an error", "fixture", h.id, "error", err)
	}
}

// After stops the application if it is running and reverts the fixture's
// configuration overrides. Revert is unconditional: it happens even when
// teardown fails, and even when Before never completed. Calling After on an
// idle fixture is a no-op.
func (h *Harness[C]) After(ctx context.Context) error {
	defer config.RevertOverrides(h.overrides)
	return h.stopIfRequired(ctx)
}

func (h *Harness[C]) startIfRequired(ctx context.Context) error {
	h.mu.Lock()
	if h.server != nil {
		h.mu.Unlock()
		return nil
	}
	h.state = StateStarting
	h.mu.Unlock()

	application, err := h.newApplication()
	if err != nil {
		return &ConstructionError{Err: err}
	}
	if application == nil {
		return &ConstructionError{Err: errors.New("factory returned a nil application")}
	}

	h.mu.Lock()
	h.application = application
	h.mu.Unlock()

	bootstrap := app.NewBootstrap(application)

	// Capture the server handle the moment its ports are bound, so even a
	// startup that fails later leaves the fixture able to tear it down.
	bootstrap.AddServerListener(func(s *server.Server) {
		h.mu.Lock()
		h.server = s
		h.mu.Unlock()
	})

	application.Initialize(bootstrap)

	if h.sourceProvider != nil {
		bootstrap.SetSourceProvider(h.sourceProvider)
	}
	if h.explicitConfig {
		bootstrap.SetFactoryFactory(config.StaticFactoryFactory(h.explicit))
	}
	if h.propertyPrefix != "" {
		bootstrap.SetPropertyPrefix(h.propertyPrefix)
	}

	cmd := h.commandBuilder(application)
	configuredCmd, hasConfiguration := cmd.(command.Configured[C])
	environmentCmd, hasEnvironment := cmd.(command.WithEnvironment[C])

	logger.Debug("starting fixture", "fixture", h.id, "command", cmd.Name())

	if err := cmd.Run(ctx, bootstrap, &command.Namespace{ConfigPath: h.configPath}); err != nil {
		return &StartupError{Err: err}
	}

	h.mu.Lock()
	if hasConfiguration {
		if cfg, ok := configuredCmd.Configuration(); ok {
			h.configuration = cfg
			h.configured = true
		}
	}
	if hasEnvironment {
		if env, ok := environmentCmd.Environment(); ok {
			h.environment = env
		}
	}
	h.state = StateRunning
	configuration := h.configuration
	environment := h.environment
	listeners := append([]ServiceListener[C](nil), h.listeners...)
	h.mu.Unlock()

	if environment == nil {
		return nil
	}

	var listenerErrs []error
	for _, l := range listeners {
		if err := l.OnRun(configuration, environment, h); err != nil {
			listenerErrs = append(listenerErrs, err)
		}
	}
	if len(listenerErrs) > 0 {
		return &ListenerError{Err: errors.Join(listenerErrs...)}
	}
	return nil
}

func (h *Harness[C]) stopIfRequired(ctx context.Context) error {
	h.mu.Lock()
	srv := h.server
	if srv == nil {
		// Nothing serving, but a listener-less command (e.g. check) may have
		// populated configuration; clear it so After always leaves the
		// fixture fully idle.
		h.clearRuntimeLocked()
		h.mu.Unlock()
		return nil
	}
	h.state = StateStopping
	listeners := append([]ServiceListener[C](nil), h.listeners...)
	h.mu.Unlock()

	for _, l := range listeners {
		if err := l.OnStop(h); err != nil {
			logger.Warn("stop listener failed", "fixture", h.id, "error", err)
		}
	}

	stopErr := srv.Stop(ctx)

	h.mu.Lock()
	h.clearRuntimeLocked()
	h.mu.Unlock()

	if stopErr != nil {
		return fmt.Errorf("failed to stop fixture: %w", stopErr)
	}
	return nil
}

// clearRuntimeLocked drops everything tied to the stopped run. The
// application instance is kept so tests can assert on post-stop state.
// Caller holds h.mu.
func (h *Harness[C]) clearRuntimeLocked() {
	h.server = nil
	h.environment = nil
	var zero C
	h.configuration = zero
	h.configured = false
	h.state = StateIdle
}

// State returns the current lifecycle phase.
func (h *Harness[C]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Configuration returns the configuration the running application was
// started with.
func (h *Harness[C]) Configuration() (C, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.configured {
		var zero C
		return zero, &StateError{Accessor: "Configuration", State: h.state}
	}
	return h.configuration, nil
}

// Environment returns the running application's wiring environment.
func (h *Harness[C]) Environment() (*app.Environment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.environment == nil {
		return nil, &StateError{Accessor: "Environment", State: h.state}
	}
	return h.environment, nil
}

// Application returns the most recently built application instance. It
// stays available after After so tests can assert on post-stop state.
func (h *Harness[C]) Application() (app.Application[C], error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.application == nil {
		return nil, &StateError{Accessor: "Application", State: h.state}
	}
	return h.application, nil
}

// LocalPort returns the bound port of the application connector.
func (h *Harness[C]) LocalPort() (int, error) {
	return h.Port(0)
}

// AdminPort returns the bound port of the admin connector, which is always
// last in connector order.
func (h *Harness[C]) AdminPort() (int, error) {
	h.mu.Lock()
	srv := h.server
	h.mu.Unlock()
	if srv == nil {
		return 0, &StateError{Accessor: "AdminPort", State: h.State()}
	}
	connectors := srv.Connectors()
	return connectors[len(connectors)-1].LocalPort(), nil
}

// Port returns the bound port of the connector at the given index, in bind
// order: application first, admin last.
func (h *Harness[C]) Port(index int) (int, error) {
	h.mu.Lock()
	srv := h.server
	h.mu.Unlock()
	if srv == nil {
		return 0, &StateError{Accessor: "Port", State: h.State()}
	}
	connectors := srv.Connectors()
	if index < 0 || index >= len(connectors) {
		return 0, fmt.Errorf("connector index %d out of range (have %d)", index, len(connectors))
	}
	return connectors[index].LocalPort(), nil
}

// Server returns the raw server handle, for tests that need more than the
// port accessors.
func (h *Harness[C]) Server() (*server.Server, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server == nil {
		return nil, &StateError{Accessor: "Server", State: h.state}
	}
	return h.server, nil
}

// ID returns the fixture's unique identifier, used in log lines to tell
// concurrent fixtures apart.
func (h *Harness[C]) ID() string {
	return h.id
}
