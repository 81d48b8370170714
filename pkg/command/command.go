// Package command contains the startup commands an application can be run
// with: ServerCommand boots the full HTTP server, CheckCommand loads and
// validates the configuration without binding a listener.
//
// What a command exposes after running is decided at selection time via
// the capability interfaces Configured and WithEnvironment, not discovered
// afterwards by inspecting the concrete type.
package command

import (
	"context"

	"github.com/fixturelabs/appharness/pkg/app"
)

// Namespace carries the per-invocation arguments a command runs with,
// most importantly the configuration source locator. An empty ConfigPath
// means no file-based source (defaults, environment, and overrides only).
type Namespace struct {
	ConfigPath string
}

// Command is a startup command executed against a bootstrap.
type Command[C any] interface {
	// Name identifies the command ("serve", "check").
	Name() string

	// Run executes the command. Any error aborts startup and propagates to
	// the caller unchanged.
	Run(ctx context.Context, bootstrap *app.Bootstrap[C], namespace *Namespace) error
}

// Configured is the capability of commands that resolve a configuration
// object. The boolean reports whether Run has populated it.
type Configured[C any] interface {
	Configuration() (C, bool)
}

// WithEnvironment is the capability of commands that additionally build a
// wiring environment.
type WithEnvironment[C any] interface {
	Configured[C]
	Environment() (*app.Environment, bool)
}

// Builder instantiates the command a fixture or CLI starts the application
// with. The default is ServerBuilder.
type Builder[C any] func(application app.Application[C]) Command[C]

// ServerBuilder returns a Builder producing the full-server command.
func ServerBuilder[C any]() Builder[C] {
	return func(app.Application[C]) Command[C] {
		return NewServerCommand[C]()
	}
}

// CheckBuilder returns a Builder producing the validate-only command.
func CheckBuilder[C any]() Builder[C] {
	return func(app.Application[C]) Command[C] {
		return NewCheckCommand[C]()
	}
}
