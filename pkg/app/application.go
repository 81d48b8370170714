// Package app defines the application-side collaborators of the framework:
// the Application contract, the Bootstrap through which an application
// registers its wiring, and the Environment exposing the runtime facilities
// (routers, lifecycle, health checks, metrics) once wiring is complete.
package app

import "context"

// Application is the contract an application implements to be run by the
// framework's commands and by the test harness. C is the application's
// configuration type.
type Application[C any] interface {
	// Initialize registers bundles, providers, and factories on the
	// bootstrap before any configuration is loaded.
	Initialize(bootstrap *Bootstrap[C])

	// Run wires the application against its resolved configuration and the
	// environment. It must not block; the serve command starts the server
	// after Run returns.
	Run(configuration C, environment *Environment) error
}

// Managed is a resource tied to the server lifecycle: started before the
// server accepts traffic and stopped during server shutdown.
type Managed interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
