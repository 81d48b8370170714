package harness

import "github.com/fixturelabs/appharness/pkg/app"

// ServiceListener observes fixture lifecycle transitions. OnRun fires after
// the application is serving, OnStop fires before teardown begins.
type ServiceListener[C any] interface {
	// OnRun is called once the application is running. An error aborts
	// Before, but only after every remaining listener has run.
	OnRun(configuration C, environment *app.Environment, h *Harness[C]) error

	// OnStop is called before the fixture tears the application down.
	// Errors are logged, never propagated; teardown always proceeds.
	OnStop(h *Harness[C]) error
}

// ListenerFuncs adapts plain functions to ServiceListener. Nil functions
// are no-ops, so callers can provide only the hook they care about.
type ListenerFuncs[C any] struct {
	Run  func(configuration C, environment *app.Environment, h *Harness[C]) error
	Stop func(h *Harness[C]) error
}

func (l ListenerFuncs[C]) OnRun(configuration C, environment *app.Environment, h *Harness[C]) error {
	if l.Run == nil {
		return nil
	}
	return l.Run(configuration, environment, h)
}

func (l ListenerFuncs[C]) OnStop(h *Harness[C]) error {
	if l.Stop == nil {
		return nil
	}
	return l.Stop(h)
}
