package harness

import "fmt"

// ConstructionError reports that the application instance could not be
// built. It always wraps the underlying cause; a fixture never silently
// carries a nil application.
type ConstructionError struct {
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("application construction failed: %v", e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an invalid fixture configuration, detected at
// construction time.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid fixture configuration: " + e.Reason
}

// StartupError wraps any failure raised while the fixture was starting.
// By the time it reaches the caller the full cleanup sequence has already
// run: overrides are reverted and a partially-bound server is closed.
type StartupError struct {
	Err error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("fixture startup failed: %v", e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ListenerError wraps failures from run listeners. Every listener executes
// before the error surfaces; the wrapped error joins all failures in
// registration order.
type ListenerError struct {
	Err error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("run listener failed: %v", e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

// StateError reports an accessor called before the state it reads was
// populated. Accessors never return placeholders.
type StateError struct {
	Accessor string
	State    State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s is not available while the fixture is %s", e.Accessor, e.State)
}
