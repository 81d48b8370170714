package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/fixturelabs/appharness/internal/logger"
)

// Lifecycle tracks managed resources tied to the server's lifetime.
// Resources are started in registration order before the server accepts
// traffic and stopped in reverse order during shutdown.
type Lifecycle struct {
	mu      sync.Mutex
	managed []Managed
	started bool
}

// Manage registers a resource. If the lifecycle is already running (for
// example when called from a harness onRun listener, which fires after the
// server is bound) the resource is started immediately and any start error
// is returned.
func (l *Lifecycle) Manage(m Managed) error {
	l.mu.Lock()
	l.managed = append(l.managed, m)
	running := l.started
	l.mu.Unlock()

	if running {
		if err := m.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start managed resource: %w", err)
		}
	}
	return nil
}

// Start starts every managed resource in registration order. On failure,
// resources already started are stopped in reverse order before the error
// is returned. Called by the serve command; applications should not call
// it.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return nil
	}
	managed := append([]Managed(nil), l.managed...)
	l.started = true
	l.mu.Unlock()

	for i, m := range managed {
		if err := m.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if stopErr := managed[j].Stop(ctx); stopErr != nil {
					logger.Warn("managed resource stop failed during rollback", "error", stopErr)
				}
			}
			l.mu.Lock()
			l.started = false
			l.mu.Unlock()
			return fmt.Errorf("failed to start managed resource: %w", err)
		}
	}
	return nil
}

// Stop stops every managed resource in reverse registration order. Errors
// are logged and do not prevent the remaining resources from stopping.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return nil
	}
	managed := append([]Managed(nil), l.managed...)
	l.started = false
	l.mu.Unlock()

	for i := len(managed) - 1; i >= 0; i-- {
		if err := managed[i].Stop(ctx); err != nil {
			logger.Warn("managed resource stop failed", "error", err)
		}
	}
	return nil
}
