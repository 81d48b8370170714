package command

import (
	"context"
	"sync"

	"github.com/fixturelabs/appharness/internal/logger"
	"github.com/fixturelabs/appharness/pkg/app"
)

// CheckCommand loads and validates the configuration without wiring the
// application or binding a network listener. It exposes the resolved
// configuration but no environment.
type CheckCommand[C any] struct {
	mu            sync.Mutex
	configuration C
	configured    bool
}

// NewCheckCommand creates the validate-only command.
func NewCheckCommand[C any]() *CheckCommand[C] {
	return &CheckCommand[C]{}
}

func (c *CheckCommand[C]) Name() string {
	return "check"
}

func (c *CheckCommand[C]) Run(ctx context.Context, bootstrap *app.Bootstrap[C], namespace *Namespace) error {
	factory := bootstrap.FactoryFactory()(bootstrap.Validator(), bootstrap.PropertyPrefix())

	cfg, err := factory.Build(bootstrap.SourceProvider(), namespace.ConfigPath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.configuration = cfg
	c.configured = true
	c.mu.Unlock()

	logger.Info("configuration is valid", "source", namespace.ConfigPath)
	return nil
}

// Configuration returns the validated configuration once Run has loaded it.
func (c *CheckCommand[C]) Configuration() (C, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configuration, c.configured
}
