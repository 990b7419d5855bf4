// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"sync"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/di"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
)

// Environment carries the shared configuration, logger and output settings
// of one CLI invocation. The service container is built on first use so
// commands that need no store never open a connection.
type Environment struct {
	Config *config.Config
	Logger *observability.Logger
	Format string
	Output string

	opts      []di.Option
	once      sync.Once
	container *di.ServiceContainer
	initErr   error
}

// NewEnvironment creates an Environment. opts are passed to the service container.
func NewEnvironment(cfg *config.Config, logger *observability.Logger, opts ...di.Option) *Environment {
	return &Environment{
		Config: cfg,
		Logger: logger,
		Format: formatJSON,
		opts:   opts,
	}
}

// Container initializes the service container once and returns it
func (e *Environment) Container(ctx context.Context) (*di.ServiceContainer, error) {
	e.once.Do(func() {
		sc := di.NewServiceContainer(e.Config, e.Logger, e.opts...)
		if err := sc.Initialize(ctx); err != nil {
			e.initErr = err
			return
		}
		e.container = sc
	})
	return e.container, e.initErr
}

// Close releases the container if one was created
func (e *Environment) Close(ctx context.Context) {
	if e.container == nil {
		return
	}
	if err := e.container.Shutdown(ctx); err != nil {
		e.Logger.Warn(ctx, "Failed to shut down service container", map[string]interface{}{"error": err.Error()})
	}
}
