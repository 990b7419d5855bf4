// Package main runs the quiz audit HTTP service: question selection,
// outcome recording, duplicate audits, coverage and the audit ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/di"
	"github.com/moldovancsaba/amanoba-sub004/internal/handlers"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
	"github.com/moldovancsaba/amanoba-sub004/internal/version"

	"github.com/gin-gonic/gin"
)

const serviceName = "quiz-audit"

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	selectionService, err := container.GetSelectionService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get selection service")
	}

	auditService, err := container.GetDuplicateAuditService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get duplicate audit service")
	}

	coverageService, err := container.GetCoverageService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get coverage service")
	}

	ledgerService, err := container.GetLedgerService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get ledger service")
	}

	router := handlers.NewRouter(
		container.GetConfig(),
		selectionService,
		auditService,
		coverageService,
		ledgerService,
		container.GetSchemaLoader(),
		container.GetLogger(),
	)

	return &Application{
		container: container,
		router:    router,
	}, nil
}

// Handler exposes the router, mainly for tests
func (a *Application) Handler() http.Handler {
	return a.router
}

// Run serves HTTP on port until ctx is cancelled or the listener fails
func (a *Application) Run(ctx context.Context, port string) error {
	a.server = &http.Server{
		Addr:         ":" + port,
		Handler:      a.router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown stops the HTTP server and then releases container resources
func (a *Application) Shutdown(ctx context.Context) error {
	var serverErr error
	if a.server != nil {
		serverErr = a.server.Shutdown(ctx)
	}
	if err := a.container.Shutdown(ctx); err != nil {
		return err
	}
	if serverErr != nil {
		return contextutils.WrapError(serverErr, "http server shutdown failed")
	}
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.OpenTelemetry.ServiceVersion == "" {
		cfg.OpenTelemetry.ServiceVersion = version.Version
	}

	tp, mp, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, serviceName, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if s, ok := tp.(shutdowner); ok {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	logger.Info(ctx, "Starting quiz audit service", map[string]interface{}{
		"port":      cfg.Server.Port,
		"log_level": cfg.Server.LogLevel,
		"version":   version.Version,
		"commit":    version.Commit,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		os.Exit(1)
	}

	appErr := make(chan error, 1)
	go func() {
		if err := app.Run(ctx, cfg.Server.Port); err != nil {
			appErr <- err
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-appErr:
		logger.Error(ctx, "Application failed", err, nil)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
