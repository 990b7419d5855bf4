// Package main runs the scheduled audit worker. It re-runs the duplicate
// audit and the coverage report on an interval and exposes their latest
// results plus pause/resume controls over HTTP.
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

	"github.com/gin-gonic/gin"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/di"
	"github.com/moldovancsaba/amanoba-sub004/internal/handlers"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
	"github.com/moldovancsaba/amanoba-sub004/internal/version"
	"github.com/moldovancsaba/amanoba-sub004/internal/worker"
)

const serviceName = "quiz-audit-worker"

// WorkerApp wires the worker to its HTTP control surface
type WorkerApp struct {
	container di.ServiceContainerInterface
	worker    *worker.Worker
	router    *gin.Engine
	server    *http.Server
}

// NewWorkerApp builds the worker from an initialized container
func NewWorkerApp(container di.ServiceContainerInterface, instance string) (*WorkerApp, error) {
	cfg := container.GetConfig()

	params := services.AuditParametersFromConfig(cfg.Audit)
	if err := services.ValidateAuditParameters(params); err != nil {
		return nil, contextutils.WrapError(err, "invalid audit parameters")
	}

	auditService, err := container.GetDuplicateAuditService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get duplicate audit service")
	}

	coverageService, err := container.GetCoverageService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get coverage service")
	}

	w := worker.NewWorker(auditService, coverageService, params, cfg.Worker, instance, container.GetLogger())

	return &WorkerApp{
		container: container,
		worker:    w,
		router:    handlers.NewWorkerRouter(cfg, w, serviceName, container.GetLogger()),
	}, nil
}

// Handler exposes the router, mainly for tests
func (a *WorkerApp) Handler() http.Handler {
	return a.router
}

// Run starts the scheduling loop and serves HTTP until ctx is cancelled
func (a *WorkerApp) Run(ctx context.Context, port string) error {
	go a.worker.Start(ctx)

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
		return contextutils.WrapError(err, "worker server failed")
	}
}

// Shutdown stops the HTTP server and then releases container resources
func (a *WorkerApp) Shutdown(ctx context.Context) error {
	var serverErr error
	if a.server != nil {
		serverErr = a.server.Shutdown(ctx)
	}
	if err := a.container.Shutdown(ctx); err != nil {
		return err
	}
	if serverErr != nil {
		return contextutils.WrapError(serverErr, "worker server shutdown failed")
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

	logger.Info(ctx, "Starting quiz audit worker", map[string]interface{}{
		"port":         cfg.Worker.Port,
		"interval":     cfg.Worker.Interval.String(),
		"start_paused": cfg.Worker.StartPaused,
		"version":      version.Version,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "default"
	}

	app, err := NewWorkerApp(container, hostname)
	if err != nil {
		logger.Error(ctx, "Failed to create worker", err, nil)
		os.Exit(1)
	}

	appErr := make(chan error, 1)
	go func() {
		if err := app.Run(ctx, cfg.Worker.Port); err != nil {
			appErr <- err
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, stopping worker", nil)
	case err := <-appErr:
		logger.Error(ctx, "Worker failed", err, nil)
		os.Exit(1)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during worker shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Worker stopped", nil)
}
