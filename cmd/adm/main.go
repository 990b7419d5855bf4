// Package main provides the entry point of the quiz audit admin CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/moldovancsaba/amanoba-sub004/cmd/adm/commands"
	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	if os.Getenv(config.ConfigFileEnv) == "" {
		for _, path := range []string{"config.yaml", "../config.yaml", "../../config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnv, path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set %s: %v\n", config.ConfigFileEnv, err)
					return 1
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// Reports go to stdout; keep logs to errors and skip exporters
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, commands.ServiceName, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		return 1
	}

	env := commands.NewEnvironment(cfg, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		env.Close(shutdownCtx)
	}()

	if err := commands.NewRootCommand(env).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
