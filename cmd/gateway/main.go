// Package main is the entry point for the shipment tracking API gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := newApplication(cfg, logger)

	runGateway(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

func printVersion() {
	fmt.Printf("shiptrack-gateway version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func loadAndValidateConfig(path string, logger observability.Logger) *config.GatewayConfig {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Error("failed to load configuration",
			observability.String("path", path),
			observability.Error(err))
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", observability.Error(err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		observability.String("path", path),
		observability.Int("routes", len(cfg.Routes)))
	return cfg
}

// runGateway starts the server, the config watcher, and blocks until a
// shutdown signal arrives.
func runGateway(app *application, configPath string, logger observability.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := config.NewWatcher(configPath, func(cfg *config.GatewayConfig) {
		if err := cfg.Validate(); err != nil {
			logger.Error("rejecting reloaded configuration", observability.Error(err))
			return
		}
		cfg.Normalize()
		app.handler.UpdateConfig(cfg)
	},
		config.WithWatcherLogger(logger),
		config.WithErrorCallback(func(err error) {
			logger.Error("config watcher error", observability.Error(err))
		}),
	)
	if err != nil {
		logger.Error("failed to create config watcher", observability.Error(err))
		os.Exit(1)
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to start config watcher", observability.Error(err))
		os.Exit(1)
	}
	defer watcher.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", observability.Error(err))
		os.Exit(1)
	}

	logger.Info("gateway stopped")
}
