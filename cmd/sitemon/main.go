package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/octabyte/sitemon/config"
	sitemonotel "github.com/octabyte/sitemon/otel"
	"github.com/octabyte/sitemon/otel/metrics"
	"github.com/octabyte/sitemon/session"
	"github.com/octabyte/sitemon/utils/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:       cfg.LogLevel,
		Env:         cfg.Env,
		ServiceName: cfg.ServiceName,
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := sitemonotel.Init(ctx, sitemonotel.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		SampleRate:  1.0,
	})
	if err != nil {
		logger.LogError("init telemetry", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.LogWarn("telemetry shutdown", zap.Error(err))
		}
	}()
	if !cfg.TracingEnabled {
		if err := metrics.Init(cfg.ServiceName); err != nil {
			logger.LogWarn("init metrics", zap.Error(err))
		}
	}

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "demo" {
		err = runDemo(ctx, os.Stdout)
	} else {
		err = runCommand(ctx, cfg, args)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorMessage(err))
		logger.LogDebug("command failed", zap.Error(err))
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg *config.Config, args []string) error {
	a, err := newApp(ctx, cfg, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(ctx, args)
}

// errorMessage renders a failed command for the terminal. Backend failures
// show what the backend said; local failures such as usage errors keep their
// own text.
func errorMessage(err error) string {
	var apiErr *session.APIError
	var transportErr *session.TransportError
	if errors.As(err, &apiErr) || errors.As(err, &transportErr) {
		return session.Message(err)
	}
	return err.Error()
}
