package main

import (
	"context"
	"io"

	"github.com/alexisbeaulieu97/authboot/internal/config"
	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// appContext bundles the services one command invocation shares.
type appContext struct {
	cfg       *config.Config
	target    bootstrap.Target
	logger    ports.Logger
	publisher *events.LoggingPublisher
	runID     string
}

// newAppContext loads configuration and builds the logger. The run id
// doubles as the correlation id stored in the returned context.
func newAppContext(ctx context.Context, flags rootFlags, level string, logOut io.Writer) (context.Context, *appContext, error) {
	cfg, err := config.Load(config.LoadOptions{Path: flags.configPath, EnvFile: flags.envFile})
	if err != nil {
		return ctx, nil, err
	}
	target, err := cfg.BuildTarget()
	if err != nil {
		return ctx, nil, err
	}
	log, err := newLogger(flags.logFormat, level, logOut)
	if err != nil {
		return ctx, nil, err
	}

	runID := ports.GenerateCorrelationID()
	ctx = ports.WithCorrelationID(ctx, runID)
	return ctx, &appContext{
		cfg:       cfg,
		target:    target,
		logger:    log,
		publisher: events.NewLoggingPublisher(log),
		runID:     runID,
	}, nil
}

// useLogger swaps the command logger, keeping the publisher in step.
func (a *appContext) useLogger(log ports.Logger) {
	a.logger = log
	a.publisher = events.NewLoggingPublisher(log)
}
