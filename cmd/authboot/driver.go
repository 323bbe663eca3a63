package main

import (
	"context"

	"github.com/alexisbeaulieu97/authboot/internal/config"
	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/driver/domdriver"
	"github.com/alexisbeaulieu97/authboot/internal/driver/httpdriver"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// openDriver builds the driver named by the configuration. Tests replace it.
var openDriver = newDriver

func newDriver(ctx context.Context, cfg *config.Config, target bootstrap.Target, log ports.Logger) (ports.Driver, error) {
	switch cfg.Driver.Type {
	case config.DriverDOM:
		d, err := domdriver.New(ctx, target, domdriver.Options{
			Headless:           cfg.Driver.Headless,
			ExecPath:           cfg.Driver.ChromePath,
			Timeout:            cfg.Settings.RequestTimeout,
			InsecureSkipVerify: cfg.Driver.InsecureSkipVerify,
			SubmitSettle:       cfg.Driver.SubmitSettle,
			Logger:             log,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		d, err := httpdriver.New(target, httpdriver.Options{
			Timeout:            cfg.Settings.RequestTimeout,
			UserAgent:          cfg.Driver.UserAgent,
			InsecureSkipVerify: cfg.Driver.InsecureSkipVerify,
			Logger:             log,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
