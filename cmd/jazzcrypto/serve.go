package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/auth"
	"jazz-tools/jazz-crypto/codec"
	"jazz-tools/jazz-crypto/config"
	"jazz-tools/jazz-crypto/entrypoint"
	"jazz-tools/jazz-crypto/metrics"
	"jazz-tools/jazz-crypto/transport"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the crypto service over gRPC, with metrics and the remote payload codec",
		Action: func(c *cli.Context) error {
			app := newServeApp(c)
			if err := app.Err(); err != nil {
				return err
			}

			startCtx, cancel := context.WithTimeout(c.Context, app.StartTimeout())
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}

			select {
			case <-app.Done():
			case <-c.Context.Done():
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return app.Stop(stopCtx)
		},
	}
}

func newServeApp(c *cli.Context) *fx.App {
	logger := loggerFrom(c)

	return fx.New(
		fx.Supply(c, logger),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		config.Module,
		metrics.Module,
		auth.Module,
		codec.Module,
		transport.Module,
		fx.Invoke(initializeEntrypoint),
		fx.Invoke(func(metrics.MetricsProvider, transport.TransportProvider) {}),
	)
}

// initializeEntrypoint runs before the transport starts serving, so every
// call through it sees an initialised library.
func initializeEntrypoint(configProvider config.ConfigProvider, metricsHandler *metrics.MetricsHandler, logger *zap.Logger) error {
	cfg := configProvider.GetConfig()

	st := entrypoint.InitializeWith(entrypoint.Options{
		Config:         &cfg,
		Logger:         logger,
		MetricsHandler: metricsHandler,
	})
	if st != entrypoint.StatusOK {
		return fmt.Errorf("failed to initialize jazz-crypto: %s", st)
	}
	return nil
}
