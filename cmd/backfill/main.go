package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sudocentral/paypal-mailwizz/internal/backfill"
	"github.com/sudocentral/paypal-mailwizz/internal/clock"
	"github.com/sudocentral/paypal-mailwizz/internal/config"
	"github.com/sudocentral/paypal-mailwizz/internal/crm"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/logger"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/tracing"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		clock.Module,
		crm.Module,
		backfill.Module,

		fx.Invoke(runBackfill),
	)
	app.Run()
}

// runBackfill executes one aggregation pass and shuts the process down.
func runBackfill(lc fx.Lifecycle, agg *backfill.Aggregator, sd fx.Shutdowner, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := agg.Run(context.Background()); err != nil {
					log.Error("backfill run failed", zap.Error(err))
				}
				_ = sd.Shutdown()
			}()
			return nil
		},
	})
}
