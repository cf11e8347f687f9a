package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/sudocentral/paypal-mailwizz/internal/clock"
	"github.com/sudocentral/paypal-mailwizz/internal/config"
	"github.com/sudocentral/paypal-mailwizz/internal/crm"
	"github.com/sudocentral/paypal-mailwizz/internal/donor"
	"github.com/sudocentral/paypal-mailwizz/internal/ingest"
	"github.com/sudocentral/paypal-mailwizz/internal/migration"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/logger"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/metrics"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/tracing"
	"github.com/sudocentral/paypal-mailwizz/internal/server"
	"github.com/sudocentral/paypal-mailwizz/internal/syncqueue"
	"github.com/sudocentral/paypal-mailwizz/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		donor.Module,
		crm.Module,
		syncqueue.Module,
		ingest.Module,

		fx.Invoke(func(cfg config.Config) {
			metrics.PipelineWithConfig(metrics.Config{
				ServiceName: "donorsync",
				Environment: cfg.Environment,
			})
		}),
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
