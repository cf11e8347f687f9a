package backfill

import (
	"go.uber.org/fx"

	"github.com/sudocentral/paypal-mailwizz/internal/provider"
)

var Module = fx.Module("backfill",
	fx.Provide(provider.NewClient),
	fx.Provide(func(c *provider.Client) provider.TransactionLister { return c }),
	fx.Provide(NewAggregator),
)
