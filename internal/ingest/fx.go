package ingest

import (
	"go.uber.org/fx"

	"github.com/sudocentral/paypal-mailwizz/internal/events"
)

var Module = fx.Module("ingest",
	fx.Provide(events.NewOutbox),
	fx.Provide(NewService),
)
