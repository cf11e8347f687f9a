package syncqueue

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("syncqueue",
	fx.Provide(DefaultConfig),
	fx.Provide(NewQueue),
	fx.Invoke(runQueue),
)

func runQueue(lc fx.Lifecycle, queue *Queue) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			queue.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			queue.Stop()
			return nil
		},
	})
}
