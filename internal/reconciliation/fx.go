package reconciliation

import (
	"context"

	"github.com/jkvis/donateflow/internal/receipt/delivery"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation",
	fx.Provide(func(d *delivery.Dispatcher) Deliverer { return d }),
	fx.Provide(NewJob),
	fx.Provide(NewScheduler),
	fx.Invoke(startScheduler),
)

func startScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(runCtx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
