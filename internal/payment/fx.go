package payment

import (
	"github.com/jkvis/donateflow/internal/payment/adapters"
	"github.com/jkvis/donateflow/internal/payment/adapters/paypal"
	"github.com/jkvis/donateflow/internal/payment/adapters/stripe"
	"github.com/jkvis/donateflow/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewAdapter(),
			paypal.NewAdapter(),
		)
	}),
	fx.Provide(webhook.NewService),
)
