// Package metrics exposes Prometheus instruments for the reconciliation
// pipeline and payment ingestion. Production wiring registers on the
// default registry served from the /metrics endpoint; tests pass their
// own registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

type Metrics struct {
	PaymentEventsIngested *prometheus.CounterVec
	DonationsRecorded     *prometheus.CounterVec
	ReceiptsIssued        prometheus.Counter
	ReceiptsSkipped       prometheus.Counter
	GenerationFailures    prometheus.Counter
	DeliveryFailures      prometheus.Counter
	ReconciliationRuns    *prometheus.CounterVec
	ReconciliationSeconds prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PaymentEventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donateflow_payment_events_ingested_total",
			Help: "Provider webhook events accepted, by provider and event type.",
		}, []string{"provider", "type"}),
		DonationsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donateflow_donations_recorded_total",
			Help: "Donations written to the ledger, by channel.",
		}, []string{"channel"}),
		ReceiptsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "donateflow_receipts_issued_total",
			Help: "Annual receipts issued by reconciliation runs.",
		}),
		ReceiptsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "donateflow_receipts_skipped_total",
			Help: "Donors skipped because a receipt already existed for the year.",
		}),
		GenerationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "donateflow_receipt_generation_failures_total",
			Help: "Receipt document generation failures.",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "donateflow_receipt_delivery_failures_total",
			Help: "Receipt email delivery failures.",
		}),
		ReconciliationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donateflow_reconciliation_runs_total",
			Help: "Reconciliation runs by outcome.",
		}, []string{"outcome"}),
		ReconciliationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "donateflow_reconciliation_duration_seconds",
			Help:    "Wall time of a full reconciliation run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

var Module = fx.Module("observability.metrics",
	fx.Provide(func() *Metrics { return New(prometheus.DefaultRegisterer) }),
)
