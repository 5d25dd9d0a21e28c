package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/jkvis/donateflow/internal/casereport"
	"github.com/jkvis/donateflow/internal/clock"
	"github.com/jkvis/donateflow/internal/config"
	"github.com/jkvis/donateflow/internal/currency"
	"github.com/jkvis/donateflow/internal/donation"
	"github.com/jkvis/donateflow/internal/donor"
	"github.com/jkvis/donateflow/internal/migration"
	"github.com/jkvis/donateflow/internal/observability/metrics"
	"github.com/jkvis/donateflow/internal/payment"
	"github.com/jkvis/donateflow/internal/providers/email"
	"github.com/jkvis/donateflow/internal/receipt"
	"github.com/jkvis/donateflow/internal/reconciliation"
	"github.com/jkvis/donateflow/internal/server"
	"github.com/jkvis/donateflow/pkg/db"
	"github.com/jkvis/donateflow/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		// Functional domains
		currency.Module,
		donor.Module,
		casereport.Module,
		donation.Module,
		payment.Module,
		email.Module,
		receipt.Module,
		reconciliation.Module,

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
