// Package migration creates the core schema on startup so a fresh
// deployment is usable out of the box. Postgres goes through versioned
// migrations; other dialects fall back to model auto-migration for
// local development.
package migration

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	casedomain "github.com/jkvis/donateflow/internal/casereport/domain"
	"github.com/jkvis/donateflow/internal/config"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	donordomain "github.com/jkvis/donateflow/internal/donor/domain"
	paymentdomain "github.com/jkvis/donateflow/internal/payment/domain"
	receiptdomain "github.com/jkvis/donateflow/internal/receipt/domain"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// Run brings the schema up to date for the configured engine. Postgres
// applies the embedded versioned migrations; sqlite and mysql
// auto-migrate the donation models directly.
func Run(conn *gorm.DB, cfg config.Config) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if cfg.DBType != "postgres" {
		return conn.AutoMigrate(
			&donordomain.Donor{},
			&casedomain.CaseReport{},
			&donationdomain.Donation{},
			&paymentdomain.EventRecord{},
			&receiptdomain.Receipt{},
		)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
