package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/jkvis/donateflow/internal/casereport/domain"
	caserepo "github.com/jkvis/donateflow/internal/casereport/repository"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	donordomain "github.com/jkvis/donateflow/internal/donor/domain"
	"github.com/jkvis/donateflow/internal/observability/metrics"
	"github.com/jkvis/donateflow/pkg/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func setupLedger(t *testing.T, node *snowflake.Node) (donationdomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	prepareLedgerSchema(t, db)

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Repo:      repository.ProvideStore[donationdomain.Donation](db),
		DonorRepo: repository.ProvideStore[donordomain.Donor](db),
		CaseRepo:  caserepo.Provide(db),
	})
	return svc, db
}

func prepareLedgerSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE donors (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			address TEXT,
			country TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE case_reports (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			cost NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			donor_id BIGINT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE donations (
			id BIGINT PRIMARY KEY,
			donor_id BIGINT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL,
			classification TEXT NOT NULL,
			case_id BIGINT,
			channel TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			occurred_at DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'completed',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX ux_donations_channel_txn ON donations (channel, transaction_id)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func seedLedgerDonor(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()
	donor := &donordomain.Donor{
		ID:        node.Generate(),
		Name:      "Jane Donor",
		Email:     fmt.Sprintf("%s@example.com", t.Name()),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(donor).Error; err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	return donor.ID
}

func seedCase(t *testing.T, db *gorm.DB, node *snowflake.Node, status casedomain.CaseStatus, donorID *snowflake.ID) snowflake.ID {
	t.Helper()
	report := &casedomain.CaseReport{
		ID:        node.Generate(),
		Title:     "Water well",
		Cost:      decimal.RequireFromString("2500.00"),
		Currency:  "USD",
		Status:    status,
		DonorID:   donorID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.Create(report).Error; err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return report.ID
}

func confirmation(donorID snowflake.ID, txn string) donationdomain.ConfirmedPayment {
	return donationdomain.ConfirmedPayment{
		Channel:        donationdomain.ChannelStripe,
		TransactionID:  txn,
		DonorID:        donorID,
		Amount:         decimal.RequireFromString("100.00"),
		Currency:       "USD",
		Classification: donationdomain.ClassificationGeneral,
		OccurredAt:     time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordConfirmedPaymentIdempotent(t *testing.T) {
	node := mustNode(t)
	svc, db := setupLedger(t, node)
	ctx := context.Background()
	donorID := seedLedgerDonor(t, db, node)

	first, err := svc.RecordConfirmedPayment(ctx, confirmation(donorID, "pi_123"))
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if first.Status != donationdomain.StatusCompleted {
		t.Fatalf("expected completed status, got %s", first.Status)
	}

	second, err := svc.RecordConfirmedPayment(ctx, confirmation(donorID, "pi_123"))
	if err != nil {
		t.Fatalf("duplicate record: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing donation back, got %s vs %s", second.ID, first.ID)
	}

	var count int64
	if err := db.Model(&donationdomain.Donation{}).Count(&count).Error; err != nil {
		t.Fatalf("count donations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one donation, got %d", count)
	}
}

func TestRecordConfirmedPaymentValidations(t *testing.T) {
	node := mustNode(t)
	svc, db := setupLedger(t, node)
	ctx := context.Background()
	donorID := seedLedgerDonor(t, db, node)

	bad := confirmation(donorID, "pi_zero")
	bad.Amount = decimal.Zero
	if _, err := svc.RecordConfirmedPayment(ctx, bad); !errors.Is(err, donationdomain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	bad = confirmation(donorID, "   ")
	if _, err := svc.RecordConfirmedPayment(ctx, bad); !errors.Is(err, donationdomain.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction, got %v", err)
	}

	if _, err := svc.RecordConfirmedPayment(ctx, confirmation(node.Generate(), "pi_ghost")); !errors.Is(err, donordomain.ErrDonorNotFound) {
		t.Fatalf("expected ErrDonorNotFound, got %v", err)
	}
}

func TestSponsorshipAssignsApprovedCase(t *testing.T) {
	node := mustNode(t)
	svc, db := setupLedger(t, node)
	ctx := context.Background()
	donorID := seedLedgerDonor(t, db, node)
	caseID := seedCase(t, db, node, casedomain.CaseStatusApproved, nil)

	payment := confirmation(donorID, "pi_sponsor")
	payment.Classification = donationdomain.ClassificationSponsorship
	payment.CaseID = &caseID

	donation, err := svc.RecordConfirmedPayment(ctx, payment)
	if err != nil {
		t.Fatalf("record sponsorship: %v", err)
	}
	if donation.CaseID == nil || *donation.CaseID != caseID {
		t.Fatalf("expected donation to reference case %s", caseID)
	}

	var report casedomain.CaseReport
	if err := db.First(&report, "id = ?", caseID).Error; err != nil {
		t.Fatalf("load case: %v", err)
	}
	if report.Status != casedomain.CaseStatusAssigned {
		t.Fatalf("expected case assigned, got %s", report.Status)
	}
	if report.DonorID == nil || *report.DonorID != donorID {
		t.Fatal("expected case assigned to donor")
	}
}

func TestSponsorshipRejectsIneligibleCase(t *testing.T) {
	node := mustNode(t)
	svc, db := setupLedger(t, node)
	ctx := context.Background()
	donorID := seedLedgerDonor(t, db, node)

	pendingCase := seedCase(t, db, node, casedomain.CaseStatusPending, nil)
	payment := confirmation(donorID, "pi_pending_case")
	payment.Classification = donationdomain.ClassificationSponsorship
	payment.CaseID = &pendingCase
	if _, err := svc.RecordConfirmedPayment(ctx, payment); !errors.Is(err, casedomain.ErrCaseNotEligible) {
		t.Fatalf("expected ErrCaseNotEligible for pending case, got %v", err)
	}

	other := node.Generate()
	takenCase := seedCase(t, db, node, casedomain.CaseStatusAssigned, &other)
	payment = confirmation(donorID, "pi_taken_case")
	payment.Classification = donationdomain.ClassificationSponsorship
	payment.CaseID = &takenCase
	if _, err := svc.RecordConfirmedPayment(ctx, payment); !errors.Is(err, casedomain.ErrCaseNotEligible) {
		t.Fatalf("expected ErrCaseNotEligible for assigned case, got %v", err)
	}

	payment = confirmation(donorID, "pi_no_case")
	payment.Classification = donationdomain.ClassificationSponsorship
	payment.CaseID = nil
	if _, err := svc.RecordConfirmedPayment(ctx, payment); !errors.Is(err, casedomain.ErrCaseNotEligible) {
		t.Fatalf("expected ErrCaseNotEligible for missing case id, got %v", err)
	}

	var count int64
	if err := db.Model(&donationdomain.Donation{}).Count(&count).Error; err != nil {
		t.Fatalf("count donations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no donations written, got %d", count)
	}
}

func TestMarkFailed(t *testing.T) {
	node := mustNode(t)
	svc, db := setupLedger(t, node)
	ctx := context.Background()
	donorID := seedLedgerDonor(t, db, node)

	donation, err := svc.RecordConfirmedPayment(ctx, confirmation(donorID, "pi_reversed"))
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	failed, err := svc.MarkFailed(ctx, donationdomain.ChannelStripe, "pi_reversed")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if failed.ID != donation.ID || failed.Status != donationdomain.StatusFailed {
		t.Fatalf("expected same donation in failed status, got %+v", failed)
	}

	// Marking again is a no-op.
	again, err := svc.MarkFailed(ctx, donationdomain.ChannelStripe, "pi_reversed")
	if err != nil {
		t.Fatalf("mark failed again: %v", err)
	}
	if again.Status != donationdomain.StatusFailed {
		t.Fatalf("expected failed status, got %s", again.Status)
	}

	if _, err := svc.MarkFailed(ctx, donationdomain.ChannelStripe, "pi_unknown"); !errors.Is(err, donationdomain.ErrDonationNotFound) {
		t.Fatalf("expected ErrDonationNotFound, got %v", err)
	}
}

func TestCompletedForYearBoundaries(t *testing.T) {
	node := mustNode(t)
	svc, db := setupLedger(t, node)
	ctx := context.Background()
	donorID := seedLedgerDonor(t, db, node)

	late := confirmation(donorID, "pi_late_2024")
	late.OccurredAt = time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)
	if _, err := svc.RecordConfirmedPayment(ctx, late); err != nil {
		t.Fatalf("record: %v", err)
	}

	next := confirmation(donorID, "pi_early_2025")
	next.OccurredAt = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.RecordConfirmedPayment(ctx, next); err != nil {
		t.Fatalf("record: %v", err)
	}

	donations, err := svc.CompletedForYear(ctx, 2024)
	if err != nil {
		t.Fatalf("completed for year: %v", err)
	}
	if len(donations) != 1 || donations[0].TransactionID != "pi_late_2024" {
		t.Fatalf("expected only the 2024 donation, got %d", len(donations))
	}

	byDonor, err := svc.CompletedForDonor(ctx, donorID, 2025)
	if err != nil {
		t.Fatalf("completed for donor: %v", err)
	}
	if len(byDonor) != 1 || byDonor[0].TransactionID != "pi_early_2025" {
		t.Fatalf("expected only the 2025 donation, got %d", len(byDonor))
	}
}
