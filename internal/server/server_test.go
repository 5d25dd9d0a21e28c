package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	caserepo "github.com/jkvis/donateflow/internal/casereport/repository"
	"github.com/jkvis/donateflow/internal/clock"
	"github.com/jkvis/donateflow/internal/config"
	"github.com/jkvis/donateflow/internal/currency"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	donationservice "github.com/jkvis/donateflow/internal/donation/service"
	donordomain "github.com/jkvis/donateflow/internal/donor/domain"
	"github.com/jkvis/donateflow/internal/observability/metrics"
	"github.com/jkvis/donateflow/internal/payment/adapters"
	"github.com/jkvis/donateflow/internal/payment/adapters/paypal"
	"github.com/jkvis/donateflow/internal/payment/adapters/stripe"
	"github.com/jkvis/donateflow/internal/payment/webhook"
	"github.com/jkvis/donateflow/internal/providers/artifact"
	"github.com/jkvis/donateflow/internal/providers/email"
	"github.com/jkvis/donateflow/internal/receipt/delivery"
	receiptdomain "github.com/jkvis/donateflow/internal/receipt/domain"
	receiptrender "github.com/jkvis/donateflow/internal/receipt/render"
	receiptservice "github.com/jkvis/donateflow/internal/receipt/service"
	"github.com/jkvis/donateflow/internal/reconciliation"
	"github.com/jkvis/donateflow/pkg/repository"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupServer(t *testing.T) (*gin.Engine, *gorm.DB, *snowflake.Node) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	prepareServerSchema(t, db)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	cfg := config.Config{
		HTTPAddr: ":0",
		Org: config.OrgConfig{
			Name:               "JKVIS Foundation",
			Address:            "123 Charity Street, Toronto, ON M5V 3A8",
			Phone:              "+1-416-555-0123",
			Email:              "info@jkvis.org",
			RegistrationNumber: "123456789RR0001",
			ReceiptPrefix:      "JKVIS",
		},
		ReceiptCurrency: "CAD",
		MinTaxYear:      2020,
		ArtifactDir:     t.TempDir(),
	}
	clk := clock.NewFakeClock(time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	store, err := artifact.NewFileStore(cfg.ArtifactDir)
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}

	donorRepo := repository.ProvideStore[donordomain.Donor](db)
	jobMetrics := metrics.New(prometheus.NewRegistry())
	donationSvc := donationservice.NewService(donationservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Metrics:   jobMetrics,
		Repo:      repository.ProvideStore[donationdomain.Donation](db),
		DonorRepo: donorRepo,
		CaseRepo:  caserepo.Provide(db),
	})
	paymentSvc := webhook.NewService(webhook.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Metrics:     jobMetrics,
		DonationSvc: donationSvc,
		Adapters:    adapters.NewRegistry(stripe.NewAdapter(), paypal.NewAdapter()),
	})
	receiptSvc := receiptservice.NewService(receiptservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Cfg:       cfg,
		Clock:     clk,
		Converter: currency.NewDefaultConverter(),
		Renderer:  receiptrender.NewRenderer(),
		Artifacts: store,
		Repo:      repository.ProvideStore[receiptdomain.Receipt](db),
	})
	dispatcher := delivery.NewDispatcher(delivery.Params{
		Log:       log,
		Cfg:       cfg,
		Email:     &email.NoOpProvider{},
		Artifacts: store,
	})
	job := reconciliation.NewJob(reconciliation.Params{
		Log:         log,
		GenID:       node,
		Cfg:         cfg,
		Clock:       clk,
		Metrics:     jobMetrics,
		DonationSvc: donationSvc,
		ReceiptSvc:  receiptSvc,
		DonorRepo:   donorRepo,
		Deliverer:   dispatcher,
	})

	engine := NewEngine(log)
	NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Log:        log,
		GenID:      node,
		PaymentSvc: paymentSvc,
		ReceiptSvc: receiptSvc,
		Artifacts:  store,
		Job:        job,
	})
	return engine, db, node
}

func prepareServerSchema(t *testing.T, db *gorm.DB) {
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
		`CREATE TABLE payment_events (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSON NOT NULL,
			received_at DATETIME NOT NULL,
			processed_at DATETIME
		)`,
		`CREATE UNIQUE INDEX ux_payment_events_provider_event ON payment_events (provider, provider_event_id)`,
		`CREATE TABLE receipts (
			id BIGINT PRIMARY KEY,
			donor_id BIGINT NOT NULL,
			year INTEGER NOT NULL,
			donation_ids JSON NOT NULL,
			total_amount NUMERIC(12,2) NOT NULL,
			currency TEXT NOT NULL,
			compliance_donor_name TEXT NOT NULL,
			compliance_donor_address TEXT NOT NULL,
			compliance_receipt_number TEXT NOT NULL,
			compliance_donation_period TEXT NOT NULL,
			compliance_eligible_amount NUMERIC(12,2) NOT NULL,
			compliance_org_name TEXT NOT NULL,
			compliance_org_address TEXT NOT NULL,
			compliance_org_registration_num TEXT NOT NULL,
			artifact_path TEXT,
			receipt_number TEXT NOT NULL,
			issued_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX ux_receipts_donor_year ON receipts (donor_id, year)`,
		`CREATE UNIQUE INDEX ux_receipts_number ON receipts (receipt_number)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func createDonor(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()
	donor := &donordomain.Donor{
		ID:        node.Generate(),
		Name:      "Jane Donor",
		Email:     fmt.Sprintf("%s@example.com", t.Name()),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(donor).Error; err != nil {
		t.Fatalf("create donor: %v", err)
	}
	return donor.ID
}

func TestWebhookToReceiptDownloadFlow(t *testing.T) {
	engine, db, node := setupServer(t)
	donorID := createDonor(t, db, node)

	payload := fmt.Sprintf(`{
		"id": "evt_100",
		"type": "payment_intent.succeeded",
		"created": %d,
		"data": {"object": {
			"id": "pi_flow",
			"amount": 50000,
			"amount_received": 50000,
			"currency": "cad",
			"created": %d,
			"metadata": {"donor_id": "%d"}
		}}
	}`, time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC).Unix(),
		time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC).Unix(), donorID)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", bytes.NewBufferString(payload))
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status %d: %s", rec.Code, rec.Body.String())
	}

	// Replaying the same provider event acks without a second donation.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", bytes.NewBufferString(payload))
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status %d", rec.Code)
	}
	var donationCount int64
	if err := db.Model(&donationdomain.Donation{}).Count(&donationCount).Error; err != nil {
		t.Fatalf("count donations: %v", err)
	}
	if donationCount != 1 {
		t.Fatalf("expected one donation, got %d", donationCount)
	}

	// Supervised single-donor generation.
	body, _ := json.Marshal(map[string]int{"year": 2024})
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/admin/donors/%d/receipts", donorID), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate status %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ReceiptNumber string `json:"receipt_number"`
		TotalAmount   string `json:"total_amount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.TotalAmount != "500.00" {
		t.Fatalf("expected total 500.00, got %s", created.TotalAmount)
	}

	// Re-issuing for the same (donor, year) returns the existing receipt.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/admin/donors/%d/receipts", donorID), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected idempotent replay to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	var replay struct {
		ReceiptNumber string `json:"receipt_number"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &replay); err != nil {
		t.Fatalf("decode replay response: %v", err)
	}
	if replay.ReceiptNumber != created.ReceiptNumber {
		t.Fatalf("expected the original receipt %s, got %s", created.ReceiptNumber, replay.ReceiptNumber)
	}

	// Download streams the PDF.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/receipts/"+created.ReceiptNumber+"/download", nil)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected PDF bytes in response")
	}
}

func TestDownloadUnknownReceipt(t *testing.T) {
	engine, _, _ := setupServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/receipts/JKVIS-2024-000000-0/download", nil)
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRunReconciliationAccepted(t *testing.T) {
	engine, _, _ := setupServer(t)

	body := bytes.NewBufferString(`{"year": 2024}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/reconciliation/runs", body)
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["run_id"] == "" {
		t.Fatal("expected run id in response")
	}
}
