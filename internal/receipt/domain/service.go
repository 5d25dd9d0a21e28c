package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	donordomain "github.com/jkvis/donateflow/internal/donor/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrReceiptExists   = errors.New("receipt_already_exists")
	ErrReceiptNotFound = errors.New("receipt_not_found")
	ErrInvalidTaxYear  = errors.New("invalid_tax_year")
	ErrNoDonations     = errors.New("no_completed_donations")
	ErrDocumentRender  = errors.New("document_render_failure")
)

// Service owns receipt persistence and document generation.
type Service interface {
	// EligibleAmount sums completed donations normalized to the receipt
	// currency. Donations in any other status are excluded regardless of
	// what the caller passed in.
	EligibleAmount(donations []*donationdomain.Donation) (decimal.Decimal, error)

	// Create persists a new receipt. ErrReceiptExists when the (donor,
	// year) pair is already issued.
	Create(ctx context.Context, receipt *Receipt) error

	// GenerateDocument renders the receipt PDF and returns the stable
	// artifact path. ErrDocumentRender wraps any rendering failure.
	GenerateDocument(ctx context.Context, donor donordomain.Donor, donations []*donationdomain.Donation, year int, receiptNumber string) (string, error)

	// AttachArtifact sets the artifact path on an issued receipt.
	AttachArtifact(ctx context.Context, receiptID snowflake.ID, artifactPath string) error

	FindByDonorYear(ctx context.Context, donorID snowflake.ID, year int) (*Receipt, error)
	FindByNumber(ctx context.Context, receiptNumber string) (*Receipt, error)
}
