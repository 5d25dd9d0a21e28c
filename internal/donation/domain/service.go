package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidChannel     = errors.New("invalid_channel")
	ErrInvalidTransaction = errors.New("invalid_transaction_id")
	ErrDonationNotFound   = errors.New("donation_not_found")
	ErrPersistence        = errors.New("persistence_failure")
)

// Service is the donation ledger writer. It is the only component that
// creates or mutates donation rows.
type Service interface {
	// RecordConfirmedPayment turns a trusted provider confirmation into
	// one ledger row. Safe to call twice for the same (channel,
	// transaction id): the second call returns the existing row.
	RecordConfirmedPayment(ctx context.Context, payment ConfirmedPayment) (*Donation, error)

	// MarkFailed flips a previously recorded donation to failed when the
	// provider later reports a reversal for its transaction id.
	MarkFailed(ctx context.Context, channel Channel, transactionID string) (*Donation, error)

	// CompletedForYear returns all completed donations whose occurrence
	// falls within the given calendar year, ordered by occurrence.
	CompletedForYear(ctx context.Context, year int) ([]*Donation, error)

	// CompletedForDonor narrows CompletedForYear to one donor.
	CompletedForDonor(ctx context.Context, donorID snowflake.ID, year int) ([]*Donation, error)
}
