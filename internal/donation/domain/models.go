// Package domain contains the donation ledger models. Donation rows are
// immutable once written except for the terminal failed-status update.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Channel identifies the payment provider a donation was confirmed through.
type Channel string

const (
	ChannelStripe Channel = "stripe"
	ChannelPayPal Channel = "paypal"
)

// Classification distinguishes general gifts from case sponsorships.
type Classification string

const (
	ClassificationGeneral     Classification = "general"
	ClassificationSponsorship Classification = "sponsorship"
)

// Status represents donation lifecycle states. Donations are created in
// completed status at confirmation time; failed is a later terminal state
// reported by the provider.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Donation is one row in the authoritative donation ledger.
type Donation struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	DonorID        snowflake.ID    `gorm:"not null;index"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency       string          `gorm:"type:text;not null"`
	Classification Classification  `gorm:"type:text;not null"`
	CaseID         *snowflake.ID   `gorm:"index"`
	Channel        Channel         `gorm:"type:text;not null;uniqueIndex:ux_donations_channel_txn,priority:1"`
	TransactionID  string          `gorm:"type:text;not null;uniqueIndex:ux_donations_channel_txn,priority:2"`
	OccurredAt     time.Time       `gorm:"not null;index"`
	Status         Status          `gorm:"type:text;not null;default:'completed';index"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Donation) TableName() string { return "donations" }

// ConfirmedPayment is the canonical confirmation shape handed to the
// ledger writer. Provider payloads are mapped into this structure at the
// ingestion boundary; nothing provider-specific leaks past it.
type ConfirmedPayment struct {
	Channel        Channel
	TransactionID  string
	DonorID        snowflake.ID
	Amount         decimal.Decimal
	Currency       string
	Classification Classification
	CaseID         *snowflake.ID
	OccurredAt     time.Time
}
