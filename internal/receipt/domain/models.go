// Package domain contains the annual tax receipt models. Receipts are
// immutable once issued; only the artifact reference may be attached by
// an out-of-band retry of a failed render.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ComplianceData is the block of fields a compliant receipt must carry,
// captured at issuance time so later donor edits do not rewrite history.
type ComplianceData struct {
	DonorName          string          `gorm:"type:text;not null"`
	DonorAddress       string          `gorm:"type:text;not null"`
	ReceiptNumber      string          `gorm:"type:text;not null"`
	DonationPeriod     string          `gorm:"type:text;not null"`
	EligibleAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	OrgName            string          `gorm:"type:text;not null"`
	OrgAddress         string          `gorm:"type:text;not null"`
	OrgRegistrationNum string          `gorm:"type:text;not null"`
}

// Receipt is one issued annual tax receipt. Exactly one exists per
// (donor, year); the unique index is the authoritative guard.
type Receipt struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	DonorID       snowflake.ID    `gorm:"not null;uniqueIndex:ux_receipts_donor_year,priority:1"`
	Year          int             `gorm:"not null;uniqueIndex:ux_receipts_donor_year,priority:2"`
	DonationIDs   datatypes.JSON  `gorm:"type:jsonb;not null"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency      string          `gorm:"type:text;not null"`
	Compliance    ComplianceData  `gorm:"embedded;embeddedPrefix:compliance_"`
	ArtifactPath  *string         `gorm:"type:text"`
	ReceiptNumber string          `gorm:"type:text;not null;uniqueIndex:ux_receipts_number"`
	IssuedAt      time.Time       `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Receipt) TableName() string { return "receipts" }

// HasArtifact reports whether a rendered document is attached.
func (r Receipt) HasArtifact() bool {
	return r.ArtifactPath != nil && *r.ArtifactPath != ""
}
