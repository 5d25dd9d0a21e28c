// Package domain contains persistence models for sponsorship case reports.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrCaseNotFound    = errors.New("case_not_found")
	ErrCaseNotEligible = errors.New("case_not_eligible")
)

// CaseStatus represents case report lifecycle states.
type CaseStatus string

const (
	CaseStatusPending  CaseStatus = "pending"
	CaseStatusApproved CaseStatus = "approved"
	CaseStatusRejected CaseStatus = "rejected"
	CaseStatusAssigned CaseStatus = "assigned"
)

// CaseReport is a fundable case awaiting sponsorship.
// A case holds at most one assigned donor; the transition to assigned
// happens only as a side effect of a successful donation ledger write.
type CaseReport struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	Title       string          `gorm:"type:text;not null"`
	Description string          `gorm:"type:text"`
	Cost        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency    string          `gorm:"type:text;not null"`
	Status      CaseStatus      `gorm:"type:text;not null;default:'pending';index"`
	DonorID     *snowflake.ID   `gorm:"index"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CaseReport) TableName() string { return "case_reports" }

// IsAvailable reports whether the case can accept a sponsorship donation.
func (c CaseReport) IsAvailable() bool {
	return c.Status == CaseStatusApproved && c.DonorID == nil
}
