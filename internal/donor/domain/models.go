// Package domain contains the donor profile model. Donors are owned by
// the user-management subsystem; the reconciliation engine only reads them.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrDonorNotFound = errors.New("donor_not_found")
)

// AddressPlaceholder is printed on receipts when a donor has no postal address.
const AddressPlaceholder = "Address not provided"

// Donor is a registered donor profile.
type Donor struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_donors_email"`
	Address   *string      `gorm:"type:text"`
	Country   *string      `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Donor) TableName() string { return "donors" }

// PostalAddress returns the donor's address or the receipt placeholder.
func (d Donor) PostalAddress() string {
	if d.Address == nil || strings.TrimSpace(*d.Address) == "" {
		return AddressPlaceholder
	}
	return *d.Address
}
