package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReceiptNumber builds the structured receipt number:
// <prefix>-<year>-<donor suffix>-<issuance millis>. The donor suffix is
// the last six characters of the decimal donor id; the millisecond stamp
// makes the number unique system-wide. The number is fixed at creation
// and never regenerated on render retries. Deterministic for a given
// issuance time.
func ReceiptNumber(prefix string, year int, donorID snowflake.ID, issuedAt time.Time) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("receipt number prefix is empty")
	}
	if year <= 0 {
		return "", fmt.Errorf("invalid receipt year: %d", year)
	}
	if donorID == 0 {
		return "", fmt.Errorf("invalid donor id")
	}

	return fmt.Sprintf("%s-%d-%s-%d", prefix, year, donorSuffix(donorID), issuedAt.UnixMilli()), nil
}

func donorSuffix(donorID snowflake.ID) string {
	raw := donorID.String()
	if len(raw) <= 6 {
		return raw
	}
	return raw[len(raw)-6:]
}

// DonationPeriod renders the covered-period string printed on receipts.
func DonationPeriod(year int) string {
	return fmt.Sprintf("January 1 - December 31, %d", year)
}
