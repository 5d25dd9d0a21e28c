package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	"gorm.io/datatypes"
)

var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrInvalidDonor     = errors.New("invalid_donor_reference")
	ErrEventIgnored     = errors.New("event_ignored")
)

const (
	EventTypeConfirmed = "payment_confirmed"
	EventTypeReversed  = "payment_reversed"
)

// Event is the provider-neutral outcome of parsing a webhook payload.
// Confirmed carries the full canonical payment; reversals only identify
// the transaction being reversed.
type Event struct {
	Type            string
	Channel         donationdomain.Channel
	ProviderEventID string
	TransactionID   string
	Confirmed       *donationdomain.ConfirmedPayment
}

// Adapter maps one provider's confirmation payloads into Events.
// Payloads are already verified and trusted when they reach an adapter.
type Adapter interface {
	Channel() donationdomain.Channel
	Parse(ctx context.Context, payload []byte) (*Event, error)
}

// EventRecord is the stored trace of every ingested provider event.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:1"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:2"`
	EventType       string         `gorm:"type:text;not null"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time     `gorm:""`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }

// Service ingests trusted provider webhook payloads.
type Service interface {
	IngestConfirmation(ctx context.Context, provider string, payload []byte) error
}
