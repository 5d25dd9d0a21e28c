package stripe

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	paymentdomain "github.com/jkvis/donateflow/internal/payment/domain"
	"github.com/shopspring/decimal"
)

type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Channel() donationdomain.Channel {
	return donationdomain.ChannelStripe
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		return a.parseConfirmed(event)
	case "payment_intent.payment_failed", "charge.refunded":
		return a.parseReversal(event)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripePaymentIntent struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Created        int64             `json:"created"`
	Metadata       map[string]string `json:"metadata"`
}

func (a *Adapter) parseConfirmed(event stripeEvent) (*paymentdomain.Event, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	cents := intent.AmountReceived
	if cents <= 0 {
		cents = intent.Amount
	}

	donorID, err := parseDonorID(intent.Metadata)
	if err != nil {
		return nil, err
	}

	confirmed := &donationdomain.ConfirmedPayment{
		Channel:        donationdomain.ChannelStripe,
		TransactionID:  intent.ID,
		DonorID:        donorID,
		Amount:         decimal.New(cents, -2),
		Currency:       strings.ToUpper(strings.TrimSpace(intent.Currency)),
		Classification: parseClassification(intent.Metadata),
		CaseID:         parseCaseID(intent.Metadata),
		OccurredAt:     timestamp(intent.Created, event.Created),
	}

	return &paymentdomain.Event{
		Type:            paymentdomain.EventTypeConfirmed,
		Channel:         donationdomain.ChannelStripe,
		ProviderEventID: event.ID,
		TransactionID:   intent.ID,
		Confirmed:       confirmed,
	}, nil
}

func (a *Adapter) parseReversal(event stripeEvent) (*paymentdomain.Event, error) {
	var object struct {
		ID            string `json:"id"`
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(event.Data.Object, &object); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	// Charges reference their intent; intents are their own transaction id.
	txnID := strings.TrimSpace(object.PaymentIntent)
	if txnID == "" {
		txnID = strings.TrimSpace(object.ID)
	}
	if txnID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	return &paymentdomain.Event{
		Type:            paymentdomain.EventTypeReversed,
		Channel:         donationdomain.ChannelStripe,
		ProviderEventID: event.ID,
		TransactionID:   txnID,
	}, nil
}

func parseDonorID(metadata map[string]string) (snowflake.ID, error) {
	raw := strings.TrimSpace(metadata["donor_id"])
	if raw == "" {
		return 0, paymentdomain.ErrInvalidDonor
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, paymentdomain.ErrInvalidDonor
	}
	return snowflake.ID(parsed), nil
}

func parseClassification(metadata map[string]string) donationdomain.Classification {
	if strings.TrimSpace(metadata["classification"]) == string(donationdomain.ClassificationSponsorship) {
		return donationdomain.ClassificationSponsorship
	}
	return donationdomain.ClassificationGeneral
}

func parseCaseID(metadata map[string]string) *snowflake.ID {
	raw := strings.TrimSpace(metadata["case_id"])
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed == 0 {
		return nil
	}
	id := snowflake.ID(parsed)
	return &id
}

func timestamp(primary, fallback int64) time.Time {
	if primary > 0 {
		return time.Unix(primary, 0).UTC()
	}
	if fallback > 0 {
		return time.Unix(fallback, 0).UTC()
	}
	return time.Now().UTC()
}
