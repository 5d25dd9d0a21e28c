package paypal

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
	return donationdomain.ChannelPayPal
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.Event, error) {
	var event paypalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.EventType) {
	case "PAYMENT.SALE.COMPLETED":
		return a.parseConfirmed(event)
	case "PAYMENT.SALE.REFUNDED", "PAYMENT.SALE.REVERSED", "PAYMENT.SALE.DENIED":
		return a.parseReversal(event)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

type paypalEvent struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	CreateTime string         `json:"create_time"`
	Resource   paypalResource `json:"resource"`
}

type paypalResource struct {
	ID            string       `json:"id"`
	SaleID        string       `json:"sale_id"`
	ParentPayment string       `json:"parent_payment"`
	Amount        paypalAmount `json:"amount"`
	Custom        string       `json:"custom"`
	CreateTime    string       `json:"create_time"`
}

type paypalAmount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

// custom carries the metadata PayPal has no structured field for; it is
// set to a JSON blob when the payment is created.
type customFields struct {
	DonorID        string `json:"donor_id"`
	Classification string `json:"classification"`
	CaseID         string `json:"case_id"`
}

func (a *Adapter) parseConfirmed(event paypalEvent) (*paymentdomain.Event, error) {
	resource := event.Resource
	if strings.TrimSpace(resource.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(resource.Amount.Total))
	if err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var custom customFields
	if raw := strings.TrimSpace(resource.Custom); raw != "" {
		if err := json.Unmarshal([]byte(raw), &custom); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
	}

	donorID, err := parseID(custom.DonorID)
	if err != nil {
		return nil, paymentdomain.ErrInvalidDonor
	}

	classification := donationdomain.ClassificationGeneral
	if custom.Classification == string(donationdomain.ClassificationSponsorship) {
		classification = donationdomain.ClassificationSponsorship
	}

	var caseID *snowflake.ID
	if id, err := parseID(custom.CaseID); err == nil {
		caseID = &id
	}

	confirmed := &donationdomain.ConfirmedPayment{
		Channel:        donationdomain.ChannelPayPal,
		TransactionID:  resource.ID,
		DonorID:        donorID,
		Amount:         amount,
		Currency:       strings.ToUpper(strings.TrimSpace(resource.Amount.Currency)),
		Classification: classification,
		CaseID:         caseID,
		OccurredAt:     parseTime(resource.CreateTime, event.CreateTime),
	}

	return &paymentdomain.Event{
		Type:            paymentdomain.EventTypeConfirmed,
		Channel:         donationdomain.ChannelPayPal,
		ProviderEventID: event.ID,
		TransactionID:   resource.ID,
		Confirmed:       confirmed,
	}, nil
}

func (a *Adapter) parseReversal(event paypalEvent) (*paymentdomain.Event, error) {
	resource := event.Resource

	// Refund resources point back at the sale they reverse.
	txnID := strings.TrimSpace(resource.SaleID)
	if txnID == "" {
		txnID = strings.TrimSpace(resource.ID)
	}
	if txnID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	return &paymentdomain.Event{
		Type:            paymentdomain.EventTypeReversed,
		Channel:         donationdomain.ChannelPayPal,
		ProviderEventID: event.ID,
		TransactionID:   txnID,
	}, nil
}

func parseID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, paymentdomain.ErrInvalidDonor
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, paymentdomain.ErrInvalidDonor
	}
	return snowflake.ID(parsed), nil
}

func parseTime(primary, fallback string) time.Time {
	for _, raw := range []string{primary, fallback} {
		if raw == "" {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			return parsed.UTC()
		}
	}
	return time.Now().UTC()
}
