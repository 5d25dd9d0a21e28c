package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	"github.com/jkvis/donateflow/internal/observability/metrics"
	"github.com/jkvis/donateflow/internal/payment/adapters"
	paymentdomain "github.com/jkvis/donateflow/internal/payment/domain"
	"github.com/jkvis/donateflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Metrics     *metrics.Metrics
	DonationSvc donationdomain.Service
	Adapters    *adapters.Registry
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	metrics     *metrics.Metrics
	donationSvc donationdomain.Service
	adapters    *adapters.Registry
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.webhook"),
		genID:       p.GenID,
		metrics:     p.Metrics,
		donationSvc: p.DonationSvc,
		adapters:    p.Adapters,
	}
}

// IngestConfirmation parses a trusted provider payload and applies it to
// the donation ledger. Unknown event types are acknowledged and dropped.
func (s *Service) IngestConfirmation(ctx context.Context, provider string, payload []byte) error {
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	adapter, err := s.adapters.Resolve(provider)
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return nil
		}
		return err
	}

	record, err := s.recordEvent(ctx, event, payload)
	if err != nil {
		return err
	}
	if record == nil {
		// Same provider event already fully processed; nothing left to do.
		return nil
	}

	switch event.Type {
	case paymentdomain.EventTypeConfirmed:
		_, err = s.donationSvc.RecordConfirmedPayment(ctx, *event.Confirmed)
	case paymentdomain.EventTypeReversed:
		_, err = s.donationSvc.MarkFailed(ctx, event.Channel, event.TransactionID)
		if errors.Is(err, donationdomain.ErrDonationNotFound) {
			s.log.Warn("reversal for unknown donation",
				zap.String("provider", provider),
				zap.String("transaction_id", event.TransactionID),
			)
			err = nil
		}
	default:
		err = paymentdomain.ErrInvalidEvent
	}
	if err != nil {
		return err
	}

	return s.markProcessed(ctx, record.ID)
}

func (s *Service) recordEvent(ctx context.Context, event *paymentdomain.Event, payload []byte) (*paymentdomain.EventRecord, error) {
	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        string(event.Channel),
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.resolveRecordedEvent(ctx, record.Provider, record.ProviderEventID)
		}
		return nil, err
	}
	s.metrics.PaymentEventsIngested.WithLabelValues(record.Provider, record.EventType).Inc()
	return record, nil
}

// resolveRecordedEvent handles a replayed provider event. A record whose
// ledger side effect never completed keeps its nil processed_at, so the
// retry must run the event again; only fully processed events are
// acknowledged without work.
func (s *Service) resolveRecordedEvent(ctx context.Context, provider, providerEventID string) (*paymentdomain.EventRecord, error) {
	var existing paymentdomain.EventRecord
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&existing).Error
	if err != nil {
		return nil, err
	}

	if existing.ProcessedAt != nil {
		s.log.Info("provider event already processed, skipping",
			zap.String("provider", provider),
			zap.String("provider_event_id", providerEventID),
		)
		return nil, nil
	}

	s.log.Info("provider event recorded but unprocessed, retrying ledger write",
		zap.String("provider", provider),
		zap.String("provider_event_id", providerEventID),
	)
	return &existing, nil
}

func (s *Service) markProcessed(ctx context.Context, id snowflake.ID) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&paymentdomain.EventRecord{}).
		Where("id = ?", id).
		Update("processed_at", now).Error
}
