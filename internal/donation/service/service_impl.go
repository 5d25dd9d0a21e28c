package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/jkvis/donateflow/internal/casereport/domain"
	caserepo "github.com/jkvis/donateflow/internal/casereport/repository"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	donordomain "github.com/jkvis/donateflow/internal/donor/domain"
	"github.com/jkvis/donateflow/internal/observability/metrics"
	"github.com/jkvis/donateflow/pkg/db"
	"github.com/jkvis/donateflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Metrics   *metrics.Metrics
	Repo      repository.Repository[donationdomain.Donation]
	DonorRepo repository.Repository[donordomain.Donor]
	CaseRepo  caserepo.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	metrics   *metrics.Metrics
	repo      repository.Repository[donationdomain.Donation]
	donorRepo repository.Repository[donordomain.Donor]
	caseRepo  caserepo.Repository
}

func NewService(p Params) donationdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("donation.service"),
		genID:     p.GenID,
		metrics:   p.Metrics,
		repo:      p.Repo,
		donorRepo: p.DonorRepo,
		caseRepo:  p.CaseRepo,
	}
}

func (s *Service) RecordConfirmedPayment(ctx context.Context, payment donationdomain.ConfirmedPayment) (*donationdomain.Donation, error) {
	if !payment.Amount.IsPositive() {
		return nil, donationdomain.ErrInvalidAmount
	}
	if payment.Channel == "" {
		return nil, donationdomain.ErrInvalidChannel
	}
	txnID := strings.TrimSpace(payment.TransactionID)
	if txnID == "" {
		return nil, donationdomain.ErrInvalidTransaction
	}

	donor, err := s.donorRepo.FindOne(ctx, &donordomain.Donor{ID: payment.DonorID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", donationdomain.ErrPersistence, err)
	}
	if donor == nil {
		return nil, donordomain.ErrDonorNotFound
	}

	if payment.Classification == donationdomain.ClassificationSponsorship {
		if err := s.checkCaseEligible(ctx, payment.CaseID); err != nil {
			return nil, err
		}
	}

	// Provider callbacks are at-least-once; return the existing row when
	// this confirmation was already recorded.
	existing, err := s.repo.FindOne(ctx, &donationdomain.Donation{
		Channel:       payment.Channel,
		TransactionID: txnID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", donationdomain.ErrPersistence, err)
	}
	if existing != nil {
		s.log.Info("duplicate payment confirmation, returning existing donation",
			zap.String("channel", string(payment.Channel)),
			zap.String("transaction_id", txnID),
			zap.String("donation_id", existing.ID.String()),
		)
		return existing, nil
	}

	occurredAt := payment.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	donation := &donationdomain.Donation{
		ID:             s.genID.Generate(),
		DonorID:        payment.DonorID,
		Amount:         payment.Amount.Round(2),
		Currency:       strings.ToUpper(strings.TrimSpace(payment.Currency)),
		Classification: payment.Classification,
		CaseID:         payment.CaseID,
		Channel:        payment.Channel,
		TransactionID:  txnID,
		OccurredAt:     occurredAt,
		Status:         donationdomain.StatusCompleted,
	}

	if err := s.repo.Create(ctx, donation); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the insert race against a concurrent duplicate
			// confirmation; the unique index is the authority.
			winner, findErr := s.repo.FindOne(ctx, &donationdomain.Donation{
				Channel:       payment.Channel,
				TransactionID: txnID,
			})
			if findErr != nil {
				return nil, fmt.Errorf("%w: %v", donationdomain.ErrPersistence, findErr)
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, fmt.Errorf("%w: %v", donationdomain.ErrPersistence, err)
	}

	s.metrics.DonationsRecorded.WithLabelValues(string(donation.Channel)).Inc()
	s.log.Info("donation recorded",
		zap.String("donation_id", donation.ID.String()),
		zap.String("donor_id", donation.DonorID.String()),
		zap.String("amount", donation.Amount.String()),
		zap.String("currency", donation.Currency),
		zap.String("channel", string(donation.Channel)),
	)

	// The donation is durable at this point. The case transition is a
	// best-effort follow-up: losing the race leaves a valid general
	// donation, an accepted inconsistency window.
	if payment.Classification == donationdomain.ClassificationSponsorship && payment.CaseID != nil {
		assigned, err := s.caseRepo.Assign(ctx, *payment.CaseID, payment.DonorID)
		if err != nil {
			s.log.Error("case assignment failed after ledger write",
				zap.String("case_id", payment.CaseID.String()),
				zap.String("donation_id", donation.ID.String()),
				zap.Error(err),
			)
		} else if !assigned {
			s.log.Warn("case assignment lost race, donation kept as ledger record",
				zap.String("case_id", payment.CaseID.String()),
				zap.String("donation_id", donation.ID.String()),
			)
		}
	}

	return donation, nil
}

func (s *Service) checkCaseEligible(ctx context.Context, caseID *snowflake.ID) error {
	if caseID == nil {
		return casedomain.ErrCaseNotEligible
	}
	report, err := s.caseRepo.FindOne(ctx, &casedomain.CaseReport{ID: *caseID})
	if err != nil {
		return fmt.Errorf("%w: %v", donationdomain.ErrPersistence, err)
	}
	if report == nil || !report.IsAvailable() {
		return casedomain.ErrCaseNotEligible
	}
	return nil
}

func (s *Service) MarkFailed(ctx context.Context, channel donationdomain.Channel, transactionID string) (*donationdomain.Donation, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, donationdomain.ErrInvalidTransaction
	}

	donation, err := s.repo.FindOne(ctx, &donationdomain.Donation{
		Channel:       channel,
		TransactionID: transactionID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", donationdomain.ErrPersistence, err)
	}
	if donation == nil {
		return nil, donationdomain.ErrDonationNotFound
	}
	if donation.Status == donationdomain.StatusFailed {
		return donation, nil
	}

	if err := s.repo.Update(ctx, int64(donation.ID), map[string]any{
		"status":     donationdomain.StatusFailed,
		"updated_at": time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", donationdomain.ErrPersistence, err)
	}
	donation.Status = donationdomain.StatusFailed

	s.log.Info("donation marked failed after provider reversal",
		zap.String("donation_id", donation.ID.String()),
		zap.String("channel", string(channel)),
		zap.String("transaction_id", transactionID),
	)
	return donation, nil
}

func (s *Service) CompletedForYear(ctx context.Context, year int) ([]*donationdomain.Donation, error) {
	start, end := yearRange(year)
	return s.repo.Find(ctx,
		&donationdomain.Donation{Status: donationdomain.StatusCompleted},
		repository.WithCondition("occurred_at >= ? AND occurred_at < ?", start, end),
		repository.WithOrder("occurred_at ASC"),
	)
}

func (s *Service) CompletedForDonor(ctx context.Context, donorID snowflake.ID, year int) ([]*donationdomain.Donation, error) {
	start, end := yearRange(year)
	return s.repo.Find(ctx,
		&donationdomain.Donation{DonorID: donorID, Status: donationdomain.StatusCompleted},
		repository.WithCondition("occurred_at >= ? AND occurred_at < ?", start, end),
		repository.WithOrder("occurred_at ASC"),
	)
}

func yearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
