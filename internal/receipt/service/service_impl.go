package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jkvis/donateflow/internal/clock"
	"github.com/jkvis/donateflow/internal/config"
	"github.com/jkvis/donateflow/internal/currency"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	donordomain "github.com/jkvis/donateflow/internal/donor/domain"
	"github.com/jkvis/donateflow/internal/providers/artifact"
	receiptdomain "github.com/jkvis/donateflow/internal/receipt/domain"
	"github.com/jkvis/donateflow/internal/receipt/format"
	"github.com/jkvis/donateflow/internal/receipt/render"
	"github.com/jkvis/donateflow/pkg/db"
	"github.com/jkvis/donateflow/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cfg       config.Config
	Clock     clock.Clock
	Converter *currency.Converter
	Renderer  *render.Renderer
	Artifacts artifact.Store
	Repo      repository.Repository[receiptdomain.Receipt]
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	cfg       config.Config
	clock     clock.Clock
	converter *currency.Converter
	renderer  *render.Renderer
	artifacts artifact.Store
	repo      repository.Repository[receiptdomain.Receipt]
}

func NewService(p Params) receiptdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("receipt.service"),
		genID:     p.GenID,
		cfg:       p.Cfg,
		clock:     p.Clock,
		converter: p.Converter,
		renderer:  p.Renderer,
		artifacts: p.Artifacts,
		repo:      p.Repo,
	}
}

func (s *Service) EligibleAmount(donations []*donationdomain.Donation) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, d := range donations {
		if d.Status != donationdomain.StatusCompleted {
			continue
		}
		normalized, err := s.converter.Convert(d.Amount, d.Currency, s.cfg.ReceiptCurrency)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(normalized)
	}
	return total.Round(2), nil
}

func (s *Service) Create(ctx context.Context, receipt *receiptdomain.Receipt) error {
	if err := s.repo.Create(ctx, receipt); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return receiptdomain.ErrReceiptExists
		}
		return err
	}
	s.log.Info("receipt issued",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("donor_id", receipt.DonorID.String()),
		zap.Int("year", receipt.Year),
		zap.String("total", receipt.TotalAmount.String()),
	)
	return nil
}

func (s *Service) GenerateDocument(ctx context.Context, donor donordomain.Donor, donations []*donationdomain.Donation, year int, receiptNumber string) (string, error) {
	input, err := s.buildInput(donor, donations, year, receiptNumber)
	if err != nil {
		return "", fmt.Errorf("%w: %v", receiptdomain.ErrDocumentRender, err)
	}

	doc, err := s.renderer.Render(input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", receiptdomain.ErrDocumentRender, err)
	}

	path, err := s.artifacts.Save(ctx, artifact.ReceiptArtifactName(receiptNumber), doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", receiptdomain.ErrDocumentRender, err)
	}

	s.log.Info("receipt document rendered",
		zap.String("receipt_number", receiptNumber),
		zap.String("artifact_path", path),
	)
	return path, nil
}

func (s *Service) buildInput(donor donordomain.Donor, donations []*donationdomain.Donation, year int, receiptNumber string) (render.Input, error) {
	eligible, err := s.EligibleAmount(donations)
	if err != nil {
		return render.Input{}, err
	}

	rows := make([]render.DonationRow, 0, len(donations))
	for _, d := range donations {
		if d.Status != donationdomain.StatusCompleted {
			continue
		}
		rows = append(rows, render.DonationRow{
			Date:           d.OccurredAt.UTC().Format("2006-01-02"),
			Classification: string(d.Classification),
			Amount:         d.Amount.StringFixed(2),
			Currency:       d.Currency,
			TransactionID:  truncateTransactionID(d.TransactionID),
		})
	}

	return render.Input{
		Org: render.OrgBlock{
			Name:               s.cfg.Org.Name,
			Address:            s.cfg.Org.Address,
			Phone:              s.cfg.Org.Phone,
			Email:              s.cfg.Org.Email,
			RegistrationNumber: s.cfg.Org.RegistrationNumber,
		},
		ReceiptNumber:  receiptNumber,
		IssueDate:      s.clock.Now().UTC().Format("2006-01-02"),
		TaxYear:        year,
		EligibleAmount: currency.Format(eligible, s.cfg.ReceiptCurrency),
		DonorName:      donor.Name,
		DonorAddress:   donor.PostalAddress(),
		DonationPeriod: format.DonationPeriod(year),
		Rows:           rows,
	}, nil
}

// Provider transaction ids can run long; the document shows enough to
// correlate with the provider dashboard without breaking the table row.
func truncateTransactionID(id string) string {
	const shown = 20
	if len(id) <= shown {
		return id
	}
	return id[:shown] + "..."
}

func (s *Service) AttachArtifact(ctx context.Context, receiptID snowflake.ID, artifactPath string) error {
	return s.repo.Update(ctx, int64(receiptID), map[string]any{
		"artifact_path": artifactPath,
		"updated_at":    time.Now().UTC(),
	})
}

func (s *Service) FindByDonorYear(ctx context.Context, donorID snowflake.ID, year int) (*receiptdomain.Receipt, error) {
	receipt, err := s.repo.FindOne(ctx, &receiptdomain.Receipt{DonorID: donorID, Year: year})
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, receiptdomain.ErrReceiptNotFound
	}
	return receipt, nil
}

func (s *Service) FindByNumber(ctx context.Context, receiptNumber string) (*receiptdomain.Receipt, error) {
	receipt, err := s.repo.FindOne(ctx, &receiptdomain.Receipt{ReceiptNumber: receiptNumber})
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, receiptdomain.ErrReceiptNotFound
	}
	return receipt, nil
}
