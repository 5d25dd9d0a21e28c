// Package reconciliation turns a year of completed donations into
// issued annual tax receipts. The batch run is partial-failure safe:
// one donor's problem never aborts the others, and re-running a year is
// a no-op for donors already holding a receipt.
package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/jkvis/donateflow/internal/clock"
	"github.com/jkvis/donateflow/internal/config"
	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	donordomain "github.com/jkvis/donateflow/internal/donor/domain"
	"github.com/jkvis/donateflow/internal/observability/metrics"
	receiptdomain "github.com/jkvis/donateflow/internal/receipt/domain"
	"github.com/jkvis/donateflow/internal/receipt/format"
	"github.com/jkvis/donateflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Deliverer sends an issued receipt to its donor.
type Deliverer interface {
	Deliver(ctx context.Context, donor donordomain.Donor, receipt *receiptdomain.Receipt) error
}

// Summary is the only output of a batch run. The job never fails for
// individual donors, only for setup problems such as an unreachable
// ledger.
type Summary struct {
	Year               int `json:"year"`
	TotalDonors        int `json:"total_donors"`
	SuccessCount       int `json:"success_count"`
	SkipCount          int `json:"skip_count"`
	GenerationFailures int `json:"generation_failures"`
	DeliveryFailures   int `json:"delivery_failures"`
}

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Cfg         config.Config
	JobCfg      Config `optional:"true"`
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	DonationSvc donationdomain.Service
	ReceiptSvc  receiptdomain.Service
	DonorRepo   repository.Repository[donordomain.Donor]
	Deliverer   Deliverer
}

type Job struct {
	log         *zap.Logger
	genID       *snowflake.Node
	cfg         config.Config
	jobCfg      Config
	clock       clock.Clock
	metrics     *metrics.Metrics
	donationSvc donationdomain.Service
	receiptSvc  receiptdomain.Service
	donorRepo   repository.Repository[donordomain.Donor]
	deliverer   Deliverer
}

func NewJob(p Params) *Job {
	return &Job{
		log:         p.Log.Named("reconciliation.job"),
		genID:       p.GenID,
		cfg:         p.Cfg,
		jobCfg:      p.JobCfg.withDefaults(),
		clock:       p.Clock,
		metrics:     p.Metrics,
		donationSvc: p.DonationSvc,
		receiptSvc:  p.ReceiptSvc,
		donorRepo:   p.DonorRepo,
		deliverer:   p.Deliverer,
	}
}

type outcome int

const (
	outcomeIssued outcome = iota
	outcomeSkipped
	outcomeGenerationFailed
)

// Run reconciles the given tax year. Year 0 selects the previous
// calendar year. Donor groups are processed by a bounded worker pool;
// the (donor, year) unique index is the authoritative duplicate guard,
// the pre-check only saves wasted work.
func (j *Job) Run(ctx context.Context, year int) (Summary, error) {
	if year == 0 {
		year = j.clock.Now().UTC().Year() - 1
	}
	if err := j.validateYear(year); err != nil {
		return Summary{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, j.jobCfg.RunTimeout)
	defer cancel()

	start := j.clock.Now()
	j.log.Info("reconciliation run started", zap.Int("year", year))

	donations, err := j.donationSvc.CompletedForYear(ctx, year)
	if err != nil {
		j.metrics.ReconciliationRuns.WithLabelValues("setup_failure").Inc()
		return Summary{}, fmt.Errorf("query completed donations: %w", err)
	}

	groups := groupByDonor(donations)
	donorIDs := make([]snowflake.ID, 0, len(groups))
	for id := range groups {
		donorIDs = append(donorIDs, id)
	}
	sort.Slice(donorIDs, func(a, b int) bool { return donorIDs[a] < donorIDs[b] })

	summary := Summary{Year: year, TotalDonors: len(donorIDs)}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, j.jobCfg.MaxWorkers)
	)
	for _, donorID := range donorIDs {
		donorID := donorID
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, delivered := j.processDonor(ctx, donorID, groups[donorID], year)

			mu.Lock()
			defer mu.Unlock()
			switch result {
			case outcomeIssued:
				summary.SuccessCount++
				if !delivered {
					summary.DeliveryFailures++
				}
			case outcomeSkipped:
				summary.SkipCount++
			case outcomeGenerationFailed:
				summary.GenerationFailures++
			}
		}()
	}
	wg.Wait()

	j.metrics.ReconciliationRuns.WithLabelValues("completed").Inc()
	j.metrics.ReconciliationSeconds.Observe(j.clock.Now().Sub(start).Seconds())

	j.log.Info("reconciliation run completed",
		zap.Int("year", year),
		zap.Int("total_donors", summary.TotalDonors),
		zap.Int("success", summary.SuccessCount),
		zap.Int("skipped", summary.SkipCount),
		zap.Int("generation_failures", summary.GenerationFailures),
		zap.Int("delivery_failures", summary.DeliveryFailures),
	)
	return summary, nil
}

// processDonor runs the per-donor pipeline. The second return reports
// whether delivery succeeded; it is meaningful only for outcomeIssued.
func (j *Job) processDonor(ctx context.Context, donorID snowflake.ID, donations []*donationdomain.Donation, year int) (outcome, bool) {
	log := j.log.With(zap.String("donor_id", donorID.String()), zap.Int("year", year))

	existing, err := j.receiptSvc.FindByDonorYear(ctx, donorID, year)
	if err == nil && existing != nil {
		log.Info("receipt already issued, skipping donor")
		j.metrics.ReceiptsSkipped.Inc()
		return outcomeSkipped, false
	}

	donor, err := j.donorRepo.FindOne(ctx, &donordomain.Donor{ID: donorID})
	if err != nil || donor == nil {
		log.Error("donor lookup failed", zap.Error(err))
		j.metrics.GenerationFailures.Inc()
		return outcomeGenerationFailed, false
	}

	receipt, created, err := j.issueReceipt(ctx, *donor, donations, year)
	if err != nil {
		if receipt == nil {
			log.Error("receipt issuance failed", zap.Error(err))
		} else {
			log.Error("document generation failed, receipt kept without artifact",
				zap.String("receipt_number", receipt.ReceiptNumber),
				zap.Error(err),
			)
		}
		j.metrics.GenerationFailures.Inc()
		return outcomeGenerationFailed, false
	}
	if !created {
		// Lost the issuance race to a concurrent run.
		log.Info("receipt issued concurrently, skipping donor")
		j.metrics.ReceiptsSkipped.Inc()
		return outcomeSkipped, false
	}
	j.metrics.ReceiptsIssued.Inc()

	dctx, cancel := context.WithTimeout(ctx, j.jobCfg.DeliverTimeout)
	defer cancel()
	if err := j.deliverer.Deliver(dctx, *donor, receipt); err != nil {
		log.Warn("receipt delivery failed, receipt remains issued", zap.Error(err))
		j.metrics.DeliveryFailures.Inc()
		return outcomeIssued, false
	}
	return outcomeIssued, true
}

// issueReceipt persists the receipt and then renders its document.
// created reports whether this call won the insert; losing the race to
// a concurrent run returns the winning row with created=false. A
// non-nil receipt alongside an error means the record was created but
// rendering or artifact attachment failed.
func (j *Job) issueReceipt(ctx context.Context, donor donordomain.Donor, donations []*donationdomain.Donation, year int) (receipt *receiptdomain.Receipt, created bool, err error) {
	eligible, err := j.receiptSvc.EligibleAmount(donations)
	if err != nil {
		return nil, false, err
	}

	issuedAt := j.clock.Now().UTC()
	number, err := format.ReceiptNumber(j.cfg.Org.ReceiptPrefix, year, donor.ID, issuedAt)
	if err != nil {
		return nil, false, err
	}

	ids := make([]string, 0, len(donations))
	for _, d := range donations {
		if d.Status == donationdomain.StatusCompleted {
			ids = append(ids, d.ID.String())
		}
	}
	donationIDs, err := json.Marshal(ids)
	if err != nil {
		return nil, false, err
	}

	receipt = &receiptdomain.Receipt{
		ID:          j.genID.Generate(),
		DonorID:     donor.ID,
		Year:        year,
		DonationIDs: donationIDs,
		TotalAmount: eligible,
		Currency:    j.cfg.ReceiptCurrency,
		Compliance: receiptdomain.ComplianceData{
			DonorName:          donor.Name,
			DonorAddress:       donor.PostalAddress(),
			ReceiptNumber:      number,
			DonationPeriod:     format.DonationPeriod(year),
			EligibleAmount:     eligible,
			OrgName:            j.cfg.Org.Name,
			OrgAddress:         j.cfg.Org.Address,
			OrgRegistrationNum: j.cfg.Org.RegistrationNumber,
		},
		ReceiptNumber: number,
		IssuedAt:      issuedAt,
	}

	if err := j.receiptSvc.Create(ctx, receipt); err != nil {
		if errors.Is(err, receiptdomain.ErrReceiptExists) {
			winner, findErr := j.receiptSvc.FindByDonorYear(ctx, donor.ID, year)
			if findErr == nil && winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	gctx, cancel := context.WithTimeout(ctx, j.jobCfg.GenerateTimeout)
	defer cancel()
	path, err := j.receiptSvc.GenerateDocument(gctx, donor, donations, year, number)
	if err != nil {
		return receipt, true, err
	}
	if err := j.receiptSvc.AttachArtifact(ctx, receipt.ID, path); err != nil {
		return receipt, true, err
	}
	receipt.ArtifactPath = &path
	return receipt, true, nil
}

// GenerateForDonor is the supervised single-donor entry point. Unlike
// the batch run it propagates every failure to the caller.
func (j *Job) GenerateForDonor(ctx context.Context, donorID snowflake.ID, year int) (*receiptdomain.Receipt, error) {
	if err := j.validateYear(year); err != nil {
		return nil, err
	}

	donor, err := j.donorRepo.FindOne(ctx, &donordomain.Donor{ID: donorID})
	if err != nil {
		return nil, err
	}
	if donor == nil {
		return nil, donordomain.ErrDonorNotFound
	}

	// An existing receipt is the idempotent outcome, not a failure.
	if existing, err := j.receiptSvc.FindByDonorYear(ctx, donorID, year); err == nil && existing != nil {
		return existing, nil
	}

	donations, err := j.donationSvc.CompletedForDonor(ctx, donorID, year)
	if err != nil {
		return nil, err
	}
	if len(donations) == 0 {
		return nil, receiptdomain.ErrNoDonations
	}

	receipt, created, err := j.issueReceipt(ctx, *donor, donations, year)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the insert race; the winner is the donor's receipt.
		return receipt, nil
	}
	j.metrics.ReceiptsIssued.Inc()

	dctx, cancel := context.WithTimeout(ctx, j.jobCfg.DeliverTimeout)
	defer cancel()
	if err := j.deliverer.Deliver(dctx, *donor, receipt); err != nil {
		j.metrics.DeliveryFailures.Inc()
		return receipt, fmt.Errorf("receipt issued but delivery failed: %w", err)
	}
	return receipt, nil
}

func (j *Job) validateYear(year int) error {
	if year < j.cfg.MinTaxYear || year > j.clock.Now().UTC().Year() {
		return receiptdomain.ErrInvalidTaxYear
	}
	return nil
}

func groupByDonor(donations []*donationdomain.Donation) map[snowflake.ID][]*donationdomain.Donation {
	groups := make(map[snowflake.ID][]*donationdomain.Donation)
	for _, d := range donations {
		groups[d.DonorID] = append(groups[d.DonorID], d)
	}
	return groups
}
