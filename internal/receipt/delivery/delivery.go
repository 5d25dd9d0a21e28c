// Package delivery sends issued receipts to donors by email. Delivery
// is strictly downstream of issuance: a failed send never mutates the
// receipt record.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"github.com/jkvis/donateflow/internal/config"
	donordomain "github.com/jkvis/donateflow/internal/donor/domain"
	"github.com/jkvis/donateflow/internal/providers/artifact"
	"github.com/jkvis/donateflow/internal/providers/email"
	receiptdomain "github.com/jkvis/donateflow/internal/receipt/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var bodyTmpl = template.Must(template.New("receipt_email").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <p>Dear {{.DonorName}},</p>
  <p>Thank you for your generous support of {{.OrgName}} during {{.Year}}.</p>
  <p>Your official donation receipt <strong>{{.ReceiptNumber}}</strong> for a total
  eligible amount of <strong>{{.Amount}}</strong> is attached to this email.</p>
  <p>Please retain this receipt for your income tax records.</p>
  <p>With gratitude,<br/>{{.OrgName}}</p>
</body>
</html>`))

type bodyData struct {
	DonorName     string
	OrgName       string
	Year          int
	ReceiptNumber string
	Amount        string
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Email     email.Provider
	Artifacts artifact.Store
}

// Dispatcher emails rendered receipts.
type Dispatcher struct {
	log       *zap.Logger
	cfg       config.Config
	email     email.Provider
	artifacts artifact.Store
}

func NewDispatcher(p Params) *Dispatcher {
	return &Dispatcher{
		log:       p.Log.Named("receipt.delivery"),
		cfg:       p.Cfg,
		email:     p.Email,
		artifacts: p.Artifacts,
	}
}

// Deliver sends the receipt with its PDF attached. Channel readiness is
// checked before building the message so an unreachable mail server
// fails with ErrChannelUnavailable instead of silently queuing. The
// caller decides whether a failure is fatal; the receipt itself is
// never touched here.
func (d *Dispatcher) Deliver(ctx context.Context, donor donordomain.Donor, receipt *receiptdomain.Receipt) error {
	if !receipt.HasArtifact() {
		return fmt.Errorf("receipt %s has no rendered document", receipt.ReceiptNumber)
	}

	if err := d.email.Verify(ctx); err != nil {
		return err
	}

	doc, err := d.artifacts.Open(ctx, *receipt.ArtifactPath)
	if err != nil {
		return fmt.Errorf("open receipt artifact: %w", err)
	}
	defer doc.Close()

	content, err := io.ReadAll(doc)
	if err != nil {
		return fmt.Errorf("read receipt artifact: %w", err)
	}

	var body bytes.Buffer
	if err := bodyTmpl.Execute(&body, bodyData{
		DonorName:     donor.Name,
		OrgName:       d.cfg.Org.Name,
		Year:          receipt.Year,
		ReceiptNumber: receipt.ReceiptNumber,
		Amount:        fmt.Sprintf("%s %s", receipt.TotalAmount.StringFixed(2), receipt.Currency),
	}); err != nil {
		return fmt.Errorf("render receipt email body: %w", err)
	}

	subject := fmt.Sprintf("Your %d Donation Tax Receipt - %s", receipt.Year, d.cfg.Org.Name)
	attachment := email.Attachment{
		Filename:    artifact.ReceiptArtifactName(receipt.ReceiptNumber),
		ContentType: "application/pdf",
		Content:     content,
	}

	if err := d.email.Send(ctx, []string{donor.Email}, subject, body.String(), attachment); err != nil {
		return fmt.Errorf("send receipt email: %w", err)
	}

	d.log.Info("receipt delivered",
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("donor_id", donor.ID.String()),
	)
	return nil
}
