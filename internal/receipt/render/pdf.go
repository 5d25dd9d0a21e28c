// Package render produces the fixed-layout official donation receipt PDF.
package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// rowsPerPage caps the donation table rows rendered per page; the header
// row is repeated on each continuation page.
const rowsPerPage = 25

const legalFooter = "This official donation receipt is issued for income tax purposes. " +
	"No goods or services were provided in return for this donation. " +
	"This receipt contains information that is required for income tax purposes."

// OrgBlock identifies the issuing organization on the document.
type OrgBlock struct {
	Name               string
	Address            string
	Phone              string
	Email              string
	RegistrationNumber string
}

// DonationRow is one line in the donation detail table.
type DonationRow struct {
	Date           string
	Classification string
	Amount         string
	Currency       string
	TransactionID  string
}

// Input is everything the renderer needs; it holds display strings only
// so rendering stays free of currency math.
type Input struct {
	Org            OrgBlock
	ReceiptNumber  string
	IssueDate      string
	TaxYear        int
	EligibleAmount string
	DonorName      string
	DonorAddress   string
	DonationPeriod string
	Rows           []DonationRow
}

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces the receipt PDF. The layout is deterministic for a
// given Input.
func (r *Renderer) Render(input Input) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	// Organization header block.
	m.AddRow(12,
		text.NewCol(12, "OFFICIAL DONATION RECEIPT", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)
	m.AddRow(24,
		col.New(12).Add(
			text.New(input.Org.Name, props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Center}),
			text.New(input.Org.Address, props.Text{Size: 9, Top: 8, Align: align.Center}),
			text.New("Phone: "+input.Org.Phone, props.Text{Size: 9, Top: 13, Align: align.Center}),
			text.New("Email: "+input.Org.Email, props.Text{Size: 9, Top: 18, Align: align.Center}),
		),
	)
	m.AddRow(10,
		text.NewCol(12, "Registration Number: "+input.Org.RegistrationNumber, props.Text{
			Size:  10,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	// Receipt metadata block.
	m.AddRow(30,
		col.New(6).Add(
			text.New("Receipt Number: "+input.ReceiptNumber, props.Text{Size: 10}),
			text.New("Date Issued: "+input.IssueDate, props.Text{Size: 10, Top: 6}),
			text.New(fmt.Sprintf("Tax Year: %d", input.TaxYear), props.Text{Size: 10, Top: 12}),
			text.New("Donation Period: "+input.DonationPeriod, props.Text{Size: 10, Top: 18}),
		),
		col.New(6).Add(
			text.New("Total Eligible Amount", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
			text.New(input.EligibleAmount, props.Text{Size: 14, Style: fontstyle.Bold, Top: 6, Align: align.Right}),
		),
	)

	// Donor information block.
	m.AddRow(22,
		col.New(12).Add(
			text.New("Donor Information", props.Text{Size: 12, Style: fontstyle.Bold}),
			text.New("Name: "+input.DonorName, props.Text{Size: 10, Top: 7}),
			text.New("Address: "+input.DonorAddress, props.Text{Size: 10, Top: 13}),
		),
	)

	// Donation detail table, chunked to a fixed per-page capacity with
	// the header repeated per chunk.
	m.AddRow(10, text.NewCol(12, "Donation Details", props.Text{Size: 12, Style: fontstyle.Bold}))
	for start := 0; start < len(input.Rows); start += rowsPerPage {
		end := start + rowsPerPage
		if end > len(input.Rows) {
			end = len(input.Rows)
		}
		addTableHeader(m)
		for _, row := range input.Rows[start:end] {
			m.AddRow(7,
				text.NewCol(2, row.Date, props.Text{Size: 8}),
				text.NewCol(3, row.Classification, props.Text{Size: 8}),
				text.NewCol(2, row.Amount, props.Text{Size: 8, Align: align.Right}),
				text.NewCol(1, row.Currency, props.Text{Size: 8, Align: align.Right}),
				text.NewCol(4, row.TransactionID, props.Text{Size: 8, Align: align.Right}),
			)
		}
	}

	// Legal footer and signature line.
	m.AddRow(20,
		text.NewCol(12, legalFooter, props.Text{Size: 9, Top: 4}),
	)
	m.AddRow(12,
		text.NewCol(7, "Authorized Signature: _________________________", props.Text{Size: 9, Top: 4}),
		text.NewCol(5, "Date: _________________________", props.Text{Size: 9, Top: 4}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func addTableHeader(m core.Maroto) {
	m.AddRow(8,
		text.NewCol(2, "Date", props.Text{Size: 8, Style: fontstyle.Bold}),
		text.NewCol(3, "Type", props.Text{Size: 8, Style: fontstyle.Bold}),
		text.NewCol(2, "Amount", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(1, "Currency", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(4, "Transaction ID", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}),
	)
}
