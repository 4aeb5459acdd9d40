// Package sheets reads invoices and expenses from a company's bookkeeping
// spreadsheet and logs submitted declarations back into it.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

// Sheet names of the bookkeeping spreadsheet.
const (
	InvoiceSheet = "Debitoren"
	ExpenseSheet = "Kreditoren"
)

// Debitoren columns:
// A=ID, B=Rechnungsnr, C=Datum, D=Kunde, E=Netto, F=MwSt, G=Brutto, H=Steuersatz,
// I=Status, J=Gesperrt, K=Fällig, L=Adresse, M=USt-IdNr, N=E-Mail,
// O=Leitweg-ID, P=Beschreibung, Q=Währung
const (
	colID = iota
	colNumber
	colDate
	colCounterparty
	colNet
	colTax
	colGross
	colRate
	colStatus
	colFlag // Gesperrt for invoices, Abziehbar for expenses
	colDue  // Kategorie for expenses
	colAddress
	colVATID
	colEmail
	colLeitwegID
	colDescription
	colCurrency
)

const (
	invoiceRange = InvoiceSheet + "!A:Q"
	expenseRange = ExpenseSheet + "!A:K"
	minColumns   = colStatus + 1
)

var hundred = decimal.NewFromInt(100)

// DocumentStore serves the documents of one spreadsheet. The spreadsheet
// belongs to a single company; companyID is only used for logging.
type DocumentStore struct {
	src ValueSource
	log zerolog.Logger
}

var (
	_ services.DocumentStore = (*DocumentStore)(nil)
	_ services.InvoiceSource = (*DocumentStore)(nil)
)

// NewDocumentStore creates a document store reading from src.
func NewDocumentStore(src ValueSource) *DocumentStore {
	return &DocumentStore{src: src, log: logger.WithComponent("sheets-documents")}
}

// ListInvoices returns the invoices dated within [start, end].
func (s *DocumentStore) ListInvoices(ctx context.Context, companyID string, start, end time.Time) ([]models.FinancialDocument, error) {
	return s.list(ctx, companyID, models.KindInvoice, start, end)
}

// ListExpenses returns the expenses dated within [start, end].
func (s *DocumentStore) ListExpenses(ctx context.Context, companyID string, start, end time.Time) ([]models.FinancialDocument, error) {
	return s.list(ctx, companyID, models.KindExpense, start, end)
}

func (s *DocumentStore) list(ctx context.Context, companyID string, kind models.DocumentKind, start, end time.Time) ([]models.FinancialDocument, error) {
	op, rangeSpec := "ListInvoices", invoiceRange
	if kind == models.KindExpense {
		op, rangeSpec = "ListExpenses", expenseRange
	}

	rows, err := s.rows(ctx, rangeSpec)
	if err != nil {
		return nil, services.WrapDataFetchError(op, err, rangeSpec)
	}

	var docs []models.FinancialDocument
	for i, row := range rows {
		rowNum := i + 2 // header and 0-based indexing

		doc, err := parseDocument(row, kind)
		if err != nil {
			s.log.Warn().
				Err(err).
				Int("row", rowNum).
				Str("kind", string(kind)).
				Msg("Failed to parse document, skipping")
			continue
		}
		if doc.DocumentDate.Before(start) || doc.DocumentDate.After(end) {
			continue
		}
		docs = append(docs, doc)
	}

	s.log.Info().
		Str("company_id", companyID).
		Str("kind", string(kind)).
		Int("total_rows", len(rows)).
		Int("in_range", len(docs)).
		Msg("Documents read successfully")

	return docs, nil
}

// GetInvoice returns the invoice whose id or invoice number is invoiceID.
func (s *DocumentStore) GetInvoice(ctx context.Context, companyID, invoiceID string) (*models.Invoice, error) {
	const op = "GetInvoice"

	rows, err := s.rows(ctx, invoiceRange)
	if err != nil {
		return nil, services.WrapDataFetchError(op, err, invoiceRange)
	}

	row, ok := lo.Find(rows, func(row []interface{}) bool {
		return getString(row, colID) == invoiceID || getString(row, colNumber) == invoiceID
	})
	if !ok {
		return nil, fmt.Errorf("%s: invoice %s: %w", op, invoiceID, services.ErrNotFound)
	}

	inv, err := parseInvoice(row)
	if err != nil {
		return nil, fmt.Errorf("%s: invoice %s: %w", op, invoiceID, err)
	}

	s.log.Debug().Str("company_id", companyID).Str("invoice_id", inv.ID).Msg("Invoice loaded")
	return inv, nil
}

// rows reads rangeSpec without its header row.
func (s *DocumentStore) rows(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	values, err := s.src.ReadRange(ctx, rangeSpec)
	if err != nil {
		return nil, err
	}
	if len(values) <= 1 {
		return nil, nil
	}
	return values[1:], nil
}

func parseDocument(row []interface{}, kind models.DocumentKind) (models.FinancialDocument, error) {
	if len(row) < minColumns {
		return models.FinancialDocument{}, fmt.Errorf("insufficient columns: %d", len(row))
	}

	id := lo.CoalesceOrEmpty(getString(row, colID), getString(row, colNumber))
	if id == "" {
		return models.FinancialDocument{}, fmt.Errorf("missing id and document number")
	}

	date, err := cellDate(row, colDate)
	if err != nil {
		return models.FinancialDocument{}, fmt.Errorf("document %s: %w", id, err)
	}

	net, tax, rate, err := parseAmounts(row)
	if err != nil {
		return models.FinancialDocument{}, fmt.Errorf("document %s: %w", id, err)
	}

	doc := models.FinancialDocument{
		ID:               id,
		Kind:             kind,
		Number:           getString(row, colNumber),
		CounterpartyName: getString(row, colCounterparty),
		NetAmount:        net,
		TaxAmount:        tax,
		TaxRate:          rate,
		DocumentDate:     date,
		Status:           getString(row, colStatus),
	}
	if kind == models.KindInvoice {
		doc.Locked = cellBool(row, colFlag)
	} else {
		doc.Deductible = cellBool(row, colFlag)
		doc.Category = getString(row, colDue)
	}
	return doc, nil
}

// parseAmounts reads net, tax and rate. An empty rate is derived from net and
// tax, rounded to whole percent.
func parseAmounts(row []interface{}) (net, tax, rate decimal.Decimal, err error) {
	if net, err = cellAmount(row, colNet, "net_amount"); err != nil {
		return
	}
	if tax, err = cellAmount(row, colTax, "tax_amount"); err != nil {
		return
	}
	if getString(row, colRate) != "" {
		rate, err = cellAmount(row, colRate, "tax_rate")
		return
	}
	rate = decimal.Zero
	if !net.IsZero() {
		rate = tax.Div(net).Mul(hundred).Round(0)
	}
	return
}

func parseInvoice(row []interface{}) (*models.Invoice, error) {
	if len(row) < minColumns {
		return nil, fmt.Errorf("insufficient columns: %d", len(row))
	}

	issue, err := cellDate(row, colDate)
	if err != nil {
		return nil, err
	}
	net, tax, rate, err := parseAmounts(row)
	if err != nil {
		return nil, err
	}
	gross, err := cellAmount(row, colGross, "gross_amount")
	if err != nil {
		return nil, err
	}

	inv := &models.Invoice{
		ID:              lo.CoalesceOrEmpty(getString(row, colID), getString(row, colNumber)),
		InvoiceNumber:   getString(row, colNumber),
		CustomerName:    getString(row, colCounterparty),
		CustomerAddress: strings.ReplaceAll(getString(row, colAddress), ";", "\n"),
		CustomerVATID:   getString(row, colVATID),
		CustomerEmail:   getString(row, colEmail),
		LeitwegID:       getString(row, colLeitwegID),
		IssueDate:       models.Date{Time: issue},
		Amount:          net,
		Tax:             tax,
		Total:           gross,
		VATRate:         rate,
		Currency:        getString(row, colCurrency),
		Status:          getString(row, colStatus),
		Description:     getString(row, colDescription),
	}
	inv.PublicSector = inv.LeitwegID != ""

	if due, err := cellDate(row, colDue); err == nil {
		inv.DueDate = models.Date{Time: due}
	}
	return inv, nil
}
