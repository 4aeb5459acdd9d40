// Package ledger reads invoices and expenses from a local JSON file. It serves
// as the document source of the CLI when no spreadsheet is configured.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

// Invoice is an outgoing invoice as stored in the ledger file.
type Invoice struct {
	models.Invoice
	Locked bool `json:"locked,omitempty"`
}

// File is the on-disk layout of a ledger.
type File struct {
	CompanyID string                     `json:"companyId,omitempty"`
	Invoices  []Invoice                  `json:"invoices"`
	Expenses  []models.FinancialDocument `json:"expenses"`
}

// Ledger is a read-only DocumentStore and InvoiceSource over a File.
type Ledger struct {
	file File
	path string
	log  zerolog.Logger
}

// Open reads and decodes the ledger at path.
func Open(path string) (*Ledger, error) {
	const op = "OpenLedger"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.WrapDataFetchError(op, err, path)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, services.WrapDataFetchError(op, err, fmt.Sprintf("invalid ledger file %s", path))
	}

	l := New(f)
	l.path = path
	l.log.Info().
		Str("path", path).
		Int("invoices", len(f.Invoices)).
		Int("expenses", len(f.Expenses)).
		Msg("Ledger loaded")
	return l, nil
}

// New wraps an already decoded ledger.
func New(f File) *Ledger {
	for i := range f.Expenses {
		f.Expenses[i].Kind = models.KindExpense
	}
	return &Ledger{file: f, log: logger.WithComponent("ledger")}
}

// ListInvoices returns the invoices dated within [start, end].
func (l *Ledger) ListInvoices(ctx context.Context, companyID string, start, end time.Time) ([]models.FinancialDocument, error) {
	if err := l.checkCompany(ctx, "ListInvoices", companyID); err != nil {
		return nil, err
	}
	docs := lo.Map(l.file.Invoices, func(inv Invoice, _ int) models.FinancialDocument {
		return inv.document()
	})
	return inRange(docs, start, end), nil
}

// ListExpenses returns the expenses dated within [start, end].
func (l *Ledger) ListExpenses(ctx context.Context, companyID string, start, end time.Time) ([]models.FinancialDocument, error) {
	if err := l.checkCompany(ctx, "ListExpenses", companyID); err != nil {
		return nil, err
	}
	return inRange(l.file.Expenses, start, end), nil
}

// GetInvoice finds an invoice by id or invoice number.
func (l *Ledger) GetInvoice(ctx context.Context, companyID, invoiceID string) (*models.Invoice, error) {
	const op = "GetInvoice"

	if err := l.checkCompany(ctx, op, companyID); err != nil {
		return nil, err
	}
	inv, ok := lo.Find(l.file.Invoices, func(inv Invoice) bool {
		return inv.ID == invoiceID || inv.InvoiceNumber == invoiceID
	})
	if !ok {
		return nil, fmt.Errorf("%s: invoice %s: %w", op, invoiceID, services.ErrNotFound)
	}
	out := inv.Invoice
	return &out, nil
}

// checkCompany rejects reads for another company when the file names one.
func (l *Ledger) checkCompany(ctx context.Context, op, companyID string) error {
	if err := ctx.Err(); err != nil {
		return services.WrapDataFetchError(op, err, l.path)
	}
	if l.file.CompanyID != "" && companyID != "" && l.file.CompanyID != companyID {
		return services.WrapDataFetchError(op, services.ErrNotFound,
			fmt.Sprintf("ledger belongs to company %s", l.file.CompanyID))
	}
	return nil
}

func (inv Invoice) document() models.FinancialDocument {
	id := inv.ID
	if id == "" {
		id = inv.InvoiceNumber
	}
	return models.FinancialDocument{
		ID:               id,
		Kind:             models.KindInvoice,
		Number:           inv.InvoiceNumber,
		CounterpartyName: inv.CustomerName,
		NetAmount:        inv.Amount,
		TaxAmount:        inv.Tax,
		TaxRate:          inv.VATRate,
		DocumentDate:     inv.IssueDate.Time,
		Status:           strings.ToLower(inv.Status),
		Locked:           inv.Locked,
	}
}

func inRange(docs []models.FinancialDocument, start, end time.Time) []models.FinancialDocument {
	return lo.Filter(docs, func(d models.FinancialDocument, _ int) bool {
		return !d.DocumentDate.Before(start) && !d.DocumentDate.After(end)
	})
}
