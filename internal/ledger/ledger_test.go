package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taxkit/internal/period"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

const ledgerJSON = `{
  "companyId": "company-1",
  "invoices": [
    {"id": "inv-1", "invoiceNumber": "RE-2025-001", "customerName": "Stadt Musterhausen",
     "issueDate": "14.03.2025", "amount": "1000.00", "tax": "190.00", "total": "1190.00",
     "vatRate": "19", "status": "PAID", "leitwegId": "04011000-12345-67"},
    {"invoiceNumber": "RE-2025-002", "customerName": "Bäckerei Huber",
     "issueDate": "2025-04-01", "amount": "200", "tax": "14", "vatRate": "7", "locked": true}
  ],
  "expenses": [
    {"id": "exp-1", "counterparty_name": "Baumarkt", "net_amount": "500", "tax_amount": "95",
     "tax_rate": "19", "document_date": "2025-03-03T00:00:00Z", "status": "PAID", "deductible": true}
  ]
}`

func writeLedger(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte(ledgerJSON), 0o600))
	return path
}

func TestLedger_ListDocuments(t *testing.T) {
	l, err := Open(writeLedger(t))
	require.NoError(t, err)
	ctx := context.Background()
	q1 := period.MustResolve(2025, 1)

	invoices, err := l.ListInvoices(ctx, "company-1", q1.Start, q1.End)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "inv-1", invoices[0].ID)
	assert.Equal(t, "paid", invoices[0].Status)
	assert.True(t, invoices[0].HasEligibleStatus())
	assert.True(t, decimal.NewFromInt(190).Equal(invoices[0].TaxAmount))

	q2 := period.MustResolve(2025, 2)
	invoices, err = l.ListInvoices(ctx, "company-1", q2.Start, q2.End)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "RE-2025-002", invoices[0].ID, "number doubles as id")
	assert.True(t, invoices[0].Locked)

	expenses, err := l.ListExpenses(ctx, "company-1", q1.Start, q1.End)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, models.KindExpense, expenses[0].Kind)
	assert.True(t, expenses[0].Deductible)
}

func TestLedger_GetInvoice(t *testing.T) {
	l, err := Open(writeLedger(t))
	require.NoError(t, err)

	inv, err := l.GetInvoice(context.Background(), "company-1", "RE-2025-001")
	require.NoError(t, err)
	assert.Equal(t, "04011000-12345-67", inv.LeitwegID)

	_, err = l.GetInvoice(context.Background(), "company-1", "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = l.GetInvoice(context.Background(), "company-2", "inv-1")
	assert.True(t, services.IsDataFetchError(err))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, services.IsDataFetchError(err))

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = Open(path)
	assert.True(t, services.IsDataFetchError(err))
}
