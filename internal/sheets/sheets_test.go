package sheets

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taxkit/internal/period"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

type fakeSheet struct {
	ranges   map[string][][]interface{}
	err      error
	appended map[string][][]interface{}
	headers  []interface{}
}

func (f *fakeSheet) ReadRange(_ context.Context, rangeSpec string) ([][]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ranges[rangeSpec], nil
}

func (f *fakeSheet) AppendRows(_ context.Context, sheetName string, headers []interface{}, rows [][]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.headers = headers
	f.appended[sheetName] = append(f.appended[sheetName], rows...)
	return nil
}

func testSheet() *fakeSheet {
	return &fakeSheet{
		appended: map[string][][]interface{}{},
		ranges: map[string][][]interface{}{
			invoiceRange: {
				{"ID", "Rechnungsnr", "Datum", "Kunde", "Netto", "MwSt", "Brutto", "Steuersatz", "Status", "Gesperrt", "Fällig", "Adresse", "USt-IdNr", "E-Mail", "Leitweg-ID", "Beschreibung", "Währung"},
				{"inv-1", "RE-2025-001", "14.03.2025", "Stadt Musterhausen", "1.000,00 €", "190,00 €", "1.190,00 €", "19", "paid", "", "13.04.2025", "Rathausplatz 1;12345 Musterhausen", "", "", "04011000-12345-67", "Fliesenarbeiten", "EUR"},
				{"inv-2", "RE-2025-002", "2025-02-01", "Bäckerei Huber", 200.0, 14.0, 214.0, "", "sent", "ja"},
				{"inv-3", "RE-2025-003", "02.04.2025", "Außerhalb", "100,00", "19,00", "119,00", "19", "paid", ""},
				{"inv-4", "RE-2025-004", "kein Datum", "Kaputt", "100,00", "19,00", "119,00", "19", "paid", ""},
				{"too", "short"},
			},
			expenseRange: {
				{"ID", "Belegnr", "Datum", "Lieferant", "Netto", "MwSt", "Brutto", "Steuersatz", "Status", "Abziehbar", "Kategorie"},
				{"exp-1", "B-17", "03.03.2025", "Baumarkt", "500,00", "95,00", "595,00", "19", "PAID", "TRUE", "Material"},
				{"exp-2", "B-18", "04.03.2025", "Restaurant", "100,00", "19,00", "119,00", "19", "PAID", "", "Bewirtung"},
				{"exp-3", "B-19", "05.03.2025", "Defekt", math.NaN(), "1,00", "", "19", "PAID", "TRUE"},
			},
		},
	}
}

func TestDocumentStore_ListInvoices(t *testing.T) {
	store := NewDocumentStore(testSheet())
	q1 := period.MustResolve(2025, 1)

	docs, err := store.ListInvoices(context.Background(), "company-1", q1.Start, q1.End)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "inv-1", docs[0].ID)
	assert.Equal(t, models.KindInvoice, docs[0].Kind)
	assert.Equal(t, "Stadt Musterhausen", docs[0].CounterpartyName)
	assert.True(t, decimal.RequireFromString("1000").Equal(docs[0].NetAmount))
	assert.True(t, decimal.RequireFromString("190").Equal(docs[0].TaxAmount))
	assert.True(t, decimal.NewFromInt(19).Equal(docs[0].TaxRate))
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), docs[0].DocumentDate)
	assert.False(t, docs[0].Locked)

	// numeric cells and a derived rate
	assert.Equal(t, "inv-2", docs[1].ID)
	assert.True(t, decimal.NewFromInt(7).Equal(docs[1].TaxRate))
	assert.True(t, docs[1].Locked)
}

func TestDocumentStore_ListExpenses(t *testing.T) {
	store := NewDocumentStore(testSheet())
	q1 := period.MustResolve(2025, 1)

	docs, err := store.ListExpenses(context.Background(), "company-1", q1.Start, q1.End)
	require.NoError(t, err)
	require.Len(t, docs, 2, "NaN amount row is skipped")

	assert.True(t, docs[0].Deductible)
	assert.Equal(t, "Material", docs[0].Category)
	assert.False(t, docs[1].Deductible)
	assert.True(t, docs[1].HasEligibleStatus())
}

func TestDocumentStore_FetchError(t *testing.T) {
	sheet := testSheet()
	sheet.err = errors.New("googleapi: Error 503")
	store := NewDocumentStore(sheet)

	_, err := store.ListInvoices(context.Background(), "company-1", time.Time{}, time.Now())
	assert.True(t, services.IsDataFetchError(err))

	_, err = store.GetInvoice(context.Background(), "company-1", "inv-1")
	assert.True(t, services.IsDataFetchError(err))
}

func TestDocumentStore_GetInvoice(t *testing.T) {
	store := NewDocumentStore(testSheet())

	inv, err := store.GetInvoice(context.Background(), "company-1", "RE-2025-001")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", inv.ID)
	assert.Equal(t, "Rathausplatz 1\n12345 Musterhausen", inv.CustomerAddress)
	assert.Equal(t, "04011000-12345-67", inv.LeitwegID)
	assert.True(t, inv.PublicSector)
	assert.True(t, decimal.RequireFromString("1190").Equal(inv.Total))
	assert.Equal(t, time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC), inv.DueDate.Time)
	assert.Equal(t, "Fliesenarbeiten", inv.Description)

	inv, err = store.GetInvoice(context.Background(), "company-1", "inv-2")
	require.NoError(t, err)
	assert.False(t, inv.PublicSector)
	assert.True(t, inv.DueDate.IsZero())

	_, err = store.GetInvoice(context.Background(), "company-1", "inv-99")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestReportLog_Append(t *testing.T) {
	sheet := testSheet()
	log := NewReportLog(sheet)

	result := models.UStVAResult{
		RevenueAt19:        decimal.RequireFromString("1000.00"),
		VATAt19:            decimal.RequireFromString("190.00"),
		DeductibleInputVAT: decimal.RequireFromString("95.00"),
		OutputVATTotal:     decimal.RequireFromString("190.00"),
		Balance:            decimal.RequireFromString("95.00"),
		Zahllast:           decimal.RequireFromString("95.00"),
	}
	report := &models.TaxDeclarationReport{
		ID:          "report-1",
		Year:        2025,
		Quarter:     1,
		PeriodStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
		Status:      models.ReportCalculated,
		Result:      result,
		Kennziffern: result.Kennziffern(),
		InvoiceIDs:  []string{"inv-1", "inv-2"},
		CreatedAt:   time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, log.Append(context.Background(), report))
	require.Len(t, sheet.appended[ReportSheet], 1)

	row := sheet.appended[ReportSheet][0]
	assert.Len(t, row, len(reportHeaders))
	assert.Equal(t, "Q1/2025", row[0])
	assert.Equal(t, "01.01.2025", row[1])
	assert.Equal(t, "31.03.2025", row[2])
	assert.Equal(t, "1000,00", row[3])
	assert.Equal(t, "0,00", row[4])
	assert.Equal(t, "95,00", row[6])
	assert.Equal(t, 2, row[10])
	assert.Equal(t, "report-1", row[15])

	require.NoError(t, log.Append(context.Background()))
	assert.Len(t, sheet.appended[ReportSheet], 1)
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", columnName(1))
	assert.Equal(t, "P", columnName(16))
	assert.Equal(t, "Z", columnName(26))
	assert.Equal(t, "AA", columnName(27))
}

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-xyz_09/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-xyz_09", id)

	_, err = extractSpreadsheetID("https://example.com/sheet")
	assert.Error(t, err)
}
