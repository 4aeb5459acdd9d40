package einvoice

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taxkit/pkg/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got.String())
}

func testCompany() models.CompanyProfile {
	return models.CompanyProfile{
		ID:        "company-1",
		Name:      "Müller Handwerk GmbH",
		Address:   "Hauptstraße 12a\n80331 München",
		VATID:     "DE123456789",
		TaxNumber: "143/123/45678",
		Email:     "info@mueller.example",
	}
}

func testInvoice() *models.Invoice {
	return &models.Invoice{
		ID:              "inv-1",
		InvoiceNumber:   "RE-2025-001",
		CustomerName:    "Stadt Musterhausen",
		CustomerAddress: "Rathausplatz 1\n12345 Musterhausen",
		IssueDate:       models.NewDate(2025, time.March, 14),
		DueDate:         models.NewDate(2025, time.April, 13),
		Amount:          dec("1000.00"),
		Tax:             dec("190.00"),
		Total:           dec("1190.00"),
		VATRate:         dec("19"),
		Currency:        "EUR",
		Items: []models.InvoiceItem{
			{Description: "Beratung", Quantity: dec("10"), UnitPrice: dec("100.00"), Total: dec("1000.00")},
		},
	}
}

func TestMapper_Map(t *testing.T) {
	m, err := NewMapper().Map(testInvoice(), testCompany())
	require.NoError(t, err)

	assert.Equal(t, "inv-1", m.InvoiceID)
	assert.Equal(t, "RE-2025-001", m.InvoiceNumber)
	assert.Equal(t, "EUR", m.Currency)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), m.IssueDate)
	assert.Equal(t, time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC), m.DueDate)
	assert.False(t, m.SynthesizedLine)

	assert.Equal(t, "Müller Handwerk GmbH", m.Seller.Name)
	assert.Equal(t, "DE123456789", m.Seller.VATID)
	assert.Equal(t, models.PostalAddress{Street: "Hauptstraße 12a", PostCode: "80331", City: "München", Country: "DE"}, m.Seller.Address)
	assert.Equal(t, "12345", m.Buyer.Address.PostCode)
	assert.Equal(t, "Musterhausen", m.Buyer.Address.City)

	require.Len(t, m.Lines, 1)
	assert.Equal(t, "Beratung", m.Lines[0].Description)
	assert.Equal(t, DefaultUnitCode, m.Lines[0].UnitCode)
	assertDec(t, "1000.00", m.Lines[0].LineTotal, "line total")
	assertDec(t, "1190.00", m.GrossTotal, "gross")
	assert.Equal(t, "S", m.TaxCategory())
}

func TestMapper_SynthesizesLineForInvoicesWithoutItems(t *testing.T) {
	inv := testInvoice()
	inv.Items = nil

	m, err := NewMapper().Map(inv, testCompany())
	require.NoError(t, err)

	require.Len(t, m.Lines, 1)
	assert.True(t, m.SynthesizedLine)
	assert.Equal(t, SynthesizedLineDescription, m.Lines[0].Description)
	assertDec(t, "1", m.Lines[0].Quantity, "quantity")
	assertDec(t, "1000.00", m.Lines[0].UnitPrice, "unit price")
	assertDec(t, "1000.00", m.Lines[0].LineTotal, "line total")
}

func TestMapper_Defaults(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*models.Invoice)
		check  func(*testing.T, *Model)
	}{
		{
			name:   "missing due date is issue date plus 14 days",
			modify: func(inv *models.Invoice) { inv.DueDate = models.Date{} },
			check: func(t *testing.T, m *Model) {
				assert.Equal(t, time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC), m.DueDate)
			},
		},
		{
			name:   "missing gross total is net plus tax",
			modify: func(inv *models.Invoice) { inv.Total = decimal.Zero },
			check: func(t *testing.T, m *Model) {
				assertDec(t, "1190.00", m.GrossTotal, "gross")
			},
		},
		{
			name:   "currency symbol",
			modify: func(inv *models.Invoice) { inv.Currency = "€" },
			check: func(t *testing.T, m *Model) {
				assert.Equal(t, "EUR", m.Currency)
			},
		},
		{
			name: "item without total or unit",
			modify: func(inv *models.Invoice) {
				inv.Items = []models.InvoiceItem{{Description: "Material", Quantity: dec("4"), UnitPrice: dec("250.00"), Unit: ""}}
			},
			check: func(t *testing.T, m *Model) {
				assertDec(t, "1000.00", m.Lines[0].LineTotal, "line total")
				assert.Equal(t, "HUR", m.Lines[0].UnitCode)
			},
		},
		{
			name:   "zero rate",
			modify: func(inv *models.Invoice) { inv.VATRate = decimal.Zero; inv.Tax = decimal.Zero; inv.Total = decimal.Zero },
			check: func(t *testing.T, m *Model) {
				assert.Equal(t, "Z", m.TaxCategory())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := testInvoice()
			tt.modify(inv)
			m, err := NewMapper().Map(inv, testCompany())
			require.NoError(t, err)
			tt.check(t, m)
		})
	}
}

func TestMapper_RejectsInvalidSource(t *testing.T) {
	tests := []struct {
		name    string
		inv     *models.Invoice
		company models.CompanyProfile
	}{
		{name: "nil invoice", inv: nil, company: testCompany()},
		{
			name:    "missing invoice number",
			inv:     func() *models.Invoice { inv := testInvoice(); inv.InvoiceNumber = ""; return inv }(),
			company: testCompany(),
		},
		{
			name:    "missing issue date",
			inv:     func() *models.Invoice { inv := testInvoice(); inv.IssueDate = models.Date{}; return inv }(),
			company: testCompany(),
		},
		{
			name:    "company without name",
			inv:     testInvoice(),
			company: models.CompanyProfile{ID: "company-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMapper().Map(tt.inv, tt.company)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSource)

			var mapErr *MappingError
			assert.ErrorAs(t, err, &mapErr)
		})
	}
}

func TestMapper_ProviderTimestamps(t *testing.T) {
	raw := `{
		"id": "inv-7",
		"invoiceNumber": "RE-7",
		"customerName": "Beispiel AG",
		"customerAddress": "Am Markt 3, 50667 Köln",
		"issueDate": {"_seconds": 1741910400, "_nanoseconds": 0},
		"dueDate": "28.03.2025",
		"amount": "100.00",
		"tax": "19.00",
		"vatRate": 19
	}`

	var inv models.Invoice
	require.NoError(t, json.Unmarshal([]byte(raw), &inv))

	m, err := NewMapper().Map(&inv, testCompany())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), m.IssueDate)
	assert.Equal(t, time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC), m.DueDate)
	assert.Equal(t, "Am Markt 3", m.Buyer.Address.Street)
	assert.Equal(t, "50667", m.Buyer.Address.PostCode)
	assert.Equal(t, "Köln", m.Buyer.Address.City)
	assertDec(t, "119.00", m.GrossTotal, "gross")
	assert.True(t, m.SynthesizedLine)
}
