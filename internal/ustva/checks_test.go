package ustva

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"taxkit/pkg/models"
)

func TestCheckPlausibility(t *testing.T) {
	tests := []struct {
		name         string
		result       models.UStVAResult
		wantErrors   int
		wantWarnings int
	}{
		{
			name: "matching output VAT",
			result: models.UStVAResult{
				RevenueAt19:    dec("1000.00"),
				RevenueAt7:     dec("100.00"),
				OutputVATTotal: dec("197.00"),
			},
		},
		{
			name: "deviation within ten euros",
			result: models.UStVAResult{
				RevenueAt19:    dec("1000.00"),
				OutputVATTotal: dec("181.00"),
			},
		},
		{
			name: "deviation above ten euros",
			result: models.UStVAResult{
				RevenueAt19:    dec("1000.00"),
				OutputVATTotal: dec("150.00"),
			},
			wantWarnings: 1,
		},
		{
			name: "negative revenue",
			result: models.UStVAResult{
				RevenueAt19:    dec("-100.00"),
				OutputVATTotal: dec("-19.00"),
			},
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := CheckPlausibility(tt.result)
			assert.Len(t, p.Errors, tt.wantErrors)
			assert.Len(t, p.Warnings, tt.wantWarnings)
			assert.Equal(t, tt.wantErrors == 0, p.OK())
		})
	}
}

func TestCheckConsistency(t *testing.T) {
	docs := []models.FinancialDocument{
		invoice("ok", "100.00", "19", "19.00"),
		invoice("cent-off", "100.00", "19", "19.01"),
		invoice("wrong", "100.00", "19", "7.00"),
	}

	issues := CheckConsistency(docs)
	require.Len(t, issues, 1)
	assert.Equal(t, "wrong", issues[0].DocumentID)
	assertDec(t, "19.00", issues[0].Expected, "expected")
	assert.Contains(t, issues[0].String(), "expected 19.00")
}

func TestBuildReport(t *testing.T) {
	invoices := []models.FinancialDocument{invoice("inv-1", "1000.00", "19", "190.00")}
	expenses := []models.FinancialDocument{expense("exp-1", "500.00", "19", "95.00", true)}
	sel := NewSelection(q1, invoices, expenses)
	result, err := Compute(invoices, expenses, sel)
	require.NoError(t, err)

	created := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	report := BuildReport(ReportInput{
		CompanyID: "company-1",
		CreatedBy: "user-1",
		Period:    q1,
		Selection: sel,
		Result:    result,
		CreatedAt: created,
	})

	assert.Equal(t, models.ReportTypeUStVA, report.Type)
	assert.Equal(t, models.ReportCalculated, report.Status)
	assert.Equal(t, "UStVA Q1/2025 - Erstellt über Steuer-Wizard", report.Notes)
	assert.Equal(t, []string{"inv-1"}, report.InvoiceIDs)
	assert.Equal(t, []string{"exp-1"}, report.ExpenseIDs)
	assertDec(t, "1000.00", report.Kennziffern[models.Kz81], "kz81")
	assertDec(t, "95.00", report.Kennziffern[models.Kz66], "kz66")
	assertDec(t, "95.00", report.Kennziffern[models.Kz83], "kz83")
}

func TestWriteElster(t *testing.T) {
	report := &models.TaxDeclarationReport{
		Year:    2025,
		Quarter: 2,
		Result: models.UStVAResult{
			RevenueAt19:        dec("1000.99"),
			RevenueAt7:         dec("0"),
			DeductibleInputVAT: dec("300.50"),
			Balance:            dec("-110.31"),
		},
		CreatedAt: time.Date(2025, 7, 3, 12, 0, 0, 0, time.UTC),
	}
	company := models.CompanyProfile{
		Name:      "Müller Handwerk GmbH",
		Address:   "Hauptstraße 12a\n80331 München",
		TaxNumber: "9198011310010",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteElster(&buf, report, company))

	out, err := charmap.ISO8859_15.NewDecoder().String(buf.String())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="ISO-8859-15" standalone="no"?>`))
	assert.Contains(t, out, `xmlns="http://finkonsens.de/elster/elsteranmeldung/ustva/v2025"`)
	assert.Contains(t, out, "<Erstellungsdatum>20250703</Erstellungsdatum>")
	assert.Contains(t, out, "<Zeitraum>42</Zeitraum>")
	assert.Contains(t, out, "<Kz81>1000</Kz81>")
	assert.Contains(t, out, "<Kz66>300.50</Kz66>")
	assert.Contains(t, out, "<Kz83>-110.31</Kz83>")
	assert.NotContains(t, out, "<Kz86>")
	assert.Contains(t, out, "<Str>Hauptstraße</Str>")
	assert.Contains(t, out, "<Hausnummer>12</Hausnummer>")
	assert.Contains(t, out, "<HNrZusatz>a</HNrZusatz>")
	assert.Contains(t, out, "<Bezeichnung>Müller Handwerk GmbH</Bezeichnung>")
	assert.Less(t, strings.Index(out, "<Kz66>"), strings.Index(out, "<Kz81>"))

	// reproducible
	var again bytes.Buffer
	require.NoError(t, WriteElster(&again, report, company))
	assert.Equal(t, buf.Bytes(), again.Bytes())
}

func TestWriteElster_InvalidQuarter(t *testing.T) {
	var buf bytes.Buffer
	err := WriteElster(&buf, &models.TaxDeclarationReport{Year: 2025, Quarter: 7}, models.CompanyProfile{})
	assert.ErrorIs(t, err, ErrElsterExport)
}
