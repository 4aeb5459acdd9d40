package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testReport(companyID string, year, quarter int) *models.TaxDeclarationReport {
	result := models.UStVAResult{
		RevenueAt19:        dec("1000.00"),
		RevenueAt7:         decimal.Zero,
		VATAt19:            dec("190.00"),
		VATAt7:             decimal.Zero,
		DeductibleInputVAT: dec("95.00"),
		OutputVATTotal:     dec("190.00"),
		Balance:            dec("95.00"),
		Zahllast:           dec("95.00"),
		Erstattung:         decimal.Zero,
	}
	return &models.TaxDeclarationReport{
		CompanyID:   companyID,
		Type:        models.ReportTypeUStVA,
		Year:        year,
		Quarter:     quarter,
		PeriodStart: time.Date(year, time.Month(quarter*3-2), 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(year, time.Month(quarter*3+1), 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
		Status:      models.ReportCalculated,
		Result:      result,
		Kennziffern: result.Kennziffern(),
		InvoiceIDs:  []string{"inv-1"},
		ExpenseIDs:  []string{"exp-1"},
		CreatedBy:   "user-1",
		Notes:       "UStVA Q1/2025 - Erstellt über Steuer-Wizard",
		CreatedAt:   time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestReportRepository_SaveAndFind(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()

	id, err := repo.Save(ctx, testReport("company-1", 2025, 1))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.ReportTypeUStVA, got.Type)
	assert.Equal(t, models.ReportCalculated, got.Status)
	assert.Equal(t, []string{"inv-1"}, got.InvoiceIDs)
	assert.Equal(t, []string{"exp-1"}, got.ExpenseIDs)
	assert.True(t, dec("95.00").Equal(got.Result.Balance))
	assert.True(t, dec("1000.00").Equal(got.Kennziffern[models.Kz81]))
	assert.True(t, dec("95.00").Equal(got.Kennziffern[models.Kz83]))
	assert.True(t, got.CreatedAt.Equal(time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)))

	_, err = repo.FindByID(ctx, "missing")
	assert.True(t, services.IsStorageError(err))
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestReportRepository_UniquePeriod(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Save(ctx, testReport("company-1", 2025, 1))
	require.NoError(t, err)

	_, err = repo.Save(ctx, testReport("company-1", 2025, 1))
	require.Error(t, err)
	assert.True(t, services.IsStorageError(err))
	assert.ErrorIs(t, err, services.ErrConflict)

	// other quarter and other company are fine
	_, err = repo.Save(ctx, testReport("company-1", 2025, 2))
	require.NoError(t, err)
	_, err = repo.Save(ctx, testReport("company-2", 2025, 1))
	require.NoError(t, err)

	reports, err := repo.ListByCompany(ctx, "company-1")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 2, reports[0].Quarter)
	assert.Equal(t, 1, reports[1].Quarter)
}

func TestReportRepository_UpdateStatus(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))
	ctx := context.Background()

	id, err := repo.Save(ctx, testReport("company-1", 2025, 1))
	require.NoError(t, err)

	tests := []struct {
		name    string
		status  models.ReportStatus
		wantErr error
	}{
		{"calculated to accepted is skipped", models.ReportAccepted, ErrInvalidStatusTransition},
		{"calculated to submitted", models.ReportSubmitted, nil},
		{"submitted to accepted", models.ReportAccepted, nil},
		{"accepted is terminal", models.ReportRejected, ErrInvalidStatusTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.UpdateStatus(ctx, id, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got, err := repo.FindByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
		})
	}

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", models.ReportSubmitted), services.ErrNotFound)
}

func TestEInvoiceRepository(t *testing.T) {
	repo := NewEInvoiceRepository(setupTestDB(t))
	ctx := context.Background()

	doc := &models.EInvoiceDocument{
		InvoiceID:          "inv-1",
		CompanyID:          "company-1",
		Format:             models.FormatXRechnung,
		Standard:           models.StandardEN16931,
		XMLContent:         "<Invoice/>",
		ValidationStatus:   models.ValidationInvalid,
		ValidationErrors:   []string{"buyer reference (BuyerReference) or Leitweg-ID is required"},
		TransmissionStatus: models.TransmissionDraft,
		GrossAmount:        dec("1190.00"),
		PublicSector:       true,
		CreatedAt:          time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
	}

	id, err := repo.Save(ctx, doc)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.FormatXRechnung, got.Format)
	assert.Equal(t, models.ValidationInvalid, got.ValidationStatus)
	assert.Equal(t, doc.ValidationErrors, got.ValidationErrors)
	assert.True(t, dec("1190.00").Equal(got.GrossAmount))
	assert.True(t, got.PublicSector)

	require.NoError(t, repo.UpdateValidation(ctx, id, models.ValidationValid, []string{}, []string{"payment terms are missing"}))

	got, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationValid, got.ValidationStatus)
	assert.Empty(t, got.ValidationErrors)
	assert.Equal(t, []string{"payment terms are missing"}, got.ValidationWarnings)
	assert.Equal(t, "<Invoice/>", got.XMLContent)
	assert.True(t, got.PublicSector)

	err = repo.UpdateValidation(ctx, "missing", models.ValidationValid, nil, nil)
	assert.ErrorIs(t, err, services.ErrNotFound)

	docs, err := repo.ListByCompany(ctx, "company-1")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = repo.ListByCompany(ctx, "company-2")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
