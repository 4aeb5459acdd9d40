package ustva

import (
	"fmt"
	"time"

	"taxkit/internal/period"
	"taxkit/pkg/models"
)

// ReportInput collects what BuildReport needs besides the computed result.
type ReportInput struct {
	CompanyID string
	CreatedBy string
	Notes     string
	Period    period.TaxPeriod
	Selection *Selection
	Result    models.UStVAResult
	CreatedAt time.Time
}

// DefaultNotes is the note attached to returns created through the wizard.
func DefaultNotes(p period.TaxPeriod) string {
	return fmt.Sprintf("UStVA Q%d/%d - Erstellt über Steuer-Wizard", p.Quarter, p.Year)
}

// BuildReport assembles a new report in status calculated. The id is assigned
// by the repository.
func BuildReport(in ReportInput) *models.TaxDeclarationReport {
	notes := in.Notes
	if notes == "" {
		notes = DefaultNotes(in.Period)
	}

	report := &models.TaxDeclarationReport{
		CompanyID:   in.CompanyID,
		Type:        models.ReportTypeUStVA,
		Year:        in.Period.Year,
		Quarter:     in.Period.Quarter,
		PeriodStart: in.Period.Start,
		PeriodEnd:   in.Period.End,
		Status:      models.ReportCalculated,
		Result:      in.Result,
		Kennziffern: in.Result.Kennziffern(),
		CreatedBy:   in.CreatedBy,
		Notes:       notes,
		CreatedAt:   in.CreatedAt,
	}
	if in.Selection != nil {
		report.InvoiceIDs = in.Selection.Selected(models.KindInvoice)
		report.ExpenseIDs = in.Selection.Selected(models.KindExpense)
	}
	return report
}
