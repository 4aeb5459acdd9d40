package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kennziffern of the UStVA form filled by this system.
const (
	Kz81 = 81 // Steuerpflichtige Umsätze 19 %
	Kz86 = 86 // Steuerpflichtige Umsätze 7 %
	Kz66 = 66 // Abziehbare Vorsteuer
	Kz83 = 83 // Verbleibende Vorauszahlung (negativ: Erstattung)
)

// UStVAResult holds the figures of one VAT advance return.
// All amounts are rounded to two decimals.
type UStVAResult struct {
	RevenueAt19        decimal.Decimal `json:"revenueAt19"`
	RevenueAt7         decimal.Decimal `json:"revenueAt7"`
	VATAt19            decimal.Decimal `json:"vatAt19"`
	VATAt7             decimal.Decimal `json:"vatAt7"`
	DeductibleInputVAT decimal.Decimal `json:"deductibleInputVat"`
	OutputVATTotal     decimal.Decimal `json:"outputVatTotal"`
	Balance            decimal.Decimal `json:"balance"`
	Zahllast           decimal.Decimal `json:"zahllast"`
	Erstattung         decimal.Decimal `json:"erstattung"`
}

// Kennziffern maps the result onto the official form fields.
// Kz 83 carries the signed balance: positive Zahllast, negative Erstattung.
func (r UStVAResult) Kennziffern() map[int]decimal.Decimal {
	return map[int]decimal.Decimal{
		Kz81: r.RevenueAt19,
		Kz86: r.RevenueAt7,
		Kz66: r.DeductibleInputVAT,
		Kz83: r.Balance,
	}
}

// IsZero reports whether every figure is zero.
func (r UStVAResult) IsZero() bool {
	for _, v := range []decimal.Decimal{
		r.RevenueAt19, r.RevenueAt7, r.VATAt19, r.VATAt7, r.DeductibleInputVAT,
		r.OutputVATTotal, r.Balance, r.Zahllast, r.Erstattung,
	} {
		if !v.IsZero() {
			return false
		}
	}
	return true
}

// ReportType identifies the kind of tax declaration.
type ReportType string

const ReportTypeUStVA ReportType = "ustVA"

// ReportStatus is the lifecycle state of a stored declaration.
type ReportStatus string

const (
	ReportCalculated ReportStatus = "calculated"
	ReportSubmitted  ReportStatus = "submitted"
	ReportAccepted   ReportStatus = "accepted"
	ReportRejected   ReportStatus = "rejected"
)

var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportCalculated: {ReportSubmitted},
	ReportSubmitted:  {ReportAccepted, ReportRejected},
}

// CanTransitionTo reports whether a report may move from s to next.
// Accepted and rejected are terminal.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	for _, allowed := range reportTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TaxDeclarationReport is a persisted UStVA. Only Status changes after creation.
type TaxDeclarationReport struct {
	ID          string                  `json:"id"`
	CompanyID   string                  `json:"companyId"`
	Type        ReportType              `json:"type"`
	Year        int                     `json:"year"`
	Quarter     int                     `json:"quarter"`
	PeriodStart time.Time               `json:"periodStart"`
	PeriodEnd   time.Time               `json:"periodEnd"`
	Status      ReportStatus            `json:"status"`
	Result      UStVAResult             `json:"result"`
	Kennziffern map[int]decimal.Decimal `json:"kennziffern"`
	InvoiceIDs  []string                `json:"invoiceIds"`
	ExpenseIDs  []string                `json:"expenseIds"`
	CreatedBy   string                  `json:"createdBy"`
	Notes       string                  `json:"notes,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// PeriodLabel returns e.g. "Q1/2025".
func (r *TaxDeclarationReport) PeriodLabel() string {
	return fmt.Sprintf("Q%d/%d", r.Quarter, r.Year)
}
