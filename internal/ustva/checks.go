package ustva

import (
	"fmt"

	"github.com/shopspring/decimal"
	"taxkit/pkg/models"
)

var (
	// plausibilityTolerance is the deviation between expected and declared
	// output VAT above which a return is flagged for review.
	plausibilityTolerance = decimal.NewFromInt(10)

	// consistencyTolerance is the allowed difference between a document's tax
	// amount and net amount times rate.
	consistencyTolerance = decimal.New(1, -2)

	hundred = decimal.NewFromInt(100)
)

// Plausibility is the outcome of CheckPlausibility.
type Plausibility struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether no errors were found. Warnings do not count.
func (p Plausibility) OK() bool {
	return len(p.Errors) == 0
}

// CheckPlausibility compares the declared output VAT against 19 % and 7 % of
// the declared revenue.
func CheckPlausibility(r models.UStVAResult) Plausibility {
	out := Plausibility{Errors: []string{}, Warnings: []string{}}

	if r.RevenueAt19.Add(r.RevenueAt7).IsNegative() {
		out.Errors = append(out.Errors, "taxable revenue must not be negative")
	}

	expected := r.RevenueAt19.Mul(rateStandard).Div(hundred).
		Add(r.RevenueAt7.Mul(rateReduced).Div(hundred))
	if expected.Sub(r.OutputVATTotal).Abs().GreaterThan(plausibilityTolerance) {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"output VAT %s deviates from expected %s, please review",
			r.OutputVATTotal.StringFixed(2), expected.StringFixed(2)))
	}

	return out
}

// Inconsistency describes a document whose tax amount does not match its rate.
type Inconsistency struct {
	DocumentID string              `json:"documentId"`
	Kind       models.DocumentKind `json:"kind"`
	Expected   decimal.Decimal     `json:"expected"`
	Actual     decimal.Decimal     `json:"actual"`
}

// String renders the inconsistency for logs and CLI output.
func (i Inconsistency) String() string {
	return fmt.Sprintf("%s %s: tax %s, expected %s",
		i.Kind, i.DocumentID, i.Actual.StringFixed(2), i.Expected.StringFixed(2))
}

// CheckConsistency lists documents whose tax amount differs from
// net amount times rate by more than one cent.
func CheckConsistency(docs []models.FinancialDocument) []Inconsistency {
	var out []Inconsistency
	for _, d := range docs {
		expected := d.NetAmount.Mul(d.TaxRate).Div(hundred).Round(centPlaces)
		if expected.Sub(d.TaxAmount).Abs().GreaterThan(consistencyTolerance) {
			out = append(out, Inconsistency{
				DocumentID: d.ID,
				Kind:       d.Kind,
				Expected:   expected,
				Actual:     d.TaxAmount,
			})
		}
	}
	return out
}
