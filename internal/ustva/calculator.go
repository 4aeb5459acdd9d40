// Package ustva computes German VAT advance returns (Umsatzsteuer-Voranmeldung)
// from a selection of invoices and expenses.
//
// All arithmetic uses shopspring/decimal. Bucket sums are rounded to two
// decimals half-up once, after summation, and before the balance is derived.
package ustva

import (
	"math"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"taxkit/pkg/models"
)

const centPlaces = 2

type bucketSum struct {
	net decimal.Decimal
	tax decimal.Decimal
}

// Compute derives the UStVA figures for the selected documents. It has no side
// effects and returns identical results for identical input.
//
// A document counts only when it is eligible for the selection's period, and
// each id counts once; the first eligible document with an id wins.
//
// Only selected documents are checked for negative amounts; a deselected
// credit note does not block the computation.
func Compute(invoices, expenses []models.FinancialDocument, sel *Selection) (models.UStVAResult, error) {
	const op = "Compute"

	if sel == nil {
		return models.UStVAResult{}, NewComputationError(op, ErrNoSelection, "", "")
	}

	p := sel.Period()
	selectedInvoices := lo.UniqBy(lo.Filter(invoices, func(d models.FinancialDocument, _ int) bool {
		return d.Kind == models.KindInvoice && IsEligible(p, d) && sel.IsSelected(models.KindInvoice, d.ID)
	}), documentID)
	selectedExpenses := lo.UniqBy(lo.Filter(expenses, func(d models.FinancialDocument, _ int) bool {
		return d.Kind == models.KindExpense && d.Deductible && IsEligible(p, d) && sel.IsSelected(models.KindExpense, d.ID)
	}), documentID)

	for _, d := range slices.Concat(selectedInvoices, selectedExpenses) {
		if err := checkAmounts(op, d); err != nil {
			return models.UStVAResult{}, err
		}
	}

	buckets := map[Bucket]bucketSum{
		BucketStandard19: {net: decimal.Zero, tax: decimal.Zero},
		BucketReduced7:   {net: decimal.Zero, tax: decimal.Zero},
	}
	for _, inv := range selectedInvoices {
		b := Classify(inv.TaxRate)
		if b == BucketOther {
			continue
		}
		sum := buckets[b]
		sum.net = sum.net.Add(inv.NetAmount)
		sum.tax = sum.tax.Add(inv.TaxAmount)
		buckets[b] = sum
	}

	inputVAT := lo.Reduce(selectedExpenses, func(acc decimal.Decimal, d models.FinancialDocument, _ int) decimal.Decimal {
		return acc.Add(d.TaxAmount)
	}, decimal.Zero)

	result := models.UStVAResult{
		RevenueAt19:        buckets[BucketStandard19].net.Round(centPlaces),
		RevenueAt7:         buckets[BucketReduced7].net.Round(centPlaces),
		VATAt19:            buckets[BucketStandard19].tax.Round(centPlaces),
		VATAt7:             buckets[BucketReduced7].tax.Round(centPlaces),
		DeductibleInputVAT: inputVAT.Round(centPlaces),
	}
	result.OutputVATTotal = result.VATAt19.Add(result.VATAt7)
	result.Balance = result.OutputVATTotal.Sub(result.DeductibleInputVAT)
	result.Zahllast = decimal.Max(result.Balance, decimal.Zero)
	result.Erstattung = decimal.Max(result.Balance.Neg(), decimal.Zero)

	return result, nil
}

func documentID(d models.FinancialDocument) string {
	return d.ID
}

func checkAmounts(op string, d models.FinancialDocument) error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"net_amount", d.NetAmount},
		{"tax_amount", d.TaxAmount},
		{"tax_rate", d.TaxRate},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return NewComputationError(op, ErrNegativeAmount, d.ID, f.name)
		}
	}
	return nil
}

// AmountFromFloat converts a float read from a source system into a decimal.
// NaN and infinities are rejected.
func AmountFromFloat(field string, f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, NewComputationError("AmountFromFloat", ErrNonFiniteAmount, "", field)
	}
	return decimal.NewFromFloat(f), nil
}
