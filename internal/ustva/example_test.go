package ustva_test

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"taxkit/internal/period"
	"taxkit/internal/ustva"
	"taxkit/pkg/models"
)

// ExampleCompute derives the Kennziffern of a quarter from its documents.
func ExampleCompute() {
	q1 := period.MustResolve(2025, 1)
	date := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)

	invoices := []models.FinancialDocument{
		{ID: "RE-1", Kind: models.KindInvoice, NetAmount: decimal.RequireFromString("1000.00"),
			TaxAmount: decimal.RequireFromString("190.00"), TaxRate: decimal.NewFromInt(19), DocumentDate: date, Status: "paid"},
		{ID: "RE-2", Kind: models.KindInvoice, NetAmount: decimal.RequireFromString("200.00"),
			TaxAmount: decimal.RequireFromString("14.00"), TaxRate: decimal.NewFromInt(7), DocumentDate: date, Status: "sent"},
	}
	expenses := []models.FinancialDocument{
		{ID: "EXP-1", Kind: models.KindExpense, NetAmount: decimal.RequireFromString("300.00"),
			TaxAmount: decimal.RequireFromString("57.00"), TaxRate: decimal.NewFromInt(19), DocumentDate: date, Status: "PAID", Deductible: true},
	}

	sel := ustva.NewSelection(q1, invoices, expenses)
	result, err := ustva.Compute(invoices, expenses, sel)
	if err != nil {
		log.Fatal(err)
	}

	kz := result.Kennziffern()
	for _, k := range []int{models.Kz81, models.Kz86, models.Kz66, models.Kz83} {
		fmt.Printf("Kz %d: %s\n", k, kz[k].StringFixed(2))
	}
	// Output:
	// Kz 81: 1000.00
	// Kz 86: 200.00
	// Kz 66: 57.00
	// Kz 83: 147.00
}
