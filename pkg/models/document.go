package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind distinguishes outgoing invoices from incoming expenses.
type DocumentKind string

const (
	KindInvoice DocumentKind = "invoice"
	KindExpense DocumentKind = "expense"
)

// FinancialDocument is an invoice or expense as seen by the UStVA calculation.
type FinancialDocument struct {
	// Core identifiers
	ID     string       `json:"id"`
	Kind   DocumentKind `json:"kind"`
	Number string       `json:"number,omitempty"` // Invoice number or receipt reference

	CounterpartyName string `json:"counterparty_name"` // Customer (invoice) or vendor (expense)

	// Amounts in EUR, two decimal places
	NetAmount decimal.Decimal `json:"net_amount"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	TaxRate   decimal.Decimal `json:"tax_rate"` // Percentage, e.g. 19 or 7

	DocumentDate time.Time `json:"document_date"`

	// Status as stored by the source system (invoices lower case, expenses upper case)
	Status string `json:"status"`
	Locked bool   `json:"locked,omitempty"` // GoBD lock, invoices only

	Deductible bool   `json:"deductible,omitempty"` // Vorsteuerabzug allowed, expenses only
	Category   string `json:"category,omitempty"`
}

var (
	eligibleInvoiceStatuses = []string{"paid", "sent", "overdue", "partial"}
	eligibleExpenseStatuses = []string{"PAID", "APPROVED"}
)

// HasEligibleStatus reports whether the document's status admits it into a declaration.
// Locked invoices are always eligible.
func (d FinancialDocument) HasEligibleStatus() bool {
	switch d.Kind {
	case KindInvoice:
		if d.Locked {
			return true
		}
		return containsFold(eligibleInvoiceStatuses, d.Status)
	case KindExpense:
		return containsFold(eligibleExpenseStatuses, d.Status)
	}
	return false
}

// GrossAmount returns net plus tax.
func (d FinancialDocument) GrossAmount() decimal.Decimal {
	return d.NetAmount.Add(d.TaxAmount)
}

func containsFold(values []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
