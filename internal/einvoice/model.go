package einvoice

import (
	"time"

	"github.com/shopspring/decimal"
	"taxkit/pkg/models"
)

// DefaultUnitCode is the UN/ECE rec 20 unit used when a position has none (hours).
const DefaultUnitCode = "HUR"

// SynthesizedLineDescription is the description of the single position
// created for invoices stored without line items.
const SynthesizedLineDescription = "Leistung gemäß Rechnung"

// Model is the format independent representation of an invoice. Both
// generators render from it; it carries no wall-clock data.
type Model struct {
	InvoiceID     string
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       time.Time
	Currency      string

	Seller Party
	Buyer  Party

	Lines []LineItem

	NetTotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrossTotal decimal.Decimal
	VATRate    decimal.Decimal

	Note string

	// SynthesizedLine is set when Lines was fabricated from the invoice total.
	SynthesizedLine bool
}

// Party is a seller or buyer.
type Party struct {
	Name      string
	Address   models.PostalAddress
	VATID     string
	TaxNumber string
	Email     string

	// Buyer routing, empty for sellers
	BuyerReference string
	LeitwegID      string
	PublicSector   bool
}

// LineItem is one invoice position.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	UnitCode    string
}

// TaxCategory returns the EN16931 VAT category code: Z for zero rated, S otherwise.
func (m *Model) TaxCategory() string {
	if m.VATRate.IsZero() {
		return "Z"
	}
	return "S"
}
