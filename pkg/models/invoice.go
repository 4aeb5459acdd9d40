package models

import "github.com/shopspring/decimal"

// Invoice is an outgoing invoice as stored by the billing system.
// It is the input for e-invoice generation.
type Invoice struct {
	// Core identifiers
	ID            string `json:"id"`                                 // Unique invoice identifier
	InvoiceNumber string `json:"invoiceNumber" validate:"required"` // Human-readable invoice number

	// Buyer
	CustomerName    string `json:"customerName" validate:"required"`
	CustomerAddress string `json:"customerAddress"`          // Multi-line postal address
	CustomerVATID   string `json:"customerVatId,omitempty"`  // USt-IdNr of the buyer, if known
	CustomerEmail   string `json:"customerEmail,omitempty"`  // Used as electronic address when no Leitweg-ID exists
	BuyerReference  string `json:"buyerReference,omitempty"` // BT-10
	LeitwegID       string `json:"leitwegId,omitempty"`      // Public sector routing id
	PublicSector    bool   `json:"publicSector,omitempty"`   // Buyer is a public body

	// Dates, accepted in any form Date understands
	IssueDate Date `json:"issueDate"`
	DueDate   Date `json:"dueDate"`

	// Amounts in invoice currency
	Amount   decimal.Decimal `json:"amount"` // Net total
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"` // Gross total
	VATRate  decimal.Decimal `json:"vatRate"`
	Currency string          `json:"currency,omitempty"`

	Items []InvoiceItem `json:"items,omitempty"`

	// Optional metadata
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
}

// InvoiceItem is a single invoice position.
type InvoiceItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
	Unit        string          `json:"unit,omitempty"` // UN/ECE rec 20 code, defaults to HUR
}
