package models

// CompanyProfile holds the seller data embedded into e-invoices and ELSTER exports.
type CompanyProfile struct {
	ID        string `json:"id" mapstructure:"id" validate:"required"`
	Name      string `json:"name" mapstructure:"name" validate:"required"`
	Address   string `json:"address" mapstructure:"address"` // Multi-line postal address
	VATID     string `json:"vatId" mapstructure:"vat_id"`    // USt-IdNr, e.g. DE123456789
	TaxNumber string `json:"taxNumber" mapstructure:"tax_number"`
	Email     string `json:"email,omitempty" mapstructure:"email" validate:"omitempty,email"`
	Phone     string `json:"phone,omitempty" mapstructure:"phone"`
	IBAN      string `json:"iban,omitempty" mapstructure:"iban"`

	EInvoice EInvoiceSettings `json:"eInvoice" mapstructure:"einvoice"`
}

// EInvoiceSettings are per company defaults for e-invoice generation.
type EInvoiceSettings struct {
	DefaultFormat    EInvoiceFormat   `json:"defaultFormat" mapstructure:"default_format" validate:"omitempty,oneof=zugferd xrechnung"`
	ZUGFeRDLevel     ConformanceLevel `json:"zugferdLevel" mapstructure:"zugferd_level" validate:"omitempty,oneof=BASIC COMFORT EXTENDED"`
	DefaultLeitwegID string           `json:"defaultLeitwegId,omitempty" mapstructure:"default_leitweg_id"`
	DefaultBuyerRef  string           `json:"defaultBuyerReference,omitempty" mapstructure:"default_buyer_reference"`
	ProcessingNote   string           `json:"processingNote,omitempty" mapstructure:"processing_note"`
}
