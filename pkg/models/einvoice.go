package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EInvoiceFormat is the structured invoice syntax.
type EInvoiceFormat string

const (
	FormatZUGFeRD   EInvoiceFormat = "zugferd"
	FormatXRechnung EInvoiceFormat = "xrechnung"
)

// ParseEInvoiceFormat accepts the format names used on the command line and in the API.
func ParseEInvoiceFormat(s string) (EInvoiceFormat, error) {
	switch EInvoiceFormat(s) {
	case FormatZUGFeRD, FormatXRechnung:
		return EInvoiceFormat(s), nil
	}
	return "", fmt.Errorf("unknown e-invoice format %q", s)
}

// ConformanceLevel is the ZUGFeRD profile.
type ConformanceLevel string

const (
	LevelBasic    ConformanceLevel = "BASIC"
	LevelComfort  ConformanceLevel = "COMFORT"
	LevelExtended ConformanceLevel = "EXTENDED"
)

// Valid reports whether the level is one of the supported ZUGFeRD profiles.
func (l ConformanceLevel) Valid() bool {
	switch l {
	case LevelBasic, LevelComfort, LevelExtended:
		return true
	}
	return false
}

// Standard names the rule set a document claims conformance to.
type Standard string

const (
	StandardEN16931  Standard = "EN16931"
	StandardBasic    Standard = "BASIC"
	StandardComfort  Standard = "COMFORT"
	StandardExtended Standard = "EXTENDED"
)

// ValidationStatus is the outcome of business-rule validation.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// TransmissionStatus tracks delivery of the document to the buyer.
type TransmissionStatus string

const (
	TransmissionDraft     TransmissionStatus = "draft"
	TransmissionSent      TransmissionStatus = "sent"
	TransmissionReceived  TransmissionStatus = "received"
	TransmissionProcessed TransmissionStatus = "processed"
)

// EInvoiceDocument is a generated XML invoice. XMLContent never changes after
// validation; regenerating produces a new document.
type EInvoiceDocument struct {
	ID                 string             `json:"id"`
	InvoiceID          string             `json:"invoiceId"`
	CompanyID          string             `json:"companyId"`
	Format             EInvoiceFormat     `json:"format"`
	Standard           Standard           `json:"standard"`
	XMLContent         string             `json:"xmlContent"`
	ValidationStatus   ValidationStatus   `json:"validationStatus"`
	ValidationErrors   []string           `json:"validationErrors"`
	ValidationWarnings []string           `json:"validationWarnings"`
	TransmissionStatus TransmissionStatus `json:"transmissionStatus"`
	GrossAmount        decimal.Decimal    `json:"grossAmount"`
	PublicSector       bool               `json:"publicSector"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// FileName is the download name of the XML artifact.
func (d *EInvoiceDocument) FileName() string {
	return EInvoiceFileName(d.InvoiceID)
}

// EInvoiceFileName returns e-invoice-<invoiceID>.xml.
func EInvoiceFileName(invoiceID string) string {
	return fmt.Sprintf("e-invoice-%s.xml", invoiceID)
}

// EInvoiceMIMEType is the content type of generated documents.
const EInvoiceMIMEType = "application/xml"
