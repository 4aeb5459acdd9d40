package einvoice

import (
	"errors"

	"github.com/samber/lo"
	"taxkit/pkg/models"
)

// ComplianceLevel grades a document against the invoice content rules of
// § 14 Abs. 4 UStG.
type ComplianceLevel string

const (
	ComplianceFull    ComplianceLevel = "full"
	CompliancePartial ComplianceLevel = "partial"
	ComplianceNone    ComplianceLevel = "non_compliant"
)

// CheckedFields records which mandatory invoice contents were found.
type CheckedFields struct {
	HasSequentialNumber bool `json:"hasSequentialNumber"`
	HasIssueDate        bool `json:"hasIssueDate"`
	HasSellerData       bool `json:"hasSellerData"`
	HasBuyerData        bool `json:"hasBuyerData"`
	HasValidTax         bool `json:"hasValidTax"`
	HasPaymentTerms     bool `json:"hasPaymentTerms"`
	IsStructuredFormat  bool `json:"isStructuredFormat"`
}

// ComplianceReport is the result of CheckCompliance.
type ComplianceReport struct {
	IsCompliant   bool            `json:"isCompliant"`
	Format        string          `json:"format,omitempty"`
	CheckedFields CheckedFields   `json:"checkedFields"`
	Errors        []string        `json:"errors"`
	Warnings      []string        `json:"warnings"`
	Level         ComplianceLevel `json:"complianceLevel"`
}

// ErrUnknownSyntax is returned by DetectFormat for documents that are neither
// CII nor UBL invoices.
var ErrUnknownSyntax = errors.New("document is neither a CII nor a UBL invoice")

// DetectFormat infers the format from the root element.
func DetectFormat(data []byte) (models.EInvoiceFormat, error) {
	root, err := parseTree(data)
	if err != nil {
		return "", err
	}
	return formatOf(root)
}

func formatOf(root *node) (models.EInvoiceFormat, error) {
	switch {
	case root.Name == "CrossIndustryInvoice":
		return models.FormatZUGFeRD, nil
	case root.Name == "Invoice" && root.Space == nsUBLInvoice:
		return models.FormatXRechnung, nil
	}
	return "", ErrUnknownSyntax
}

// CheckCompliance checks that data carries the contents § 14 UStG demands of
// an electronic invoice. It is coarser than Validate and format agnostic.
func CheckCompliance(data []byte) ComplianceReport {
	c := &collector{}
	var fields CheckedFields
	var format models.EInvoiceFormat

	root, err := parseTree(data)
	if err != nil {
		c.errorf("document is not well-formed XML: %v", err)
		return complianceReport(c, fields, format, true)
	}

	format, err = formatOf(root)
	fields.IsStructuredFormat = err == nil
	if !fields.IsStructuredFormat {
		c.errorf("no structured EN 16931 format")
		return complianceReport(c, fields, format, true)
	}

	var seller, buyer *node
	if format == models.FormatZUGFeRD {
		doc := root.child("ExchangedDocument")
		tx := root.child("SupplyChainTradeTransaction")
		agreement := tx.child("ApplicableHeaderTradeAgreement")
		settlement := tx.child("ApplicableHeaderTradeSettlement")
		seller = agreement.child("SellerTradeParty")
		buyer = agreement.child("BuyerTradeParty")

		fields.HasSequentialNumber = doc.text("ID") != ""
		fields.HasIssueDate = doc.text("IssueDateTime", "DateTimeString") != ""
		fields.HasSellerData = seller.text("Name") != "" &&
			seller.child("PostalTradeAddress") != nil &&
			len(seller.children("SpecifiedTaxRegistration")) > 0
		fields.HasBuyerData = buyer.text("Name") != "" && buyer.child("PostalTradeAddress") != nil

		tax := settlement.child("ApplicableTradeTax")
		fields.HasValidTax = tax.text("TypeCode") == "VAT" &&
			tax.text("CalculatedAmount") != "" &&
			tax.text("RateApplicablePercent") != "" &&
			tax.text("CategoryCode") != "" &&
			tax.text("BasisAmount") != ""
		fields.HasPaymentTerms = settlement.child("SpecifiedTradePaymentTerms") != nil
	} else {
		seller = root.find("AccountingSupplierParty", "Party")
		buyer = root.find("AccountingCustomerParty", "Party")

		fields.HasSequentialNumber = root.text("ID") != ""
		fields.HasIssueDate = root.text("IssueDate") != ""
		fields.HasSellerData = seller.text("PartyName", "Name") != "" &&
			seller.child("PostalAddress") != nil &&
			seller.text("PartyTaxScheme", "CompanyID") != ""
		fields.HasBuyerData = buyer.text("PartyName", "Name") != "" && buyer.child("PostalAddress") != nil

		sub := root.find("TaxTotal", "TaxSubtotal")
		fields.HasValidTax = root.text("TaxTotal", "TaxAmount") != "" &&
			sub.text("TaxableAmount") != "" &&
			sub.text("TaxCategory", "ID") != "" &&
			sub.text("TaxCategory", "Percent") != "" &&
			sub.text("TaxCategory", "TaxScheme", "ID") == "VAT"
		fields.HasPaymentTerms = root.child("PaymentTerms") != nil || root.text("DueDate") != ""
	}

	if !fields.HasSequentialNumber {
		c.errorf("invoice number is missing")
	}
	if !fields.HasIssueDate {
		c.errorf("issue date is missing")
	}
	if !fields.HasSellerData {
		c.errorf("seller data incomplete (name, address, tax number or VAT-ID)")
	}
	if !fields.HasBuyerData {
		c.errorf("buyer data incomplete (name, address)")
	}
	if !fields.HasValidTax {
		c.errorf("tax information incomplete (type, amount, rate, category, basis)")
	}
	if !fields.HasPaymentTerms {
		c.warnf("payment terms are missing")
	}

	return complianceReport(c, fields, format, false)
}

func complianceReport(c *collector, fields CheckedFields, format models.EInvoiceFormat, fatal bool) ComplianceReport {
	level := ComplianceNone
	switch {
	case fatal:
	case len(c.errors) == 0:
		level = ComplianceFull
	case len(c.errors) <= 2 && len(c.warnings) <= 5:
		level = CompliancePartial
	}
	return ComplianceReport{
		IsCompliant:   len(c.errors) == 0,
		Format:        string(format),
		CheckedFields: fields,
		Errors:        lo.Ternary(c.errors == nil, []string{}, c.errors),
		Warnings:      lo.Ternary(c.warnings == nil, []string{}, c.warnings),
		Level:         level,
	}
}
