package einvoice

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"taxkit/pkg/models"
)

var (
	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
	tolerance    = decimal.New(1, -2)
	hundred      = decimal.NewFromInt(100)
)

// Result is the outcome of validating one document. Errors make a document
// invalid; warnings never do.
type Result struct {
	Format   models.EInvoiceFormat `json:"format"`
	IsValid  bool                  `json:"isValid"`
	Errors   []string              `json:"errors"`
	Warnings []string              `json:"warnings"`
}

// Err returns a *ValidationError listing every error, or nil for a valid document.
func (r Result) Err() error {
	if r.IsValid {
		return nil
	}
	return &ValidationError{Op: "Validate", Format: string(r.Format), Problems: r.Errors}
}

// Status maps the result onto the stored validation status.
func (r Result) Status() models.ValidationStatus {
	if r.IsValid {
		return models.ValidationValid
	}
	return models.ValidationInvalid
}

// ValidateOption adjusts the rule set.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	publicSector bool
}

// WithPublicSectorBuyer requires a Leitweg-ID on XRechnung documents.
func WithPublicSectorBuyer() ValidateOption {
	return func(c *validateConfig) { c.publicSector = true }
}

type collector struct {
	errors   []string
	warnings []string
}

func (c *collector) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *collector) warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func (c *collector) require(value, label string) {
	if strings.TrimSpace(value) == "" {
		c.errorf("%s is missing", label)
	}
}

// Validate checks data against the business rules of format. Every rule is
// evaluated; the result lists all violations, not only the first.
func Validate(data []byte, format models.EInvoiceFormat, opts ...ValidateOption) Result {
	cfg := validateConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &collector{}
	root, err := parseTree(data)
	if err != nil {
		c.errorf("document is not well-formed XML: %v", err)
	} else {
		switch format {
		case models.FormatZUGFeRD:
			validateZUGFeRD(c, root)
		case models.FormatXRechnung:
			validateXRechnung(c, root, cfg)
		default:
			c.errorf("unsupported format %q", format)
		}
	}

	return Result{
		Format:   format,
		IsValid:  len(c.errors) == 0,
		Errors:   lo.Ternary(c.errors == nil, []string{}, c.errors),
		Warnings: lo.Ternary(c.warnings == nil, []string{}, c.warnings),
	}
}

func validateZUGFeRD(c *collector, root *node) {
	if root.Name != "CrossIndustryInvoice" {
		c.errorf("root element must be CrossIndustryInvoice, found %s", root.Name)
		return
	}

	if root.text("ExchangedDocumentContext", "GuidelineSpecifiedDocumentContextParameter", "ID") == "" {
		c.warnf("guideline parameter (GuidelineSpecifiedDocumentContextParameter) is missing")
	}

	doc := root.child("ExchangedDocument")
	if doc == nil {
		c.errorf("ExchangedDocument is missing")
	} else {
		c.require(doc.text("ID"), "invoice number (ExchangedDocument/ID)")
		c.require(doc.text("TypeCode"), "document type code (TypeCode)")
		c.require(doc.text("IssueDateTime", "DateTimeString"), "issue date (IssueDateTime)")
	}

	tx := root.child("SupplyChainTradeTransaction")
	agreement := tx.child("ApplicableHeaderTradeAgreement")
	settlement := tx.child("ApplicableHeaderTradeSettlement")

	checkCIIParty(c, "seller", agreement.child("SellerTradeParty"), true)
	checkCIIParty(c, "buyer", agreement.child("BuyerTradeParty"), false)
	checkCurrency(c, settlement.text("InvoiceCurrencyCode"), "InvoiceCurrencyCode")

	sum := settlement.child("SpecifiedTradeSettlementHeaderMonetarySummation")
	net, netOK := amount(c, sum.text("TaxBasisTotalAmount"), "net total (TaxBasisTotalAmount)")
	tax, taxOK := amount(c, sum.text("TaxTotalAmount"), "tax total (TaxTotalAmount)")
	gross, grossOK := amount(c, sum.text("GrandTotalAmount"), "gross total (GrandTotalAmount)")
	if netOK && taxOK && grossOK {
		checkTotals(c, net, tax, gross)
	}

	lineTotals := lo.Map(tx.children("IncludedSupplyChainTradeLineItem"), func(n *node, _ int) string {
		return n.text("SpecifiedLineTradeSettlement", "SpecifiedTradeSettlementLineMonetarySummation", "LineTotalAmount")
	})
	if netOK {
		checkLineSum(c, lineTotals, net)
	}
	if netOK && taxOK {
		checkTaxRate(c, net, tax, settlement.text("ApplicableTradeTax", "RateApplicablePercent"))
	}

	if settlement.child("SpecifiedTradePaymentTerms") == nil {
		c.warnf("payment terms (SpecifiedTradePaymentTerms) are missing")
	}
}

func checkCIIParty(c *collector, role string, party *node, requireVAT bool) {
	if party == nil {
		c.errorf("%s party is missing", role)
		return
	}
	c.require(party.text("Name"), role+" name")

	addr := party.child("PostalTradeAddress")
	var missing []string
	if addr.text("PostcodeCode") == "" {
		missing = append(missing, "postcode")
	}
	if addr.text("CityName") == "" {
		missing = append(missing, "city")
	}
	if addr.text("CountryID") == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		c.errorf("%s address is incomplete: missing %s", role, strings.Join(missing, ", "))
	}

	if requireVAT {
		_, ok := lo.Find(party.children("SpecifiedTaxRegistration"), func(r *node) bool {
			id := r.child("ID")
			return id.attr("schemeID") == "VA" && id.Text != ""
		})
		if !ok {
			c.errorf("%s VAT identification number (SpecifiedTaxRegistration schemeID VA) is missing", role)
		}
	}
}

func validateXRechnung(c *collector, root *node, cfg validateConfig) {
	if root.Name != "Invoice" || root.Space != nsUBLInvoice {
		c.errorf("root element must be the UBL Invoice-2 document, found %s", root.Name)
		return
	}

	customization := root.text("CustomizationID")
	switch {
	case customization == "":
		c.errorf("specification identifier (CustomizationID) is missing")
	case !strings.Contains(customization, "xrechnung"):
		c.errorf("CustomizationID %q does not declare XRechnung", customization)
	}
	c.require(root.text("ProfileID"), "business process type (ProfileID)")
	c.require(root.text("ID"), "invoice number (ID)")
	c.require(root.text("IssueDate"), "issue date (IssueDate)")
	c.require(root.text("InvoiceTypeCode"), "invoice type code (InvoiceTypeCode)")
	checkCurrency(c, root.text("DocumentCurrencyCode"), "DocumentCurrencyCode")

	checkUBLParty(c, "seller", root.find("AccountingSupplierParty", "Party"), true)
	customer := root.find("AccountingCustomerParty", "Party")
	checkUBLParty(c, "buyer", customer, false)

	buyerRef := root.text("BuyerReference")
	var leitweg string
	if ep := customer.child("EndpointID"); ep.attr("schemeID") == LeitwegScheme {
		leitweg = ep.Text
	}
	if buyerRef == "" && leitweg == "" {
		c.errorf("buyer reference (BuyerReference) or Leitweg-ID is required")
	}
	if cfg.publicSector && leitweg == "" {
		c.errorf("Leitweg-ID (buyer EndpointID scheme %s) is required for public-sector buyers", LeitwegScheme)
	}

	totals := root.child("LegalMonetaryTotal")
	net, netOK := amount(c, totals.text("TaxExclusiveAmount"), "net total (TaxExclusiveAmount)")
	tax, taxOK := amount(c, root.text("TaxTotal", "TaxAmount"), "tax total (TaxTotal/TaxAmount)")
	gross, grossOK := amount(c, totals.text("TaxInclusiveAmount"), "gross total (TaxInclusiveAmount)")
	amount(c, totals.text("PayableAmount"), "payable amount (PayableAmount)")
	if netOK && taxOK && grossOK {
		checkTotals(c, net, tax, gross)
	}

	lineTotals := lo.Map(root.children("InvoiceLine"), func(n *node, _ int) string {
		return n.text("LineExtensionAmount")
	})
	if netOK {
		checkLineSum(c, lineTotals, net)
	}
	if netOK && taxOK {
		checkTaxRate(c, net, tax, root.text("TaxTotal", "TaxSubtotal", "TaxCategory", "Percent"))
	}

	if strings.TrimSpace(root.text("PaymentTerms", "Note")) == "" && root.text("DueDate") == "" {
		c.warnf("payment terms (PaymentTerms or DueDate) are missing")
	}
}

func checkUBLParty(c *collector, role string, party *node, requireVAT bool) {
	if party == nil {
		c.errorf("%s party is missing", role)
		return
	}
	name := lo.CoalesceOrEmpty(party.text("PartyName", "Name"), party.text("PartyLegalEntity", "RegistrationName"))
	c.require(name, role+" name")

	addr := party.child("PostalAddress")
	var missing []string
	if addr.text("PostalZone") == "" {
		missing = append(missing, "postcode")
	}
	if addr.text("CityName") == "" {
		missing = append(missing, "city")
	}
	if addr.text("Country", "IdentificationCode") == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		c.errorf("%s address is incomplete: missing %s", role, strings.Join(missing, ", "))
	}

	if requireVAT && party.text("PartyTaxScheme", "CompanyID") == "" {
		c.errorf("%s VAT identification number (PartyTaxScheme/CompanyID) is missing", role)
	}
}

func checkCurrency(c *collector, code, label string) {
	switch {
	case code == "":
		c.errorf("currency code (%s) is missing", label)
	case !currencyCode.MatchString(code):
		c.errorf("currency code %q (%s) is not an ISO 4217 code", code, label)
	}
}

func amount(c *collector, raw, label string) (decimal.Decimal, bool) {
	if raw == "" {
		c.errorf("%s is missing", label)
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		c.errorf("%s %q is not a valid amount", label, raw)
		return decimal.Zero, false
	}
	if d.IsNegative() {
		c.errorf("%s must not be negative, got %s", label, raw)
		return d, false
	}
	return d, true
}

func checkTotals(c *collector, net, tax, gross decimal.Decimal) {
	if net.Add(tax).Sub(gross).Abs().GreaterThan(tolerance) {
		c.errorf("net total %s plus tax %s does not equal gross total %s",
			net.StringFixed(2), tax.StringFixed(2), gross.StringFixed(2))
	}
}

func checkLineSum(c *collector, lineTotals []string, net decimal.Decimal) {
	if len(lineTotals) == 0 {
		c.warnf("document has no line items")
		return
	}
	sum := decimal.Zero
	for i, raw := range lineTotals {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			c.warnf("line %d total %q is not a valid amount", i+1, raw)
			return
		}
		sum = sum.Add(d)
	}
	if sum.Sub(net).Abs().GreaterThan(tolerance) {
		c.warnf("sum of line totals %s differs from net total %s", sum.StringFixed(2), net.StringFixed(2))
	}
}

func checkTaxRate(c *collector, net, tax decimal.Decimal, rawRate string) {
	if rawRate == "" {
		c.warnf("tax rate is missing")
		return
	}
	rate, err := decimal.NewFromString(rawRate)
	if err != nil {
		c.warnf("tax rate %q is not a number", rawRate)
		return
	}
	expected := net.Mul(rate).Div(hundred).Round(2)
	if expected.Sub(tax).Abs().GreaterThan(tolerance) {
		c.warnf("tax total %s differs from net total x %s%% = %s",
			tax.StringFixed(2), rate.String(), expected.StringFixed(2))
	}
}
