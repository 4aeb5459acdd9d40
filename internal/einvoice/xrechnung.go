package einvoice

import (
	"encoding/xml"
	"fmt"

	"github.com/samber/lo"
	"taxkit/pkg/models"
)

// UBL 2.1 invoice namespaces.
const (
	nsUBLInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCAC        = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	nsCBC        = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
)

// LeitwegScheme is the EAS code of the German public-sector routing identifier.
const LeitwegScheme = "0204"

// paymentMeansCredit is the UNTDID 4461 code for SEPA credit transfer.
const paymentMeansCredit = "58"

type ublInvoice struct {
	XMLName  xml.Name `xml:"Invoice"`
	Xmlns    string   `xml:"xmlns,attr"`
	XmlnsCAC string   `xml:"xmlns:cac,attr"`
	XmlnsCBC string   `xml:"xmlns:cbc,attr"`

	CustomizationID      string `xml:"cbc:CustomizationID"`
	ProfileID            string `xml:"cbc:ProfileID"`
	ID                   string `xml:"cbc:ID"`
	IssueDate            string `xml:"cbc:IssueDate"`
	DueDate              string `xml:"cbc:DueDate,omitempty"`
	InvoiceTypeCode      string `xml:"cbc:InvoiceTypeCode"`
	Note                 string `xml:"cbc:Note,omitempty"`
	DocumentCurrencyCode string `xml:"cbc:DocumentCurrencyCode"`
	BuyerReference       string `xml:"cbc:BuyerReference,omitempty"`

	Supplier ublParty `xml:"cac:AccountingSupplierParty>cac:Party"`
	Customer ublParty `xml:"cac:AccountingCustomerParty>cac:Party"`

	PaymentMeans ublPaymentMeans  `xml:"cac:PaymentMeans"`
	PaymentTerms *ublPaymentTerms `xml:"cac:PaymentTerms,omitempty"`
	TaxTotal     ublTaxTotal      `xml:"cac:TaxTotal"`
	Monetary     ublMonetaryTotal `xml:"cac:LegalMonetaryTotal"`
	Lines        []ublInvoiceLine `xml:"cac:InvoiceLine"`
}

type ublPaymentTerms struct {
	Note string `xml:"cbc:Note"`
}

type ublParty struct {
	EndpointID *ublIdentifier  `xml:"cbc:EndpointID,omitempty"`
	Name       string          `xml:"cac:PartyName>cbc:Name"`
	Address    ublAddress      `xml:"cac:PostalAddress"`
	TaxScheme  *ublPartyTax    `xml:"cac:PartyTaxScheme,omitempty"`
	Legal      ublLegalEntity  `xml:"cac:PartyLegalEntity"`
	Contact    *ublContactInfo `xml:"cac:Contact,omitempty"`
}

type ublIdentifier struct {
	SchemeID string `xml:"schemeID,attr"`
	Value    string `xml:",chardata"`
}

type ublAddress struct {
	StreetName  string `xml:"cbc:StreetName,omitempty"`
	CityName    string `xml:"cbc:CityName,omitempty"`
	PostalZone  string `xml:"cbc:PostalZone,omitempty"`
	CountryCode string `xml:"cac:Country>cbc:IdentificationCode"`
}

type ublPartyTax struct {
	CompanyID string `xml:"cbc:CompanyID"`
	TaxScheme string `xml:"cac:TaxScheme>cbc:ID"`
}

type ublLegalEntity struct {
	RegistrationName string `xml:"cbc:RegistrationName"`
}

type ublContactInfo struct {
	Email string `xml:"cbc:ElectronicMail"`
}

type ublPaymentMeans struct {
	Code      string `xml:"cbc:PaymentMeansCode"`
	PaymentID string `xml:"cbc:PaymentID,omitempty"`
}

type ublAmount struct {
	CurrencyID string `xml:"currencyID,attr"`
	Value      string `xml:",chardata"`
}

type ublTaxTotal struct {
	TaxAmount ublAmount      `xml:"cbc:TaxAmount"`
	Subtotal  ublTaxSubtotal `xml:"cac:TaxSubtotal"`
}

type ublTaxSubtotal struct {
	TaxableAmount ublAmount      `xml:"cbc:TaxableAmount"`
	TaxAmount     ublAmount      `xml:"cbc:TaxAmount"`
	Category      ublTaxCategory `xml:"cac:TaxCategory"`
}

type ublTaxCategory struct {
	ID        string `xml:"cbc:ID"`
	Percent   string `xml:"cbc:Percent"`
	TaxScheme string `xml:"cac:TaxScheme>cbc:ID"`
}

type ublMonetaryTotal struct {
	LineExtensionAmount ublAmount `xml:"cbc:LineExtensionAmount"`
	TaxExclusiveAmount  ublAmount `xml:"cbc:TaxExclusiveAmount"`
	TaxInclusiveAmount  ublAmount `xml:"cbc:TaxInclusiveAmount"`
	PayableAmount       ublAmount `xml:"cbc:PayableAmount"`
}

type ublInvoiceLine struct {
	ID                  string         `xml:"cbc:ID"`
	InvoicedQuantity    ublQuantity    `xml:"cbc:InvoicedQuantity"`
	LineExtensionAmount ublAmount      `xml:"cbc:LineExtensionAmount"`
	ItemName            string         `xml:"cac:Item>cbc:Name"`
	ItemTaxCategory     ublTaxCategory `xml:"cac:Item>cac:ClassifiedTaxCategory"`
	PriceAmount         ublAmount      `xml:"cac:Price>cbc:PriceAmount"`
}

type ublQuantity struct {
	UnitCode string `xml:"unitCode,attr"`
	Value    string `xml:",chardata"`
}

// XRechnungGenerator renders XRechnung 3.0 in the UBL syntax.
type XRechnungGenerator struct {
	meta XRechnungMetadata
}

// NewXRechnungGenerator creates a generator. The business process type is
// mandatory; routing identifiers are optional and never fail generation.
func NewXRechnungGenerator(meta XRechnungMetadata) (*XRechnungGenerator, error) {
	if err := meta.validate(); err != nil {
		return nil, err
	}
	return &XRechnungGenerator{meta: meta}, nil
}

// Format implements Generator.
func (g *XRechnungGenerator) Format() models.EInvoiceFormat { return models.FormatXRechnung }

// Standard implements Generator.
func (g *XRechnungGenerator) Standard() models.Standard { return models.StandardEN16931 }

// Generate implements Generator.
func (g *XRechnungGenerator) Generate(m *Model) ([]byte, error) {
	const op = "XRechnungGenerator.Generate"
	if m == nil {
		return nil, &MappingError{Op: op, Err: ErrInvalidSource, Details: "model is nil"}
	}
	return render(op, g.document(m))
}

func (g *XRechnungGenerator) document(m *Model) *ublInvoice {
	cur := m.Currency
	amount := func(v string) ublAmount { return ublAmount{CurrencyID: cur, Value: v} }
	category := ublTaxCategory{ID: m.TaxCategory(), Percent: percent(m.VATRate), TaxScheme: "VAT"}

	leitweg := lo.CoalesceOrEmpty(g.meta.LeitwegID, m.Buyer.LeitwegID)
	buyerRef := lo.CoalesceOrEmpty(g.meta.BuyerReference, m.Buyer.BuyerReference, leitweg)

	customer := ublPartyOf(m.Buyer)
	if leitweg != "" {
		customer.EndpointID = &ublIdentifier{SchemeID: LeitwegScheme, Value: leitweg}
	}

	doc := &ublInvoice{
		Xmlns:                nsUBLInvoice,
		XmlnsCAC:             nsCAC,
		XmlnsCBC:             nsCBC,
		CustomizationID:      XRechnungSpecificationID,
		ProfileID:            g.meta.BusinessProcessType,
		ID:                   m.InvoiceNumber,
		IssueDate:            m.IssueDate.Format(layoutISODate),
		InvoiceTypeCode:      invoiceTypeCode,
		Note:                 lo.CoalesceOrEmpty(g.meta.ProcessingNote, m.Note),
		DocumentCurrencyCode: cur,
		BuyerReference:       buyerRef,
		Supplier:             ublPartyOf(m.Seller),
		Customer:             customer,
		PaymentMeans:         ublPaymentMeans{Code: paymentMeansCredit, PaymentID: m.InvoiceNumber},
		TaxTotal: ublTaxTotal{
			TaxAmount: amount(money(m.TaxTotal)),
			Subtotal: ublTaxSubtotal{
				TaxableAmount: amount(money(m.NetTotal)),
				TaxAmount:     amount(money(m.TaxTotal)),
				Category:      category,
			},
		},
		Monetary: ublMonetaryTotal{
			LineExtensionAmount: amount(money(m.NetTotal)),
			TaxExclusiveAmount:  amount(money(m.NetTotal)),
			TaxInclusiveAmount:  amount(money(m.GrossTotal)),
			PayableAmount:       amount(money(m.GrossTotal)),
		},
		Lines: lo.Map(m.Lines, func(l LineItem, i int) ublInvoiceLine {
			return ublInvoiceLine{
				ID:                  lineID(i),
				InvoicedQuantity:    ublQuantity{UnitCode: l.UnitCode, Value: quantity(l.Quantity)},
				LineExtensionAmount: amount(money(l.LineTotal)),
				ItemName:            l.Description,
				ItemTaxCategory:     category,
				PriceAmount:         amount(money(l.UnitPrice)),
			}
		}),
	}

	if !m.DueDate.IsZero() {
		doc.DueDate = m.DueDate.Format(layoutISODate)
		doc.PaymentTerms = &ublPaymentTerms{
			Note: fmt.Sprintf("Zahlbar bis %s ohne Abzug", m.DueDate.Format("02.01.2006")),
		}
	}
	return doc
}

func ublPartyOf(p Party) ublParty {
	party := ublParty{
		Name: p.Name,
		Address: ublAddress{
			StreetName:  p.Address.Street,
			CityName:    p.Address.City,
			PostalZone:  p.Address.PostCode,
			CountryCode: lo.CoalesceOrEmpty(p.Address.Country, "DE"),
		},
		Legal: ublLegalEntity{RegistrationName: p.Name},
	}
	if p.Email != "" {
		party.EndpointID = &ublIdentifier{SchemeID: "EM", Value: p.Email}
		party.Contact = &ublContactInfo{Email: p.Email}
	}
	if p.VATID != "" {
		party.TaxScheme = &ublPartyTax{CompanyID: p.VATID, TaxScheme: "VAT"}
	}
	return party
}
