package einvoice

import (
	"encoding/xml"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"taxkit/pkg/models"
)

// UN/CEFACT Cross Industry Invoice namespaces.
const (
	nsRSM = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	nsRAM = "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	nsUDT = "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100"
	nsQDT = "urn:un:unece:uncefact:data:standard:QualifiedDataType:100"
)

const (
	invoiceTypeCode = "380"
	dateFormat102   = "102"
	layout102       = "20060102"
	layoutISODate   = "2006-01-02"
)

type ciiInvoice struct {
	XMLName  xml.Name `xml:"rsm:CrossIndustryInvoice"`
	XmlnsRSM string   `xml:"xmlns:rsm,attr"`
	XmlnsRAM string   `xml:"xmlns:ram,attr"`
	XmlnsUDT string   `xml:"xmlns:udt,attr"`
	XmlnsQDT string   `xml:"xmlns:qdt,attr"`

	Context     ciiContext     `xml:"rsm:ExchangedDocumentContext"`
	Document    ciiDocument    `xml:"rsm:ExchangedDocument"`
	Transaction ciiTransaction `xml:"rsm:SupplyChainTradeTransaction"`
}

type ciiContext struct {
	BusinessProcessID string `xml:"ram:BusinessProcessSpecifiedDocumentContextParameter>ram:ID,omitempty"`
	GuidelineID       string `xml:"ram:GuidelineSpecifiedDocumentContextParameter>ram:ID"`
}

type ciiDocument struct {
	ID            string      `xml:"ram:ID"`
	TypeCode      string      `xml:"ram:TypeCode"`
	IssueDateTime ciiDateTime `xml:"ram:IssueDateTime"`
	Note          string      `xml:"ram:IncludedNote>ram:Content,omitempty"`
}

type ciiDateTime struct {
	Value ciiDateString `xml:"udt:DateTimeString"`
}

type ciiDateString struct {
	Format string `xml:"format,attr"`
	Value  string `xml:",chardata"`
}

type ciiTransaction struct {
	Lines      []ciiLineItem `xml:"ram:IncludedSupplyChainTradeLineItem"`
	Agreement  ciiAgreement  `xml:"ram:ApplicableHeaderTradeAgreement"`
	Delivery   ciiDelivery   `xml:"ram:ApplicableHeaderTradeDelivery"`
	Settlement ciiSettlement `xml:"ram:ApplicableHeaderTradeSettlement"`
}

type ciiLineItem struct {
	LineID      string         `xml:"ram:AssociatedDocumentLineDocument>ram:LineID"`
	ProductName string         `xml:"ram:SpecifiedTradeProduct>ram:Name"`
	NetPrice    string         `xml:"ram:SpecifiedLineTradeAgreement>ram:NetPriceProductTradePrice>ram:ChargeAmount"`
	Quantity    ciiQuantity    `xml:"ram:SpecifiedLineTradeDelivery>ram:BilledQuantity"`
	Settlement  ciiLineSettles `xml:"ram:SpecifiedLineTradeSettlement"`
}

type ciiQuantity struct {
	UnitCode string `xml:"unitCode,attr"`
	Value    string `xml:",chardata"`
}

type ciiLineSettles struct {
	Tax       ciiLineTax `xml:"ram:ApplicableTradeTax"`
	LineTotal string     `xml:"ram:SpecifiedTradeSettlementLineMonetarySummation>ram:LineTotalAmount"`
}

type ciiLineTax struct {
	TypeCode     string `xml:"ram:TypeCode"`
	CategoryCode string `xml:"ram:CategoryCode"`
	RatePercent  string `xml:"ram:RateApplicablePercent"`
}

type ciiAgreement struct {
	BuyerReference string       `xml:"ram:BuyerReference,omitempty"`
	Seller         ciiTradePart `xml:"ram:SellerTradeParty"`
	Buyer          ciiTradePart `xml:"ram:BuyerTradeParty"`
}

type ciiTradePart struct {
	Name          string           `xml:"ram:Name"`
	Address       ciiAddress       `xml:"ram:PostalTradeAddress"`
	Email         *ciiSchemeID     `xml:"ram:URIUniversalCommunication>ram:URIID,omitempty"`
	Registrations []ciiTaxRegister `xml:"ram:SpecifiedTaxRegistration"`
}

type ciiAddress struct {
	PostcodeCode string `xml:"ram:PostcodeCode,omitempty"`
	LineOne      string `xml:"ram:LineOne,omitempty"`
	CityName     string `xml:"ram:CityName,omitempty"`
	CountryID    string `xml:"ram:CountryID"`
}

type ciiSchemeID struct {
	SchemeID string `xml:"schemeID,attr"`
	Value    string `xml:",chardata"`
}

type ciiTaxRegister struct {
	ID ciiSchemeID `xml:"ram:ID"`
}

type ciiDelivery struct {
	Occurrence ciiDateTime `xml:"ram:ActualDeliverySupplyChainEvent>ram:OccurrenceDateTime"`
}

type ciiSettlement struct {
	PaymentReference string             `xml:"ram:PaymentReference,omitempty"`
	CurrencyCode     string             `xml:"ram:InvoiceCurrencyCode"`
	Tax              ciiHeaderTax       `xml:"ram:ApplicableTradeTax"`
	PaymentTerms     *ciiPaymentTerms   `xml:"ram:SpecifiedTradePaymentTerms,omitempty"`
	Summation        ciiMonetarySummary `xml:"ram:SpecifiedTradeSettlementHeaderMonetarySummation"`
}

type ciiHeaderTax struct {
	CalculatedAmount string `xml:"ram:CalculatedAmount"`
	TypeCode         string `xml:"ram:TypeCode"`
	BasisAmount      string `xml:"ram:BasisAmount"`
	CategoryCode     string `xml:"ram:CategoryCode"`
	RatePercent      string `xml:"ram:RateApplicablePercent"`
}

type ciiPaymentTerms struct {
	DueDate ciiDateTime `xml:"ram:DueDateDateTime"`
}

type ciiMonetarySummary struct {
	LineTotal     string       `xml:"ram:LineTotalAmount"`
	TaxBasisTotal string       `xml:"ram:TaxBasisTotalAmount"`
	TaxTotal      ciiAmountCur `xml:"ram:TaxTotalAmount"`
	GrandTotal    string       `xml:"ram:GrandTotalAmount"`
	TotalPrepaid  string       `xml:"ram:TotalPrepaidAmount"`
	DuePayable    string       `xml:"ram:DuePayableAmount"`
}

type ciiAmountCur struct {
	CurrencyID string `xml:"currencyID,attr"`
	Value      string `xml:",chardata"`
}

// ZUGFeRDGenerator renders the CII syntax used by ZUGFeRD 2.x / Factur-X.
type ZUGFeRDGenerator struct {
	meta ZUGFeRDMetadata
}

// NewZUGFeRDGenerator creates a generator for the given profile metadata.
func NewZUGFeRDGenerator(meta ZUGFeRDMetadata) (*ZUGFeRDGenerator, error) {
	if err := meta.validate(); err != nil {
		return nil, err
	}
	return &ZUGFeRDGenerator{meta: meta}, nil
}

// Format implements Generator.
func (g *ZUGFeRDGenerator) Format() models.EInvoiceFormat { return models.FormatZUGFeRD }

// Standard implements Generator.
func (g *ZUGFeRDGenerator) Standard() models.Standard {
	return models.Standard(g.meta.ConformanceLevel)
}

// Generate implements Generator.
func (g *ZUGFeRDGenerator) Generate(m *Model) ([]byte, error) {
	const op = "ZUGFeRDGenerator.Generate"
	if m == nil {
		return nil, &MappingError{Op: op, Err: ErrInvalidSource, Details: "model is nil"}
	}
	return render(op, g.document(m))
}

func (g *ZUGFeRDGenerator) document(m *Model) *ciiInvoice {
	category := m.TaxCategory()
	rate := percent(m.VATRate)

	lines := lo.Map(m.Lines, func(l LineItem, i int) ciiLineItem {
		return ciiLineItem{
			LineID:      lineID(i),
			ProductName: l.Description,
			NetPrice:    money(l.UnitPrice),
			Quantity:    ciiQuantity{UnitCode: l.UnitCode, Value: quantity(l.Quantity)},
			Settlement: ciiLineSettles{
				Tax:       ciiLineTax{TypeCode: "VAT", CategoryCode: category, RatePercent: rate},
				LineTotal: money(l.LineTotal),
			},
		}
	})

	doc := &ciiInvoice{
		XmlnsRSM: nsRSM,
		XmlnsRAM: nsRAM,
		XmlnsUDT: nsUDT,
		XmlnsQDT: nsQDT,
		Context: ciiContext{
			BusinessProcessID: g.meta.SpecificationID,
			GuidelineID:       g.meta.Guideline,
		},
		Document: ciiDocument{
			ID:            m.InvoiceNumber,
			TypeCode:      invoiceTypeCode,
			IssueDateTime: dateTime102(m.IssueDate.Format(layout102)),
			Note:          m.Note,
		},
		Transaction: ciiTransaction{
			Lines: lines,
			Agreement: ciiAgreement{
				BuyerReference: lo.CoalesceOrEmpty(m.Buyer.BuyerReference, m.Buyer.LeitwegID),
				Seller:         tradeParty(m.Seller),
				Buyer:          tradeParty(m.Buyer),
			},
			Delivery: ciiDelivery{Occurrence: dateTime102(m.IssueDate.Format(layout102))},
			Settlement: ciiSettlement{
				PaymentReference: m.InvoiceNumber,
				CurrencyCode:     m.Currency,
				Tax: ciiHeaderTax{
					CalculatedAmount: money(m.TaxTotal),
					TypeCode:         "VAT",
					BasisAmount:      money(m.NetTotal),
					CategoryCode:     category,
					RatePercent:      rate,
				},
				Summation: ciiMonetarySummary{
					LineTotal:     money(m.NetTotal),
					TaxBasisTotal: money(m.NetTotal),
					TaxTotal:      ciiAmountCur{CurrencyID: m.Currency, Value: money(m.TaxTotal)},
					GrandTotal:    money(m.GrossTotal),
					TotalPrepaid:  money(decimal.Zero),
					DuePayable:    money(m.GrossTotal),
				},
			},
		},
	}

	if !m.DueDate.IsZero() {
		doc.Transaction.Settlement.PaymentTerms = &ciiPaymentTerms{
			DueDate: dateTime102(m.DueDate.Format(layout102)),
		}
	}
	return doc
}

func tradeParty(p Party) ciiTradePart {
	tp := ciiTradePart{
		Name: p.Name,
		Address: ciiAddress{
			PostcodeCode: p.Address.PostCode,
			LineOne:      p.Address.Street,
			CityName:     p.Address.City,
			CountryID:    lo.CoalesceOrEmpty(p.Address.Country, "DE"),
		},
	}
	if p.Email != "" {
		tp.Email = &ciiSchemeID{SchemeID: "EM", Value: p.Email}
	}
	if p.TaxNumber != "" {
		tp.Registrations = append(tp.Registrations, ciiTaxRegister{ID: ciiSchemeID{SchemeID: "FC", Value: p.TaxNumber}})
	}
	if p.VATID != "" {
		tp.Registrations = append(tp.Registrations, ciiTaxRegister{ID: ciiSchemeID{SchemeID: "VA", Value: p.VATID}})
	}
	return tp
}

func dateTime102(s string) ciiDateTime {
	return ciiDateTime{Value: ciiDateString{Format: dateFormat102, Value: s}}
}
