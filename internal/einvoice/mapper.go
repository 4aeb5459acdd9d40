package einvoice

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
)

// DefaultPaymentTermDays is applied when an invoice has no due date.
const DefaultPaymentTermDays = 14

// Mapper turns stored invoices into canonical models.
type Mapper struct {
	validate *validator.Validate
	log      zerolog.Logger
}

// NewMapper creates a mapper.
func NewMapper() *Mapper {
	return &Mapper{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.WithComponent("einvoice-mapper"),
	}
}

// Map builds the canonical model of inv issued by company.
//
// Invoices stored without positions get exactly one synthesized line over the
// net total so generation never fails for legacy data. The model is flagged
// with SynthesizedLine and the event is logged.
func (m *Mapper) Map(inv *models.Invoice, company models.CompanyProfile) (*Model, error) {
	const op = "Map"

	if inv == nil {
		return nil, &MappingError{Op: op, Err: ErrInvalidSource, Details: "invoice is nil"}
	}
	if err := m.check(inv, company); err != nil {
		return nil, &MappingError{Op: op, InvoiceID: inv.ID, Err: ErrInvalidSource, Details: err.Error()}
	}
	if inv.IssueDate.IsZero() {
		return nil, &MappingError{Op: op, InvoiceID: inv.ID, Err: ErrInvalidSource, Details: "issue date is required"}
	}

	issue := truncateDay(inv.IssueDate.Time)
	due := truncateDay(inv.DueDate.Time)
	if inv.DueDate.IsZero() {
		due = issue.AddDate(0, 0, DefaultPaymentTermDays)
	}

	net, tax, gross := resolveTotals(inv)

	model := &Model{
		InvoiceID:     inv.ID,
		InvoiceNumber: strings.TrimSpace(inv.InvoiceNumber),
		IssueDate:     issue,
		DueDate:       due,
		Currency:      normalizeCurrency(inv.Currency),
		Seller: Party{
			Name:      company.Name,
			Address:   models.ParseAddress(company.Address),
			VATID:     strings.TrimSpace(company.VATID),
			TaxNumber: strings.TrimSpace(company.TaxNumber),
			Email:     company.Email,
		},
		Buyer: Party{
			Name:           strings.TrimSpace(inv.CustomerName),
			Address:        models.ParseAddress(inv.CustomerAddress),
			VATID:          strings.TrimSpace(inv.CustomerVATID),
			Email:          inv.CustomerEmail,
			BuyerReference: strings.TrimSpace(inv.BuyerReference),
			LeitwegID:      strings.TrimSpace(inv.LeitwegID),
			PublicSector:   inv.PublicSector,
		},
		NetTotal:   net,
		TaxTotal:   tax,
		GrossTotal: gross,
		VATRate:    inv.VATRate,
		Note:       strings.TrimSpace(inv.Description),
	}

	if model.InvoiceID == "" {
		model.InvoiceID = model.InvoiceNumber
	}

	if len(inv.Items) == 0 {
		model.Lines = []LineItem{{
			Description: lo.Ternary(model.Note != "", model.Note, SynthesizedLineDescription),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   net,
			LineTotal:   net,
			UnitCode:    DefaultUnitCode,
		}}
		model.SynthesizedLine = true

		m.log.Warn().
			Str("invoice_id", model.InvoiceID).
			Str("invoice_number", model.InvoiceNumber).
			Str("net_total", net.StringFixed(2)).
			Msg("Invoice has no line items, synthesized a single position from the net total")
	} else {
		model.Lines = lo.Map(inv.Items, func(item models.InvoiceItem, _ int) LineItem {
			return mapItem(item)
		})
	}

	m.log.Debug().
		Str("invoice_id", model.InvoiceID).
		Int("lines", len(model.Lines)).
		Str("gross_total", gross.StringFixed(2)).
		Msg("Mapped invoice to canonical model")

	return model, nil
}

func (m *Mapper) check(inv *models.Invoice, company models.CompanyProfile) error {
	var problems []string
	for _, target := range []any{inv, company} {
		err := m.validate.Struct(target)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, ", "))
	}
	return nil
}

// resolveTotals fills a missing gross or net total from the other two figures.
func resolveTotals(inv *models.Invoice) (net, tax, gross decimal.Decimal) {
	net, tax, gross = inv.Amount, inv.Tax, inv.Total
	switch {
	case gross.IsZero() && !net.IsZero():
		gross = net.Add(tax)
	case net.IsZero() && !gross.IsZero():
		net = gross.Sub(tax)
	}
	return net, tax, gross
}

func mapItem(item models.InvoiceItem) LineItem {
	qty := item.Quantity
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	total := item.Total
	if total.IsZero() {
		total = qty.Mul(item.UnitPrice).Round(2)
	}
	unitPrice := item.UnitPrice
	if unitPrice.IsZero() && !total.IsZero() {
		unitPrice = total.Div(qty).Round(2)
	}
	unit := strings.TrimSpace(item.Unit)
	if unit == "" {
		unit = DefaultUnitCode
	}
	return LineItem{
		Description: strings.TrimSpace(item.Description),
		Quantity:    qty,
		UnitPrice:   unitPrice,
		LineTotal:   total,
		UnitCode:    unit,
	}
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// normalizeCurrency standardizes currency codes to consistent format
func normalizeCurrency(currency string) string {
	normalized := strings.ToUpper(strings.TrimSpace(currency))

	switch normalized {
	case "", "€", "EURO", "EUROS", "EUR":
		return "EUR"
	case "$", "DOLLAR", "DOLLARS", "USD", "US$":
		return "USD"
	case "£", "POUND", "POUNDS", "GBP":
		return "GBP"
	case "CHF", "FRANKEN", "SWISS FRANC":
		return "CHF"
	default:
		if len(normalized) == 3 {
			return normalized
		}
		return "EUR"
	}
}
