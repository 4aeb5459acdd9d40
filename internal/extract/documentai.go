// Package extract reads outgoing invoices from PDF files with Google Document
// AI so that an e-invoice can be generated for invoices written elsewhere.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
)

const (
	// MaxDocumentSizeBytes is the maximum document size for processing (20MB)
	MaxDocumentSizeBytes = 20 * 1024 * 1024

	defaultTimeout = 60 * time.Second
)

var (
	pdfMagic = []byte("%PDF")
	hundred  = decimal.NewFromInt(100)

	// invoice number patterns tried on the OCR text when the processor found none
	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:rechnungsnummer|rechnungsnr\.?|rg\.?\s?nr\.?)[\s:]*([A-Z0-9][A-Z0-9\-/.]{3,19})`),
		regexp.MustCompile(`(?i)(?:invoice|inv)\s*(?:no|nr|number)\.?[\s:]*([A-Z0-9][A-Z0-9\-/.]{3,19})`),
		regexp.MustCompile(`\b(RE-?\d{4}-\d{2,6})\b`),
	}
)

// Config selects the Document AI invoice processor.
type Config struct {
	ProjectID        string
	Location         string // "us" or "eu"
	ProcessorID      string
	ProcessorVersion string
	CredentialsFile  string
	Timeout          time.Duration
}

// Processor is the subset of the Document AI client used here.
type Processor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// Extraction is the outcome of one PDF.
type Extraction struct {
	Invoice *models.Invoice
	// Confidence per Document AI entity type
	Confidence map[string]float32
}

// Extractor turns invoice PDFs into models.Invoice values.
type Extractor struct {
	client Processor
	config Config
	log    zerolog.Logger
}

// NewExtractor connects to Document AI. Credentials come from
// cfg.CredentialsFile or the default Google credential chain.
func NewExtractor(ctx context.Context, cfg Config) (*Extractor, error) {
	const op = "NewExtractor"

	if cfg.ProjectID == "" {
		return nil, WrapExtractionError(op, ErrInvalidConfiguration, "project id is required")
	}
	if cfg.ProcessorID == "" {
		return nil, WrapExtractionError(op, ErrInvalidConfiguration, "processor id is required")
	}
	if cfg.Location == "" {
		cfg.Location = "eu"
	}

	var clientOptions []option.ClientOption
	if cfg.Location != "us" {
		clientOptions = append(clientOptions, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)))
	}
	if cfg.CredentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, WrapExtractionError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}

	return NewExtractorWithClient(cfg, client), nil
}

// NewExtractorWithClient creates an extractor on an existing client.
func NewExtractorWithClient(cfg Config, client Processor) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Extractor{
		client: client,
		config: cfg,
		log:    logger.WithComponent("document-ai"),
	}
}

// Close closes the underlying Document AI client.
func (e *Extractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ExtractInvoice processes one PDF.
func (e *Extractor) ExtractInvoice(ctx context.Context, pdf io.Reader) (*Extraction, error) {
	const op = "ExtractInvoice"

	pdfBytes, err := io.ReadAll(io.LimitReader(pdf, MaxDocumentSizeBytes+1))
	if err != nil {
		return nil, WrapExtractionError(op, err, "failed to read PDF data")
	}
	if len(pdfBytes) > MaxDocumentSizeBytes {
		return nil, WrapExtractionError(op, ErrDocumentTooLarge, fmt.Sprintf("more than %d bytes", MaxDocumentSizeBytes))
	}
	if !bytes.HasPrefix(pdfBytes, pdfMagic) {
		return nil, WrapExtractionError(op, ErrInvalidPDF, "missing PDF header")
	}

	processCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	resp, err := e.client.ProcessDocument(processCtx, &documentaipb.ProcessRequest{
		Name: e.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdfBytes,
				MimeType: "application/pdf",
			},
		},
	})
	if err != nil {
		return nil, e.handleProcessingError(op, err)
	}
	if resp.GetDocument() == nil {
		return nil, WrapExtractionError(op, ErrProcessingFailed, "no document in response")
	}

	extraction, err := e.extractInvoiceData(resp.GetDocument())
	if err != nil {
		return nil, WrapExtractionError(op, err, "failed to extract invoice data")
	}
	return extraction, nil
}

func (e *Extractor) processorName() string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		e.config.ProjectID, e.config.Location, e.config.ProcessorID)
	if e.config.ProcessorVersion != "" {
		name += "/processorVersions/" + e.config.ProcessorVersion
	}
	return name
}

// handleProcessingError converts Document AI errors to extraction errors.
func (e *Extractor) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PermissionDenied"), strings.Contains(errStr, "PERMISSION_DENIED"):
		return WrapExtractionError(op, ErrInvalidCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "ResourceExhausted"), strings.Contains(errStr, "QUOTA_EXCEEDED"):
		return WrapExtractionError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "NotFound"), strings.Contains(errStr, "NOT_FOUND"):
		return WrapExtractionError(op, ErrProcessorNotFound, fmt.Sprintf("processor not found: %s", e.config.ProcessorID))
	case strings.Contains(errStr, "InvalidArgument"), strings.Contains(errStr, "INVALID_ARGUMENT"):
		return WrapExtractionError(op, ErrInvalidPDF, "document format not supported or corrupted")
	case strings.Contains(errStr, "DeadlineExceeded"), strings.Contains(errStr, "context deadline exceeded"):
		return WrapExtractionError(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled"), strings.Contains(errStr, "context canceled"):
		return WrapExtractionError(op, context.Canceled, "processing was canceled")
	default:
		return WrapExtractionError(op, ErrProcessingFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// extractInvoiceData converts Document AI entities to an invoice. The PDF is
// an outgoing invoice, so the receiver is the buyer.
func (e *Extractor) extractInvoiceData(doc *documentaipb.Document) (*Extraction, error) {
	inv := &models.Invoice{}
	confidence := make(map[string]float32)

	for _, entity := range doc.GetEntities() {
		value := strings.TrimSpace(entity.GetMentionText())
		confidence[entity.GetType()] = entity.GetConfidence()

		e.log.Debug().
			Str("entity_type", entity.GetType()).
			Str("value", value).
			Float32("confidence", entity.GetConfidence()).
			Msg("Processing Document AI entity")

		switch entity.GetType() {
		case "invoice_id":
			inv.InvoiceNumber = value
		case "receiver_name":
			inv.CustomerName = value
		case "receiver_address":
			inv.CustomerAddress = value
		case "receiver_tax_id":
			inv.CustomerVATID = strings.ReplaceAll(value, " ", "")
		case "receiver_email":
			inv.CustomerEmail = value
		case "purchase_order":
			inv.BuyerReference = value
		case "invoice_date":
			e.setDate(entity, &inv.IssueDate)
		case "due_date":
			e.setDate(entity, &inv.DueDate)
		case "net_amount":
			e.setAmount(entity, &inv.Amount)
		case "total_tax_amount":
			e.setAmount(entity, &inv.Tax)
		case "total_amount":
			e.setAmount(entity, &inv.Total)
		case "currency":
			inv.Currency = value
		case "vat":
			for _, prop := range entity.GetProperties() {
				if prop.GetType() == "vat/tax_rate" {
					e.setAmount(prop, &inv.VATRate)
				}
			}
		case "line_item":
			if item, ok := e.lineItem(entity); ok {
				inv.Items = append(inv.Items, item)
			}
		}
	}

	if inv.InvoiceNumber == "" {
		if number := invoiceNumberFromText(doc.GetText()); number != "" {
			inv.InvoiceNumber = number
			confidence["invoice_number_fallback"] = 0.6
			e.log.Info().Str("fallback_number", number).Msg("Invoice number extracted from OCR text")
		}
	}
	if inv.InvoiceNumber == "" {
		return nil, fmt.Errorf("%w: invoice number", ErrMissingRequiredField)
	}
	if inv.CustomerName == "" {
		return nil, fmt.Errorf("%w: receiver name", ErrMissingRequiredField)
	}

	inv.ID = inv.InvoiceNumber
	calculateMissingAmounts(inv)

	e.log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("net_amount", inv.Amount.StringFixed(2)).
		Str("tax_amount", inv.Tax.StringFixed(2)).
		Str("gross_amount", inv.Total.StringFixed(2)).
		Int("items", len(inv.Items)).
		Msg("Document AI extraction completed")

	return &Extraction{Invoice: inv, Confidence: confidence}, nil
}

func (e *Extractor) lineItem(entity *documentaipb.Document_Entity) (models.InvoiceItem, bool) {
	var item models.InvoiceItem
	for _, prop := range entity.GetProperties() {
		switch prop.GetType() {
		case "line_item/description":
			item.Description = strings.TrimSpace(prop.GetMentionText())
		case "line_item/quantity":
			e.setAmount(prop, &item.Quantity)
		case "line_item/unit_price":
			e.setAmount(prop, &item.UnitPrice)
		case "line_item/amount":
			e.setAmount(prop, &item.Total)
		case "line_item/unit":
			item.Unit = strings.TrimSpace(prop.GetMentionText())
		}
	}
	return item, item.Description != "" || !item.Total.IsZero()
}

// setDate prefers the normalized value over the mention text.
func (e *Extractor) setDate(entity *documentaipb.Document_Entity, dst *models.Date) {
	if d := entity.GetNormalizedValue().GetDateValue(); d != nil && d.GetYear() > 0 {
		*dst = models.NewDate(int(d.GetYear()), time.Month(d.GetMonth()), int(d.GetDay()))
		return
	}
	t, err := models.ParseDateString(entity.GetMentionText())
	if err != nil {
		e.log.Warn().Err(err).Str("entity_type", entity.GetType()).Msg("Failed to extract date")
		return
	}
	*dst = models.Date{Time: t}
}

// setAmount prefers the normalized money value over the mention text.
func (e *Extractor) setAmount(entity *documentaipb.Document_Entity, dst *decimal.Decimal) {
	if m := entity.GetNormalizedValue().GetMoneyValue(); m != nil {
		*dst = decimal.New(m.GetUnits(), 0).Add(decimal.New(int64(m.GetNanos()), -9))
		return
	}
	amount, err := models.ParseGermanAmount(entity.GetMentionText())
	if err != nil {
		e.log.Warn().Err(err).Str("entity_type", entity.GetType()).Msg("Failed to extract amount")
		return
	}
	*dst = amount
}

// calculateMissingAmounts derives the one missing total and the rate.
func calculateMissingAmounts(inv *models.Invoice) {
	switch {
	case inv.Total.IsZero() && !inv.Amount.IsZero():
		inv.Total = inv.Amount.Add(inv.Tax)
	case inv.Amount.IsZero() && !inv.Total.IsZero():
		inv.Amount = inv.Total.Sub(inv.Tax)
	case inv.Tax.IsZero() && !inv.Total.IsZero() && !inv.Amount.IsZero():
		inv.Tax = inv.Total.Sub(inv.Amount)
	}
	if inv.VATRate.IsZero() && !inv.Amount.IsZero() {
		inv.VATRate = inv.Tax.Div(inv.Amount).Mul(hundred).Round(0)
	}
}

func invoiceNumberFromText(text string) string {
	for _, re := range invoiceNumberPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimRight(m[1], ".")
		}
	}
	return ""
}

// ConfidentFields lists entity types at or above min, sorted.
func (x *Extraction) ConfidentFields(min float32) []string {
	fields := lo.Keys(lo.PickBy(x.Confidence, func(_ string, c float32) bool { return c >= min }))
	sort.Strings(fields)
	return fields
}
