package einvoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

// Service generates, validates and stores e-invoices.
type Service struct {
	invoices  services.InvoiceSource
	docs      services.EInvoiceRepository
	artifacts services.ArtifactStore
	mapper    *Mapper
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithArtifactStore stores a copy of every generated XML file.
func WithArtifactStore(store services.ArtifactStore) ServiceOption {
	return func(s *Service) { s.artifacts = store }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

// NewService creates an e-invoice service. invoices may be nil when callers
// only use GenerateFromInvoice.
func NewService(invoices services.InvoiceSource, docs services.EInvoiceRepository, opts ...ServiceOption) *Service {
	s := &Service{
		invoices: invoices,
		docs:     docs,
		mapper:   NewMapper(),
		log:      logger.WithComponent("einvoice"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generation is the outcome of one generate call. An invalid document is
// still stored; Result lists what is wrong with it.
type Generation struct {
	Document *models.EInvoiceDocument
	Result   Result
	Model    *Model
}

// Generate loads the invoice and generates an e-invoice for it.
func (s *Service) Generate(ctx context.Context, company models.CompanyProfile, invoiceID string, opts FormatOptions) (*Generation, error) {
	const op = "Generate"

	if s.invoices == nil {
		return nil, fmt.Errorf("%s: no invoice source configured", op)
	}
	inv, err := s.invoices.GetInvoice(ctx, company.ID, invoiceID)
	if err != nil {
		return nil, services.WrapDataFetchError(op, err, fmt.Sprintf("invoice %s", invoiceID))
	}
	return s.GenerateFromInvoice(ctx, company, inv, opts)
}

// GenerateFromInvoice maps, renders, validates and persists inv.
func (s *Service) GenerateFromInvoice(ctx context.Context, company models.CompanyProfile, inv *models.Invoice, opts FormatOptions) (*Generation, error) {
	const op = "GenerateFromInvoice"

	model, err := s.mapper.Map(inv, company)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	gen, err := NewGenerator(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	content, err := gen.Generate(model)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := Validate(content, gen.Format(), validateOptions(model)...)

	doc := &models.EInvoiceDocument{
		ID:                 s.newID(),
		InvoiceID:          model.InvoiceID,
		CompanyID:          company.ID,
		Format:             gen.Format(),
		Standard:           gen.Standard(),
		XMLContent:         string(content),
		ValidationStatus:   result.Status(),
		ValidationErrors:   result.Errors,
		ValidationWarnings: result.Warnings,
		TransmissionStatus: models.TransmissionDraft,
		GrossAmount:        model.GrossTotal,
		PublicSector:       model.Buyer.PublicSector,
		CreatedAt:          s.now().UTC(),
	}

	s.log.Info().
		Str("invoice_id", doc.InvoiceID).
		Str("format", string(doc.Format)).
		Str("standard", string(doc.Standard)).
		Bool("valid", result.IsValid).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Bool("synthesized_line", model.SynthesizedLine).
		Msg("Generated e-invoice")

	if s.docs != nil {
		id, err := s.docs.Save(ctx, doc)
		if err != nil {
			return nil, services.WrapStorageError(op, err, fmt.Sprintf("e-invoice for invoice %s", doc.InvoiceID))
		}
		doc.ID = id
	}

	if s.artifacts != nil {
		if err := s.artifacts.Put(ctx, artifactKey(doc), content, models.EInvoiceMIMEType); err != nil {
			return nil, services.WrapStorageError(op, err, "store xml artifact")
		}
	}

	return &Generation{Document: doc, Result: result, Model: model}, nil
}

// Revalidate runs the validator over a stored document and records the
// outcome. The XML content itself is never modified. Documents generated
// for a public-sector buyer keep the Leitweg-ID requirement.
func (s *Service) Revalidate(ctx context.Context, id string, opts ...ValidateOption) (Result, error) {
	const op = "Revalidate"

	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return Result{}, services.WrapStorageError(op, err, fmt.Sprintf("document %s", id))
	}
	if doc.PublicSector {
		opts = append(opts, WithPublicSectorBuyer())
	}

	result := Validate([]byte(doc.XMLContent), doc.Format, opts...)
	if err := s.docs.UpdateValidation(ctx, id, result.Status(), result.Errors, result.Warnings); err != nil {
		return Result{}, services.WrapStorageError(op, err, fmt.Sprintf("document %s", id))
	}

	s.log.Info().
		Str("document_id", id).
		Bool("valid", result.IsValid).
		Msg("Revalidated e-invoice")

	return result, nil
}

// List returns the stored documents of a company.
func (s *Service) List(ctx context.Context, companyID string) ([]*models.EInvoiceDocument, error) {
	docs, err := s.docs.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, services.WrapStorageError("List", err, companyID)
	}
	return docs, nil
}

// Download returns the artifact file name and XML content of a stored document.
func (s *Service) Download(ctx context.Context, id string) (string, []byte, error) {
	const op = "Download"

	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return "", nil, services.WrapStorageError(op, err, fmt.Sprintf("document %s", id))
	}

	if s.artifacts != nil {
		rc, err := s.artifacts.Get(ctx, artifactKey(doc))
		switch {
		case err == nil:
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				return "", nil, services.WrapStorageError(op, err, "read xml artifact")
			}
			return doc.FileName(), data, nil
		case errors.Is(err, services.ErrNotFound):
			s.log.Debug().Str("document_id", id).Msg("Artifact missing, serving stored content")
		default:
			return "", nil, services.WrapStorageError(op, err, "fetch xml artifact")
		}
	}

	return doc.FileName(), []byte(doc.XMLContent), nil
}

func validateOptions(m *Model) []ValidateOption {
	if m.Buyer.PublicSector {
		return []ValidateOption{WithPublicSectorBuyer()}
	}
	return nil
}

func artifactKey(doc *models.EInvoiceDocument) string {
	return path.Join(doc.CompanyID, doc.FileName())
}
