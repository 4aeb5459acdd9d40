package services

import (
	"context"
	"io"
	"time"

	"taxkit/pkg/models"
)

// DocumentStore supplies the invoices and expenses of a company for a date range.
// Implementations return documents overlapping [start, end]; status filtering
// happens in the core.
type DocumentStore interface {
	ListInvoices(ctx context.Context, companyID string, start, end time.Time) ([]models.FinancialDocument, error)
	ListExpenses(ctx context.Context, companyID string, start, end time.Time) ([]models.FinancialDocument, error)
}

// ReportRepository persists tax declarations. Save fails with a StorageError
// wrapping ErrConflict when a report for the same company, year, quarter and
// type already exists.
type ReportRepository interface {
	Save(ctx context.Context, report *models.TaxDeclarationReport) (string, error)
	FindByID(ctx context.Context, id string) (*models.TaxDeclarationReport, error)
	ListByCompany(ctx context.Context, companyID string) ([]*models.TaxDeclarationReport, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error
}

// EInvoiceRepository persists generated e-invoice documents.
type EInvoiceRepository interface {
	Save(ctx context.Context, doc *models.EInvoiceDocument) (string, error)
	FindByID(ctx context.Context, id string) (*models.EInvoiceDocument, error)
	ListByCompany(ctx context.Context, companyID string) ([]*models.EInvoiceDocument, error)
	UpdateValidation(ctx context.Context, id string, status models.ValidationStatus, errs, warnings []string) error
}

// ArtifactStore keeps downloadable copies of generated XML files.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// InvoiceSource resolves an invoice by its id for e-invoice generation.
type InvoiceSource interface {
	GetInvoice(ctx context.Context, companyID, invoiceID string) (*models.Invoice, error)
}
