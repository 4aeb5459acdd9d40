package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

// EInvoiceModel is the GORM model for generated e-invoice documents.
type EInvoiceModel struct {
	ID                 string          `gorm:"type:varchar(36);primaryKey"`
	InvoiceID          string          `gorm:"type:varchar(64);not null;index"`
	CompanyID          string          `gorm:"type:varchar(64);not null;index"`
	Format             string          `gorm:"type:varchar(16);not null"`
	Standard           string          `gorm:"type:varchar(16);not null"`
	XMLContent         string          `gorm:"type:text;not null"`
	ValidationStatus   string          `gorm:"type:varchar(16);not null"`
	ValidationErrors   []string        `gorm:"serializer:json"`
	ValidationWarnings []string        `gorm:"serializer:json"`
	TransmissionStatus string          `gorm:"type:varchar(16);not null"`
	GrossAmount        decimal.Decimal `gorm:"type:decimal(15,2)"`
	PublicSector       bool            `gorm:"not null;default:false"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (EInvoiceModel) TableName() string {
	return "e_invoice_documents"
}

// ToEntity converts the model to a document.
func (m *EInvoiceModel) ToEntity() *models.EInvoiceDocument {
	return &models.EInvoiceDocument{
		ID:                 m.ID,
		InvoiceID:          m.InvoiceID,
		CompanyID:          m.CompanyID,
		Format:             models.EInvoiceFormat(m.Format),
		Standard:           models.Standard(m.Standard),
		XMLContent:         m.XMLContent,
		ValidationStatus:   models.ValidationStatus(m.ValidationStatus),
		ValidationErrors:   m.ValidationErrors,
		ValidationWarnings: m.ValidationWarnings,
		TransmissionStatus: models.TransmissionStatus(m.TransmissionStatus),
		GrossAmount:        m.GrossAmount,
		PublicSector:       m.PublicSector,
		CreatedAt:          m.CreatedAt.UTC(),
	}
}

// EInvoiceModelFromEntity creates a model from a document.
func EInvoiceModelFromEntity(d *models.EInvoiceDocument) *EInvoiceModel {
	return &EInvoiceModel{
		ID:                 d.ID,
		InvoiceID:          d.InvoiceID,
		CompanyID:          d.CompanyID,
		Format:             string(d.Format),
		Standard:           string(d.Standard),
		XMLContent:         d.XMLContent,
		ValidationStatus:   string(d.ValidationStatus),
		ValidationErrors:   d.ValidationErrors,
		ValidationWarnings: d.ValidationWarnings,
		TransmissionStatus: string(d.TransmissionStatus),
		GrossAmount:        d.GrossAmount,
		PublicSector:       d.PublicSector,
		CreatedAt:          d.CreatedAt,
	}
}

// EInvoiceRepository implements services.EInvoiceRepository.
type EInvoiceRepository struct {
	db  *gorm.DB
	log zerolog.Logger
}

var _ services.EInvoiceRepository = (*EInvoiceRepository)(nil)

// NewEInvoiceRepository creates a new e-invoice repository
func NewEInvoiceRepository(db *gorm.DB) *EInvoiceRepository {
	return &EInvoiceRepository{db: db, log: logger.WithComponent("einvoice-repository")}
}

// Save inserts a document and returns its id.
func (r *EInvoiceRepository) Save(ctx context.Context, doc *models.EInvoiceDocument) (string, error) {
	model := EInvoiceModelFromEntity(doc)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return "", services.WrapStorageError("SaveEInvoice", translate(err), doc.InvoiceID)
	}

	r.log.Debug().
		Str("document_id", model.ID).
		Str("invoice_id", model.InvoiceID).
		Msg("E-invoice saved")

	return model.ID, nil
}

// FindByID retrieves a document by ID
func (r *EInvoiceRepository) FindByID(ctx context.Context, id string) (*models.EInvoiceDocument, error) {
	var model EInvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, services.WrapStorageError("FindEInvoice", translate(err), id)
	}
	return model.ToEntity(), nil
}

// ListByCompany returns the documents of a company, newest first.
func (r *EInvoiceRepository) ListByCompany(ctx context.Context, companyID string) ([]*models.EInvoiceDocument, error) {
	var rows []EInvoiceModel
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, services.WrapStorageError("ListEInvoices", translate(err), companyID)
	}

	docs := make([]*models.EInvoiceDocument, len(rows))
	for i := range rows {
		docs[i] = rows[i].ToEntity()
	}
	return docs, nil
}

// UpdateValidation records a new validation outcome. The XML content is left
// untouched.
func (r *EInvoiceRepository) UpdateValidation(ctx context.Context, id string, status models.ValidationStatus, errs, warnings []string) error {
	const op = "UpdateEInvoiceValidation"

	res := r.db.WithContext(ctx).
		Model(&EInvoiceModel{ID: id}).
		Select("validation_status", "validation_errors", "validation_warnings").
		Updates(&EInvoiceModel{
			ValidationStatus:   string(status),
			ValidationErrors:   errs,
			ValidationWarnings: warnings,
		})
	if res.Error != nil {
		return services.WrapStorageError(op, translate(res.Error), id)
	}
	if res.RowsAffected == 0 {
		return services.WrapStorageError(op, services.ErrNotFound, id)
	}
	return nil
}
