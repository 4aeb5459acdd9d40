package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

// ReportModel is the GORM model for tax declaration reports. A company has at
// most one report per year, quarter and type.
type ReportModel struct {
	ID          string                  `gorm:"type:varchar(36);primaryKey"`
	CompanyID   string                  `gorm:"type:varchar(64);not null;uniqueIndex:idx_reports_period"`
	Type        string                  `gorm:"type:varchar(16);not null;uniqueIndex:idx_reports_period"`
	Year        int                     `gorm:"not null;uniqueIndex:idx_reports_period"`
	Quarter     int                     `gorm:"not null;uniqueIndex:idx_reports_period"`
	PeriodStart time.Time               `gorm:"not null"`
	PeriodEnd   time.Time               `gorm:"not null"`
	Status      string                  `gorm:"type:varchar(16);not null;index"`
	Result      models.UStVAResult      `gorm:"serializer:json;not null"`
	Kennziffern map[int]decimal.Decimal `gorm:"serializer:json"`
	InvoiceIDs  []string                `gorm:"serializer:json"`
	ExpenseIDs  []string                `gorm:"serializer:json"`
	CreatedBy   string                  `gorm:"type:varchar(64)"`
	Notes       string                  `gorm:"type:text"`
	CreatedAt   time.Time               `gorm:"not null"`
	UpdatedAt   time.Time               `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (ReportModel) TableName() string {
	return "tax_reports"
}

// ToEntity converts the model to a report.
func (m *ReportModel) ToEntity() *models.TaxDeclarationReport {
	return &models.TaxDeclarationReport{
		ID:          m.ID,
		CompanyID:   m.CompanyID,
		Type:        models.ReportType(m.Type),
		Year:        m.Year,
		Quarter:     m.Quarter,
		PeriodStart: m.PeriodStart.UTC(),
		PeriodEnd:   m.PeriodEnd.UTC(),
		Status:      models.ReportStatus(m.Status),
		Result:      m.Result,
		Kennziffern: m.Kennziffern,
		InvoiceIDs:  m.InvoiceIDs,
		ExpenseIDs:  m.ExpenseIDs,
		CreatedBy:   m.CreatedBy,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

// ReportModelFromEntity creates a model from a report.
func ReportModelFromEntity(r *models.TaxDeclarationReport) *ReportModel {
	return &ReportModel{
		ID:          r.ID,
		CompanyID:   r.CompanyID,
		Type:        string(r.Type),
		Year:        r.Year,
		Quarter:     r.Quarter,
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		Status:      string(r.Status),
		Result:      r.Result,
		Kennziffern: r.Kennziffern,
		InvoiceIDs:  r.InvoiceIDs,
		ExpenseIDs:  r.ExpenseIDs,
		CreatedBy:   r.CreatedBy,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
	}
}

// ReportRepository implements services.ReportRepository.
type ReportRepository struct {
	db  *gorm.DB
	log zerolog.Logger
}

var _ services.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db, log: logger.WithComponent("report-repository")}
}

// Save inserts a new report and returns its id. A second report for the same
// company, year, quarter and type fails with services.ErrConflict.
func (r *ReportRepository) Save(ctx context.Context, report *models.TaxDeclarationReport) (string, error) {
	const op = "SaveReport"

	model := ReportModelFromEntity(report)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return "", services.WrapStorageError(op, translate(err), report.PeriodLabel())
	}

	r.log.Info().
		Str("report_id", model.ID).
		Str("company_id", model.CompanyID).
		Str("period", report.PeriodLabel()).
		Msg("Report saved")

	return model.ID, nil
}

// FindByID retrieves a report by ID
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.TaxDeclarationReport, error) {
	var model ReportModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, services.WrapStorageError("FindReport", translate(err), id)
	}
	return model.ToEntity(), nil
}

// ListByCompany returns the reports of a company, newest period first.
func (r *ReportRepository) ListByCompany(ctx context.Context, companyID string) ([]*models.TaxDeclarationReport, error) {
	var rows []ReportModel
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("year DESC, quarter DESC").
		Find(&rows).Error
	if err != nil {
		return nil, services.WrapStorageError("ListReports", translate(err), companyID)
	}

	reports := make([]*models.TaxDeclarationReport, len(rows))
	for i := range rows {
		reports[i] = rows[i].ToEntity()
	}
	return reports, nil
}

// UpdateStatus moves a report to status. Only the transitions allowed by
// models.ReportStatus.CanTransitionTo are accepted.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error {
	const op = "UpdateReportStatus"

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model ReportModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return services.WrapStorageError(op, translate(err), id)
		}

		current := models.ReportStatus(model.Status)
		if !current.CanTransitionTo(status) {
			return services.WrapStorageError(op,
				fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, status), id)
		}

		if err := tx.Model(&model).Update("status", string(status)).Error; err != nil {
			return services.WrapStorageError(op, translate(err), id)
		}

		r.log.Info().
			Str("report_id", id).
			Str("from", string(current)).
			Str("to", string(status)).
			Msg("Report status updated")
		return nil
	})
}
