package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
)

// ReportSheet is the sheet submitted declarations are logged to.
const ReportSheet = "UStVA"

var reportHeaders = []interface{}{
	"Zeitraum", "Beginn", "Ende", "Kz 81", "Kz 86", "Kz 66", "Kz 83",
	"Zahllast", "Erstattung", "Status", "Rechnungen", "Belege", "Erstellt von", "Erstellt", "Notiz", "Bericht-ID",
}

// ReportLog appends declarations to the ReportSheet of a spreadsheet.
type ReportLog struct {
	sink ValueSink
	log  zerolog.Logger
}

// NewReportLog creates a report log writing to sink.
func NewReportLog(sink ValueSink) *ReportLog {
	return &ReportLog{sink: sink, log: logger.WithComponent("sheets-reports")}
}

// Append writes one row per report.
func (l *ReportLog) Append(ctx context.Context, reports ...*models.TaxDeclarationReport) error {
	const op = "AppendReports"

	if len(reports) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, reportRow(r))
	}

	if err := l.sink.AppendRows(ctx, ReportSheet, reportHeaders, rows); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	l.log.Info().Int("reports", len(reports)).Msg("Declarations logged to sheet")
	return nil
}

// reportRow renders amounts with a decimal comma so USER_ENTERED input keeps
// them numeric in a German locale sheet.
func reportRow(r *models.TaxDeclarationReport) []interface{} {
	kz := r.Kennziffern
	if kz == nil {
		kz = r.Result.Kennziffern()
	}
	return []interface{}{
		r.PeriodLabel(),
		r.PeriodStart.Format("02.01.2006"),
		r.PeriodEnd.Format("02.01.2006"),
		germanAmount(kz[models.Kz81].StringFixed(2)),
		germanAmount(kz[models.Kz86].StringFixed(2)),
		germanAmount(kz[models.Kz66].StringFixed(2)),
		germanAmount(kz[models.Kz83].StringFixed(2)),
		germanAmount(r.Result.Zahllast.StringFixed(2)),
		germanAmount(r.Result.Erstattung.StringFixed(2)),
		string(r.Status),
		len(r.InvoiceIDs),
		len(r.ExpenseIDs),
		r.CreatedBy,
		r.CreatedAt.Format("02.01.2006 15:04:05"),
		r.Notes,
		r.ID,
	}
}

func germanAmount(s string) string {
	return strings.Replace(s, ".", ",", 1)
}
