package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/user"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"taxkit/internal/logger"
	"taxkit/internal/period"
	"taxkit/internal/ustva"
	"taxkit/internal/wizard"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

var ustvaCmd = &cobra.Command{
	Use:   "ustva",
	Short: "Prepare a quarterly VAT advance return (UStVA)",
	Long: `Prepare the Umsatzsteuer-Voranmeldung for one quarter.

The command loads the issued invoices and the expenses of the quarter, selects
every eligible document and prints the Kennziffern 81, 86, 66 and 83 together
with the plausibility checks. Documents can be excluded from or added back to
the selection by ID. With --submit the declaration is stored in the local
database and, when documents come from Google Sheets, logged to the "UStVA"
sheet.

Documents are read from one of:
  GOOGLE_SHEET_URL - Google Sheets URL with "Debitoren" and "Kreditoren" sheets
  TAXKIT_LEDGER_FILE - Local JSON ledger

Optional environment variables:
  GOOGLE_SERVICE_ACCOUNT_KEY - Path to service account JSON file
  TAXKIT_COMPANY_FILE - Company profile (default: ./company.yaml)
  TAXKIT_DB_PATH - SQLite database (default: taxkit.db)`,
	Example: `  # Preview the previous quarter
  taxkit ustva

  # Preview Q2 2025 without two expenses
  taxkit ustva --year 2025 --quarter 2 --exclude EXP-014 --exclude EXP-015

  # Submit and export the ELSTER XML
  taxkit ustva --year 2025 --quarter 2 --submit --elster-out ustva-2025-Q2.xml`,
	Args: cobra.NoArgs,
	RunE: runUStVA,
}

// ustvaSummary is the JSON printed by the ustva command.
type ustvaSummary struct {
	Period          string                       `json:"period"`
	Months          string                       `json:"months"`
	DueDate         string                       `json:"dueDate"`
	Kennziffern     map[int]string               `json:"kennziffern"`
	Result          models.UStVAResult           `json:"result"`
	Plausibility    ustva.Plausibility           `json:"plausibility"`
	Inconsistencies []string                     `json:"inconsistencies,omitempty"`
	Invoices        []string                     `json:"invoices"`
	Expenses        []string                     `json:"expenses"`
	Report          *models.TaxDeclarationReport `json:"report,omitempty"`
}

func init() {
	rootCmd.AddCommand(ustvaCmd)

	ustvaCmd.Flags().Int("year", 0, "Tax year (default: year of the previous quarter)")
	ustvaCmd.Flags().Int("quarter", 0, "Quarter 1-4 (default: previous quarter)")
	ustvaCmd.Flags().StringSlice("exclude", nil, "Document IDs to remove from the selection")
	ustvaCmd.Flags().StringSlice("include", nil, "Document IDs to add back to the selection")
	ustvaCmd.Flags().Bool("submit", false, "Store the declaration after preview")
	ustvaCmd.Flags().String("notes", "", "Notes stored with the declaration")
	ustvaCmd.Flags().String("elster-out", "", "Write the ELSTER XML of the submitted declaration to this file")
	ustvaCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ustvaCmd.Flags().Duration("timeout", 2*time.Minute, "Timeout for loading documents")
}

func runUStVA(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ustva")

	year, _ := cmd.Flags().GetInt("year")
	quarter, _ := cmd.Flags().GetInt("quarter")
	excludes, _ := cmd.Flags().GetStringSlice("exclude")
	includes, _ := cmd.Flags().GetStringSlice("include")
	submit, _ := cmd.Flags().GetBool("submit")
	notes, _ := cmd.Flags().GetString("notes")
	elsterOut, _ := cmd.Flags().GetString("elster-out")
	outputPath, _ := cmd.Flags().GetString("output")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if elsterOut != "" && !submit {
		return fmt.Errorf("--elster-out requires --submit")
	}

	ctx, cancel := createCommandContext(timeout, log)
	defer cancel()

	a, err := newApp(cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.documents(ctx)
	if err != nil {
		return err
	}

	w := wizard.New(a.company.ID, currentUser(), docs, a.reports)
	adj := wizard.Adjustments{Include: includes, Exclude: excludes}
	if err := w.RunToSummary(ctx, year, quarter, adj); err != nil {
		return handleUStVAError(err, log)
	}

	log.Info().
		Str("period", w.Period().String()).
		Strs("exclude", excludes).
		Strs("include", includes).
		Bool("submit", submit).
		Msg("UStVA prepared")

	summary := newUStVASummary(w)
	for _, issue := range summary.Inconsistencies {
		log.Warn().Str("inconsistency", issue).Msg("Document amounts do not add up")
	}

	if !submit {
		_ = w.Cancel()
		return writeJSON(summary, outputPath, log)
	}

	report, err := w.Submit(ctx, notes)
	if err != nil {
		return handleUStVAError(err, log)
	}
	summary.Report = report

	log.Info().
		Str("report_id", report.ID).
		Str("balance", report.Result.Balance.StringFixed(2)).
		Msg("UStVA stored")

	if reportLog := a.reportLog(); reportLog != nil {
		if err := reportLog.Append(ctx, report); err != nil {
			// The report is already stored.
			log.Warn().Err(err).Msg("Failed to log declaration to Google Sheets")
		}
	}

	if elsterOut != "" {
		if err := exportElster(report, a.company, elsterOut, log); err != nil {
			return err
		}
	}

	return writeJSON(summary, outputPath, log)
}

func newUStVASummary(w *wizard.Wizard) ustvaSummary {
	p := w.Period()
	result, _ := w.Result()
	plausibility, _ := w.Plausibility()
	sel := w.Selection()

	kz := make(map[int]string, 4)
	for k, v := range result.Kennziffern() {
		kz[k] = v.StringFixed(2)
	}

	var issues []string
	for _, i := range w.Inconsistencies() {
		issues = append(issues, i.String())
	}

	return ustvaSummary{
		Period:          p.String(),
		Months:          p.QuarterLabel(),
		DueDate:         p.DueDateLabel(),
		Kennziffern:     kz,
		Result:          result,
		Plausibility:    plausibility,
		Inconsistencies: issues,
		Invoices:        sel.Selected(models.KindInvoice),
		Expenses:        sel.Selected(models.KindExpense),
	}
}

func exportElster(report *models.TaxDeclarationReport, company models.CompanyProfile, path string, log zerolog.Logger) error {
	var buf bytes.Buffer
	if err := ustva.WriteElster(&buf, report, company); err != nil {
		log.Error().Err(err).Msg("Failed to render ELSTER XML")
		return fmt.Errorf("failed to render ELSTER XML: %w", err)
	}
	return writeOutput(buf.Bytes(), path, log)
}

// currentUser names the operator recorded on submitted reports.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}

// handleUStVAError provides user-friendly error messages for UStVA failures
func handleUStVAError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("UStVA preparation failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("loading documents timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("UStVA preparation was canceled")
	case errors.Is(err, period.ErrInvalidQuarter), errors.Is(err, period.ErrInvalidYear):
		return fmt.Errorf("invalid period: %w", err)
	case errors.Is(err, wizard.ErrUnknownDocument):
		return fmt.Errorf("%w. Check the IDs passed to --include and --exclude", err)
	case errors.Is(err, wizard.ErrNotSelectable):
		return fmt.Errorf("%w. Only expenses with deductible input VAT can be selected", err)
	case errors.Is(err, services.ErrConflict):
		return fmt.Errorf("a declaration for this period has already been submitted: %w", err)
	case ustva.IsComputationError(err):
		return fmt.Errorf("the selected documents contain negative or non-finite amounts. Fix them in the document source or exclude them: %w", err)
	case services.IsDataFetchError(err):
		return fmt.Errorf("failed to load documents. Please check GOOGLE_SHEET_URL or TAXKIT_LEDGER_FILE: %w", err)
	default:
		return fmt.Errorf("UStVA preparation failed: %w", err)
	}
}
