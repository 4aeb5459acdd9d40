package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"taxkit/internal/logger"
	"taxkit/internal/store"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Manage stored UStVA declarations",
	Long: `List stored declarations, record their filing status and export them as
ELSTER XML.

A declaration moves from calculated to submitted, and from submitted to
accepted or rejected. Accepted and rejected are final.`,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the declarations of the company",
	Example: `  taxkit report list
  taxkit report list --year 2025`,
	Args: cobra.NoArgs,
	RunE: runReportList,
}

var reportStatusCmd = &cobra.Command{
	Use:   "status <report-id> <submitted|accepted|rejected>",
	Short: "Record the filing status of a declaration",
	Example: `  taxkit report status 7f3c... submitted`,
	Args:  cobra.ExactArgs(2),
	RunE:  runReportStatus,
}

var reportElsterCmd = &cobra.Command{
	Use:     "elster <report-id>",
	Short:   "Export a declaration as ELSTER XML",
	Example: `  taxkit report elster 7f3c... -o ustva-2025-Q2.xml`,
	Args:    cobra.ExactArgs(1),
	RunE:    runReportElster,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd, reportStatusCmd, reportElsterCmd)

	reportListCmd.Flags().Int("year", 0, "Only list declarations of this year")
	reportListCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	reportElsterCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runReportList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("report")

	year, _ := cmd.Flags().GetInt("year")
	outputPath, _ := cmd.Flags().GetString("output")

	a, err := newApp(cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	reports, err := a.reports.ListByCompany(ctx, a.company.ID)
	if err != nil {
		return fmt.Errorf("failed to list declarations: %w", err)
	}
	if year != 0 {
		reports = lo.Filter(reports, func(r *models.TaxDeclarationReport, _ int) bool {
			return r.Year == year
		})
	}
	if reports == nil {
		reports = []*models.TaxDeclarationReport{}
	}

	log.Info().Int("count", len(reports)).Msg("Declarations listed")
	return writeJSON(reports, outputPath, log)
}

func runReportStatus(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("report")

	id := args[0]
	status := models.ReportStatus(args[1])
	if !lo.Contains([]models.ReportStatus{models.ReportSubmitted, models.ReportAccepted, models.ReportRejected}, status) {
		return fmt.Errorf("unknown status %q: use submitted, accepted or rejected", args[1])
	}

	a, err := newApp(cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if _, err := a.findReport(ctx, id); err != nil {
		return handleReportError(err)
	}
	if err := a.reports.UpdateStatus(ctx, id, status); err != nil {
		return handleReportError(err)
	}

	log.Info().
		Str("report_id", id).
		Str("status", string(status)).
		Msg("Declaration status updated")
	fmt.Printf("Declaration %s is now %s\n", id, status)
	return nil
}

func runReportElster(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("report")

	outputPath, _ := cmd.Flags().GetString("output")

	a, err := newApp(cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	report, err := a.findReport(ctx, args[0])
	if err != nil {
		return handleReportError(err)
	}
	return exportElster(report, a.company, outputPath, log)
}

// findReport loads a declaration of the configured company.
func (a *app) findReport(ctx context.Context, id string) (*models.TaxDeclarationReport, error) {
	report, err := a.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.CompanyID != a.company.ID {
		return nil, fmt.Errorf("report %s: %w", id, services.ErrNotFound)
	}
	return report, nil
}

func handleReportError(err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fmt.Errorf("declaration not found. Use 'taxkit report list' to see stored declarations")
	case errors.Is(err, store.ErrInvalidStatusTransition):
		return fmt.Errorf("%w. Declarations move calculated -> submitted -> accepted or rejected", err)
	default:
		return fmt.Errorf("declaration update failed: %w", err)
	}
}
