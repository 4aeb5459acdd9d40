package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"taxkit/internal/api"
	"taxkit/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the UStVA and e-invoice HTTP API",
	Long: `Start the HTTP API for the company in the company profile.

Endpoints:
  GET   /health
  POST  /api/v1/ustva/preview              Preview a quarter
  POST  /api/v1/ustva/reports              Store a declaration
  GET   /api/v1/ustva/reports              List declarations
  GET   /api/v1/ustva/reports/:id          Show a declaration
  PATCH /api/v1/ustva/reports/:id/status   Record the filing status
  GET   /api/v1/ustva/reports/:id/elster   Download ELSTER XML
  POST  /api/v1/einvoices                  Generate an e-invoice
  GET   /api/v1/einvoices                  List e-invoices
  POST  /api/v1/einvoices/validate         Validate uploaded XML
  POST  /api/v1/einvoices/compliance       Check § 14 UStG contents
  GET   /api/v1/einvoices/:id/download     Download XML
  POST  /api/v1/einvoices/:id/revalidate   Validate a stored document again

Environment variables:
  TAXKIT_HTTP_ADDR - Listen address (default: :8080)
  GIN_MODE - debug or release (default: release)`,
	Example: `  taxkit serve
  taxkit serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: TAXKIT_HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.HTTPAddr
	if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
		addr = flagAddr
	}

	docs, err := a.documents(ctx)
	if err != nil {
		return err
	}
	einvoices, err := a.einvoices(ctx, docs)
	if err != nil {
		return err
	}

	gin.SetMode(a.cfg.GinMode)
	server := api.NewServer(api.Deps{
		Company:   a.company,
		Documents: docs,
		Reports:   a.reports,
		EInvoices: einvoices,
	})

	log.Info().
		Str("addr", addr).
		Str("company", a.company.ID).
		Msg("Starting HTTP API")

	if err := server.Run(ctx, addr); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}
