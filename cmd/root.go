package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"taxkit/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "taxkit",
	Short: "taxkit - UStVA declarations and electronic invoices for German companies",
	Long: `taxkit prepares the quarterly Umsatzsteuer-Voranmeldung (UStVA) from issued
invoices and expenses, and generates and validates electronic invoices in the
ZUGFeRD and XRechnung formats.

Documents are read from Google Sheets or a local JSON ledger. Declarations and
generated e-invoices are kept in a local SQLite database.`,
	Version:      version,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("taxkit executed")

		fmt.Println("Welcome to taxkit!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("company", "", "Company profile file (default: TAXKIT_COMPANY_FILE or ./company.yaml)")
}
