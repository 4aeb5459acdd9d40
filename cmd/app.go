package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"taxkit/internal/artifact"
	"taxkit/internal/config"
	"taxkit/internal/einvoice"
	"taxkit/internal/ledger"
	"taxkit/internal/sheets"
	"taxkit/internal/store"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

// documentSource serves both the UStVA wizard and e-invoice generation.
type documentSource interface {
	services.DocumentStore
	services.InvoiceSource
}

// app bundles what every command needs: configuration, the company profile
// and the local database.
type app struct {
	cfg     *config.Config
	company models.CompanyProfile
	db      *gorm.DB
	reports *store.ReportRepository
	docs    *store.EInvoiceRepository
	log     zerolog.Logger

	sheet *sheets.Service
}

// newApp loads configuration and opens the database. The --company flag
// overrides TAXKIT_COMPANY_FILE.
func newApp(cmd *cobra.Command, log zerolog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	companyFile := cfg.CompanyFile
	if f, _ := cmd.Flags().GetString("company"); f != "" {
		companyFile = f
	}
	company, err := config.LoadCompany(companyFile)
	if err != nil {
		log.Error().Err(err).Str("file", companyFile).Msg("Failed to load company profile")
		return nil, fmt.Errorf("failed to load company profile: %w", err)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	log.Debug().
		Str("company", company.ID).
		Str("database", cfg.DatabasePath).
		Msg("Application initialized")

	return &app{
		cfg:     cfg,
		company: company,
		db:      db,
		reports: store.NewReportRepository(db),
		docs:    store.NewEInvoiceRepository(db),
		log:     log,
	}, nil
}

func (a *app) Close() {
	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close database")
	}
}

// documents returns the configured document source. A Google Sheet wins
// over a local ledger file.
func (a *app) documents(ctx context.Context) (documentSource, error) {
	if err := a.cfg.RequireDocumentSource(); err != nil {
		return nil, fmt.Errorf("no document source configured. Please set one of:\n"+
			"  GOOGLE_SHEET_URL - spreadsheet with %s and %s sheets\n"+
			"  TAXKIT_LEDGER_FILE - local JSON ledger\n"+
			"Original error: %w", sheets.InvoiceSheet, sheets.ExpenseSheet, err)
	}

	if a.cfg.GoogleSheetURL != "" {
		svc, err := sheets.NewSheetsService(ctx, a.cfg.GoogleSheetURL, a.cfg.GoogleServiceAccountKey)
		if err != nil {
			a.log.Error().Err(err).Msg("Failed to create Google Sheets service")
			return nil, fmt.Errorf("failed to connect to Google Sheets: %w", err)
		}
		a.sheet = svc
		a.log.Info().Msg("Reading documents from Google Sheets")
		return sheets.NewDocumentStore(svc), nil
	}

	l, err := ledger.Open(a.cfg.LedgerFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	a.log.Info().Str("file", a.cfg.LedgerFile).Msg("Reading documents from ledger file")
	return l, nil
}

// reportLog returns the spreadsheet report log, or nil when documents do not
// come from a sheet.
func (a *app) reportLog() *sheets.ReportLog {
	if a.sheet == nil {
		return nil
	}
	return sheets.NewReportLog(a.sheet)
}

// artifacts returns S3 storage when a bucket is configured, otherwise the
// local artifact directory.
func (a *app) artifacts(ctx context.Context) (services.ArtifactStore, error) {
	if a.cfg.S3Bucket != "" {
		s, err := artifact.NewS3Store(ctx, artifact.S3Config{
			Bucket:       a.cfg.S3Bucket,
			Prefix:       a.cfg.S3Prefix,
			Region:       a.cfg.S3Region,
			Endpoint:     a.cfg.S3Endpoint,
			AccessKey:    a.cfg.S3AccessKey,
			SecretKey:    a.cfg.S3SecretKey,
			UsePathStyle: a.cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure S3 artifact store: %w", err)
		}
		return s, nil
	}

	s, err := artifact.NewFileSystemStore(a.cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare artifact directory: %w", err)
	}
	return s, nil
}

// einvoices wires the e-invoice service. invoices may be nil for commands
// that only pass invoices in directly.
func (a *app) einvoices(ctx context.Context, invoices services.InvoiceSource) (*einvoice.Service, error) {
	artifacts, err := a.artifacts(ctx)
	if err != nil {
		return nil, err
	}
	return einvoice.NewService(invoices, a.docs, einvoice.WithArtifactStore(artifacts)), nil
}

// createCommandContext creates a context with timeout and signal handling
func createCommandContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
