package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"taxkit/internal/config"
	"taxkit/internal/einvoice"
	"taxkit/internal/extract"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

var einvoiceCmd = &cobra.Command{
	Use:   "einvoice",
	Short: "Generate and validate electronic invoices (ZUGFeRD, XRechnung)",
	Long: `Generate EN 16931 electronic invoices from issued invoices and check
existing XML documents.

ZUGFeRD documents use the UN/CEFACT Cross Industry Invoice syntax, XRechnung
documents the UBL 2.1 Invoice syntax. Generated documents are stored in the
local database and their XML in the artifact store.

Artifact storage:
  S3_BUCKET - Store XML in this S3 bucket (optional, with S3_PREFIX, S3_ENDPOINT)
  TAXKIT_ARTIFACT_DIR - Local directory otherwise (default: artifacts)`,
}

var einvoiceGenerateCmd = &cobra.Command{
	Use:   "generate [invoice-id]",
	Short: "Generate an e-invoice for an issued invoice",
	Long: `Generate an e-invoice for an issued invoice.

The invoice is looked up by ID or number in the configured document source
(GOOGLE_SHEET_URL or TAXKIT_LEDGER_FILE), or read from a JSON file with
--invoice. Format defaults come from the einvoice section of the company
profile and can be overridden per call.

A document that violates business rules is still stored; the command prints
the violations and exits with an error.`,
	Example: `  # ZUGFeRD COMFORT for invoice RE-2025-0042
  taxkit einvoice generate RE-2025-0042 -o RE-2025-0042.xml

  # XRechnung for a public authority
  taxkit einvoice generate RE-2025-0042 --format xrechnung --leitweg-id 04011000-1234512345-06

  # From a JSON invoice
  taxkit einvoice generate --invoice invoice.json --level EXTENDED`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEInvoiceGenerate,
}

var einvoiceValidateCmd = &cobra.Command{
	Use:   "validate <xml-file>",
	Short: "Validate an e-invoice XML document",
	Long: `Check an e-invoice against the EN 16931 business rules of its format.

The format is detected from the root element unless --format is given. With
--compliance the document is also graded against the invoice contents
required by § 14 Abs. 4 UStG.`,
	Example: `  taxkit einvoice validate invoice.xml
  taxkit einvoice validate invoice.xml --format xrechnung --public-sector --compliance`,
	Args: cobra.ExactArgs(1),
	RunE: runEInvoiceValidate,
}

var einvoiceImportCmd = &cobra.Command{
	Use:   "import <invoice.pdf>",
	Short: "Extract an invoice PDF with Document AI and generate its e-invoice",
	Long: `Read an outgoing invoice PDF with the Google Document AI Invoice Parser and
generate an e-invoice from the extracted data.

Required environment variables:
  GOOGLE_CLOUD_PROJECT - Google Cloud project ID
  DOCUMENT_AI_PROCESSOR_ID - Document AI invoice processor ID

Optional environment variables:
  GOOGLE_CLOUD_LOCATION - Processor location (default: eu)
  GOOGLE_SERVICE_ACCOUNT_KEY - Path to service account JSON file
  DOCUMENT_AI_PROCESSOR_VERSION - Processor version`,
	Example: `  taxkit einvoice import RE-2025-0042.pdf -o RE-2025-0042.xml
  taxkit einvoice import RE-2025-0042.pdf --extract-only --confidence`,
	Args: cobra.ExactArgs(1),
	RunE: runEInvoiceImport,
}

// importOutput is printed by einvoice import --extract-only.
type importOutput struct {
	Invoice    *models.Invoice    `json:"invoice"`
	Confidence map[string]float32 `json:"confidence,omitempty"`
	Metadata   importMetadata     `json:"metadata"`
}

type importMetadata struct {
	FileName           string        `json:"file_name"`
	FileSize           int64         `json:"file_size_bytes"`
	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(einvoiceCmd)
	einvoiceCmd.AddCommand(einvoiceGenerateCmd, einvoiceValidateCmd, einvoiceImportCmd)

	for _, c := range []*cobra.Command{einvoiceGenerateCmd, einvoiceImportCmd} {
		c.Flags().String("format", "", "zugferd or xrechnung (default: company profile)")
		c.Flags().String("level", "", "ZUGFeRD profile: BASIC, COMFORT or EXTENDED")
		c.Flags().String("buyer-reference", "", "XRechnung buyer reference (BT-10)")
		c.Flags().String("leitweg-id", "", "Leitweg-ID of a public-sector buyer")
		c.Flags().String("note", "", "XRechnung processing note")
		c.Flags().StringP("output", "o", "", "Output file path for the XML (default: stdout)")
	}
	einvoiceGenerateCmd.Flags().String("invoice", "", "Read the invoice from a JSON file instead of the document source")
	einvoiceGenerateCmd.Flags().Duration("timeout", time.Minute, "Timeout for loading the invoice")

	einvoiceValidateCmd.Flags().String("format", "", "zugferd or xrechnung (default: detect)")
	einvoiceValidateCmd.Flags().Bool("public-sector", false, "Require a Leitweg-ID (XRechnung)")
	einvoiceValidateCmd.Flags().Bool("compliance", false, "Also check § 14 UStG invoice contents")
	einvoiceValidateCmd.Flags().StringP("output", "o", "", "Output file path for the report (default: stdout)")

	einvoiceImportCmd.Flags().Bool("extract-only", false, "Print the extracted invoice as JSON instead of generating")
	einvoiceImportCmd.Flags().Bool("confidence", false, "Include confidence scores with --extract-only")
	einvoiceImportCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runEInvoiceGenerate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("einvoice")

	invoiceFile, _ := cmd.Flags().GetString("invoice")
	outputPath, _ := cmd.Flags().GetString("output")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if (len(args) == 0) == (invoiceFile == "") {
		return fmt.Errorf("pass either an invoice ID or --invoice <file>")
	}

	overrides, err := readOverrides(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := createCommandContext(timeout, log)
	defer cancel()

	a, err := newApp(cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := einvoice.OptionsFromSettings(a.company.EInvoice).Apply(overrides)

	var gen *einvoice.Generation
	if invoiceFile != "" {
		inv, err := readInvoiceFile(invoiceFile)
		if err != nil {
			return err
		}
		svc, err := a.einvoices(ctx, nil)
		if err != nil {
			return err
		}
		gen, err = svc.GenerateFromInvoice(ctx, a.company, inv, opts)
		if err != nil {
			return handleEInvoiceError(err, log)
		}
	} else {
		docs, err := a.documents(ctx)
		if err != nil {
			return err
		}
		svc, err := a.einvoices(ctx, docs)
		if err != nil {
			return err
		}
		gen, err = svc.Generate(ctx, a.company, args[0], opts)
		if err != nil {
			return handleEInvoiceError(err, log)
		}
	}

	return finishGeneration(gen, outputPath, log)
}

func runEInvoiceValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("einvoice")

	formatFlag, _ := cmd.Flags().GetString("format")
	publicSector, _ := cmd.Flags().GetBool("public-sector")
	compliance, _ := cmd.Flags().GetBool("compliance")
	outputPath, _ := cmd.Flags().GetString("output")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	var format models.EInvoiceFormat
	if formatFlag != "" {
		format, err = models.ParseEInvoiceFormat(strings.ToLower(formatFlag))
	} else {
		format, err = einvoice.DetectFormat(data)
	}
	if err != nil {
		return handleEInvoiceError(err, log)
	}

	var opts []einvoice.ValidateOption
	if publicSector {
		opts = append(opts, einvoice.WithPublicSectorBuyer())
	}

	report := struct {
		File       string                     `json:"file"`
		Validation einvoice.Result            `json:"validation"`
		Compliance *einvoice.ComplianceReport `json:"compliance,omitempty"`
	}{
		File:       args[0],
		Validation: einvoice.Validate(data, format, opts...),
	}
	if compliance {
		c := einvoice.CheckCompliance(data)
		report.Compliance = &c
	}

	log.Info().
		Str("file", args[0]).
		Str("format", string(format)).
		Bool("valid", report.Validation.IsValid).
		Int("errors", len(report.Validation.Errors)).
		Int("warnings", len(report.Validation.Warnings)).
		Msg("Document validated")

	if err := writeJSON(report, outputPath, log); err != nil {
		return err
	}
	if err := report.Validation.Err(); err != nil {
		return err
	}
	if report.Compliance != nil && !report.Compliance.IsCompliant {
		return fmt.Errorf("document is not § 14 UStG compliant (%s)", report.Compliance.Level)
	}
	return nil
}

func runEInvoiceImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("einvoice-import")

	extractOnly, _ := cmd.Flags().GetBool("extract-only")
	includeConfidence, _ := cmd.Flags().GetBool("confidence")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	outputPath, _ := cmd.Flags().GetString("output")

	pdfPath := args[0]

	overrides, err := readOverrides(cmd)
	if err != nil {
		return err
	}

	fileInfo, err := validateInvoicePDF(pdfPath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createCommandContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	a, err := newApp(cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	extractor, err := createExtractor(ctx, a, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := extractor.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close Document AI client")
		}
	}()

	pdfFile, err := os.Open(pdfPath)
	if err != nil {
		log.Error().Err(err).Str("file", pdfPath).Msg("Failed to open PDF file")
		return fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer func() {
		if closeErr := pdfFile.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close PDF file")
		}
	}()

	log.Info().
		Str("file", pdfPath).
		Int64("size", fileInfo.Size()).
		Msg("Processing invoice PDF with Document AI")

	startTime := time.Now()
	extraction, err := extractor.ExtractInvoice(ctx, pdfFile)
	if err != nil {
		return handleExtractError(err, log)
	}
	duration := time.Since(startTime)

	inv := extraction.Invoice
	log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("buyer", inv.CustomerName).
		Str("gross_amount", inv.Total.StringFixed(2)).
		Dur("duration", duration).
		Msg("Invoice extracted")

	if extractOnly {
		out := importOutput{
			Invoice: inv,
			Metadata: importMetadata{
				FileName:           fileInfo.Name(),
				FileSize:           fileInfo.Size(),
				ProcessedAt:        time.Now(),
				ProcessingDuration: duration,
			},
		}
		if includeConfidence {
			out.Confidence = extraction.Confidence
		}
		return writeJSON(out, outputPath, log)
	}

	svc, err := a.einvoices(ctx, nil)
	if err != nil {
		return err
	}
	opts := einvoice.OptionsFromSettings(a.company.EInvoice).Apply(overrides)
	gen, err := svc.GenerateFromInvoice(ctx, a.company, inv, opts)
	if err != nil {
		return handleEInvoiceError(err, log)
	}
	return finishGeneration(gen, outputPath, log)
}

// readOverrides collects the per-call format flags.
func readOverrides(cmd *cobra.Command) (einvoice.Overrides, error) {
	var ov einvoice.Overrides

	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format, err := models.ParseEInvoiceFormat(strings.ToLower(f))
		if err != nil {
			return ov, err
		}
		ov.Format = format
	}
	if l, _ := cmd.Flags().GetString("level"); l != "" {
		ov.Level = models.ConformanceLevel(strings.ToUpper(l))
		if !ov.Level.Valid() {
			return ov, fmt.Errorf("unknown ZUGFeRD level %q: use BASIC, COMFORT or EXTENDED", l)
		}
	}
	ov.BuyerReference, _ = cmd.Flags().GetString("buyer-reference")
	ov.LeitwegID, _ = cmd.Flags().GetString("leitweg-id")
	ov.ProcessingNote, _ = cmd.Flags().GetString("note")
	return ov, nil
}

func readInvoiceFile(path string) (*models.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice file: %w", err)
	}
	var inv models.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("invoice file %s is not valid JSON: %w", path, err)
	}
	return &inv, nil
}

// finishGeneration writes the XML and reports the validation outcome.
func finishGeneration(gen *einvoice.Generation, outputPath string, log zerolog.Logger) error {
	doc := gen.Document

	log.Info().
		Str("document_id", doc.ID).
		Str("invoice_id", doc.InvoiceID).
		Str("format", string(doc.Format)).
		Str("standard", string(doc.Standard)).
		Str("validation", string(doc.ValidationStatus)).
		Bool("synthesized_line", gen.Model.SynthesizedLine).
		Msg("E-invoice generated")

	for _, w := range gen.Result.Warnings {
		log.Warn().Str("warning", w).Msg("Validation warning")
	}

	if err := writeOutput([]byte(doc.XMLContent), outputPath, log); err != nil {
		return err
	}
	return gen.Result.Err()
}

// validateInvoicePDF validates the PDF file for invoice processing
func validateInvoicePDF(pdfPath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", pdfPath).Msg("Invoice PDF file not found")
			return nil, fmt.Errorf("invoice PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", pdfPath).Msg("Permission denied accessing PDF file")
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().Str("file", pdfPath).Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().Str("file", pdfPath).Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().Str("file", pdfPath).Msg("PDF file is empty")
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	if fileInfo.Size() > extract.MaxDocumentSizeBytes {
		log.Error().
			Str("file", pdfPath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", extract.MaxDocumentSizeBytes).
			Msg("PDF file exceeds maximum size limit")
		return nil, fmt.Errorf("PDF file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), extract.MaxDocumentSizeBytes)
	}

	return fileInfo, nil
}

// createExtractor creates and configures the Document AI extractor
func createExtractor(ctx context.Context, a *app, log zerolog.Logger) (*extract.Extractor, error) {
	if err := a.cfg.RequireDocumentAI(); err != nil {
		log.Error().Err(err).Msg("Document AI configuration invalid")
		return nil, fmt.Errorf("invalid Document AI configuration. Please check your .env file:\n" +
			"  GOOGLE_CLOUD_PROJECT - your Google Cloud project ID\n" +
			"  GOOGLE_CLOUD_LOCATION - processing location (us, eu, etc.)\n" +
			"  DOCUMENT_AI_PROCESSOR_ID - your Document AI processor ID\n" +
			"Original error: %w", err)
	}

	extractor, err := extract.NewExtractor(ctx, extractorConfig(a.cfg))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Document AI extractor")
		return nil, fmt.Errorf("failed to create Document AI extractor: %w", err)
	}

	log.Debug().Msg("Document AI extractor created")
	return extractor, nil
}

func extractorConfig(cfg *config.Config) extract.Config {
	return extract.Config{
		ProjectID:        cfg.GoogleCloudProject,
		Location:         cfg.GoogleCloudLocation,
		ProcessorID:      cfg.DocumentAIProcessorID,
		ProcessorVersion: cfg.DocumentAIProcessorVersion,
		CredentialsFile:  cfg.GoogleServiceAccountKey,
		Timeout:          cfg.DocumentAITimeout,
	}
}

// handleExtractError provides user-friendly error messages for extraction failures
func handleExtractError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Invoice extraction failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("invoice processing timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("invoice processing was canceled")
	case errors.Is(err, extract.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, extract.ErrDocumentTooLarge):
		return fmt.Errorf("PDF file is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, extract.ErrProcessorNotFound):
		return fmt.Errorf("Document AI processor not found. Please check DOCUMENT_AI_PROCESSOR_ID")
	case errors.Is(err, extract.ErrMissingRequiredField):
		return fmt.Errorf("could not extract invoice number and buyer. The PDF may not be an invoice: %w", err)
	case errors.Is(err, extract.ErrInvalidCredentials):
		return fmt.Errorf("Google Cloud authentication failed. Please check GOOGLE_SERVICE_ACCOUNT_KEY and that the service account has the 'Document AI API User' role")
	case errors.Is(err, extract.ErrQuotaExceeded):
		return fmt.Errorf("Document AI API quota exceeded. Check your project quotas in Google Cloud Console")
	case errors.Is(err, extract.ErrProcessingFailed):
		return fmt.Errorf("Document AI processing failed. This may be due to network issues or service unavailability: %w", err)
	default:
		return fmt.Errorf("invoice processing failed: %w", err)
	}
}

// handleEInvoiceError provides user-friendly error messages for generation failures
func handleEInvoiceError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("E-invoice generation failed")

	switch {
	case errors.Is(err, services.ErrNotFound):
		return fmt.Errorf("invoice not found in the document source: %w", err)
	case errors.Is(err, einvoice.ErrInvalidSource):
		return fmt.Errorf("the invoice is missing data required for an e-invoice: %w", err)
	case errors.Is(err, einvoice.ErrInvalidMetadata):
		return fmt.Errorf("incomplete format settings. Check --level, --buyer-reference and the company profile: %w", err)
	case errors.Is(err, einvoice.ErrUnsupportedFormat), errors.Is(err, einvoice.ErrUnknownSyntax):
		return fmt.Errorf("%w. Supported formats are zugferd and xrechnung", err)
	case services.IsStorageError(err):
		return fmt.Errorf("failed to store the generated document: %w", err)
	case services.IsDataFetchError(err):
		return fmt.Errorf("failed to load the invoice. Please check GOOGLE_SHEET_URL or TAXKIT_LEDGER_FILE: %w", err)
	default:
		return fmt.Errorf("e-invoice generation failed: %w", err)
	}
}
