package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"taxkit/internal/logger"
	"taxkit/pkg/models"
)

type Config struct {
	// Company profile file (YAML, JSON or TOML); empty means company.* in the working directory
	CompanyFile string

	// Persistence
	DatabasePath string

	// Local document source used when no sheet is configured
	LedgerFile string

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string
	DocumentAITimeout          time.Duration
	GoogleServiceAccountKey    string

	// Google Sheets Configuration
	GoogleSheetURL string

	// Artifact storage: S3 when a bucket is set, the local directory otherwise
	ArtifactDir    string
	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// HTTP API
	HTTPAddr string
	GinMode  string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		CompanyFile:                getEnv("TAXKIT_COMPANY_FILE", ""),
		DatabasePath:               getEnv("TAXKIT_DB_PATH", "taxkit.db"),
		LedgerFile:                 getEnv("TAXKIT_LEDGER_FILE", ""),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "eu"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		DocumentAITimeout:          getDuration("DOCUMENT_AI_TIMEOUT", 60*time.Second),
		GoogleServiceAccountKey:    getEnv("GOOGLE_SERVICE_ACCOUNT_KEY", ""),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		ArtifactDir:                getEnv("TAXKIT_ARTIFACT_DIR", "artifacts"),
		S3Bucket:                   getEnv("S3_BUCKET", ""),
		S3Prefix:                   getEnv("S3_PREFIX", "einvoices"),
		S3Region:                   getEnv("AWS_REGION", "eu-central-1"),
		S3Endpoint:                 getEnv("S3_ENDPOINT", ""),
		S3AccessKey:                getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:                getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle:             getBool("S3_USE_PATH_STYLE", false),
		HTTPAddr:                   getEnv("TAXKIT_HTTP_ADDR", ":8080"),
		GinMode:                    getEnv("GIN_MODE", "release"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks only what every command needs. Commands check their own
// requirements (RequireDocumentAI, RequireDocumentSource).
func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("TAXKIT_DB_PATH must not be empty")
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

// RequireDocumentAI checks the settings of the PDF import.
func (c *Config) RequireDocumentAI() error {
	if c.GoogleCloudProject == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required")
	}
	if c.DocumentAIProcessorID == "" {
		return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required")
	}
	return nil
}

// RequireDocumentSource checks that invoices and expenses can be read.
func (c *Config) RequireDocumentSource() error {
	if c.GoogleSheetURL == "" && c.LedgerFile == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL or TAXKIT_LEDGER_FILE is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// LoadCompany reads the seller profile. Priority (highest to lowest):
// 1. Environment variables with TAXKIT_ prefix (e.g., TAXKIT_VAT_ID)
// 2. the profile file
func LoadCompany(path string) (models.CompanyProfile, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("company")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return models.CompanyProfile{}, fmt.Errorf("error reading company profile: %w", err)
		}
	}

	v.SetEnvPrefix("TAXKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	company := models.CompanyProfile{
		ID:        v.GetString("id"),
		Name:      v.GetString("name"),
		Address:   v.GetString("address"),
		VATID:     strings.ReplaceAll(v.GetString("vat_id"), " ", ""),
		TaxNumber: v.GetString("tax_number"),
		Email:     v.GetString("email"),
		Phone:     v.GetString("phone"),
		IBAN:      v.GetString("iban"),
		EInvoice: models.EInvoiceSettings{
			DefaultFormat:    models.EInvoiceFormat(strings.ToLower(v.GetString("einvoice.default_format"))),
			ZUGFeRDLevel:     models.ConformanceLevel(strings.ToUpper(v.GetString("einvoice.zugferd_level"))),
			DefaultLeitwegID: v.GetString("einvoice.default_leitweg_id"),
			DefaultBuyerRef:  v.GetString("einvoice.default_buyer_reference"),
			ProcessingNote:   v.GetString("einvoice.processing_note"),
		},
	}

	if err := validator.New().Struct(company); err != nil {
		return models.CompanyProfile{}, fmt.Errorf("invalid company profile: %w", err)
	}
	return company, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
