package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taxkit/pkg/models"
)

const companyYAML = `
id: company-1
name: Fliesen Müller GmbH
address: |
  Hauptstraße 5
  80331 München
vat_id: DE 123 456 789
tax_number: 143/123/45678
email: buchhaltung@fliesen-mueller.de
einvoice:
  default_format: xrechnung
  zugferd_level: basic
  default_leitweg_id: 04011000-12345-67
`

func writeCompany(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "company.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"GOOGLE_CLOUD_LOCATION", "DOCUMENT_AI_TIMEOUT", "AWS_REGION", "LOG_LEVEL", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "eu", cfg.GoogleCloudLocation)
	assert.Equal(t, 60*time.Second, cfg.DocumentAITimeout)
	assert.Equal(t, "eu-central-1", cfg.S3Region)
	assert.Equal(t, "info", cfg.GetLoggerConfig().Level)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("TAXKIT_DB_PATH", "/tmp/x.db")
	t.Setenv("S3_USE_PATH_STYLE", "true")
	t.Setenv("DOCUMENT_AI_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
	assert.True(t, cfg.S3UsePathStyle)
	assert.Equal(t, 90*time.Second, cfg.DocumentAITimeout)
}

func TestLoad_PartialS3Credentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Requirements(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireDocumentAI())
	assert.Error(t, cfg.RequireDocumentSource())

	cfg.GoogleCloudProject = "p"
	cfg.DocumentAIProcessorID = "proc"
	cfg.LedgerFile = "ledger.json"
	assert.NoError(t, cfg.RequireDocumentAI())
	assert.NoError(t, cfg.RequireDocumentSource())
}

func TestLoadCompany(t *testing.T) {
	company, err := LoadCompany(writeCompany(t, companyYAML))
	require.NoError(t, err)

	assert.Equal(t, "company-1", company.ID)
	assert.Equal(t, "DE123456789", company.VATID)
	assert.Contains(t, company.Address, "80331 München")
	assert.Equal(t, models.FormatXRechnung, company.EInvoice.DefaultFormat)
	assert.Equal(t, models.LevelBasic, company.EInvoice.ZUGFeRDLevel)
	assert.Equal(t, "04011000-12345-67", company.EInvoice.DefaultLeitwegID)
}

func TestLoadCompany_EnvOverride(t *testing.T) {
	t.Setenv("TAXKIT_NAME", "Fliesen Müller & Söhne GmbH")
	t.Setenv("TAXKIT_EINVOICE_DEFAULT_FORMAT", "zugferd")

	company, err := LoadCompany(writeCompany(t, companyYAML))
	require.NoError(t, err)
	assert.Equal(t, "Fliesen Müller & Söhne GmbH", company.Name)
	assert.Equal(t, models.FormatZUGFeRD, company.EInvoice.DefaultFormat)
}

func TestLoadCompany_Invalid(t *testing.T) {
	_, err := LoadCompany(writeCompany(t, "name: Ohne ID\n"))
	assert.Error(t, err)

	_, err = LoadCompany(writeCompany(t, "id: c\nname: X\neinvoice:\n  default_format: pdf\n"))
	assert.Error(t, err)

	_, err = LoadCompany(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
