package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupFile(t *testing.T) string {
	t.Helper()
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	path := filepath.Join(t.TempDir(), "taxkit.log")
	require.NoError(t, Setup(LogConfig{Level: "debug", Format: "json", TimeFormat: time.RFC3339, Output: path}))
	return path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSetup_InvalidLevel(t *testing.T) {
	assert.Error(t, Setup(LogConfig{Level: "loud"}))
}

func TestWithComponent(t *testing.T) {
	path := setupFile(t)

	l := WithRequestID("api", "req-1")
	l.Info().Msg("hello")

	out := readLog(t, path)
	assert.Contains(t, out, `"component":"api"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"service":"taxkit"`)
}

func TestGormLogger_Trace(t *testing.T) {
	path := setupFile(t)
	l := NewGormLogger()
	sql := func() (string, int64) { return "INSERT INTO tax_reports", 0 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.NotContains(t, readLog(t, path), "Query failed")

	l.Trace(context.Background(), time.Now(), sql, errors.New("UNIQUE constraint failed"))
	assert.Contains(t, readLog(t, path), "Query failed")

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	assert.NotContains(t, readLog(t, path), "Slow query")

	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, readLog(t, path), "Slow query")
}
