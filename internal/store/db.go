// Package store persists tax declarations and e-invoice documents with GORM.
package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"taxkit/internal/logger"
	"taxkit/pkg/services"
)

// ErrInvalidStatusTransition is returned by UpdateStatus for a transition the
// report lifecycle does not allow.
var ErrInvalidStatusTransition = errors.New("invalid report status transition")

// Open connects to the SQLite database at dsn and migrates the schema.
// Use ":memory:" for a throwaway database.
func Open(dsn string) (*gorm.DB, error) {
	const op = "Open"

	log := logger.WithComponent("store")

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.NewGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	// every connection to ":memory:" is a separate database
	if dsn == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug().Str("dsn", dsn).Msg("Database ready")
	return db, nil
}

// Migrate creates or updates the tables used by the repositories.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ReportModel{}, &EInvoiceModel{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// translate maps GORM errors onto the shared boundary sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return services.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", services.ErrConflict, err)
	}
	return err
}
