package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"taxkit/internal/ustva"
	"taxkit/pkg/models"
)

// cellAmount reads an amount cell. Unformatted numeric cells arrive as float64.
func cellAmount(row []interface{}, index int, field string) (decimal.Decimal, error) {
	if index < len(row) {
		if f, ok := row[index].(float64); ok {
			return ustva.AmountFromFloat(field, f)
		}
	}
	amount, err := models.ParseGermanAmount(getString(row, index))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", field, err)
	}
	return amount, nil
}

// cellDate reads a date cell in German or ISO notation.
func cellDate(row []interface{}, index int) (time.Time, error) {
	s := getString(row, index)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	return models.ParseDateString(s)
}

// cellBool accepts the usual spreadsheet spellings of yes.
func cellBool(row []interface{}, index int) bool {
	if index < len(row) {
		if b, ok := row[index].(bool); ok {
			return b
		}
	}
	switch strings.ToLower(getString(row, index)) {
	case "true", "wahr", "ja", "x", "1", "yes":
		return true
	}
	return false
}

// getString safely extracts a string value from a row slice
func getString(row []interface{}, index int) string {
	if index >= len(row) || row[index] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
}
