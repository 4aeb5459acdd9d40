package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var amountNoise = strings.NewReplacer(" ", "", " ", "", "€", "", "EUR", "", "%", "")

// ParseGermanAmount parses amounts like "1.234,56 €", "-95,00" or "1234.5".
// Dot thousands separators are only recognized together with a decimal comma.
// Empty input is zero.
func ParseGermanAmount(amountStr string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(amountStr)
	if cleaned == "" {
		return decimal.Zero, nil
	}

	isNegative := strings.HasPrefix(cleaned, "-")
	if isNegative {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "-"))
	}

	cleaned = amountNoise.Replace(cleaned)

	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else if parts := strings.Split(cleaned, ","); len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unable to parse amount: %s (cleaned: %s)", amountStr, cleaned)
	}
	if isNegative {
		amount = amount.Neg()
	}
	return amount, nil
}
