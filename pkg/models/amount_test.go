package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGermanAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1.234,56", "1234.56", false},
		{"1234,56 €", "1234.56", false},
		{"-95,00", "-95", false},
		{"- 12,5 EUR", "-12.5", false},
		{"1234.5", "1234.5", false},
		{"19 %", "19", false},
		{"", "0", false},
		{"abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGermanAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}
