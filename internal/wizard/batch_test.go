package wizard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taxkit/pkg/models"
)

func TestWizard_RunToSummary(t *testing.T) {
	tests := []struct {
		name        string
		adj         Adjustments
		wantBalance string
		wantErr     error
	}{
		{name: "defaults", wantBalance: "95"},
		{name: "exclude invoice", adj: Adjustments{Exclude: []string{"inv-1"}}, wantBalance: "-95"},
		{name: "exclude non-deductible is a no-op", adj: Adjustments{Exclude: []string{"exp-2"}}, wantBalance: "95"},
		{name: "exclude then include", adj: Adjustments{Exclude: []string{"exp-1"}, Include: []string{"exp-1"}}, wantBalance: "95"},
		{name: "include non-deductible", adj: Adjustments{Include: []string{"exp-2"}}, wantErr: ErrNotSelectable},
		{name: "unknown id", adj: Adjustments{Exclude: []string{"inv-99"}}, wantErr: ErrUnknownDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWizard(newStore(), &fakeReports{})

			err := w.RunToSummary(context.Background(), 2025, 1, tt.adj)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StepSummary, w.Step())

			result, ok := w.Result()
			require.True(t, ok)
			assert.Equal(t, tt.wantBalance, result.Balance.String())
			assert.False(t, w.Selection().IsSelected(models.KindExpense, "exp-2"))
		})
	}
}

func TestWizard_RunToSummaryInvalidQuarter(t *testing.T) {
	w := newWizard(newStore(), &fakeReports{})
	assert.Error(t, w.RunToSummary(context.Background(), 2025, 5, Adjustments{}))
	assert.Equal(t, StepPeriodSelection, w.Step())
}

func TestWizard_RunToSummaryFillsMissingPeriodHalf(t *testing.T) {
	tests := []struct {
		name          string
		year, quarter int
		wantYear      int
		wantQuarter   int
	}{
		{name: "both missing", wantYear: 2025, wantQuarter: 1},
		{name: "quarter only", quarter: 2, wantYear: 2025, wantQuarter: 2},
		{name: "year only", year: 2024, wantYear: 2024, wantQuarter: 1},
		{name: "both given", year: 2024, quarter: 4, wantYear: 2024, wantQuarter: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWizard(newStore(), &fakeReports{})

			require.NoError(t, w.RunToSummary(context.Background(), tt.year, tt.quarter, Adjustments{}))
			assert.Equal(t, tt.wantYear, w.Period().Year)
			assert.Equal(t, tt.wantQuarter, w.Period().Quarter)
		})
	}
}
