package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		quarter   int
		wantStart time.Time
		wantEnd   time.Time
		wantDue   string
		wantLabel string
	}{
		{
			name:      "first quarter",
			year:      2025,
			quarter:   1,
			wantStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC),
			wantDue:   "10.04.2025",
			wantLabel: "Januar - März",
		},
		{
			name:      "second quarter",
			year:      2025,
			quarter:   2,
			wantStart: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 6, 30, 23, 59, 59, 999999999, time.UTC),
			wantDue:   "10.07.2025",
			wantLabel: "April - Juni",
		},
		{
			name:      "third quarter",
			year:      2024,
			quarter:   3,
			wantStart: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 9, 30, 23, 59, 59, 999999999, time.UTC),
			wantDue:   "10.10.2024",
			wantLabel: "Juli - September",
		},
		{
			name:      "fourth quarter rolls into next year",
			year:      2024,
			quarter:   4,
			wantStart: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 12, 31, 23, 59, 59, 999999999, time.UTC),
			wantDue:   "10.01.2025",
			wantLabel: "Oktober - Dezember",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Resolve(tt.year, tt.quarter)
			require.NoError(t, err)

			assert.True(t, tt.wantStart.Equal(p.Start), "start: %s", p.Start)
			assert.True(t, tt.wantEnd.Equal(p.End), "end: %s", p.End)
			assert.Equal(t, tt.wantDue, p.DueDateLabel())
			assert.Equal(t, tt.wantLabel, p.QuarterLabel())
		})
	}
}

func TestResolve_InvalidInput(t *testing.T) {
	_, err := Resolve(2025, 0)
	assert.ErrorIs(t, err, ErrInvalidQuarter)

	_, err = Resolve(2025, 5)
	assert.ErrorIs(t, err, ErrInvalidQuarter)

	_, err = Resolve(0, 1)
	assert.ErrorIs(t, err, ErrInvalidYear)
}

func TestContains(t *testing.T) {
	p := MustResolve(2025, 1)

	assert.True(t, p.Contains(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)))
}

func TestPrevious(t *testing.T) {
	assert.Equal(t, "Q4/2024", Previous(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)).String())
	assert.Equal(t, "Q2/2025", Previous(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)).String())
}
