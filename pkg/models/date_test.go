package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_UnmarshalJSON(t *testing.T) {
	want := time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"iso date", `"2025-04-15"`, want},
		{"rfc3339", `"2025-04-15T00:00:00Z"`, want},
		{"german", `"15.04.2025"`, want},
		{"german short year", `"15.4.25"`, want},
		{"unix seconds", `1744675200`, want},
		{"unix millis", `1744675200000`, want},
		{"firestore object", `{"_seconds":1744675200,"_nanoseconds":0}`, want},
		{"protobuf object", `{"seconds":1744675200,"nanos":0}`, want},
		{"null", `null`, time.Time{}},
		{"empty string", `""`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, json.Unmarshal([]byte(tt.in), &d))
			assert.True(t, tt.want.Equal(d.Time), "got %s", d.Time)
		})
	}
}

func TestDate_UnmarshalJSON_Invalid(t *testing.T) {
	for _, in := range []string{`"tomorrow"`, `{"foo":1}`, `true`} {
		var d Date
		err := json.Unmarshal([]byte(in), &d)
		assert.ErrorIs(t, err, ErrInvalidDate, in)
	}
}

func TestDate_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Issued Date `json:"issued"`
		Due    Date `json:"due"`
	}{Issued: NewDate(2025, time.April, 15)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"issued":"2025-04-15","due":null}`, string(data))
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want PostalAddress
	}{
		{
			name: "multi line",
			in:   "Hauptstraße 12a\n10115 Berlin",
			want: PostalAddress{Street: "Hauptstraße 12a", PostCode: "10115", City: "Berlin", Country: "DE"},
		},
		{
			name: "single line with commas",
			in:   "Musterweg 1, 80331 München",
			want: PostalAddress{Street: "Musterweg 1", PostCode: "80331", City: "München", Country: "DE"},
		},
		{
			name: "no postcode",
			in:   "Am Markt 3",
			want: PostalAddress{Street: "Am Markt 3", Country: "DE"},
		},
		{
			name: "empty",
			in:   "  ",
			want: PostalAddress{Country: "DE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAddress(tt.in))
		})
	}
}

func TestSplitStreet(t *testing.T) {
	street, number, suffix := SplitStreet("Hauptstraße 12a")
	assert.Equal(t, "Hauptstraße", street)
	assert.Equal(t, "12", number)
	assert.Equal(t, "a", suffix)

	street, number, suffix = SplitStreet("Am Markt")
	assert.Equal(t, "Am Markt", street)
	assert.Empty(t, number)
	assert.Empty(t, suffix)
}

func TestReportStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to ReportStatus
		want     bool
	}{
		{ReportCalculated, ReportSubmitted, true},
		{ReportCalculated, ReportAccepted, false},
		{ReportSubmitted, ReportAccepted, true},
		{ReportSubmitted, ReportRejected, true},
		{ReportAccepted, ReportRejected, false},
		{ReportRejected, ReportSubmitted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}
