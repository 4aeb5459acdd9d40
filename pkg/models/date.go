package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a value cannot be normalized to a date.
var ErrInvalidDate = errors.New("invalid date value")

// dateLayouts lists the textual forms accepted from source systems, ISO first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"2.1.06",
}

// Date is a point in time normalized at the system boundary.
// It decodes from ISO or German date strings, unix timestamps and
// Firestore-style {"_seconds","_nanoseconds"} / {"seconds","nanos"} objects.
type Date struct {
	time.Time
}

// NewDate returns the date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON encodes the date as YYYY-MM-DD, or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format("2006-01-02"))
}

// UnmarshalJSON accepts every representation understood by NormalizeDate.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		d.Time = time.Time{}
		return nil
	}

	t, err := NormalizeDate(raw)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// timeProvider matches protobuf timestamps and similar wrappers.
type timeProvider interface {
	AsTime() time.Time
}

// NormalizeDate converts any supported date representation to time.Time.
func NormalizeDate(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case *time.Time:
		if val == nil {
			return time.Time{}, fmt.Errorf("%w: nil time", ErrInvalidDate)
		}
		return *val, nil
	case Date:
		return val.Time, nil
	case *Date:
		if val == nil {
			return time.Time{}, fmt.Errorf("%w: nil date", ErrInvalidDate)
		}
		return val.Time, nil
	case timeProvider:
		return val.AsTime(), nil
	case string:
		return ParseDateString(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
		}
		return fromUnix(f)
	case float64:
		return fromUnix(val)
	case int64:
		return fromUnix(float64(val))
	case int:
		return fromUnix(float64(val))
	case map[string]any:
		return fromTimestampObject(val)
	}
	return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, v)
}

// ParseDateString parses ISO and German date notations.
func ParseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// fromUnix treats values above 1e12 as milliseconds.
func fromUnix(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("%w: non-finite timestamp", ErrInvalidDate)
	}
	if math.Abs(f) > 1e12 {
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

func fromTimestampObject(m map[string]any) (time.Time, error) {
	secKey, nanoKey := "_seconds", "_nanoseconds"
	if _, ok := m[secKey]; !ok {
		secKey, nanoKey = "seconds", "nanos"
	}

	sec, ok := numberField(m[secKey])
	if !ok {
		return time.Time{}, fmt.Errorf("%w: timestamp object without seconds", ErrInvalidDate)
	}
	nanos, _ := numberField(m[nanoKey])

	return time.Unix(sec, nanos).UTC(), nil
}

func numberField(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		var i int64
		if _, err := fmt.Sscan(n, &i); err == nil {
			return i, true
		}
	}
	return 0, false
}
