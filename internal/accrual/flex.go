package accrual

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Flex* types decode loosely-typed backend fields without failing the whole payload.
// Each records whether the field was present and whether it parsed, so the reader can
// coerce to a default and report the coercion.

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FlexDecimal accepts a JSON number or a numeric string.
type FlexDecimal struct {
	Value   decimal.Decimal
	Present bool
	Valid   bool
	Raw     string
}

// UnmarshalJSON never returns an error; invalid input leaves Valid=false.
func (f *FlexDecimal) UnmarshalJSON(data []byte) error {
	*f = FlexDecimal{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	f.Present = true
	raw := unquote(trimmed)
	f.Raw = raw
	if raw == "" {
		return nil
	}
	value, errParse := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if errParse != nil {
		return nil
	}
	f.Value = value
	f.Valid = true
	return nil
}

// Or returns the parsed value, or fallback when absent or invalid.
func (f FlexDecimal) Or(fallback decimal.Decimal) decimal.Decimal {
	if !f.Valid {
		return fallback
	}
	return f.Value
}

// FlexInt accepts a JSON number (integral) or a numeric string.
type FlexInt struct {
	Value   int64
	Present bool
	Valid   bool
	Raw     string
}

// UnmarshalJSON never returns an error; invalid input leaves Valid=false.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	f.Present = true
	raw := unquote(trimmed)
	f.Raw = raw
	if raw == "" {
		return nil
	}
	if n, errParse := strconv.ParseInt(raw, 10, 64); errParse == nil {
		f.Value = n
		f.Valid = true
		return nil
	}
	fl, errFloat := strconv.ParseFloat(raw, 64)
	if errFloat != nil || math.IsNaN(fl) || math.IsInf(fl, 0) {
		return nil
	}
	f.Value = int64(math.Floor(fl))
	f.Valid = true
	return nil
}

// FlexTime accepts ISO-8601 strings or unix timestamps (seconds or milliseconds).
type FlexTime struct {
	Value   time.Time
	Present bool
	Valid   bool
	Raw     string
}

// UnmarshalJSON never returns an error; invalid input leaves Valid=false.
func (f *FlexTime) UnmarshalJSON(data []byte) error {
	*f = FlexTime{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	f.Present = true
	raw := unquote(trimmed)
	f.Raw = raw
	if raw == "" {
		return nil
	}
	if parsed, ok := parseTime(raw); ok {
		f.Value = parsed
		f.Valid = true
	}
	return nil
}

// FlexString accepts a JSON string or number and keeps its textual form.
type FlexString string

// UnmarshalJSON never returns an error; objects and arrays decode to "".
func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = ""
		return nil
	}
	switch trimmed[0] {
	case '{', '[':
		*f = ""
	default:
		*f = FlexString(unquote(trimmed))
	}
	return nil
}

// String returns the trimmed value.
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// FlexBool accepts true/false, "true"/"1" and 1/0.
type FlexBool bool

// UnmarshalJSON never returns an error; unknown values decode to false.
func (f *FlexBool) UnmarshalJSON(data []byte) error {
	raw := strings.ToLower(unquote(bytes.TrimSpace(data)))
	switch raw {
	case "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

func unquote(data []byte) string {
	if len(data) >= 2 && data[0] == '"' {
		var s string
		if errUnmarshal := json.Unmarshal(data, &s); errUnmarshal == nil {
			return strings.TrimSpace(s)
		}
		return strings.TrimSpace(string(data[1 : len(data)-1]))
	}
	return strings.TrimSpace(string(data))
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if parsed, errParse := time.Parse(layout, raw); errParse == nil {
			return parsed.UTC(), true
		}
	}
	n, errParse := strconv.ParseInt(raw, 10, 64)
	if errParse != nil || n <= 0 {
		return time.Time{}, false
	}
	// Values past 1e12 are unix milliseconds.
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
