// Package core provides the domain types shared by the dashboard service.
//
// This file contains the lenient JSON scalar types used to decode backend
// payloads. The backend is loosely typed: amounts arrive as numbers, numeric
// strings or null, identifiers as numbers or strings. Decoding never fails on
// a bad scalar; it degrades to the zero value instead.
package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Dashboard consumers expect plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Amount is a monetary quantity decoded leniently from JSON.
//
// Accepted forms are JSON numbers, numeric strings ("12.50", "12,50") and
// null. Anything else (objects, "abc", "NaN") decodes to zero.
type Amount struct {
	decimal.Decimal
}

// NewAmount returns an Amount from a float, mostly for tests and fixtures.
func NewAmount(f float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(f)}
}

// ParseAmount parses s leniently. Unparseable input yields zero.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}
	}
	// A lone comma is a decimal comma; otherwise commas group digits.
	switch commas := strings.Count(s, ","); {
	case commas == 1 && !strings.Contains(s, "."):
		s = strings.Replace(s, ",", ".", 1)
	case commas > 0:
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	return Amount{Decimal: d}
}

// Value returns the amount used for summation: negatives clamp to zero.
func (a Amount) Value() decimal.Decimal {
	if a.Decimal.IsNegative() {
		return decimal.Zero
	}
	return a.Decimal
}

// UnmarshalJSON implements json.Unmarshaler and never returns an error.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*a = Amount{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*a = Amount{}
			return nil
		}
		*a = ParseAmount(s)
	default:
		*a = ParseAmount(string(b))
	}
	return nil
}

// MarshalJSON writes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Round2 rounds d to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Text is a JSON scalar kept as text. Strings, numbers, booleans and null all
// decode; objects and arrays decode to the empty string.
type Text string

// UnmarshalJSON implements json.Unmarshaler and never returns an error.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*t = ""
			return nil
		}
		*t = Text(s)
	case b[0] == '{', b[0] == '[':
		*t = ""
	default:
		*t = Text(b)
	}
	return nil
}

// String returns the trimmed text.
func (t Text) String() string {
	return strings.TrimSpace(string(t))
}
