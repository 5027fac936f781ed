// Package filter narrows a transaction collection before aggregation.
//
// All functions are pure: they never modify their input and always return a
// new slice. Invalid selectors and bounds degrade to "no filtering".
package filter

import (
	"strings"
	"time"

	"sahayak/internal/core"
)

// RangeKind selects a date window.
type RangeKind string

const (
	Today     RangeKind = "today"
	Yesterday RangeKind = "yesterday"
	Last7     RangeKind = "7d"
	Last30    RangeKind = "30d"
	ThisMonth RangeKind = "this_month"
	LastMonth RangeKind = "last_month"
	Custom    RangeKind = "custom"
	Overall   RangeKind = "overall"
)

// DateLayout is the layout of custom range bounds.
const DateLayout = "2006-01-02"

var rangeAliases = map[string]RangeKind{
	"today":      Today,
	"yesterday":  Yesterday,
	"7d":         Last7,
	"last7":      Last7,
	"30d":        Last30,
	"last30":     Last30,
	"this_month": ThisMonth,
	"thismonth":  ThisMonth,
	"last_month": LastMonth,
	"lastmonth":  LastMonth,
	"custom":     Custom,
	"overall":    Overall,
	"all":        Overall,
}

// ParseRange maps a selector to a RangeKind, case-insensitively. Unknown
// selectors and the empty string map to Overall.
func ParseRange(s string) RangeKind {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if k, ok := rangeAliases[key]; ok {
		return k
	}
	return Overall
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// Bounds returns the inclusive window for kind relative to now, in now's
// location. ok is false when no filtering applies: for Overall, unknown
// kinds, and custom ranges with a missing, unparseable or inverted bound.
func Bounds(kind RangeKind, from, to string, now time.Time) (start, end time.Time, ok bool) {
	switch kind {
	case Today:
		return startOfDay(now), endOfDay(now), true
	case Yesterday:
		y := now.AddDate(0, 0, -1)
		return startOfDay(y), endOfDay(y), true
	case Last7:
		return startOfDay(now.AddDate(0, 0, -6)), endOfDay(now), true
	case Last30:
		return startOfDay(now.AddDate(0, 0, -29)), endOfDay(now), true
	case ThisMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return first, endOfDay(now), true
	case LastMonth:
		first := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location())
		last := time.Date(now.Year(), now.Month(), 0, 0, 0, 0, 0, now.Location())
		return first, endOfDay(last), true
	case Custom:
		f, errF := time.ParseInLocation(DateLayout, strings.TrimSpace(from), now.Location())
		t, errT := time.ParseInLocation(DateLayout, strings.TrimSpace(to), now.Location())
		if errF != nil || errT != nil || f.After(t) {
			return time.Time{}, time.Time{}, false
		}
		return startOfDay(f), endOfDay(t), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// ByRange keeps the transactions whose timestamp falls inside the window.
// When the window does not apply the input is returned as a copy; otherwise
// transactions without a valid timestamp are dropped.
func ByRange(txns []core.Transaction, kind RangeKind, from, to string, now time.Time) []core.Transaction {
	start, end, ok := Bounds(kind, from, to, now)
	if !ok {
		return clone(txns)
	}

	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		ts, valid := t.Time()
		if !valid || ts.Before(start) || ts.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func clone(txns []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txns))
	copy(out, txns)
	return out
}
