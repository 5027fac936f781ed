package aggregate

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"sahayak/internal/core"
)

// DefaultTopN is the number of top debits shown when no limit is given.
const DefaultTopN = 5

type monthBucket struct {
	credit decimal.Decimal
	debit  decimal.Decimal
}

// MonthKey formats the "YYYY-MM" bucket key of a year and 1-indexed month.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// Compute builds every dashboard view in a single pass over txns.
//
// Transactions without a valid timestamp are left out of the month, mode and
// year views; if they are non-AUTO debits they are still ranked in TopDebits.
// Transactions whose type is neither credit nor debit are bucketed by month
// and year but never summed. Monthly debit totals include AUTO debits, the
// mode breakdown and top debits do not.
func Compute(txns []core.Transaction) core.AggregateResult {
	modes := make(map[string]decimal.Decimal)
	months := make(map[string]*monthBucket)
	byMonth := make(map[string][]core.Transaction)
	years := make(map[int]struct{})
	top := make([]core.RankedTransaction, 0)

	for _, t := range txns {
		kind := t.Kind()
		mode := t.NormalizedMode()
		amount := t.Amount.Value()

		if kind == core.Debit && mode != core.ModeAuto {
			top = append(top, core.RankedTransaction{Transaction: t, AmountNum: amount})
		}

		ts, ok := t.Time()
		if !ok {
			continue
		}

		years[ts.Year()] = struct{}{}
		key := MonthKey(ts.Year(), int(ts.Month()))

		b, exists := months[key]
		if !exists {
			b = &monthBucket{}
			months[key] = b
		}
		switch kind {
		case core.Credit:
			b.credit = b.credit.Add(amount)
		case core.Debit:
			b.debit = b.debit.Add(amount)
			if mode != core.ModeAuto {
				modes[mode] = modes[mode].Add(amount)
			}
		}

		byMonth[key] = append(byMonth[key], t)
	}

	result := core.AggregateResult{
		ModeBreakdown:       modeRows(modes),
		MonthlySeries:       make([]core.MonthTotals, 0, len(months)),
		TopDebits:           top,
		TransactionsByMonth: byMonth,
		Years:               make([]int, 0, len(years)),
	}

	for key, b := range months {
		result.MonthlySeries = append(result.MonthlySeries, core.MonthTotals{
			Month:  key,
			Credit: core.Round2(b.credit),
			Debit:  core.Round2(b.debit),
		})
	}
	sort.Slice(result.MonthlySeries, func(i, j int) bool {
		return result.MonthlySeries[i].Month < result.MonthlySeries[j].Month
	})

	sort.SliceStable(result.TopDebits, func(i, j int) bool {
		return result.TopDebits[i].AmountNum.GreaterThan(result.TopDebits[j].AmountNum)
	})

	for y := range years {
		result.Years = append(result.Years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(result.Years)))

	return result
}

// modeRows rounds and orders the mode totals: descending by value, then by
// mode name so equal totals come out in a stable order.
func modeRows(modes map[string]decimal.Decimal) []core.ModeAmount {
	rows := make([]core.ModeAmount, 0, len(modes))
	for mode, v := range modes {
		rows = append(rows, core.ModeAmount{Mode: mode, Value: core.Round2(v)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Value.Cmp(rows[j].Value); c != 0 {
			return c > 0
		}
		return rows[i].Mode < rows[j].Mode
	})
	return rows
}

// ModeBreakdown sums non-AUTO debits per mode without the rest of Compute.
// Unlike Compute it does not require a valid timestamp.
func ModeBreakdown(txns []core.Transaction) []core.ModeAmount {
	modes := make(map[string]decimal.Decimal)
	for _, t := range txns {
		if t.Kind() != core.Debit {
			continue
		}
		mode := t.NormalizedMode()
		if mode == core.ModeAuto {
			continue
		}
		modes[mode] = modes[mode].Add(t.Amount.Value())
	}
	return modeRows(modes)
}

// Top returns at most n of the ranked debits. n <= 0 means DefaultTopN.
func Top(result core.AggregateResult, n int) []core.RankedTransaction {
	if n <= 0 {
		n = DefaultTopN
	}
	if n > len(result.TopDebits) {
		n = len(result.TopDebits)
	}
	out := make([]core.RankedTransaction, n)
	copy(out, result.TopDebits[:n])
	return out
}
