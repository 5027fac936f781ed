package aggregate

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"sahayak/internal/core"
)

var hundred = decimal.NewFromInt(100)

// DailySpend returns one row per day of the given month with the summed
// non-AUTO debits of that day. Days without spending are present with zero.
func DailySpend(txns []core.Transaction, year int, month time.Month) []core.DayAmount {
	days := time.Date(year, month+1, 0, 0, 0, 0, 0, time.Local).Day()
	sums := make([]decimal.Decimal, days)

	for _, t := range txns {
		if t.Kind() != core.Debit || t.NormalizedMode() == core.ModeAuto {
			continue
		}
		ts, ok := t.Time()
		if !ok || ts.Year() != year || ts.Month() != month {
			continue
		}
		d := ts.Day() - 1
		sums[d] = sums[d].Add(t.Amount.Value())
	}

	rows := make([]core.DayAmount, days)
	for i, v := range sums {
		rows[i] = core.DayAmount{Day: i + 1, Value: core.Round2(v)}
	}
	return rows
}

// Shares attaches each row's percentage of the total, to one decimal place.
// A zero total yields zero percentages.
func Shares(rows []core.ModeAmount) []core.ModeShare {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Value)
	}

	out := make([]core.ModeShare, len(rows))
	for i, r := range rows {
		out[i] = core.ModeShare{ModeAmount: r, Percent: percent(r.Value, total)}
	}
	return out
}

// BalanceShares lists every account's balance with its share of the total,
// and returns the total balance.
func BalanceShares(accounts []core.Account) ([]core.BalanceShare, decimal.Decimal) {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.BalanceValue())
	}

	out := make([]core.BalanceShare, len(accounts))
	for i, a := range accounts {
		out[i] = core.BalanceShare{
			Name:    a.Label(),
			Value:   core.Round2(a.BalanceValue()),
			Percent: percent(a.BalanceValue(), total),
		}
	}
	return out, core.Round2(total)
}

// AvailableYears returns the years of result, or of txns when result has
// none, with the year of now prepended when missing.
func AvailableYears(result core.AggregateResult, txns []core.Transaction, now time.Time) []int {
	years := slices.Clone(result.Years)
	if len(years) == 0 {
		seen := make(map[int]struct{})
		for _, t := range txns {
			if ts, ok := t.Time(); ok {
				seen[ts.Year()] = struct{}{}
			}
		}
		for y := range seen {
			years = append(years, y)
		}
		slices.SortFunc(years, func(a, b int) int { return b - a })
	}

	if !slices.Contains(years, now.Year()) {
		years = append([]int{now.Year()}, years...)
	}
	return years
}

func percent(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(total).Round(1)
}
