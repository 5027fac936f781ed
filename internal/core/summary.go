package core

import "github.com/shopspring/decimal"

// ModeAmount is the debit total for one payment mode.
type ModeAmount struct {
	Mode  string          `json:"mode"`
	Value decimal.Decimal `json:"value"`
}

// ModeShare is a ModeAmount with its percentage of the total.
type ModeShare struct {
	ModeAmount
	Percent decimal.Decimal `json:"percent"`
}

// MonthTotals holds credit and debit sums for a "YYYY-MM" month key.
type MonthTotals struct {
	Month  string          `json:"month"`
	Credit decimal.Decimal `json:"credit"`
	Debit  decimal.Decimal `json:"debit"`
}

// DayAmount is the non-AUTO debit total of one day in a month.
type DayAmount struct {
	Day   int             `json:"day"`
	Value decimal.Decimal `json:"value"`
}

// RankedTransaction is a debit with its coerced numeric amount.
type RankedTransaction struct {
	Transaction
	AmountNum decimal.Decimal `json:"amountNum"`
}

// BalanceShare is one account's slice of the total balance.
type BalanceShare struct {
	Name    string          `json:"name"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
}

// AggregateResult is the set of dashboard views derived from a transaction
// collection in a single pass.
type AggregateResult struct {
	// ModeBreakdown sums debits per normalized mode, AUTO excluded, sorted
	// descending by value.
	ModeBreakdown []ModeAmount `json:"mode_breakdown"`

	// MonthlySeries is sorted ascending by month key. Debit totals include
	// AUTO debits.
	MonthlySeries []MonthTotals `json:"monthly_series"`

	// TopDebits holds every non-AUTO debit sorted descending by amount;
	// consumers truncate.
	TopDebits []RankedTransaction `json:"top_debits"`

	// TransactionsByMonth keeps the input order within each month.
	TransactionsByMonth map[string][]Transaction `json:"transactions_by_month"`

	// Years lists distinct years with valid timestamps, descending.
	Years []int `json:"years"`
}

// EmptyAggregate returns a result whose views are empty but non-nil, so it
// serializes as [] and {} rather than null.
func EmptyAggregate() AggregateResult {
	return AggregateResult{
		ModeBreakdown:       []ModeAmount{},
		MonthlySeries:       []MonthTotals{},
		TopDebits:           []RankedTransaction{},
		TransactionsByMonth: map[string][]Transaction{},
		Years:               []int{},
	}
}

// Normalize replaces nil views with empty ones.
func (r AggregateResult) Normalize() AggregateResult {
	if r.ModeBreakdown == nil {
		r.ModeBreakdown = []ModeAmount{}
	}
	if r.MonthlySeries == nil {
		r.MonthlySeries = []MonthTotals{}
	}
	if r.TopDebits == nil {
		r.TopDebits = []RankedTransaction{}
	}
	if r.TransactionsByMonth == nil {
		r.TransactionsByMonth = map[string][]Transaction{}
	}
	if r.Years == nil {
		r.Years = []int{}
	}
	return r
}
