package aggregate

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sahayak/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func txn(typ string, amount float64, mode, ts string) core.Transaction {
	return core.Transaction{
		Type:        core.Text(typ),
		Amount:      core.NewAmount(amount),
		Mode:        core.Text(mode),
		TxnDatetime: core.Text(ts),
	}
}

func sampleTransactions() []core.Transaction {
	return []core.Transaction{
		txn("credit", 1000, "", "2024-01-05"),
		txn("debit", 200, "UPI", "2024-01-10"),
		txn("debit", 50, "AUTO", "2024-01-15"),
	}
}

func TestComputeSample(t *testing.T) {
	got := Compute(sampleTransactions())

	if len(got.MonthlySeries) != 1 {
		t.Fatalf("expected one month, got %+v", got.MonthlySeries)
	}
	m := got.MonthlySeries[0]
	if m.Month != "2024-01" || !m.Credit.Equal(dec("1000")) || !m.Debit.Equal(dec("250")) {
		t.Fatalf("unexpected month totals: %+v", m)
	}

	if len(got.ModeBreakdown) != 1 || got.ModeBreakdown[0].Mode != "UPI" || !got.ModeBreakdown[0].Value.Equal(dec("200")) {
		t.Fatalf("unexpected mode breakdown: %+v", got.ModeBreakdown)
	}

	if len(got.TopDebits) != 1 || !got.TopDebits[0].AmountNum.Equal(dec("200")) {
		t.Fatalf("unexpected top debits: %+v", got.TopDebits)
	}

	if !reflect.DeepEqual(got.Years, []int{2024}) {
		t.Fatalf("years = %v, want [2024]", got.Years)
	}

	if len(got.TransactionsByMonth["2024-01"]) != 3 {
		t.Fatalf("expected 3 transactions in 2024-01, got %d", len(got.TransactionsByMonth["2024-01"]))
	}
}

func TestComputeEmpty(t *testing.T) {
	for _, in := range [][]core.Transaction{nil, {}} {
		got := Compute(in)
		if got.ModeBreakdown == nil || got.MonthlySeries == nil || got.TopDebits == nil || got.TransactionsByMonth == nil || got.Years == nil {
			t.Fatalf("views must be non-nil: %+v", got)
		}
		if len(got.ModeBreakdown)+len(got.MonthlySeries)+len(got.TopDebits)+len(got.TransactionsByMonth)+len(got.Years) != 0 {
			t.Fatalf("views must be empty: %+v", got)
		}

		b, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		want := `{"mode_breakdown":[],"monthly_series":[],"top_debits":[],"transactions_by_month":{},"years":[]}`
		if string(b) != want {
			t.Fatalf("json = %s, want %s", b, want)
		}
	}
}

func TestComputeUnparseableTimestamp(t *testing.T) {
	in := []core.Transaction{
		txn("debit", 75, "card", "not a date"),
		txn("debit", 30, "auto", "garbage"),
		txn("credit", 10, "", "2023-05-01"),
		txn("", 7, "", "2024"),
	}
	got := Compute(in)

	if len(got.TopDebits) != 1 || !got.TopDebits[0].AmountNum.Equal(dec("75")) {
		t.Fatalf("undated non-AUTO debit should be ranked, got %+v", got.TopDebits)
	}
	if len(got.ModeBreakdown) != 0 {
		t.Fatalf("undated debit must not reach the mode breakdown: %+v", got.ModeBreakdown)
	}
	if len(got.MonthlySeries) != 1 || got.MonthlySeries[0].Month != "2023-05" || !got.MonthlySeries[0].Debit.IsZero() {
		t.Fatalf("unexpected monthly series: %+v", got.MonthlySeries)
	}
	if len(got.TransactionsByMonth) != 1 || !reflect.DeepEqual(got.Years, []int{2023}) {
		t.Fatalf("undated transactions must not be bucketed: %+v %v", got.TransactionsByMonth, got.Years)
	}
}

func TestComputeNumericDatetimeIsNotEpoch(t *testing.T) {
	got := Compute([]core.Transaction{
		txn("debit", 100, "UPI", "20240105"),
		txn("credit", 7, "", "2024"),
		txn("debit", 40, "UPI", "2024-01-05"),
	})

	if len(got.MonthlySeries) != 1 || got.MonthlySeries[0].Month != "2024-01" {
		t.Fatalf("malformed datetimes reached the monthly series: %+v", got.MonthlySeries)
	}
	if !got.MonthlySeries[0].Debit.Equal(dec("40")) {
		t.Errorf("monthly debit = %s, want 40", got.MonthlySeries[0].Debit)
	}
	if !reflect.DeepEqual(got.Years, []int{2024}) {
		t.Errorf("years = %v, want [2024]", got.Years)
	}
	if _, ok := got.TransactionsByMonth["1970-01"]; ok {
		t.Error("malformed datetime bucketed under 1970-01")
	}
	if len(got.ModeBreakdown) != 1 || !got.ModeBreakdown[0].Value.Equal(dec("40")) {
		t.Errorf("mode breakdown = %+v, want UPI 40", got.ModeBreakdown)
	}
	if len(got.TopDebits) != 2 {
		t.Errorf("undated debit should still be ranked, got %d top debits", len(got.TopDebits))
	}
}

func TestComputeMissingType(t *testing.T) {
	got := Compute([]core.Transaction{txn("", 500, "UPI", "2022-03-09")})

	if !reflect.DeepEqual(got.Years, []int{2022}) {
		t.Fatalf("years = %v, want [2022]", got.Years)
	}
	if len(got.MonthlySeries) != 1 || !got.MonthlySeries[0].Credit.IsZero() || !got.MonthlySeries[0].Debit.IsZero() {
		t.Fatalf("untyped transaction must be bucketed but not summed: %+v", got.MonthlySeries)
	}
	if len(got.ModeBreakdown) != 0 || len(got.TopDebits) != 0 {
		t.Fatalf("untyped transaction must not count as a debit")
	}
}

func TestComputeModesNormalized(t *testing.T) {
	in := []core.Transaction{
		txn("debit", 10, "", "2024-02-01"),
		txn("debit", 20, "null", "2024-02-02"),
		txn("debit", 5, "None", "2024-02-03"),
		txn("debit", 40, "upi", "2024-02-04"),
		txn("DEBIT", 60, "Auto", "2024-02-05"),
		txn("debit", 12.345, "card", "2024-02-06"),
	}
	got := Compute(in)

	want := []core.ModeAmount{
		{Mode: "UPI", Value: dec("40")},
		{Mode: "OTHER", Value: dec("35")},
		{Mode: "CARD", Value: dec("12.35")},
	}
	if len(got.ModeBreakdown) != len(want) {
		t.Fatalf("modes = %+v, want %+v", got.ModeBreakdown, want)
	}
	for i, w := range want {
		g := got.ModeBreakdown[i]
		if g.Mode != w.Mode || !g.Value.Equal(w.Value) {
			t.Fatalf("mode[%d] = %+v, want %+v", i, g, w)
		}
		if g.Mode == core.ModeAuto || g.Mode == "" || g.Mode == "NULL" {
			t.Fatalf("mode %q must not appear", g.Mode)
		}
	}
}

func TestComputeOrdering(t *testing.T) {
	in := []core.Transaction{
		txn("debit", 5, "UPI", "2023-11-02"),
		txn("debit", 80, "UPI", "2024-03-01"),
		txn("debit", 80, "CARD", "2021-07-14"),
		txn("debit", 15, "NEFT", "2024-01-20"),
		txn("credit", 100, "", "2022-12-31"),
	}
	got := Compute(in)

	for i := 1; i < len(got.TopDebits); i++ {
		if got.TopDebits[i].AmountNum.GreaterThan(got.TopDebits[i-1].AmountNum) {
			t.Fatalf("top debits not non-increasing at %d: %+v", i, got.TopDebits)
		}
	}
	if got.TopDebits[0].TxnDatetime != "2024-03-01" {
		t.Fatalf("equal amounts should keep input order, got %s first", got.TopDebits[0].TxnDatetime)
	}

	for i := 1; i < len(got.MonthlySeries); i++ {
		if got.MonthlySeries[i].Month <= got.MonthlySeries[i-1].Month {
			t.Fatalf("monthly series not ascending: %+v", got.MonthlySeries)
		}
	}

	if !reflect.DeepEqual(got.Years, []int{2024, 2023, 2022, 2021}) {
		t.Fatalf("years = %v", got.Years)
	}
}

func TestComputeDeterministic(t *testing.T) {
	in := []core.Transaction{
		txn("debit", 10, "A", "2024-01-01"),
		txn("debit", 10, "B", "2024-01-02"),
		txn("debit", 10, "C", "2024-02-03"),
		txn("credit", 99.99, "", "2023-02-03"),
		txn("debit", 3.333, "A", "bad"),
	}

	first, err := json.Marshal(Compute(in))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := json.Marshal(Compute(in))
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, again)
		}
	}
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	in := sampleTransactions()
	before, _ := json.Marshal(in)
	Compute(in)
	after, _ := json.Marshal(in)
	if string(before) != string(after) {
		t.Fatalf("input mutated:\n%s\n%s", before, after)
	}
}

func TestDebitAccounting(t *testing.T) {
	in := []core.Transaction{
		txn("debit", 10.10, "UPI", "2024-01-01"),
		txn("debit", 20.20, "AUTO", "2024-01-02"),
		txn("debit", 30.30, "CARD", "2024-02-03"),
		txn("debit", 40.40, "auto", "2024-03-04"),
		txn("debit", 99, "UPI", "invalid"),
		txn("credit", 1, "", "2024-01-01"),
	}
	got := Compute(in)

	monthly := decimal.Zero
	for _, m := range got.MonthlySeries {
		monthly = monthly.Add(m.Debit)
	}
	modes := decimal.Zero
	for _, m := range got.ModeBreakdown {
		modes = modes.Add(m.Value)
	}

	dated, auto := decimal.Zero, decimal.Zero
	for _, tx := range in {
		if tx.Kind() != core.Debit {
			continue
		}
		if _, ok := tx.Time(); !ok {
			continue
		}
		dated = dated.Add(tx.Amount.Value())
		if tx.NormalizedMode() == core.ModeAuto {
			auto = auto.Add(tx.Amount.Value())
		}
	}

	if !monthly.Equal(core.Round2(dated)) {
		t.Fatalf("monthly debits %s != dated debits %s", monthly, dated)
	}
	if !modes.Add(auto).Equal(core.Round2(dated)) {
		t.Fatalf("modes %s + auto %s != dated debits %s", modes, auto, dated)
	}
}

func TestTop(t *testing.T) {
	var in []core.Transaction
	for i := 1; i <= 8; i++ {
		in = append(in, txn("debit", float64(i), "UPI", "2024-01-01"))
	}
	res := Compute(in)

	if got := Top(res, 0); len(got) != DefaultTopN || !got[0].AmountNum.Equal(dec("8")) {
		t.Fatalf("Top(0) = %+v", got)
	}
	if got := Top(res, 3); len(got) != 3 {
		t.Fatalf("Top(3) returned %d", len(got))
	}
	if got := Top(res, 100); len(got) != 8 {
		t.Fatalf("Top(100) returned %d", len(got))
	}
	if got := Top(core.EmptyAggregate(), 5); len(got) != 0 {
		t.Fatalf("Top on empty returned %d", len(got))
	}
}

func TestModeBreakdownMatchesCompute(t *testing.T) {
	in := sampleTransactions()
	got := ModeBreakdown(in)
	want := Compute(in).ModeBreakdown
	if len(got) != len(want) || got[0].Mode != want[0].Mode || !got[0].Value.Equal(want[0].Value) {
		t.Fatalf("ModeBreakdown = %+v, Compute = %+v", got, want)
	}
}

func TestMonthKey(t *testing.T) {
	if got := MonthKey(2024, 3); got != "2024-03" {
		t.Fatalf("MonthKey = %q", got)
	}
	if got := MonthKey(999, 12); got != "0999-12" {
		t.Fatalf("MonthKey = %q", got)
	}
}

func TestComputeEpochTimestamp(t *testing.T) {
	ts := time.Date(2021, 8, 20, 9, 30, 0, 0, time.Local).UnixMilli()
	tx := core.Transaction{
		Type:         "debit",
		Amount:       core.NewAmount(42),
		Mode:         "UPI",
		SMSTimestamp: core.Text(decimal.NewFromInt(ts).String()),
	}
	got := Compute([]core.Transaction{tx})
	if len(got.MonthlySeries) != 1 || got.MonthlySeries[0].Month != "2021-08" {
		t.Fatalf("unexpected monthly series %+v", got.MonthlySeries)
	}
}
