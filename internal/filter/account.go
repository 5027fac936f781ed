package filter

import (
	"slices"
	"strings"

	"sahayak/internal/core"
)

// ByAccount keeps the transactions of one account. The empty string and
// core.AllAccounts pass everything through.
func ByAccount(txns []core.Transaction, account string) []core.Transaction {
	account = strings.TrimSpace(account)
	if account == "" || strings.EqualFold(account, core.AllAccounts) {
		return clone(txns)
	}

	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.MatchesAccount(account) {
			out = append(out, t)
		}
	}
	return out
}

// Search keeps the transactions where q occurs, case-insensitively, in the
// bank name, type, description, mode, reference, SMS account number or
// formatted SMS date. An empty query matches everything.
func Search(txns []core.Transaction, q string) []core.Transaction {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return clone(txns)
	}

	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		fields := []core.Text{
			t.BankName, t.Type, t.Description, t.Mode,
			t.ReferenceID, t.SMSAccountNumber, t.SMSFormattedDatetime,
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(string(f)), q) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// SortOrder orders a transaction list.
type SortOrder string

const (
	SortLatest     SortOrder = "latest"
	SortOldest     SortOrder = "oldest"
	SortAmountAsc  SortOrder = "amount_asc"
	SortAmountDesc SortOrder = "amount_desc"
)

// ParseSort accepts both snake case and the camel-case names used by the
// dashboard ("amountAsc"). Unknown orders return "" which keeps input order.
func ParseSort(s string) SortOrder {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "latest":
		return SortLatest
	case "oldest":
		return SortOldest
	case "amountasc":
		return SortAmountAsc
	case "amountdesc":
		return SortAmountDesc
	default:
		return ""
	}
}

// Sort returns a sorted copy of txns. The sort is stable; transactions
// without a valid timestamp go last for both date orders.
func Sort(txns []core.Transaction, order SortOrder) []core.Transaction {
	out := clone(txns)

	switch order {
	case SortLatest, SortOldest:
		slices.SortStableFunc(out, func(a, b core.Transaction) int {
			ta, okA := a.Time()
			tb, okB := b.Time()
			switch {
			case !okA && !okB:
				return 0
			case !okA:
				return 1
			case !okB:
				return -1
			}
			if order == SortLatest {
				return tb.Compare(ta)
			}
			return ta.Compare(tb)
		})
	case SortAmountAsc:
		slices.SortStableFunc(out, func(a, b core.Transaction) int {
			return a.Amount.Decimal.Cmp(b.Amount.Decimal)
		})
	case SortAmountDesc:
		slices.SortStableFunc(out, func(a, b core.Transaction) int {
			return b.Amount.Decimal.Cmp(a.Amount.Decimal)
		})
	}
	return out
}

// Limit returns at most n transactions; n <= 0 means no limit.
func Limit(txns []core.Transaction, n int) []core.Transaction {
	if n <= 0 || n >= len(txns) {
		return txns
	}
	return txns[:n:n]
}
