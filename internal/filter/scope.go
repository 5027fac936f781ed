package filter

import (
	"fmt"
	"strings"
	"time"

	"sahayak/internal/core"
)

// Scope is the date window and account a dashboard view is restricted to.
type Scope struct {
	Range   RangeKind
	From    string
	To      string
	Account string
}

// Apply filters txns by range first, then by account.
func (s Scope) Apply(txns []core.Transaction, now time.Time) []core.Transaction {
	return ByAccount(ByRange(txns, s.Range, s.From, s.To, now), s.Account)
}

// IsZero reports whether the scope filters nothing.
func (s Scope) IsZero() bool {
	_, _, ranged := Bounds(s.Range, s.From, s.To, time.Now())
	account := strings.TrimSpace(s.Account)
	return !ranged && (account == "" || strings.EqualFold(account, core.AllAccounts))
}

// Key identifies the transactions the scope selects on the day of now.
// Relative ranges resolve against now, so the key changes at midnight.
func (s Scope) Key(now time.Time) string {
	account := s.Account
	if account == "" {
		account = core.AllAccounts
	}
	start, end, ok := Bounds(s.Range, s.From, s.To, now)
	if !ok {
		return fmt.Sprintf("overall|%s", account)
	}
	return fmt.Sprintf("%s..%s|%s", start.Format(DateLayout), end.Format(DateLayout), account)
}
