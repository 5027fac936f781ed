package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Credit  TxnKind = "credit"
	Debit   TxnKind = "debit"
	Unknown TxnKind = ""
)

// Canonical payment modes.
const (
	ModeAuto  = "AUTO"
	ModeOther = "OTHER"
)

// AllAccounts is the account scope that disables account filtering.
const AllAccounts = "ALL"

type (
	// TxnKind is the direction of a transaction.
	TxnKind string

	// Transaction is a single credit or debit event as returned by the backend.
	// It is read-only input: nothing in this module mutates a Transaction.
	Transaction struct {
		ID           Text   `json:"id"`
		Amount       Amount `json:"amount"`
		Type         Text   `json:"type"`
		Mode         Text   `json:"mode"`
		TxnDatetime  Text   `json:"txn_datetime,omitempty"`
		SMSTimestamp Text   `json:"sms_timestamp,omitempty"`

		// The backend has used several names for the owning account.
		AccountNumber    Text `json:"account_number,omitempty"`
		AccountID        Text `json:"account_id,omitempty"`
		AccountIDCamel   Text `json:"accountId,omitempty"`
		SMSAccountNumber Text `json:"sms_account_number,omitempty"`
		SMSAccount       Text `json:"sms_account,omitempty"`

		BankName             Text `json:"bankName,omitempty"`
		Description          Text `json:"description,omitempty"`
		ReferenceID          Text `json:"reference_id,omitempty"`
		SMSFormattedDatetime Text `json:"sms_formatted_datetime,omitempty"`
	}

	// Account is a bank account as listed by the backend.
	Account struct {
		ID         Text   `json:"id"`
		Number     Text   `json:"account_number"`
		Acronym    Text   `json:"acronym,omitempty"`
		BankName   Text   `json:"bank_name,omitempty"`
		HolderName Text   `json:"holder_name,omitempty"`
		Balance    Amount `json:"current_balance"`
	}
)

var ErrUnknownKind = errors.New("unknown change kind")

// timestampLayouts are tried in order for txn_datetime. Layouts without a
// zone are interpreted in the local time zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Kind classifies the transaction type case-insensitively.
func (t Transaction) Kind() TxnKind {
	switch strings.ToLower(t.Type.String()) {
	case "credit":
		return Credit
	case "debit":
		return Debit
	default:
		return Unknown
	}
}

// NormalizedMode returns the canonical payment mode of the transaction.
func (t Transaction) NormalizedMode() string {
	return NormalizeMode(string(t.Mode))
}

// NormalizeMode maps null-like modes to OTHER and upper-cases the rest.
func NormalizeMode(m string) string {
	s := strings.TrimSpace(m)
	switch strings.ToLower(s) {
	case "", "null", "none":
		return ModeOther
	}
	return strings.ToUpper(s)
}

// RawTimestamp returns the timestamp text the transaction carries: the
// transaction datetime when present, the SMS timestamp otherwise.
func (t Transaction) RawTimestamp() string {
	if s := t.TxnDatetime.String(); s != "" {
		return s
	}
	return t.SMSTimestamp.String()
}

// Time resolves the transaction timestamp in the local time zone.
//
// When txn_datetime is present it is authoritative, even if it does not
// parse; the SMS timestamp (epoch milliseconds) is only consulted when
// txn_datetime is absent.
func (t Transaction) Time() (time.Time, bool) {
	if s := t.TxnDatetime.String(); s != "" {
		return parseTimestamp(s)
	}
	if s := t.SMSTimestamp.String(); s != "" {
		return parseEpochMillis(s)
	}
	return time.Time{}, false
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts.In(time.Local), true
		}
	}
	return time.Time{}, false
}

func parseEpochMillis(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)).In(time.Local), true
}

// AccountRefs returns every non-empty account reference, in priority order.
func (t Transaction) AccountRefs() []string {
	candidates := []Text{t.AccountNumber, t.AccountID, t.AccountIDCamel, t.SMSAccountNumber, t.SMSAccount}
	refs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if s := c.String(); s != "" {
			refs = append(refs, s)
		}
	}
	return refs
}

// AccountRef returns the canonical account reference, or "" when none is set.
func (t Transaction) AccountRef() string {
	if refs := t.AccountRefs(); len(refs) > 0 {
		return refs[0]
	}
	return ""
}

// MatchesAccount reports whether the transaction belongs to account.
// The ALL scope and the empty string match everything.
func (t Transaction) MatchesAccount(account string) bool {
	account = strings.TrimSpace(account)
	if account == "" || strings.EqualFold(account, AllAccounts) {
		return true
	}
	for _, ref := range t.AccountRefs() {
		if ref == account {
			return true
		}
	}
	return false
}

// Label is the short name shown for an account: its acronym, else its number.
func (a Account) Label() string {
	if s := a.Acronym.String(); s != "" {
		return s
	}
	return a.Number.String()
}

// BalanceValue returns the account balance; unlike transaction amounts it
// may be negative.
func (a Account) BalanceValue() decimal.Decimal {
	return a.Balance.Decimal
}

// ChangeKind names an external "data changed" notification.
type ChangeKind string

const (
	AccountsChanged     ChangeKind = "accounts_changed"
	TransactionsChanged ChangeKind = "transactions_changed"
)

// Validate returns ErrUnknownKind for anything but the two known kinds.
func (k ChangeKind) Validate() error {
	switch k {
	case AccountsChanged, TransactionsChanged:
		return nil
	default:
		return ErrUnknownKind
	}
}
