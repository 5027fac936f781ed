// Package aggregate derives the dashboard views from a transaction collection.
//
// Everything here is a pure function of its input: nothing mutates the
// transactions passed in and nothing returns an error for bad data. Malformed
// fields degrade to zero or are excluded, as documented per function.
package aggregate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"sahayak/internal/core"
)

// ChecksumWindow is the number of trailing transactions whose amounts feed
// the fast checksum.
const ChecksumWindow = 50

// Checksum modes accepted by ChecksumFor.
const (
	ChecksumFast   = "fast"
	ChecksumStrict = "strict"
)

// ChecksumFunc fingerprints a transaction collection.
type ChecksumFunc func([]core.Transaction) string

// Checksum returns "<len>|<last timestamp>|<tail sum>".
//
// The last timestamp is the raw timestamp text of the final element in input
// order. The tail sum adds the amounts of the last ChecksumWindow elements,
// each rounded to an integer. A change confined to earlier elements that
// keeps the length, the last timestamp and the tail sum goes unnoticed; use
// StrictChecksum when that matters.
func Checksum(txns []core.Transaction) string {
	n := len(txns)
	if n == 0 {
		return "0||0"
	}

	last := txns[n-1].RawTimestamp()
	sum := decimal.Zero
	for i := max(0, n-ChecksumWindow); i < n; i++ {
		sum = sum.Add(txns[i].Amount.Decimal.Round(0))
	}
	return fmt.Sprintf("%d|%s|%s", n, last, sum.String())
}

// StrictChecksum hashes the identifying fields of every transaction. It is
// slower than Checksum but sensitive to changes anywhere in the collection.
func StrictChecksum(txns []core.Transaction) string {
	h := sha256.New()
	for _, t := range txns {
		fields := []string{
			t.ID.String(),
			t.Amount.Decimal.String(),
			strings.ToLower(t.Type.String()),
			t.NormalizedMode(),
			t.RawTimestamp(),
			t.AccountRef(),
		}
		h.Write([]byte(strings.Join(fields, "\x1f")))
		h.Write([]byte{'\x1e'})
	}
	return fmt.Sprintf("%d|%s", len(txns), hex.EncodeToString(h.Sum(nil))[:32])
}

// ChecksumFor returns the checksum function for mode. Unknown or empty modes
// select the fast checksum.
func ChecksumFor(mode string) ChecksumFunc {
	if strings.EqualFold(strings.TrimSpace(mode), ChecksumStrict) {
		return StrictChecksum
	}
	return Checksum
}
