// Package backend provides the transaction sources the dashboard reads
// accounts and transactions from.
package backend

import (
	"context"
	"errors"

	"sahayak/internal/core"
)

// Source is the read side of the transaction backend.
type Source interface {
	// Accounts lists every known account.
	Accounts(ctx context.Context) ([]core.Account, error)
	// Transactions lists the transactions of account. An empty account or
	// core.AllAccounts returns the transactions of every account.
	Transactions(ctx context.Context, account string) ([]core.Transaction, error)
}

// CleanupFunc releases the resources held by a source.
type CleanupFunc func() error

// SourceResult contains the source instance and optional cleanup function
type SourceResult struct {
	Source  Source
	Cleanup CleanupFunc
}

// Factory creates sources based on configuration
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*SourceResult, error)
}

// SourceType names a Source implementation.
type SourceType string

const (
	HTTPSourceType SourceType = "http"
	FileSourceType SourceType = "file"
)

// ErrUnexpectedPayload is returned when a response does not hold a list.
var ErrUnexpectedPayload = errors.New("unexpected payload")

func (st SourceType) String() string {
	return string(st)
}

// IsValid returns true if the source type is valid
func (st SourceType) IsValid() bool {
	switch st {
	case HTTPSourceType, FileSourceType:
		return true
	default:
		return false
	}
}
