package wallet

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core"
)

var (
	// errors
	ErrNotFound          = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBudgetExists      = errors.New("a budget for this quest has already been reserved")
	ErrAlreadyAwarded    = errors.New("this submission has already been awarded")
)

// Repository is the wallet + ledger store. Mutating calls must be passed the
// executor of the enclosing transaction; balances and entries for one
// operation always commit or roll back together.
type Repository interface {
	// EnsureAccount creates the zero-balance row for acct if missing.
	EnsureAccount(ctx context.Context, acct Account, exec ...core.DBExecutor) error

	GetBalance(ctx context.Context, acct Account, exec ...core.DBExecutor) (Balance, error)

	// GetBalanceForUpdate locks the wallet row for the remainder of the
	// transaction. Callers lock platform/org wallets before student wallets.
	GetBalanceForUpdate(ctx context.Context, acct Account, exec ...core.DBExecutor) (Balance, error)

	// AdjustBalance applies a signed delta. A delta that would take the
	// balance below zero fails with ErrInsufficientFunds, balance unchanged.
	AdjustBalance(ctx context.Context, acct Account, delta int64, exec ...core.DBExecutor) (Balance, error)

	// AppendEntry inserts an immutable ledger entry. A duplicate
	// quest_budget entry for the same quest fails with ErrBudgetExists; a
	// duplicate quest_award entry for the same submission fails with
	// ErrAlreadyAwarded.
	AppendEntry(ctx context.Context, entry LedgerEntry, exec ...core.DBExecutor) (LedgerEntry, error)

	// QueryEntries returns entries for acct ordered by created_at DESC.
	QueryEntries(ctx context.Context, acct Account, limit, offset int, exec ...core.DBExecutor) ([]LedgerEntry, error)

	// GetEntry fetches a single entry by account scope, kind and related id.
	GetEntry(ctx context.Context, acct Account, kind, relatedID string, exec ...core.DBExecutor) (LedgerEntry, error)
}
