package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/wallet"
)

type walletRepository struct {
	exec core.DBExecutor
}

var _ wallet.Repository = (*walletRepository)(nil) // interface compliance check

func NewWalletRepository(exec core.DBExecutor) *walletRepository {
	return &walletRepository{exec: exec}
}

// ledgerTable picks the append-only table for an account kind; both
// student wallet kinds share the student ledger.
func ledgerTable(acctKind string) string {
	switch acctKind {
	case wallet.KindPlatform:
		return "platform_ledger"
	case wallet.KindOrg:
		return "org_ledger"
	default:
		return "student_ledger"
	}
}

type balanceRow struct {
	Kind      string    `db:"kind"`
	UserID    string    `db:"user_id"`
	OrgID     string    `db:"org_id"`
	Amount    int64     `db:"amount"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r balanceRow) balance() wallet.Balance {
	return wallet.Balance{
		Account:   wallet.Account{Kind: r.Kind, UserID: r.UserID, OrgID: r.OrgID},
		Amount:    r.Amount,
		UpdatedAt: r.UpdatedAt,
	}
}

type entryRow struct {
	ID        string      `db:"id"`
	AcctKind  string      `db:"acct_kind"`
	UserID    string      `db:"user_id"`
	OrgID     string      `db:"org_id"`
	Delta     int64       `db:"delta"`
	Kind      string      `db:"kind"`
	RelatedID null.String `db:"related_entity_id"`
	Reason    string      `db:"reason"`
	ActorID   string      `db:"actor_id"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r entryRow) entry() wallet.LedgerEntry {
	return wallet.LedgerEntry{
		ID:        r.ID,
		Account:   wallet.Account{Kind: r.AcctKind, UserID: r.UserID, OrgID: r.OrgID},
		Delta:     r.Delta,
		Kind:      r.Kind,
		RelatedID: r.RelatedID,
		Reason:    r.Reason,
		ActorID:   r.ActorID,
		CreatedAt: r.CreatedAt,
	}
}

func (repo walletRepository) EnsureAccount(ctx context.Context, acct wallet.Account, exec ...core.DBExecutor) error {
	q := `INSERT INTO wallet (kind, user_id, org_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, acct.Kind, acct.UserID, acct.OrgID); err != nil {
		return errors.Wrap(err, "ensuring wallet")
	}
	return nil
}

func (repo walletRepository) getBalance(ctx context.Context, acct wallet.Account, forUpdate bool, exec []core.DBExecutor) (wallet.Balance, error) {
	q := `SELECT kind, user_id, org_id, amount, updated_at FROM wallet WHERE kind = $1 AND user_id = $2 AND org_id = $3`
	if forUpdate {
		q += " FOR UPDATE"
	}
	var r balanceRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, acct.Kind, acct.UserID, acct.OrgID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return wallet.Balance{}, wallet.ErrNotFound
		}
		return wallet.Balance{}, errors.Wrap(err, "finding wallet")
	}
	return r.balance(), nil
}

func (repo walletRepository) GetBalance(ctx context.Context, acct wallet.Account, exec ...core.DBExecutor) (wallet.Balance, error) {
	return repo.getBalance(ctx, acct, false, exec)
}

func (repo walletRepository) GetBalanceForUpdate(ctx context.Context, acct wallet.Account, exec ...core.DBExecutor) (wallet.Balance, error) {
	return repo.getBalance(ctx, acct, true, exec)
}

func (repo walletRepository) AdjustBalance(ctx context.Context, acct wallet.Account, delta int64, exec ...core.DBExecutor) (wallet.Balance, error) {
	q := `
UPDATE wallet
SET amount = amount + $4, updated_at = now()
WHERE kind = $1 AND user_id = $2 AND org_id = $3
RETURNING kind, user_id, org_id, amount, updated_at`
	var r balanceRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, acct.Kind, acct.UserID, acct.OrgID, delta); err != nil {
		switch {
		case errors.Cause(err) == sql.ErrNoRows:
			return wallet.Balance{}, wallet.ErrNotFound
		case isCheckViolation(err): // amount >= 0
			return wallet.Balance{}, wallet.ErrInsufficientFunds
		}
		return wallet.Balance{}, errors.Wrap(err, "adjusting wallet")
	}
	return r.balance(), nil
}

func (repo walletRepository) AppendEntry(ctx context.Context, entry wallet.LedgerEntry, exec ...core.DBExecutor) (wallet.LedgerEntry, error) {
	table := ledgerTable(entry.Account.Kind)
	entry.ID = uuid.New().String()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	q := fmt.Sprintf(`
INSERT INTO %s (id, acct_kind, user_id, org_id, delta, kind, related_entity_id, reason, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, table)
	_, err := getExec(repo.exec, exec).ExecContext(ctx, q,
		entry.ID, entry.Account.Kind, entry.Account.UserID, entry.Account.OrgID,
		entry.Delta, entry.Kind, entry.RelatedID, entry.Reason, entry.ActorID, entry.CreatedAt.UTC())
	if err != nil {
		// the partial unique indexes settle concurrent reservations/awards
		switch {
		case isUniqueViolation(err, "platform_ledger_budget_uniq", "org_ledger_budget_uniq"):
			return wallet.LedgerEntry{}, wallet.ErrBudgetExists
		case isUniqueViolation(err, "student_ledger_award_uniq"):
			return wallet.LedgerEntry{}, wallet.ErrAlreadyAwarded
		}
		return wallet.LedgerEntry{}, errors.Wrap(err, "appending ledger entry")
	}
	return entry, nil
}

func (repo walletRepository) QueryEntries(ctx context.Context, acct wallet.Account, limit, offset int, exec ...core.DBExecutor) ([]wallet.LedgerEntry, error) {
	q := fmt.Sprintf(`
SELECT id, acct_kind, user_id, org_id, delta, kind, related_entity_id, reason, actor_id, created_at
FROM %s
WHERE acct_kind = $1 AND user_id = $2 AND org_id = $3
ORDER BY created_at DESC, id`, ledgerTable(acct.Kind))
	args := []interface{}{acct.Kind, acct.UserID, acct.OrgID}
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var rows []entryRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying ledger entries")
	}
	entries := make([]wallet.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

func (repo walletRepository) GetEntry(ctx context.Context, acct wallet.Account, kind, relatedID string, exec ...core.DBExecutor) (wallet.LedgerEntry, error) {
	// zero owner fields widen the match to the whole ledger table
	q := fmt.Sprintf(`
SELECT id, acct_kind, user_id, org_id, delta, kind, related_entity_id, reason, actor_id, created_at
FROM %s
WHERE kind = $1
  AND related_entity_id = $2
  AND ($3 = '' OR user_id = $3)
  AND ($4 = '' OR org_id = $4)
LIMIT 1`, ledgerTable(acct.Kind))
	var r entryRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, kind, relatedID, acct.UserID, acct.OrgID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return wallet.LedgerEntry{}, wallet.ErrNotFound
		}
		return wallet.LedgerEntry{}, errors.Wrap(err, "finding ledger entry")
	}
	return r.entry(), nil
}
