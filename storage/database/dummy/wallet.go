package dummydb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/wallet"
)

type walletRepository struct {
	db *walletTable
}

var _ wallet.Repository = (*walletRepository)(nil) // interface compliance check

func NewWalletRepository(db *DB) *walletRepository {
	return &walletRepository{db: db.wallet}
}

// ledgerTable mirrors the three append-only ledger tables; both student
// wallet kinds share the student ledger.
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

func (repo *walletRepository) EnsureAccount(_ context.Context, acct wallet.Account, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := acct.String()
	if _, ok := repo.db.balances[key]; !ok {
		repo.db.balances[key] = &wallet.Balance{Account: acct, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

func (repo *walletRepository) GetBalance(_ context.Context, acct wallet.Account, _ ...core.DBExecutor) (wallet.Balance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if bal, ok := repo.db.balances[acct.String()]; ok {
		return *bal, nil
	}
	return wallet.Balance{}, wallet.ErrNotFound
}

func (repo *walletRepository) GetBalanceForUpdate(ctx context.Context, acct wallet.Account, exec ...core.DBExecutor) (wallet.Balance, error) {
	// no row locking in memory; the table mutex covers each call
	return repo.GetBalance(ctx, acct, exec...)
}

func (repo *walletRepository) AdjustBalance(_ context.Context, acct wallet.Account, delta int64, _ ...core.DBExecutor) (wallet.Balance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	bal, ok := repo.db.balances[acct.String()]
	if !ok {
		return wallet.Balance{}, wallet.ErrNotFound
	}
	if bal.Amount+delta < 0 {
		return wallet.Balance{}, wallet.ErrInsufficientFunds
	}
	bal.Amount += delta
	bal.UpdatedAt = time.Now().UTC()
	return *bal, nil
}

func (repo *walletRepository) AppendEntry(_ context.Context, entry wallet.LedgerEntry, _ ...core.DBExecutor) (wallet.LedgerEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	table := ledgerTable(entry.Account.Kind)

	// the partial unique indexes of the SQL schema
	if entry.RelatedID.Valid && (entry.Kind == wallet.EntryQuestBudget || entry.Kind == wallet.EntryQuestAward) {
		for _, e := range repo.db.ledgers[table] {
			if e.Kind == entry.Kind && e.RelatedID.Valid && e.RelatedID.String == entry.RelatedID.String {
				if entry.Kind == wallet.EntryQuestBudget {
					return wallet.LedgerEntry{}, wallet.ErrBudgetExists
				}
				return wallet.LedgerEntry{}, wallet.ErrAlreadyAwarded
			}
		}
	}

	entry.ID = uuid.New().String()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	repo.db.ledgers[table] = append(repo.db.ledgers[table], entry)
	return entry, nil
}

func (repo *walletRepository) QueryEntries(_ context.Context, acct wallet.Account, limit, offset int, _ ...core.DBExecutor) ([]wallet.LedgerEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var entries []wallet.LedgerEntry
	for _, e := range repo.db.ledgers[ledgerTable(acct.Kind)] {
		if e.Account == acct {
			entries = append(entries, e)
		}
	}
	// insertion order is chronological; newest first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	if offset > 0 {
		if offset >= len(entries) {
			return []wallet.LedgerEntry{}, nil
		}
		entries = entries[offset:]
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (repo *walletRepository) GetEntry(_ context.Context, acct wallet.Account, kind, relatedID string, _ ...core.DBExecutor) (wallet.LedgerEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, e := range repo.db.ledgers[ledgerTable(acct.Kind)] {
		if e.Kind != kind || !e.RelatedID.Valid || e.RelatedID.String != relatedID {
			continue
		}
		// zero owner fields match any account in the ledger
		if acct.UserID != "" && e.Account.UserID != acct.UserID {
			continue
		}
		if acct.OrgID != "" && e.Account.OrgID != acct.OrgID {
			continue
		}
		return e, nil
	}
	return wallet.LedgerEntry{}, wallet.ErrNotFound
}
