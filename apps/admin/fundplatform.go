package main

import (
	"context"
	"fmt"

	"github.com/trezcool/tuzo/core/wallet"
)

// fundPlatform mints (or burns) coins on the platform wallet and records
// the movement in the platform ledger.
func (cli *commandLine) fundPlatform(amount int64, reason string) error {
	ctx := context.Background()
	acct := wallet.PlatformAccount()

	tx, err := cli.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err = cli.walletRepo.EnsureAccount(ctx, acct, tx); err != nil {
		return err
	}
	bal, err := cli.walletRepo.AdjustBalance(ctx, acct, amount, tx)
	if err != nil {
		return err
	}
	if _, err = cli.walletRepo.AppendEntry(ctx, wallet.LedgerEntry{
		Account: acct,
		Delta:   amount,
		Kind:    wallet.EntryManualAdjust,
		Reason:  reason,
		ActorID: "admin-cli",
	}, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	fmt.Printf("platform wallet balance: %d\n", bal.Amount)
	return nil
}
