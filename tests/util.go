package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/tuzo/core/org"
	"github.com/trezcool/tuzo/core/user"
	"github.com/trezcool/tuzo/core/wallet"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateOrg(t *testing.T, repo org.Repository, name string) org.Organization {
	t.Helper()

	now := time.Now().UTC()
	o := org.Organization{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.SetActive(true)
	o, err := repo.CreateOrg(context.Background(), o)
	if err != nil {
		t.Fatalf("CreateOrg() failed: %v", err)
	}
	return o
}

func AddMember(t *testing.T, repo org.Repository, userID, orgID, role string) org.Membership {
	t.Helper()

	m, err := repo.UpsertMembership(context.Background(), org.Membership{
		UserID:    userID,
		OrgID:     orgID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AddMember() failed: %v", err)
	}
	return m
}

// SeedPlatformWallet mints coins straight into the platform wallet.
func SeedPlatformWallet(t *testing.T, repo wallet.Repository, amount int64) wallet.Balance {
	t.Helper()

	ctx := context.Background()
	acct := wallet.PlatformAccount()
	if err := repo.EnsureAccount(ctx, acct); err != nil {
		t.Fatalf("SeedPlatformWallet() failed: %v", err)
	}
	bal, err := repo.AdjustBalance(ctx, acct, amount)
	if err != nil {
		t.Fatalf("SeedPlatformWallet() failed: %v", err)
	}
	if _, err = repo.AppendEntry(ctx, wallet.LedgerEntry{
		Account: acct,
		Delta:   amount,
		Kind:    wallet.EntryManualAdjust,
		Reason:  "test seed",
		ActorID: "test",
	}); err != nil {
		t.Fatalf("SeedPlatformWallet() failed: %v", err)
	}
	return bal
}
