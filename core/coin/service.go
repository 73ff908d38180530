package coin

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/authz"
	"github.com/trezcool/tuzo/core/engagement"
	"github.com/trezcool/tuzo/core/org"
	"github.com/trezcool/tuzo/core/quest"
	"github.com/trezcool/tuzo/core/user"
	"github.com/trezcool/tuzo/core/wallet"
)

var (
	// errors
	ErrNoRecipients = errors.New("no recipients staged for distribution")
)

type (
	// ServiceInterface is the transfer engine. Every mutating operation is
	// checked by the authorization gate first, then runs as one transaction
	// over wallet, ledger and status rows; notifications go out only after
	// the transaction commits.
	ServiceInterface interface {
		AllocateToUser(ctx context.Context, actor user.User, alloc Allocation) (wallet.Balance, error)
		FundOrganization(ctx context.Context, actor user.User, orgID string, f Funding) (wallet.Balance, error)
		CreateEngagement(ctx context.Context, actor user.User, orgID string, ne engagement.NewEngagement) (engagement.Engagement, error)
		FundEngagement(ctx context.Context, actor user.User, engagementID string, f Funding) (engagement.Engagement, error)
		ApproveQuest(ctx context.Context, actor user.User, questID string) (quest.Quest, error)
		RejectQuest(ctx context.Context, actor user.User, questID, reason string) (quest.Quest, error)
		AwardQuestCompletion(ctx context.Context, actor user.User, aw Award) (wallet.Balance, error)
		UpsertRecipient(ctx context.Context, actor user.User, engagementID string, nr engagement.NewRecipient) (engagement.Recipient, error)
		RemoveRecipient(ctx context.Context, actor user.User, engagementID, email string) error
		DistributeEngagement(ctx context.Context, actor user.User, engagementID string) (engagement.Engagement, error)
		ManualAdjust(ctx context.Context, actor user.User, adj Adjustment) (wallet.Balance, error)

		GetEngagement(ctx context.Context, actor user.User, engagementID string) (engagement.Engagement, error)
		QueryEngagements(ctx context.Context, actor user.User, orgID string) ([]engagement.Engagement, error)
		QueryRecipients(ctx context.Context, actor user.User, engagementID string) ([]engagement.Recipient, error)

		MyWallet(ctx context.Context, actor user.User) (WalletOverview, error)
		MyLedger(ctx context.Context, actor user.User, orgID string, limit, offset int) ([]wallet.LedgerEntry, error)
		UserBalances(ctx context.Context, actor user.User, userID string) (WalletOverview, error)
	}

	service struct {
		db          core.DB
		gate        *authz.Gate
		wallets     wallet.Repository
		quests      quest.Repository
		engagements engagement.Repository
		users       user.Repository
		orgs        org.Repository
		mailSvc     core.EmailService
		logger      core.Logger
		conf        *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	db core.DB,
	gate *authz.Gate,
	wallets wallet.Repository,
	quests quest.Repository,
	engagements engagement.Repository,
	users user.Repository,
	orgs org.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *service {
	return &service{
		db:          db,
		gate:        gate,
		wallets:     wallets,
		quests:      quests,
		engagements: engagements,
		users:       users,
		orgs:        orgs,
		mailSvc:     mailSvc,
		logger:      logger,
		conf:        conf,
	}
}

func (svc *service) inTx(ctx context.Context, fn func(tx core.DBTransactor) error) error {
	tx, err := svc.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// AllocateToUser moves coins from the platform wallet to a student's global
// wallet. Master admin only.
func (svc *service) AllocateToUser(ctx context.Context, actor user.User, alloc Allocation) (wallet.Balance, error) {
	if err := svc.gate.RequireMasterAdmin(actor); err != nil {
		return wallet.Balance{}, err
	}

	usr, err := svc.users.GetUser(ctx, user.GetFilter{Email: alloc.Email})
	if err != nil {
		return wallet.Balance{}, err
	}

	var remaining wallet.Balance
	err = svc.inTx(ctx, func(tx core.DBTransactor) error {
		// lock order: platform before student
		platform, err := svc.wallets.GetBalanceForUpdate(ctx, wallet.PlatformAccount(), tx)
		if err != nil {
			return err
		}
		if platform.Amount < alloc.Amount {
			return wallet.ErrInsufficientFunds
		}
		studentAcct := wallet.StudentAccount(usr.ID)
		if err = svc.wallets.EnsureAccount(ctx, studentAcct, tx); err != nil {
			return err
		}

		if remaining, err = svc.wallets.AdjustBalance(ctx, platform.Account, -alloc.Amount, tx); err != nil {
			return err
		}
		if _, err = svc.wallets.AdjustBalance(ctx, studentAcct, alloc.Amount, tx); err != nil {
			return err
		}
		if err = svc.appendPair(ctx, tx, platform.Account, studentAcct, alloc.Amount, wallet.EntryFundUser, usr.ID, alloc.Reason, actor.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return wallet.Balance{}, err
	}

	svc.notifyCoinsReceived(usr, alloc.Amount, alloc.Reason)
	return remaining, nil
}

// FundOrganization moves coins from the platform wallet to an org wallet.
// Master admin only.
func (svc *service) FundOrganization(ctx context.Context, actor user.User, orgID string, f Funding) (wallet.Balance, error) {
	if err := svc.gate.RequireMasterAdmin(actor); err != nil {
		return wallet.Balance{}, err
	}

	o, err := svc.orgs.GetOrg(ctx, org.GetFilter{ID: orgID})
	if err != nil {
		return wallet.Balance{}, err
	}

	var orgBal wallet.Balance
	err = svc.inTx(ctx, func(tx core.DBTransactor) error {
		platform, err := svc.wallets.GetBalanceForUpdate(ctx, wallet.PlatformAccount(), tx)
		if err != nil {
			return err
		}
		if platform.Amount < f.Amount {
			return wallet.ErrInsufficientFunds
		}
		orgAcct := wallet.OrgAccount(o.ID)
		if err = svc.wallets.EnsureAccount(ctx, orgAcct, tx); err != nil {
			return err
		}

		if _, err = svc.wallets.AdjustBalance(ctx, platform.Account, -f.Amount, tx); err != nil {
			return err
		}
		if orgBal, err = svc.wallets.AdjustBalance(ctx, orgAcct, f.Amount, tx); err != nil {
			return err
		}
		return svc.appendPair(ctx, tx, platform.Account, orgAcct, f.Amount, wallet.EntryFundOrg, o.ID, f.Reason, actor.ID)
	})
	if err != nil {
		return wallet.Balance{}, err
	}
	return orgBal, nil
}

// CreateEngagement creates a draft distribution pool for an organization.
// Org admin (or master admin) only.
func (svc *service) CreateEngagement(ctx context.Context, actor user.User, orgID string, ne engagement.NewEngagement) (engagement.Engagement, error) {
	if err := svc.gate.RequireOrgAdmin(ctx, actor, orgID); err != nil {
		return engagement.Engagement{}, err
	}
	if _, err := svc.orgs.GetOrg(ctx, org.GetFilter{ID: orgID}); err != nil {
		return engagement.Engagement{}, err
	}

	now := time.Now().UTC()
	e := engagement.Engagement{
		OrgID:       orgID,
		Name:        ne.Name,
		Description: ne.Description,
		Status:      engagement.StatusDraft,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.engagements.CreateEngagement(ctx, e)
}

// FundEngagement moves coins from the org wallet into the engagement budget
// and activates a draft pool. Org admin (or master admin) only.
func (svc *service) FundEngagement(ctx context.Context, actor user.User, engagementID string, f Funding) (engagement.Engagement, error) {
	e, err := svc.engagements.GetEngagement(ctx, engagementID)
	if err != nil {
		return engagement.Engagement{}, err
	}
	if err = svc.gate.RequireOrgAdmin(ctx, actor, e.OrgID); err != nil {
		return engagement.Engagement{}, err
	}

	err = svc.inTx(ctx, func(tx core.DBTransactor) error {
		if e, err = svc.engagements.GetEngagementForUpdate(ctx, engagementID, tx); err != nil {
			return err
		}
		if e.Status == engagement.StatusClosed {
			return core.NewValidationError(errors.New("engagement is closed"))
		}
		orgBal, err := svc.wallets.GetBalanceForUpdate(ctx, wallet.OrgAccount(e.OrgID), tx)
		if err != nil {
			if errors.Cause(err) == wallet.ErrNotFound {
				return wallet.ErrInsufficientFunds
			}
			return err
		}
		if orgBal.Amount < f.Amount {
			return wallet.ErrInsufficientFunds
		}

		if _, err = svc.wallets.AdjustBalance(ctx, orgBal.Account, -f.Amount, tx); err != nil {
			return err
		}
		if _, err = svc.wallets.AppendEntry(ctx, wallet.LedgerEntry{
			Account:   orgBal.Account,
			Delta:     -f.Amount,
			Kind:      wallet.EntryEngagementFund,
			RelatedID: null.StringFrom(e.ID),
			Reason:    f.Reason,
			ActorID:   actor.ID,
			CreatedAt: time.Now().UTC(),
		}, tx); err != nil {
			return err
		}

		e.BudgetTotal += f.Amount
		e.Remaining += f.Amount
		if e.Status == engagement.StatusDraft {
			e.Status = engagement.StatusActive
		}
		e.UpdatedAt = time.Now().UTC()
		e, err = svc.engagements.UpdateEngagement(ctx, e, tx)
		return err
	})
	if err != nil {
		return engagement.Engagement{}, err
	}
	return e, nil
}

// ApproveQuest reserves the quest's reward as an escrow debit on the funding
// wallet and flips submitted to approved; the unspent reservation is tracked
// on the quest row and consumed by awards. Master admin only. A duplicate or
// concurrent approval fails with wallet.ErrBudgetExists and no side effects.
func (svc *service) ApproveQuest(ctx context.Context, actor user.User, questID string) (quest.Quest, error) {
	if err := svc.gate.RequireMasterAdmin(actor); err != nil {
		return quest.Quest{}, err
	}

	var q quest.Quest
	err := svc.inTx(ctx, func(tx core.DBTransactor) error {
		var err error
		if q, err = svc.quests.GetQuestForUpdate(ctx, questID, tx); err != nil {
			return err
		}
		switch q.Status {
		case quest.StatusSubmitted:
		case quest.StatusApproved:
			return wallet.ErrBudgetExists
		default:
			return quest.ErrInvalidTransition
		}

		funding, err := svc.wallets.GetBalanceForUpdate(ctx, q.FundingAccount(), tx)
		if err != nil {
			if errors.Cause(err) == wallet.ErrNotFound {
				return wallet.ErrInsufficientFunds
			}
			return err
		}
		if funding.Amount < q.RewardCoins {
			return wallet.ErrInsufficientFunds
		}

		// the partial unique index on (related_entity_id) WHERE kind =
		// 'quest_budget' resolves concurrent approvals: one commits, the
		// other gets ErrBudgetExists.
		if _, err = svc.wallets.AppendEntry(ctx, wallet.LedgerEntry{
			Account:   funding.Account,
			Delta:     -q.RewardCoins,
			Kind:      wallet.EntryQuestBudget,
			RelatedID: null.StringFrom(q.ID),
			Reason:    q.Title,
			ActorID:   actor.ID,
			CreatedAt: time.Now().UTC(),
		}, tx); err != nil {
			return err
		}
		if _, err = svc.wallets.AdjustBalance(ctx, funding.Account, -q.RewardCoins, tx); err != nil {
			return err
		}
		if q, err = svc.quests.UpdateQuestStatus(ctx, q.ID, quest.StatusSubmitted, quest.StatusApproved, tx); err != nil {
			return err
		}
		q.EscrowRemaining = q.RewardCoins
		q, err = svc.quests.UpdateQuest(ctx, q, tx)
		return err
	})
	if err != nil {
		return quest.Quest{}, err
	}

	svc.notifyQuestStatus(ctx, q)
	return q, nil
}

// RejectQuest flips submitted to rejected (terminal) and refunds any
// existing budget reservation in full. Master admin only.
func (svc *service) RejectQuest(ctx context.Context, actor user.User, questID, reason string) (quest.Quest, error) {
	if err := svc.gate.RequireMasterAdmin(actor); err != nil {
		return quest.Quest{}, err
	}

	var q quest.Quest
	err := svc.inTx(ctx, func(tx core.DBTransactor) error {
		var err error
		if q, err = svc.quests.GetQuestForUpdate(ctx, questID, tx); err != nil {
			return err
		}
		if q.Status != quest.StatusSubmitted {
			return quest.ErrInvalidTransition
		}

		// refund a reservation left by a racing approval
		acct := q.FundingAccount()
		if budget, err := svc.wallets.GetEntry(ctx, acct, wallet.EntryQuestBudget, q.ID, tx); err == nil {
			if _, err = svc.wallets.AppendEntry(ctx, wallet.LedgerEntry{
				Account:   budget.Account,
				Delta:     -budget.Delta,
				Kind:      wallet.EntryQuestRefund,
				RelatedID: null.StringFrom(q.ID),
				Reason:    reason,
				ActorID:   actor.ID,
				CreatedAt: time.Now().UTC(),
			}, tx); err != nil {
				return err
			}
			if _, err = svc.wallets.AdjustBalance(ctx, budget.Account, -budget.Delta, tx); err != nil {
				return err
			}
		} else if errors.Cause(err) != wallet.ErrNotFound {
			return err
		}

		q, err = svc.quests.UpdateQuestStatus(ctx, q.ID, quest.StatusSubmitted, quest.StatusRejected, tx)
		return err
	})
	if err != nil {
		return quest.Quest{}, err
	}

	svc.notifyQuestStatus(ctx, q)
	return q, nil
}

// AwardQuestCompletion pays the quest reward to the student's global wallet.
// The payout draws down the escrow reserved at approval; once the escrow is
// spent, each further award debits the funding wallet in the same
// transaction and fails with wallet.ErrInsufficientFunds when it cannot.
// Staff (or better) of the quest's org; any staff for platform quests. A
// submission is only ever paid once: a second call fails with
// wallet.ErrAlreadyAwarded.
func (svc *service) AwardQuestCompletion(ctx context.Context, actor user.User, aw Award) (wallet.Balance, error) {
	q, err := svc.quests.GetQuest(ctx, aw.QuestID)
	if err != nil {
		return wallet.Balance{}, err
	}
	if q.OrgID.Valid {
		err = svc.gate.RequireOrgStaff(ctx, actor, q.OrgID.String)
	} else {
		err = svc.gate.RequireMinRole(actor, user.RoleStaff)
	}
	if err != nil {
		return wallet.Balance{}, err
	}

	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: aw.UserID})
	if err != nil {
		return wallet.Balance{}, err
	}

	var bal wallet.Balance
	err = svc.inTx(ctx, func(tx core.DBTransactor) error {
		if q, err = svc.quests.GetQuestForUpdate(ctx, aw.QuestID, tx); err != nil {
			return err
		}
		if q.Status != quest.StatusApproved {
			return quest.ErrInvalidTransition
		}

		studentAcct := wallet.StudentAccount(usr.ID)
		if _, err = svc.wallets.GetEntry(ctx, wallet.Account{Kind: wallet.KindStudentGlobal}, wallet.EntryQuestAward, aw.SubmissionID, tx); err == nil {
			return wallet.ErrAlreadyAwarded
		} else if errors.Cause(err) != wallet.ErrNotFound {
			return err
		}
		if err = svc.wallets.EnsureAccount(ctx, studentAcct, tx); err != nil {
			return err
		}

		if q.EscrowRemaining >= q.RewardCoins {
			// covered by the reservation made at approval; the funding
			// wallet was already debited then.
			q.EscrowRemaining -= q.RewardCoins
			q.UpdatedAt = time.Now().UTC()
			if q, err = svc.quests.UpdateQuest(ctx, q, tx); err != nil {
				return err
			}
		} else {
			// escrow spent; this award is funded directly. the funding
			// wallet is locked before the student wallet.
			funding, err := svc.wallets.GetBalanceForUpdate(ctx, q.FundingAccount(), tx)
			if err != nil {
				if errors.Cause(err) == wallet.ErrNotFound {
					return wallet.ErrInsufficientFunds
				}
				return err
			}
			if funding.Amount < q.RewardCoins {
				return wallet.ErrInsufficientFunds
			}
			if _, err = svc.wallets.AppendEntry(ctx, wallet.LedgerEntry{
				Account:   funding.Account,
				Delta:     -q.RewardCoins,
				Kind:      wallet.EntryQuestAward,
				RelatedID: null.StringFrom(aw.SubmissionID),
				Reason:    q.Title,
				ActorID:   actor.ID,
				CreatedAt: time.Now().UTC(),
			}, tx); err != nil {
				return err
			}
			if _, err = svc.wallets.AdjustBalance(ctx, funding.Account, -q.RewardCoins, tx); err != nil {
				return err
			}
		}

		// the partial unique index on (related_entity_id) WHERE
		// kind = 'quest_award' resolves concurrent retries.
		if _, err = svc.wallets.AppendEntry(ctx, wallet.LedgerEntry{
			Account:   studentAcct,
			Delta:     q.RewardCoins,
			Kind:      wallet.EntryQuestAward,
			RelatedID: null.StringFrom(aw.SubmissionID),
			Reason:    q.Title,
			ActorID:   actor.ID,
			CreatedAt: time.Now().UTC(),
		}, tx); err != nil {
			return err
		}
		bal, err = svc.wallets.AdjustBalance(ctx, studentAcct, q.RewardCoins, tx)
		return err
	})
	if err != nil {
		return wallet.Balance{}, err
	}

	svc.notifyCoinsReceived(usr, q.RewardCoins, fmt.Sprintf("Quest completed: %s", q.Title))
	return bal, nil
}

// UpsertRecipient stages or updates a payout line on an engagement. The
// recipient must be a member of the engagement's organization.
func (svc *service) UpsertRecipient(ctx context.Context, actor user.User, engagementID string, nr engagement.NewRecipient) (engagement.Recipient, error) {
	e, err := svc.engagements.GetEngagement(ctx, engagementID)
	if err != nil {
		return engagement.Recipient{}, err
	}
	if err = svc.gate.RequireOrgAdmin(ctx, actor, e.OrgID); err != nil {
		return engagement.Recipient{}, err
	}
	if e.Status == engagement.StatusClosed {
		return engagement.Recipient{}, core.NewValidationError(errors.New("engagement is closed"))
	}

	usr, err := svc.users.GetUser(ctx, user.GetFilter{Email: nr.Email})
	if err != nil {
		return engagement.Recipient{}, err
	}
	if _, err = svc.orgs.GetMembership(ctx, usr.ID, e.OrgID); err != nil {
		if errors.Cause(err) == org.ErrNotMember {
			return engagement.Recipient{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return engagement.Recipient{}, err
	}

	return svc.engagements.UpsertRecipient(ctx, engagement.Recipient{
		EngagementID:  e.ID,
		UserID:        usr.ID,
		PlannedAmount: nr.Amount,
		CreatedAt:     time.Now().UTC(),
	})
}

// RemoveRecipient removes a staged payout line.
func (svc *service) RemoveRecipient(ctx context.Context, actor user.User, engagementID, email string) error {
	e, err := svc.engagements.GetEngagement(ctx, engagementID)
	if err != nil {
		return err
	}
	if err = svc.gate.RequireOrgAdmin(ctx, actor, e.OrgID); err != nil {
		return err
	}
	usr, err := svc.users.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	return svc.engagements.RemoveRecipient(ctx, e.ID, usr.ID)
}

// DistributeEngagement pays every staged recipient their planned amount from
// the engagement budget and consumes the staging list, so a retry of a
// committed distribution pays nobody. All lines commit or none do; the pool
// closes when the budget is fully drained.
func (svc *service) DistributeEngagement(ctx context.Context, actor user.User, engagementID string) (engagement.Engagement, error) {
	e, err := svc.engagements.GetEngagement(ctx, engagementID)
	if err != nil {
		return engagement.Engagement{}, err
	}
	if err = svc.gate.RequireOrgAdmin(ctx, actor, e.OrgID); err != nil {
		return engagement.Engagement{}, err
	}

	err = svc.inTx(ctx, func(tx core.DBTransactor) error {
		if e, err = svc.engagements.GetEngagementForUpdate(ctx, engagementID, tx); err != nil {
			return err
		}
		if e.Status != engagement.StatusActive {
			return core.NewValidationError(errors.New("engagement is not active"))
		}

		recipients, err := svc.engagements.QueryRecipients(ctx, e.ID, tx)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return ErrNoRecipients
		}

		var total int64
		for _, r := range recipients {
			total += r.PlannedAmount
		}
		if e.Remaining < total {
			return wallet.ErrInsufficientFunds
		}

		// student wallets are locked after the engagement row, in a fixed
		// order among themselves
		sort.Slice(recipients, func(i, j int) bool { return recipients[i].UserID < recipients[j].UserID })

		now := time.Now().UTC()
		for _, r := range recipients {
			acct := wallet.StudentOrgAccount(r.UserID, e.OrgID)
			if err = svc.wallets.EnsureAccount(ctx, acct, tx); err != nil {
				return err
			}
			if _, err = svc.wallets.AdjustBalance(ctx, acct, r.PlannedAmount, tx); err != nil {
				return err
			}
			if _, err = svc.wallets.AppendEntry(ctx, wallet.LedgerEntry{
				Account:   acct,
				Delta:     r.PlannedAmount,
				Kind:      wallet.EntryEngagementDistribution,
				RelatedID: null.StringFrom(e.ID),
				Reason:    e.Name,
				ActorID:   actor.ID,
				CreatedAt: now,
			}, tx); err != nil {
				return err
			}
		}

		if err = svc.engagements.ClearRecipients(ctx, e.ID, tx); err != nil {
			return err
		}

		e.Remaining -= total
		e.TotalDistributed += total
		if e.Remaining == 0 {
			e.Status = engagement.StatusClosed
		}
		e.UpdatedAt = now
		e, err = svc.engagements.UpdateEngagement(ctx, e, tx)
		return err
	})
	if err != nil {
		return engagement.Engagement{}, err
	}
	return e, nil
}

// ManualAdjust applies a master-admin correction entry to any wallet; this is
// also how the platform wallet is seeded. The non-negative guard still holds.
func (svc *service) ManualAdjust(ctx context.Context, actor user.User, adj Adjustment) (wallet.Balance, error) {
	if err := svc.gate.RequireMasterAdmin(actor); err != nil {
		return wallet.Balance{}, err
	}

	var bal wallet.Balance
	err := svc.inTx(ctx, func(tx core.DBTransactor) error {
		if err := svc.wallets.EnsureAccount(ctx, adj.Account, tx); err != nil {
			return err
		}
		cur, err := svc.wallets.GetBalanceForUpdate(ctx, adj.Account, tx)
		if err != nil {
			return err
		}
		if cur.Amount+adj.Delta < 0 {
			return wallet.ErrInsufficientFunds
		}
		if bal, err = svc.wallets.AdjustBalance(ctx, adj.Account, adj.Delta, tx); err != nil {
			return err
		}
		_, err = svc.wallets.AppendEntry(ctx, wallet.LedgerEntry{
			Account:   adj.Account,
			Delta:     adj.Delta,
			Kind:      wallet.EntryManualAdjust,
			RelatedID: null.String{},
			Reason:    adj.Reason,
			ActorID:   actor.ID,
			CreatedAt: time.Now().UTC(),
		}, tx)
		return err
	})
	if err != nil {
		return wallet.Balance{}, err
	}
	return bal, nil
}

// GetEngagement reads one engagement; staff or better of its organization.
func (svc *service) GetEngagement(ctx context.Context, actor user.User, engagementID string) (engagement.Engagement, error) {
	e, err := svc.engagements.GetEngagement(ctx, engagementID)
	if err != nil {
		return engagement.Engagement{}, err
	}
	if err = svc.gate.RequireOrgStaff(ctx, actor, e.OrgID); err != nil {
		return engagement.Engagement{}, err
	}
	return e, nil
}

// QueryEngagements lists an organization's engagements; staff or better.
func (svc *service) QueryEngagements(ctx context.Context, actor user.User, orgID string) ([]engagement.Engagement, error) {
	if err := svc.gate.RequireOrgStaff(ctx, actor, orgID); err != nil {
		return nil, err
	}
	return svc.engagements.QueryEngagements(ctx, orgID, nil)
}

// QueryRecipients lists the staged payout lines; staff or better.
func (svc *service) QueryRecipients(ctx context.Context, actor user.User, engagementID string) ([]engagement.Recipient, error) {
	e, err := svc.engagements.GetEngagement(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if err = svc.gate.RequireOrgStaff(ctx, actor, e.OrgID); err != nil {
		return nil, err
	}
	return svc.engagements.QueryRecipients(ctx, e.ID)
}

// MyWallet resolves the actor's balances strictly from their own identity.
func (svc *service) MyWallet(ctx context.Context, actor user.User) (WalletOverview, error) {
	if err := svc.gate.RequireAuthenticated(actor); err != nil {
		return WalletOverview{}, err
	}
	return svc.walletOverview(ctx, actor.ID)
}

// MyLedger returns the actor's own ledger entries, newest first. An empty
// orgID reads the global wallet; otherwise the per-org wallet.
func (svc *service) MyLedger(ctx context.Context, actor user.User, orgID string, limit, offset int) ([]wallet.LedgerEntry, error) {
	if err := svc.gate.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	acct := wallet.StudentAccount(actor.ID)
	if orgID != "" {
		acct = wallet.StudentOrgAccount(actor.ID, orgID)
	}
	return svc.wallets.QueryEntries(ctx, acct, limit, offset)
}

// UserBalances is the elevated read of another user's balances; staff or
// better, and logged as a privileged read.
func (svc *service) UserBalances(ctx context.Context, actor user.User, userID string) (WalletOverview, error) {
	if err := svc.gate.RequireMinRole(actor, user.RoleStaff); err != nil {
		return WalletOverview{}, err
	}
	svc.logger.Info(fmt.Sprintf("privileged balance read: actor=%s target=%s", actor.ID, userID), actor)
	return svc.walletOverview(ctx, userID)
}

func (svc *service) walletOverview(ctx context.Context, userID string) (WalletOverview, error) {
	overview := WalletOverview{Global: wallet.Balance{Account: wallet.StudentAccount(userID)}}

	bal, err := svc.wallets.GetBalance(ctx, wallet.StudentAccount(userID))
	if err == nil {
		overview.Global = bal
	} else if errors.Cause(err) != wallet.ErrNotFound {
		return WalletOverview{}, err
	}

	memberships, err := svc.orgs.QueryMemberships(ctx, org.MembershipFilter{UserID: userID})
	if err != nil {
		return WalletOverview{}, err
	}
	for _, m := range memberships {
		acct := wallet.StudentOrgAccount(userID, m.OrgID)
		bal, err := svc.wallets.GetBalance(ctx, acct)
		if err != nil {
			if errors.Cause(err) == wallet.ErrNotFound {
				bal = wallet.Balance{Account: acct}
			} else {
				return WalletOverview{}, err
			}
		}
		overview.OrgBalances = append(overview.OrgBalances, bal)
	}
	return overview, nil
}

// appendPair writes the matching debit/credit entries of a transfer.
func (svc *service) appendPair(ctx context.Context, tx core.DBTransactor, from, to wallet.Account, amount int64, kind, relatedID, reason, actorID string) error {
	now := time.Now().UTC()
	if _, err := svc.wallets.AppendEntry(ctx, wallet.LedgerEntry{
		Account:   from,
		Delta:     -amount,
		Kind:      kind,
		RelatedID: null.StringFrom(relatedID),
		Reason:    reason,
		ActorID:   actorID,
		CreatedAt: now,
	}, tx); err != nil {
		return err
	}
	_, err := svc.wallets.AppendEntry(ctx, wallet.LedgerEntry{
		Account:   to,
		Delta:     amount,
		Kind:      kind,
		RelatedID: null.StringFrom(relatedID),
		Reason:    reason,
		ActorID:   actorID,
		CreatedAt: now,
	}, tx)
	return err
}

// notifications are post-commit and best-effort; failures are logged by the
// email service, never surfaced to the caller.

func (svc *service) notifyCoinsReceived(usr user.User, amount int64, reason string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("You received %d coins - %s", amount, svc.conf.AppName),
		TemplateName: "coins-received",
		TemplateData: struct {
			User   user.User
			Amount int64
			Reason string
		}{usr, amount, reason},
	})
}

func (svc *service) notifyQuestStatus(ctx context.Context, q quest.Quest) {
	author, err := svc.users.GetUser(ctx, user.GetFilter{ID: q.AuthorID})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("quest status notification skipped: %v", err))
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: author.Name, Address: author.Email}},
		Subject:      fmt.Sprintf("Quest %s - %s", q.Status, svc.conf.AppName),
		TemplateName: "quest-status",
		TemplateData: struct {
			User  user.User
			Quest quest.Quest
		}{author, q},
	})
}
