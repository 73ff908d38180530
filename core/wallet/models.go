package wallet

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"
)

// Account kinds
const (
	KindPlatform      = "platform"
	KindOrg           = "org"
	KindStudentGlobal = "student_global"
	KindStudentOrg    = "student_org"
)

// Ledger entry kinds
const (
	EntryFundOrg                = "fund_org"
	EntryFundUser               = "fund_user"
	EntryQuestBudget            = "quest_budget"
	EntryQuestRefund            = "quest_refund"
	EntryQuestAward             = "quest_award"
	EntryManualAdjust           = "manual_adjust"
	EntryEngagementFund         = "engagement_fund"
	EntryEngagementDistribution = "engagement_distribution"
)

// Account identifies a wallet. The platform wallet is a singleton;
// org wallets key on OrgID, student wallets on UserID and, for the
// per-organization kind, on both.
type Account struct {
	Kind   string `json:"kind"`
	UserID string `json:"user_id,omitempty"`
	OrgID  string `json:"org_id,omitempty"`
}

func PlatformAccount() Account {
	return Account{Kind: KindPlatform}
}

func OrgAccount(orgID string) Account {
	return Account{Kind: KindOrg, OrgID: orgID}
}

func StudentAccount(userID string) Account {
	return Account{Kind: KindStudentGlobal, UserID: userID}
}

func StudentOrgAccount(userID, orgID string) Account {
	return Account{Kind: KindStudentOrg, UserID: userID, OrgID: orgID}
}

func (a Account) String() string {
	switch a.Kind {
	case KindPlatform:
		return a.Kind
	case KindOrg:
		return fmt.Sprintf("%s:%s", a.Kind, a.OrgID)
	case KindStudentGlobal:
		return fmt.Sprintf("%s:%s", a.Kind, a.UserID)
	default:
		return fmt.Sprintf("%s:%s:%s", a.Kind, a.UserID, a.OrgID)
	}
}

type Balance struct {
	Account
	Amount    int64     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// LedgerEntry is one immutable wallet mutation. Delta is signed;
// the sum of all deltas for an account equals its balance.
type LedgerEntry struct {
	ID        string      `json:"id"`
	Account   Account     `json:"account"`
	Delta     int64       `json:"delta"`
	Kind      string      `json:"kind"`
	RelatedID null.String `json:"related_entity_id,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	ActorID   string      `json:"actor_id"`
	CreatedAt time.Time   `json:"created_at"` // UTC
}
