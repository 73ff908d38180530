package quest

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/wallet"
)

// Statuses
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusRejected  = "rejected" // terminal
	StatusArchived  = "archived"
)

// Quest is a rewardable activity. Platform quests have no OrgID and are
// funded by the platform wallet; org quests are funded by their organization.
// EscrowRemaining is the unspent part of the reservation made at approval;
// awards draw it down before touching the funding wallet again.
type Quest struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	RewardCoins     int64       `json:"reward_coins"`
	Status          string      `json:"status"`
	EscrowRemaining int64       `json:"escrow_remaining"`
	OrgID           null.String `json:"org_id,omitempty"`
	AuthorID        string      `json:"author_id"`
	CreatedAt       time.Time   `json:"created_at"` // UTC
	UpdatedAt       time.Time   `json:"updated_at"` // UTC
}

// FundingAccount is the wallet a quest's reward budget is reserved from.
func (q Quest) FundingAccount() wallet.Account {
	if q.OrgID.Valid {
		return wallet.OrgAccount(q.OrgID.String)
	}
	return wallet.PlatformAccount()
}

// NewQuest contains information needed to create a new draft Quest.
type NewQuest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	RewardCoins int64  `json:"reward_coins" validate:"required,gt=0"`
	OrgID       string `json:"org_id"`
}

func (nq *NewQuest) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	nq.OrgID = core.CleanString(nq.OrgID)
	return validate.Struct(nq)
}

// UpdateQuest edits a draft Quest.
type UpdateQuest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	RewardCoins int64  `json:"reward_coins" validate:"omitempty,gt=0"`
}

func (uq *UpdateQuest) Validate(ctx context.Context, origQuest Quest, validate *validator.Validate) error {
	title := core.CleanString(uq.Title)
	if title != "" {
		uq.Title = title
	} else {
		uq.Title = origQuest.Title
	}
	uq.Description = core.CleanString(uq.Description)
	if uq.RewardCoins == 0 {
		uq.RewardCoins = origQuest.RewardCoins
	}
	return validate.Struct(uq)
}

type QueryFilter struct {
	OrgID    string `query:"org_id"`
	Status   string `query:"status"`
	AuthorID string `query:"author_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.OrgID == "" && qf.Status == "" && qf.AuthorID == ""
}
