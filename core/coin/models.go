package coin

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/wallet"
)

// Allocation moves coins from the platform wallet to a student's global wallet.
type Allocation struct {
	Email  string `json:"email" validate:"required,email"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason"`
}

func (a *Allocation) Validate(validate *validator.Validate) error {
	a.Email = core.CleanString(a.Email, true /* lower */)
	a.Reason = core.CleanString(a.Reason)
	return validate.Struct(a)
}

// Funding moves coins from the platform wallet to an org wallet, or from an
// org wallet into an engagement budget.
type Funding struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason"`
}

func (f *Funding) Validate(validate *validator.Validate) error {
	f.Reason = core.CleanString(f.Reason)
	return validate.Struct(f)
}

// Award pays a quest reward from escrow to a student's global wallet.
// SubmissionID is the idempotency key; a submission is only ever paid once.
type Award struct {
	UserID       string `json:"user_id" validate:"required"`
	QuestID      string `json:"quest_id" validate:"required"`
	SubmissionID string `json:"submission_id" validate:"required"`
}

func (aw *Award) Validate(validate *validator.Validate) error {
	aw.UserID = core.CleanString(aw.UserID)
	aw.QuestID = core.CleanString(aw.QuestID)
	aw.SubmissionID = core.CleanString(aw.SubmissionID)
	return validate.Struct(aw)
}

// Adjustment is a master-admin correction entry on any wallet.
type Adjustment struct {
	Account wallet.Account `json:"account" validate:"required"`
	Delta   int64          `json:"delta" validate:"required"`
	Reason  string         `json:"reason" validate:"required"`
}

func (adj *Adjustment) Validate(validate *validator.Validate) error {
	adj.Reason = core.CleanString(adj.Reason)
	return validate.Struct(adj)
}

// WalletOverview is a student's global balance plus their per-org balances.
type WalletOverview struct {
	Global      wallet.Balance   `json:"global"`
	OrgBalances []wallet.Balance `json:"org_balances"`
}
