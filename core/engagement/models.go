package engagement

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core"
)

// Statuses
const (
	StatusDraft  = "draft"
	StatusActive = "active"
	StatusClosed = "closed"
)

var (
	// errors
	ErrNotFound          = errors.New("engagement not found")
	ErrRecipientNotFound = errors.New("recipient not found")
)

// Engagement is an organization-funded distribution pool. Funding moves
// coins from the org wallet into BudgetTotal/Remaining; distribution drains
// Remaining into the staged recipients' per-org wallets.
type Engagement struct {
	ID               string    `json:"id"`
	OrgID            string    `json:"org_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	BudgetTotal      int64     `json:"budget_total"`
	Remaining        int64     `json:"remaining"`
	TotalDistributed int64     `json:"total_distributed"`
	Status           string    `json:"status"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

// Recipient is a staged payout line for an Engagement.
type Recipient struct {
	EngagementID  string    `json:"engagement_id"`
	UserID        string    `json:"user_id"`
	PlannedAmount int64     `json:"planned_amount"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// NewEngagement contains information needed to create a new draft Engagement.
type NewEngagement struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (ne *NewEngagement) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	ne.Description = core.CleanString(ne.Description)
	return validate.Struct(ne)
}

// NewRecipient stages or updates a payout line.
type NewRecipient struct {
	Email  string `json:"email" validate:"required,email"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

func (nr *NewRecipient) Validate(validate *validator.Validate) error {
	nr.Email = core.CleanString(nr.Email, true /* lower */)
	return validate.Struct(nr)
}

type Repository interface {
	CreateEngagement(ctx context.Context, e Engagement, exec ...core.DBExecutor) (Engagement, error)
	GetEngagement(ctx context.Context, id string, exec ...core.DBExecutor) (Engagement, error)
	// GetEngagementForUpdate locks the engagement row for the remainder of the transaction.
	GetEngagementForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (Engagement, error)
	QueryEngagements(ctx context.Context, orgID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Engagement, error)
	UpdateEngagement(ctx context.Context, e Engagement, exec ...core.DBExecutor) (Engagement, error)

	UpsertRecipient(ctx context.Context, r Recipient, exec ...core.DBExecutor) (Recipient, error)
	QueryRecipients(ctx context.Context, engagementID string, exec ...core.DBExecutor) ([]Recipient, error)
	RemoveRecipient(ctx context.Context, engagementID, userID string, exec ...core.DBExecutor) error
	// ClearRecipients drops every staged line of the engagement; a
	// successful distribution consumes the list this way.
	ClearRecipients(ctx context.Context, engagementID string, exec ...core.DBExecutor) error
}
