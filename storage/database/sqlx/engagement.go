package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/engagement"
)

const engagementColumns = `id, org_id, name, description, budget_total, remaining, total_distributed, status, created_by, created_at, updated_at`

type engagementRepository struct {
	exec core.DBExecutor
}

var _ engagement.Repository = (*engagementRepository)(nil) // interface compliance check

func NewEngagementRepository(exec core.DBExecutor) *engagementRepository {
	return &engagementRepository{exec: exec}
}

type engagementRow struct {
	ID               string    `db:"id"`
	OrgID            string    `db:"org_id"`
	Name             string    `db:"name"`
	Description      string    `db:"description"`
	BudgetTotal      int64     `db:"budget_total"`
	Remaining        int64     `db:"remaining"`
	TotalDistributed int64     `db:"total_distributed"`
	Status           string    `db:"status"`
	CreatedBy        string    `db:"created_by"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r engagementRow) engagement() engagement.Engagement {
	return engagement.Engagement(r)
}

type recipientRow struct {
	EngagementID  string    `db:"engagement_id"`
	UserID        string    `db:"user_id"`
	PlannedAmount int64     `db:"planned_amount"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r recipientRow) recipient() engagement.Recipient {
	return engagement.Recipient(r)
}

func (repo engagementRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return engagement.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo engagementRepository) CreateEngagement(ctx context.Context, e engagement.Engagement, exec ...core.DBExecutor) (engagement.Engagement, error) {
	e.ID = uuid.New().String()
	q := `INSERT INTO engagement (` + engagementColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := getExec(repo.exec, exec).ExecContext(ctx, q,
		e.ID, e.OrgID, e.Name, e.Description, e.BudgetTotal, e.Remaining, e.TotalDistributed,
		e.Status, e.CreatedBy, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		return engagement.Engagement{}, errors.Wrap(err, "inserting engagement")
	}
	return e, nil
}

func (repo engagementRepository) getEngagement(ctx context.Context, id string, forUpdate bool, exec []core.DBExecutor) (engagement.Engagement, error) {
	if _, err := uuid.Parse(id); err != nil {
		return engagement.Engagement{}, engagement.ErrNotFound
	}
	q := `SELECT ` + engagementColumns + ` FROM engagement WHERE id = $1`
	if forUpdate {
		q += " FOR UPDATE"
	}
	var r engagementRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, id); err != nil {
		return engagement.Engagement{}, repo.trapNoRowsErr(err, "finding engagement")
	}
	return r.engagement(), nil
}

func (repo engagementRepository) GetEngagement(ctx context.Context, id string, exec ...core.DBExecutor) (engagement.Engagement, error) {
	return repo.getEngagement(ctx, id, false, exec)
}

func (repo engagementRepository) GetEngagementForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (engagement.Engagement, error) {
	return repo.getEngagement(ctx, id, true, exec)
}

func (repo engagementRepository) QueryEngagements(ctx context.Context, orgID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]engagement.Engagement, error) {
	q := `SELECT ` + engagementColumns + ` FROM engagement`
	var args []interface{}
	if orgID != "" {
		q += " WHERE org_id = $1"
		args = append(args, orgID)
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		q += " ORDER BY created_at"
	}

	var rows []engagementRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying engagements")
	}
	engagements := make([]engagement.Engagement, 0, len(rows))
	for _, r := range rows {
		engagements = append(engagements, r.engagement())
	}
	return engagements, nil
}

func (repo engagementRepository) UpdateEngagement(ctx context.Context, e engagement.Engagement, exec ...core.DBExecutor) (engagement.Engagement, error) {
	q := `
UPDATE engagement
SET name              = $2,
    description       = $3,
    budget_total      = $4,
    remaining         = $5,
    total_distributed = $6,
    status            = $7,
    updated_at        = $8
WHERE id = $1
RETURNING ` + engagementColumns
	var r engagementRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, q,
		e.ID, e.Name, e.Description, e.BudgetTotal, e.Remaining, e.TotalDistributed, e.Status, e.UpdatedAt.UTC())
	if err != nil {
		if isCheckViolation(err) { // remaining >= 0
			return engagement.Engagement{}, errors.Wrap(err, "engagement budget out of range")
		}
		return engagement.Engagement{}, repo.trapNoRowsErr(err, "updating engagement")
	}
	return r.engagement(), nil
}

func (repo engagementRepository) UpsertRecipient(ctx context.Context, r engagement.Recipient, exec ...core.DBExecutor) (engagement.Recipient, error) {
	q := `
INSERT INTO engagement_recipient (engagement_id, user_id, planned_amount, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (engagement_id, user_id) DO UPDATE SET planned_amount = EXCLUDED.planned_amount
RETURNING engagement_id, user_id, planned_amount, created_at`
	var row recipientRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, r.EngagementID, r.UserID, r.PlannedAmount, r.CreatedAt.UTC()); err != nil {
		return engagement.Recipient{}, errors.Wrap(err, "upserting recipient")
	}
	return row.recipient(), nil
}

func (repo engagementRepository) QueryRecipients(ctx context.Context, engagementID string, exec ...core.DBExecutor) ([]engagement.Recipient, error) {
	q := `
SELECT engagement_id, user_id, planned_amount, created_at
FROM engagement_recipient
WHERE engagement_id = $1
ORDER BY user_id`
	var rows []recipientRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, engagementID); err != nil {
		return nil, errors.Wrap(err, "querying recipients")
	}
	recipients := make([]engagement.Recipient, 0, len(rows))
	for _, r := range rows {
		recipients = append(recipients, r.recipient())
	}
	return recipients, nil
}

func (repo engagementRepository) RemoveRecipient(ctx context.Context, engagementID, userID string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`DELETE FROM engagement_recipient WHERE engagement_id = $1 AND user_id = $2`, engagementID, userID)
	if err != nil {
		return errors.Wrap(err, "removing recipient")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "removing recipient")
	}
	if cnt == 0 {
		return engagement.ErrRecipientNotFound
	}
	return nil
}

func (repo engagementRepository) ClearRecipients(ctx context.Context, engagementID string, exec ...core.DBExecutor) error {
	_, err := getExec(repo.exec, exec).ExecContext(ctx,
		`DELETE FROM engagement_recipient WHERE engagement_id = $1`, engagementID)
	return errors.Wrap(err, "clearing recipients")
}
