package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/quest"
)

const questColumns = `id, title, description, reward_coins, status, escrow_remaining, org_id, author_id, created_at, updated_at`

type questRepository struct {
	exec core.DBExecutor
}

var _ quest.Repository = (*questRepository)(nil) // interface compliance check

func NewQuestRepository(exec core.DBExecutor) *questRepository {
	return &questRepository{exec: exec}
}

type questRow struct {
	ID              string      `db:"id"`
	Title           string      `db:"title"`
	Description     string      `db:"description"`
	RewardCoins     int64       `db:"reward_coins"`
	Status          string      `db:"status"`
	EscrowRemaining int64       `db:"escrow_remaining"`
	OrgID           null.String `db:"org_id"`
	AuthorID        string      `db:"author_id"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r questRow) quest() quest.Quest {
	return quest.Quest(r)
}

func (repo questRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return quest.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo questRepository) CreateQuest(ctx context.Context, q quest.Quest, exec ...core.DBExecutor) (quest.Quest, error) {
	q.ID = uuid.New().String()
	qry := `INSERT INTO quest (` + questColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := getExec(repo.exec, exec).ExecContext(ctx, qry,
		q.ID, q.Title, q.Description, q.RewardCoins, q.Status, q.EscrowRemaining, q.OrgID, q.AuthorID, q.CreatedAt.UTC(), q.UpdatedAt.UTC())
	if err != nil {
		return quest.Quest{}, errors.Wrap(err, "inserting quest")
	}
	return q, nil
}

func (repo questRepository) getQuest(ctx context.Context, id string, forUpdate bool, exec []core.DBExecutor) (quest.Quest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return quest.Quest{}, quest.ErrNotFound
	}
	qry := `SELECT ` + questColumns + ` FROM quest WHERE id = $1`
	if forUpdate {
		qry += " FOR UPDATE"
	}
	var r questRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, qry, id); err != nil {
		return quest.Quest{}, repo.trapNoRowsErr(err, "finding quest")
	}
	return r.quest(), nil
}

func (repo questRepository) GetQuest(ctx context.Context, id string, exec ...core.DBExecutor) (quest.Quest, error) {
	return repo.getQuest(ctx, id, false, exec)
}

func (repo questRepository) GetQuestForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (quest.Quest, error) {
	return repo.getQuest(ctx, id, true, exec)
}

func (repo questRepository) QueryQuests(ctx context.Context, filter *quest.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]quest.Quest, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.OrgID != "" {
			where = append(where, "org_id = "+arg(filter.OrgID))
		}
		if filter.Status != "" {
			where = append(where, "status = "+arg(filter.Status))
		}
		if filter.AuthorID != "" {
			where = append(where, "author_id = "+arg(filter.AuthorID))
		}
	}

	qry := `SELECT ` + questColumns + ` FROM quest`
	if len(where) > 0 {
		qry += " WHERE " + strings.Join(where, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		qry += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		qry += " ORDER BY created_at"
	}

	var rows []questRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, qry, args...); err != nil {
		return nil, errors.Wrap(err, "querying quests")
	}
	quests := make([]quest.Quest, 0, len(rows))
	for _, r := range rows {
		quests = append(quests, r.quest())
	}
	return quests, nil
}

func (repo questRepository) UpdateQuest(ctx context.Context, q quest.Quest, exec ...core.DBExecutor) (quest.Quest, error) {
	qry := `
UPDATE quest
SET title = $2, description = $3, reward_coins = $4, escrow_remaining = $5, updated_at = $6
WHERE id = $1
RETURNING ` + questColumns
	var r questRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, qry, q.ID, q.Title, q.Description, q.RewardCoins, q.EscrowRemaining, q.UpdatedAt.UTC())
	if err != nil {
		return quest.Quest{}, repo.trapNoRowsErr(err, "updating quest")
	}
	return r.quest(), nil
}

func (repo questRepository) UpdateQuestStatus(ctx context.Context, id, from, to string, exec ...core.DBExecutor) (quest.Quest, error) {
	exe := getExec(repo.exec, exec)

	qry := `UPDATE quest SET status = $3, updated_at = now() WHERE id = $1 AND status = $2 RETURNING ` + questColumns
	var r questRow
	err := exe.GetContext(ctx, &r, qry, id, from, to)
	if err == nil {
		return r.quest(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return quest.Quest{}, errors.Wrap(err, "updating quest status")
	}

	// no row matched; tell apart a missing quest from a stale status
	if _, err = repo.getQuest(ctx, id, false, exec); err != nil {
		return quest.Quest{}, err
	}
	return quest.Quest{}, quest.ErrInvalidTransition
}
