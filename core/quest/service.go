package quest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("quest not found")
	ErrInvalidTransition = errors.New("invalid quest status transition")
	ErrNotAuthor         = errors.New("only the author may modify a quest")
)

type (
	Repository interface {
		CreateQuest(ctx context.Context, q Quest, exec ...core.DBExecutor) (Quest, error)
		GetQuest(ctx context.Context, id string, exec ...core.DBExecutor) (Quest, error)
		// GetQuestForUpdate locks the quest row for the remainder of the transaction.
		GetQuestForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (Quest, error)
		QueryQuests(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Quest, error)
		UpdateQuest(ctx context.Context, q Quest, exec ...core.DBExecutor) (Quest, error)
		// UpdateQuestStatus flips the status only when the current status is
		// `from`; fails with ErrInvalidTransition otherwise.
		UpdateQuestStatus(ctx context.Context, id, from, to string, exec ...core.DBExecutor) (Quest, error)
	}

	// ServiceInterface covers the author-side quest lifecycle; approval,
	// rejection and awarding live on the coin service since they move funds.
	ServiceInterface interface {
		Create(ctx context.Context, actor user.User, nq NewQuest) (Quest, error)
		GetByID(ctx context.Context, id string) (Quest, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Quest, error)
		Update(ctx context.Context, actor user.User, id string, uq UpdateQuest) (Quest, error)
		Submit(ctx context.Context, actor user.User, id string) (Quest, error)
		Archive(ctx context.Context, actor user.User, id string) (Quest, error)
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository) *service {
	return &service{db: db, repo: repo}
}

func (svc *service) Create(ctx context.Context, actor user.User, nq NewQuest) (Quest, error) {
	now := time.Now().UTC()
	q := Quest{
		Title:       nq.Title,
		Description: nq.Description,
		RewardCoins: nq.RewardCoins,
		Status:      StatusDraft,
		OrgID:       null.NewString(nq.OrgID, nq.OrgID != ""),
		AuthorID:    actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateQuest(ctx, q)
}

func (svc *service) GetByID(ctx context.Context, id string) (Quest, error) {
	return svc.repo.GetQuest(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Quest, error) {
	return svc.repo.QueryQuests(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, uq UpdateQuest) (Quest, error) {
	q, err := svc.repo.GetQuest(ctx, id)
	if err != nil {
		return Quest{}, err
	}
	if err = svc.checkAuthor(actor, q); err != nil {
		return Quest{}, err
	}
	if q.Status != StatusDraft {
		return Quest{}, ErrInvalidTransition
	}
	q.Title = uq.Title
	q.Description = uq.Description
	q.RewardCoins = uq.RewardCoins
	q.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateQuest(ctx, q)
}

func (svc *service) Submit(ctx context.Context, actor user.User, id string) (Quest, error) {
	q, err := svc.repo.GetQuest(ctx, id)
	if err != nil {
		return Quest{}, err
	}
	if err = svc.checkAuthor(actor, q); err != nil {
		return Quest{}, err
	}
	return svc.repo.UpdateQuestStatus(ctx, id, StatusDraft, StatusSubmitted)
}

func (svc *service) Archive(ctx context.Context, actor user.User, id string) (Quest, error) {
	q, err := svc.repo.GetQuest(ctx, id)
	if err != nil {
		return Quest{}, err
	}
	if err = svc.checkAuthor(actor, q); err != nil {
		return Quest{}, err
	}
	return svc.repo.UpdateQuestStatus(ctx, id, StatusApproved, StatusArchived)
}

func (svc *service) checkAuthor(actor user.User, q Quest) error {
	if actor.ID == q.AuthorID || actor.IsAdmin() {
		return nil
	}
	return ErrNotAuthor
}
