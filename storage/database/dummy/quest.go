package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/quest"
)

type questRepository struct {
	db *questTable
}

var _ quest.Repository = (*questRepository)(nil) // interface compliance check

func NewQuestRepository(db *DB) *questRepository {
	return &questRepository{db: db.quest}
}

func (repo *questRepository) CreateQuest(_ context.Context, q quest.Quest, _ ...core.DBExecutor) (quest.Quest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	q.ID = uuid.New().String()
	repo.db.table[q.ID] = &q
	return q, nil
}

func (repo *questRepository) GetQuest(_ context.Context, id string, _ ...core.DBExecutor) (quest.Quest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if q, ok := repo.db.table[id]; ok {
		return *q, nil
	}
	return quest.Quest{}, quest.ErrNotFound
}

func (repo *questRepository) GetQuestForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (quest.Quest, error) {
	return repo.GetQuest(ctx, id, exec...)
}

func (repo *questRepository) QueryQuests(_ context.Context, filter *quest.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]quest.Quest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	quests := make([]quest.Quest, 0, len(repo.db.table))
	for _, q := range repo.db.table {
		if filter != nil {
			if filter.OrgID != "" && (!q.OrgID.Valid || q.OrgID.String != filter.OrgID) {
				continue
			}
			if filter.Status != "" && q.Status != filter.Status {
				continue
			}
			if filter.AuthorID != "" && q.AuthorID != filter.AuthorID {
				continue
			}
		}
		quests = append(quests, *q)
	}
	sort.Slice(quests, func(i, j int) bool { return quests[i].CreatedAt.Before(quests[j].CreatedAt) })
	return quests, nil
}

func (repo *questRepository) UpdateQuest(_ context.Context, q quest.Quest, _ ...core.DBExecutor) (quest.Quest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origQuest, ok := repo.db.table[q.ID]
	if !ok {
		return quest.Quest{}, quest.ErrNotFound
	}
	origQuest.Title = q.Title
	origQuest.Description = q.Description
	origQuest.RewardCoins = q.RewardCoins
	origQuest.EscrowRemaining = q.EscrowRemaining
	origQuest.UpdatedAt = q.UpdatedAt
	return *origQuest, nil
}

func (repo *questRepository) UpdateQuestStatus(_ context.Context, id, from, to string, _ ...core.DBExecutor) (quest.Quest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	q, ok := repo.db.table[id]
	if !ok {
		return quest.Quest{}, quest.ErrNotFound
	}
	if q.Status != from {
		return quest.Quest{}, quest.ErrInvalidTransition
	}
	q.Status = to
	q.UpdatedAt = time.Now().UTC()
	return *q, nil
}
