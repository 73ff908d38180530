package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/engagement"
)

type engagementRepository struct {
	db *engagementTable
}

var _ engagement.Repository = (*engagementRepository)(nil) // interface compliance check

func NewEngagementRepository(db *DB) *engagementRepository {
	return &engagementRepository{db: db.engagement}
}

func recipientKey(engagementID, userID string) string {
	return engagementID + ":" + userID
}

func (repo *engagementRepository) CreateEngagement(_ context.Context, e engagement.Engagement, _ ...core.DBExecutor) (engagement.Engagement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e.ID = uuid.New().String()
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *engagementRepository) GetEngagement(_ context.Context, id string, _ ...core.DBExecutor) (engagement.Engagement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.table[id]; ok {
		return *e, nil
	}
	return engagement.Engagement{}, engagement.ErrNotFound
}

func (repo *engagementRepository) GetEngagementForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (engagement.Engagement, error) {
	return repo.GetEngagement(ctx, id, exec...)
}

func (repo *engagementRepository) QueryEngagements(_ context.Context, orgID string, _ []core.DBOrdering, _ ...core.DBExecutor) ([]engagement.Engagement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var engagements []engagement.Engagement
	for _, e := range repo.db.table {
		if orgID != "" && e.OrgID != orgID {
			continue
		}
		engagements = append(engagements, *e)
	}
	sort.Slice(engagements, func(i, j int) bool { return engagements[i].CreatedAt.Before(engagements[j].CreatedAt) })
	return engagements, nil
}

func (repo *engagementRepository) UpdateEngagement(_ context.Context, e engagement.Engagement, _ ...core.DBExecutor) (engagement.Engagement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origEng, ok := repo.db.table[e.ID]
	if !ok {
		return engagement.Engagement{}, engagement.ErrNotFound
	}
	*origEng = e
	return *origEng, nil
}

func (repo *engagementRepository) UpsertRecipient(_ context.Context, r engagement.Recipient, _ ...core.DBExecutor) (engagement.Recipient, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.recipients[recipientKey(r.EngagementID, r.UserID)] = &r
	return r, nil
}

func (repo *engagementRepository) QueryRecipients(_ context.Context, engagementID string, _ ...core.DBExecutor) ([]engagement.Recipient, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var recipients []engagement.Recipient
	for _, r := range repo.db.recipients {
		if r.EngagementID == engagementID {
			recipients = append(recipients, *r)
		}
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].UserID < recipients[j].UserID })
	return recipients, nil
}

func (repo *engagementRepository) RemoveRecipient(_ context.Context, engagementID, userID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := recipientKey(engagementID, userID)
	if _, ok := repo.db.recipients[key]; !ok {
		return engagement.ErrRecipientNotFound
	}
	delete(repo.db.recipients, key)
	return nil
}

func (repo *engagementRepository) ClearRecipients(_ context.Context, engagementID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for key, r := range repo.db.recipients {
		if r.EngagementID == engagementID {
			delete(repo.db.recipients, key)
		}
	}
	return nil
}
