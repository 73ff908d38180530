package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/org"
)

type orgRepository struct {
	db *orgTable
}

var _ org.Repository = (*orgRepository)(nil) // interface compliance check

func NewOrgRepository(db *DB) *orgRepository {
	return &orgRepository{db: db.org}
}

func membershipKey(userID, orgID string) string {
	return userID + ":" + orgID
}

func (repo *orgRepository) CheckNameUniqueness(_ context.Context, name string, excludedOrgs []org.Organization, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]struct{}, len(excludedOrgs))
	for _, o := range excludedOrgs {
		excluded[o.ID] = struct{}{}
	}
	for _, o := range repo.db.table {
		if _, ok := excluded[o.ID]; ok {
			continue
		}
		if o.Name == name {
			return org.ErrOrgExists
		}
	}
	return nil
}

func (repo *orgRepository) CreateOrg(_ context.Context, o org.Organization, _ ...core.DBExecutor) (org.Organization, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	o.ID = uuid.New().String()
	repo.db.table[o.ID] = &o
	return o, nil
}

func (repo *orgRepository) GetOrg(_ context.Context, filter org.GetFilter, _ ...core.DBExecutor) (org.Organization, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if o, ok := repo.db.table[filter.ID]; ok {
			return *o, nil
		}
		return org.Organization{}, org.ErrNotFound
	}
	for _, o := range repo.db.table {
		if o.Name == filter.Name {
			return *o, nil
		}
	}
	return org.Organization{}, org.ErrNotFound
}

func (repo *orgRepository) QueryOrgs(_ context.Context, _ []core.DBOrdering, _ ...core.DBExecutor) ([]org.Organization, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	orgs := make([]org.Organization, 0, len(repo.db.table))
	for _, o := range repo.db.table {
		orgs = append(orgs, *o)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].CreatedAt.Before(orgs[j].CreatedAt) })
	return orgs, nil
}

func (repo *orgRepository) UpdateOrg(_ context.Context, o org.Organization, _ ...core.DBExecutor) (org.Organization, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origOrg, ok := repo.db.table[o.ID]
	if !ok {
		return org.Organization{}, org.ErrNotFound
	}
	if o.Name != "" {
		origOrg.Name = o.Name
	}
	if o.Description != "" {
		origOrg.Description = o.Description
	}
	if o.IsActive != nil {
		origOrg.IsActive = o.IsActive
	}
	origOrg.UpdatedAt = o.UpdatedAt
	return *origOrg, nil
}

func (repo *orgRepository) DeleteOrgsByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *orgRepository) UpsertMembership(_ context.Context, m org.Membership, _ ...core.DBExecutor) (org.Membership, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.memberships[membershipKey(m.UserID, m.OrgID)] = &m
	return m, nil
}

func (repo *orgRepository) GetMembership(_ context.Context, userID, orgID string, _ ...core.DBExecutor) (org.Membership, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.memberships[membershipKey(userID, orgID)]; ok {
		return *m, nil
	}
	return org.Membership{}, org.ErrNotMember
}

func (repo *orgRepository) QueryMemberships(_ context.Context, filter org.MembershipFilter, _ ...core.DBExecutor) ([]org.Membership, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var members []org.Membership
	for _, m := range repo.db.memberships {
		if filter.UserID != "" && m.UserID != filter.UserID {
			continue
		}
		if filter.OrgID != "" && m.OrgID != filter.OrgID {
			continue
		}
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].OrgID != members[j].OrgID {
			return members[i].OrgID < members[j].OrgID
		}
		return members[i].UserID < members[j].UserID
	})
	return members, nil
}

func (repo *orgRepository) RemoveMembership(_ context.Context, userID, orgID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := membershipKey(userID, orgID)
	if _, ok := repo.db.memberships[key]; !ok {
		return org.ErrNotMember
	}
	delete(repo.db.memberships, key)
	return nil
}
