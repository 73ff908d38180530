package org

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core"
)

var (
	// errors
	ErrNotFound  = errors.New("organization not found")
	ErrOrgExists = errors.New("an organization with this name already exists")
	ErrNotMember = errors.New("user is not a member of this organization")
)

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name string, excludedOrgs []Organization, exec ...core.DBExecutor) error
		CreateOrg(ctx context.Context, o Organization, exec ...core.DBExecutor) (Organization, error)
		GetOrg(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Organization, error)
		QueryOrgs(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Organization, error)
		UpdateOrg(ctx context.Context, o Organization, exec ...core.DBExecutor) (Organization, error)
		DeleteOrgsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		UpsertMembership(ctx context.Context, m Membership, exec ...core.DBExecutor) (Membership, error)
		GetMembership(ctx context.Context, userID, orgID string, exec ...core.DBExecutor) (Membership, error)
		QueryMemberships(ctx context.Context, filter MembershipFilter, exec ...core.DBExecutor) ([]Membership, error)
		RemoveMembership(ctx context.Context, userID, orgID string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, name string, exclOrgs ...Organization) error
		Create(ctx context.Context, no NewOrg) (Organization, error)
		Query(ctx context.Context, ordering []core.DBOrdering) ([]Organization, error)
		GetByID(ctx context.Context, id string) (Organization, error)
		Update(ctx context.Context, id string, uo UpdateOrg) (Organization, error)
		Delete(ctx context.Context, ids ...string) error

		AddMember(ctx context.Context, orgID string, nm NewMembership) (Membership, error)
		GetMembership(ctx context.Context, userID, orgID string) (Membership, error)
		QueryMembers(ctx context.Context, orgID string) ([]Membership, error)
		QueryUserMemberships(ctx context.Context, userID string) ([]Membership, error)
		RemoveMember(ctx context.Context, userID, orgID string) error
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

func (svc *service) CheckUniqueness(ctx context.Context, name string, exclOrgs ...Organization) error {
	if err := svc.repo.CheckNameUniqueness(ctx, name, exclOrgs); err != nil {
		if errors.Cause(err) == ErrOrgExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, no NewOrg) (Organization, error) {
	now := time.Now().UTC()
	o := Organization{
		Name:        no.Name,
		Description: no.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	o.SetActive(true)
	return svc.repo.CreateOrg(ctx, o)
}

func (svc *service) Query(ctx context.Context, ordering []core.DBOrdering) ([]Organization, error) {
	return svc.repo.QueryOrgs(ctx, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Organization, error) {
	return svc.repo.GetOrg(ctx, GetFilter{ID: id})
}

func (svc *service) Update(ctx context.Context, id string, uo UpdateOrg) (Organization, error) {
	o := Organization{
		ID:          id,
		Name:        uo.Name,
		Description: uo.Description,
		IsActive:    uo.IsActive,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateOrg(ctx, o)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteOrgsByID(ctx, ids)
	return err
}

func (svc *service) AddMember(ctx context.Context, orgID string, nm NewMembership) (Membership, error) {
	if _, err := svc.GetByID(ctx, orgID); err != nil {
		return Membership{}, err
	}
	m := Membership{
		UserID:    nm.UserID,
		OrgID:     orgID,
		Role:      nm.Role,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.UpsertMembership(ctx, m)
}

func (svc *service) GetMembership(ctx context.Context, userID, orgID string) (Membership, error) {
	return svc.repo.GetMembership(ctx, userID, orgID)
}

func (svc *service) QueryMembers(ctx context.Context, orgID string) ([]Membership, error) {
	return svc.repo.QueryMemberships(ctx, MembershipFilter{OrgID: orgID})
}

func (svc *service) QueryUserMemberships(ctx context.Context, userID string) ([]Membership, error) {
	return svc.repo.QueryMemberships(ctx, MembershipFilter{UserID: userID})
}

func (svc *service) RemoveMember(ctx context.Context, userID, orgID string) error {
	return svc.repo.RemoveMembership(ctx, userID, orgID)
}
