package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/org"
)

const orgColumns = `id, name, description, is_active, created_at, updated_at`

type orgRepository struct {
	exec core.DBExecutor
}

var _ org.Repository = (*orgRepository)(nil) // interface compliance check

func NewOrgRepository(exec core.DBExecutor) *orgRepository {
	return &orgRepository{exec: exec}
}

type orgRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r orgRow) org() org.Organization {
	active := r.IsActive
	return org.Organization{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    &active,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type membershipRow struct {
	UserID    string    `db:"user_id"`
	OrgID     string    `db:"org_id"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

func (r membershipRow) membership() org.Membership {
	return org.Membership(r)
}

func (repo orgRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo orgRepository) CheckNameUniqueness(ctx context.Context, name string, excludedOrgs []org.Organization, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedOrgs))
	for _, o := range excludedOrgs {
		ids = append(ids, o.ID)
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM organization WHERE name = $1 AND id != ALL($2))`
	if err := getExec(repo.exec, exec).GetContext(ctx, &exists, q, name, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking org uniqueness")
	}
	if exists {
		return org.ErrOrgExists
	}
	return nil
}

func (repo orgRepository) CreateOrg(ctx context.Context, o org.Organization, exec ...core.DBExecutor) (org.Organization, error) {
	o.ID = uuid.New().String()
	q := `INSERT INTO organization (` + orgColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := getExec(repo.exec, exec).ExecContext(ctx, q,
		o.ID, o.Name, o.Description, o.Active(), o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return org.Organization{}, org.ErrOrgExists
		}
		return org.Organization{}, errors.Wrap(err, "inserting org")
	}
	return o, nil
}

func (repo orgRepository) GetOrg(ctx context.Context, filter org.GetFilter, exec ...core.DBExecutor) (org.Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organization WHERE `
	var arg interface{}

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return org.Organization{}, org.ErrNotFound
		}
		q += "id = $1"
		arg = filter.ID
	case filter.Name != "":
		q += "name = $1"
		arg = filter.Name
	default:
		return org.Organization{}, org.ErrNotFound
	}

	var r orgRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, arg); err != nil {
		return org.Organization{}, repo.trapNoRowsErr(err, org.ErrNotFound, "finding org")
	}
	return r.org(), nil
}

func (repo orgRepository) QueryOrgs(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]org.Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organization`
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		q += " ORDER BY created_at"
	}

	var rows []orgRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying orgs")
	}
	orgs := make([]org.Organization, 0, len(rows))
	for _, r := range rows {
		orgs = append(orgs, r.org())
	}
	return orgs, nil
}

func (repo orgRepository) UpdateOrg(ctx context.Context, o org.Organization, exec ...core.DBExecutor) (org.Organization, error) {
	q := `
UPDATE organization
SET name        = COALESCE(NULLIF($2, ''), name),
    description = COALESCE(NULLIF($3, ''), description),
    is_active   = COALESCE($4, is_active),
    updated_at  = $5
WHERE id = $1
RETURNING ` + orgColumns
	var r orgRow
	err := getExec(repo.exec, exec).GetContext(ctx, &r, q, o.ID, o.Name, o.Description, o.IsActive, o.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return org.Organization{}, org.ErrOrgExists
		}
		return org.Organization{}, repo.trapNoRowsErr(err, org.ErrNotFound, "updating org")
	}
	return r.org(), nil
}

func (repo orgRepository) DeleteOrgsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM organization WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting orgs")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting orgs")
	}
	return int(cnt), nil
}

func (repo orgRepository) UpsertMembership(ctx context.Context, m org.Membership, exec ...core.DBExecutor) (org.Membership, error) {
	q := `
INSERT INTO org_membership (user_id, org_id, role, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, org_id) DO UPDATE SET role = EXCLUDED.role
RETURNING user_id, org_id, role, created_at`
	var r membershipRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, m.UserID, m.OrgID, m.Role, m.CreatedAt.UTC()); err != nil {
		return org.Membership{}, errors.Wrap(err, "upserting membership")
	}
	return r.membership(), nil
}

func (repo orgRepository) GetMembership(ctx context.Context, userID, orgID string, exec ...core.DBExecutor) (org.Membership, error) {
	q := `SELECT user_id, org_id, role, created_at FROM org_membership WHERE user_id = $1 AND org_id = $2`
	var r membershipRow
	if err := getExec(repo.exec, exec).GetContext(ctx, &r, q, userID, orgID); err != nil {
		return org.Membership{}, repo.trapNoRowsErr(err, org.ErrNotMember, "finding membership")
	}
	return r.membership(), nil
}

func (repo orgRepository) QueryMemberships(ctx context.Context, filter org.MembershipFilter, exec ...core.DBExecutor) ([]org.Membership, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, "user_id = $1")
	}
	if filter.OrgID != "" {
		args = append(args, filter.OrgID)
		where = append(where, fmt.Sprintf("org_id = $%d", len(args)))
	}

	q := `SELECT user_id, org_id, role, created_at FROM org_membership`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY org_id, user_id"

	var rows []membershipRow
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}
	members := make([]org.Membership, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.membership())
	}
	return members, nil
}

func (repo orgRepository) RemoveMembership(ctx context.Context, userID, orgID string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.exec, exec).ExecContext(ctx,
		`DELETE FROM org_membership WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	if err != nil {
		return errors.Wrap(err, "removing membership")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "removing membership")
	}
	if cnt == 0 {
		return org.ErrNotMember
	}
	return nil
}
