package authz

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core/org"
	"github.com/trezcool/tuzo/core/user"
)

// ErrForbidden is returned on any refused check; callers map it to 403.
var ErrForbidden = errors.New("permission denied")

// Gate centralizes every permission rule: minimum role rank, organization
// scoping (master admins bypass it) and self-protection. Services call the
// gate before touching any wallet, quest or user row.
type Gate struct {
	orgSvc org.ServiceInterface
}

func NewGate(orgSvc org.ServiceInterface) *Gate {
	return &Gate{orgSvc: orgSvc}
}

// RequireAuthenticated refuses missing or deactivated actors.
func (g *Gate) RequireAuthenticated(actor user.User) error {
	if actor.ID == "" || !actor.Active() {
		return ErrForbidden
	}
	return nil
}

// RequireMasterAdmin allows master admins only.
func (g *Gate) RequireMasterAdmin(actor user.User) error {
	if err := g.RequireAuthenticated(actor); err != nil {
		return err
	}
	if !actor.IsMasterAdmin() {
		return ErrForbidden
	}
	return nil
}

// RequireMinRole allows actors whose strongest role ranks at least as high
// as the given role.
func (g *Gate) RequireMinRole(actor user.User, role string) error {
	if err := g.RequireAuthenticated(actor); err != nil {
		return err
	}
	if user.MaxRolePriority(actor.Roles) < user.RolePriority(role) {
		return ErrForbidden
	}
	return nil
}

// RequireOrgRole allows master admins, and members of the organization whose
// membership role ranks at least as high as the given role.
func (g *Gate) RequireOrgRole(ctx context.Context, actor user.User, orgID, role string) error {
	if err := g.RequireAuthenticated(actor); err != nil {
		return err
	}
	if actor.IsMasterAdmin() {
		return nil
	}
	m, err := g.orgSvc.GetMembership(ctx, actor.ID, orgID)
	if err != nil {
		if errors.Cause(err) == org.ErrNotMember || errors.Cause(err) == org.ErrNotFound {
			return ErrForbidden
		}
		return err
	}
	if user.RolePriority(m.Role) < user.RolePriority(role) {
		return ErrForbidden
	}
	return nil
}

// RequireOrgAdmin allows master admins and org admins of the organization.
func (g *Gate) RequireOrgAdmin(ctx context.Context, actor user.User, orgID string) error {
	return g.RequireOrgRole(ctx, actor, orgID, user.RoleAdminOrg)
}

// RequireOrgStaff allows master admins and staff (or better) of the organization.
func (g *Gate) RequireOrgStaff(ctx context.Context, actor user.User, orgID string) error {
	return g.RequireOrgRole(ctx, actor, orgID, user.RoleStaff)
}

// CheckRoleCeiling refuses assigning any role that outranks the actor's own
// strongest role.
func (g *Gate) CheckRoleCeiling(actor user.User, roles []string) error {
	if user.MaxRolePriority(roles) > user.MaxRolePriority(actor.Roles) {
		return ErrForbidden
	}
	return nil
}

// CheckSelfDemotion refuses an actor stripping their own master admin role.
// A nil newRoles means the roles are left untouched.
func (g *Gate) CheckSelfDemotion(actor, target user.User, newRoles []string) error {
	if newRoles == nil || actor.ID != target.ID || !actor.IsMasterAdmin() {
		return nil
	}
	for _, role := range newRoles {
		if role == user.RoleAdminMaster {
			return nil
		}
	}
	return ErrForbidden
}

// CheckSelfDelete refuses an actor deleting themselves.
func (g *Gate) CheckSelfDelete(actor user.User, targetIDs ...string) error {
	for _, id := range targetIDs {
		if id == actor.ID {
			return ErrForbidden
		}
	}
	return nil
}
