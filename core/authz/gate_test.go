package authz

import (
	"context"
	"testing"

	"github.com/trezcool/tuzo/core/org"
	"github.com/trezcool/tuzo/core/user"
)

type orgSvcMock struct {
	org.ServiceInterface
	memberships map[string]org.Membership // userID + ":" + orgID
}

func (m *orgSvcMock) GetMembership(_ context.Context, userID, orgID string) (org.Membership, error) {
	if mb, ok := m.memberships[userID+":"+orgID]; ok {
		return mb, nil
	}
	return org.Membership{}, org.ErrNotMember
}

func newTestUser(id string, roles ...string) user.User {
	usr := user.User{ID: id, Roles: roles}
	usr.SetActive(true)
	return usr
}

func TestGateRequireOrgRole(t *testing.T) {
	master := newTestUser("master", user.RoleAdminMaster)
	orgAdmin := newTestUser("orgadmin")
	staff := newTestUser("staff")
	student := newTestUser("student", user.RoleStudent)
	outsider := newTestUser("outsider", user.RoleStudent)
	inactive := user.User{ID: "inactive", Roles: []string{user.RoleAdminMaster}}

	gate := NewGate(&orgSvcMock{
		memberships: map[string]org.Membership{
			"orgadmin:org1": {UserID: "orgadmin", OrgID: "org1", Role: user.RoleAdminOrg},
			"staff:org1":    {UserID: "staff", OrgID: "org1", Role: user.RoleStaff},
			"student:org1":  {UserID: "student", OrgID: "org1", Role: user.RoleStudent},
		},
	})

	tests := []struct {
		name    string
		actor   user.User
		orgID   string
		role    string
		wantErr error
	}{
		{name: "master admin bypasses scoping", actor: master, orgID: "org1", role: user.RoleAdminOrg},
		{name: "master admin bypasses unknown org", actor: master, orgID: "nope", role: user.RoleAdminOrg},
		{name: "org admin in own org", actor: orgAdmin, orgID: "org1", role: user.RoleAdminOrg},
		{name: "org admin outranks staff requirement", actor: orgAdmin, orgID: "org1", role: user.RoleStaff},
		{name: "staff below org admin requirement", actor: staff, orgID: "org1", role: user.RoleAdminOrg, wantErr: ErrForbidden},
		{name: "staff meets staff requirement", actor: staff, orgID: "org1", role: user.RoleStaff},
		{name: "student below staff requirement", actor: student, orgID: "org1", role: user.RoleStaff, wantErr: ErrForbidden},
		{name: "non-member", actor: outsider, orgID: "org1", role: user.RoleStaff, wantErr: ErrForbidden},
		{name: "org admin in another org", actor: orgAdmin, orgID: "org2", role: user.RoleAdminOrg, wantErr: ErrForbidden},
		{name: "inactive actor", actor: inactive, orgID: "org1", role: user.RoleStaff, wantErr: ErrForbidden},
		{name: "anonymous actor", actor: user.User{}, orgID: "org1", role: user.RoleStaff, wantErr: ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := gate.RequireOrgRole(context.Background(), tt.actor, tt.orgID, tt.role); err != tt.wantErr {
				t.Errorf("RequireOrgRole() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGateRequireMasterAdmin(t *testing.T) {
	gate := NewGate(&orgSvcMock{})

	tests := []struct {
		name    string
		actor   user.User
		wantErr error
	}{
		{name: "master admin", actor: newTestUser("m", user.RoleAdminMaster)},
		{name: "org admin", actor: newTestUser("o", user.RoleAdminOrg), wantErr: ErrForbidden},
		{name: "staff", actor: newTestUser("s", user.RoleStaff), wantErr: ErrForbidden},
		{name: "student", actor: newTestUser("st", user.RoleStudent), wantErr: ErrForbidden},
		{name: "anonymous", actor: user.User{}, wantErr: ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := gate.RequireMasterAdmin(tt.actor); err != tt.wantErr {
				t.Errorf("RequireMasterAdmin() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGateSelfProtection(t *testing.T) {
	gate := NewGate(&orgSvcMock{})
	master := newTestUser("m1", user.RoleAdminMaster)

	t.Run("cannot strip own master role", func(t *testing.T) {
		if err := gate.CheckSelfDemotion(master, master, []string{user.RoleStudent}); err != ErrForbidden {
			t.Errorf("CheckSelfDemotion() error = %v, want %v", err, ErrForbidden)
		}
	})
	t.Run("leaving roles untouched is fine", func(t *testing.T) {
		if err := gate.CheckSelfDemotion(master, master, nil); err != nil {
			t.Errorf("CheckSelfDemotion() error = %v", err)
		}
	})
	t.Run("keeping own master role is fine", func(t *testing.T) {
		if err := gate.CheckSelfDemotion(master, master, []string{user.RoleAdminMaster, user.RoleStaff}); err != nil {
			t.Errorf("CheckSelfDemotion() error = %v", err)
		}
	})
	t.Run("demoting another master is fine", func(t *testing.T) {
		other := newTestUser("m2", user.RoleAdminMaster)
		if err := gate.CheckSelfDemotion(master, other, []string{user.RoleStudent}); err != nil {
			t.Errorf("CheckSelfDemotion() error = %v", err)
		}
	})
	t.Run("cannot delete self", func(t *testing.T) {
		if err := gate.CheckSelfDelete(master, "u1", "m1", "u2"); err != ErrForbidden {
			t.Errorf("CheckSelfDelete() error = %v, want %v", err, ErrForbidden)
		}
	})
	t.Run("deleting others is fine", func(t *testing.T) {
		if err := gate.CheckSelfDelete(master, "u1", "u2"); err != nil {
			t.Errorf("CheckSelfDelete() error = %v", err)
		}
	})
	t.Run("role ceiling", func(t *testing.T) {
		staff := newTestUser("s", user.RoleStaff)
		if err := gate.CheckRoleCeiling(staff, []string{user.RoleAdminOrg}); err != ErrForbidden {
			t.Errorf("CheckRoleCeiling() error = %v, want %v", err, ErrForbidden)
		}
		if err := gate.CheckRoleCeiling(staff, []string{user.RoleStudent}); err != nil {
			t.Errorf("CheckRoleCeiling() error = %v", err)
		}
	})
}
