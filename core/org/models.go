package org

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tuzo/core"
)

type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    *bool     `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (o *Organization) SetActive(active bool) {
	o.IsActive = &active
}

func (o *Organization) Active() bool {
	return o.IsActive != nil && *o.IsActive
}

// Membership ties a User to an Organization with an org-scoped role.
type Membership struct {
	UserID    string    `json:"user_id"`
	OrgID     string    `json:"org_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewOrg contains information needed to create a new Organization.
type NewOrg struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (no *NewOrg) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	no.Name = core.CleanString(no.Name)
	no.Description = core.CleanString(no.Description)

	if err := validate.Struct(no); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, no.Name)
}

// UpdateOrg defines what information may be provided to modify an existing Organization.
type UpdateOrg struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (uo *UpdateOrg) Validate(ctx context.Context, origOrg Organization, validate *validator.Validate, svc ServiceInterface) error {
	name := core.CleanString(uo.Name)
	if name != "" {
		uo.Name = name
	} else {
		uo.Name = origOrg.Name
	}
	uo.Description = core.CleanString(uo.Description)

	if err := validate.Struct(uo); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uo.Name, origOrg)
}

// NewMembership adds or updates a member of an Organization.
type NewMembership struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,allroles"`
}

func (nm *NewMembership) Validate(validate *validator.Validate) error {
	nm.UserID = core.CleanString(nm.UserID)
	return validate.Struct(nm)
}

// GetFilter looks up a single Organization; fields are tried in order.
type GetFilter struct {
	ID   string
	Name string
}

type MembershipFilter struct {
	UserID string
	OrgID  string
}
