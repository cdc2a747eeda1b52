package service

import (
	"testing"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignRole(t *testing.T) {
	f := newFixture(t)
	p := f.provider("North Grid", "10")
	u := f.user("ana@example.com", &p.ID, model.RoleCustomer)

	grant, err := f.roles.AssignRole(f.ctx, u.ID, model.RoleInvoiceCreator)
	require.NoError(t, err)
	assert.Equal(t, model.RoleInvoiceCreator, grant.Role)

	roles, err := f.roles.RolesOf(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Role{model.RoleCustomer, model.RoleInvoiceCreator}, roles.Slice())

	ok, err := f.roles.HasRole(f.ctx, u.ID, model.RoleInvoiceCreator)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAssignRole_Errors(t *testing.T) {
	f := newFixture(t)
	p := f.provider("North Grid", "10")
	u := f.user("ana@example.com", &p.ID, model.RoleCustomer)

	_, err := f.roles.AssignRole(f.ctx, u.ID, model.RoleCustomer)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = f.roles.AssignRole(f.ctx, u.ID, model.Role("Janitor"))
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	_, err = f.roles.AssignRole(f.ctx, uuid.New(), model.RoleCustomer)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRemoveRole_LastRoleIsKept(t *testing.T) {
	f := newFixture(t)
	p := f.provider("North Grid", "10")
	u := f.user("ana@example.com", &p.ID, model.RoleCustomer)

	err := f.roles.RemoveRole(f.ctx, u.ID, model.RoleCustomer)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	roles, err := f.roles.RolesOf(f.ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, roles.Has(model.RoleCustomer))
	assert.Len(t, roles, 1)
}

func TestRemoveRole(t *testing.T) {
	f := newFixture(t)
	p := f.provider("North Grid", "10")
	u := f.user("ana@example.com", &p.ID, model.RoleCustomer, model.RoleAuditor)

	require.NoError(t, f.roles.RemoveRole(f.ctx, u.ID, model.RoleAuditor))

	roles, err := f.roles.RolesOf(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Role{model.RoleCustomer}, roles.Slice())

	err = f.roles.RemoveRole(f.ctx, u.ID, model.RoleAuditor)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListGrants(t *testing.T) {
	f := newFixture(t)
	p := f.provider("North Grid", "10")
	u := f.user("ana@example.com", &p.ID, model.RoleCustomer, model.RoleAuditor)

	grants, err := f.roles.ListGrants(f.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	for _, g := range grants {
		assert.Equal(t, u.ID.String(), g.UserID)
	}

	_, err = f.roles.ListGrants(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
