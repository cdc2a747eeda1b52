package policy

import (
	"testing"

	"electricity-billing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestAuthorizeCreate(t *testing.T) {
	providerA, providerB := uuid.New(), uuid.New()
	customer := &model.User{ID: uuid.New(), ProviderID: ptr(providerA)}
	customerRoles := model.NewRoleSet(model.RoleCustomer)

	tests := []struct {
		name   string
		actor  Actor
		res    Resource
		effect Effect
	}{
		{
			name:   "invoice creator same provider",
			actor:  Actor{UserID: uuid.New(), ProviderID: ptr(providerA), Role: model.RoleInvoiceCreator},
			res:    Resource{Customer: customer, CustomerRoles: customerRoles},
			effect: Allow,
		},
		{
			name:   "super creator same provider",
			actor:  Actor{UserID: uuid.New(), ProviderID: ptr(providerA), Role: model.RoleSuperCreator},
			res:    Resource{Customer: customer, CustomerRoles: customerRoles},
			effect: Allow,
		},
		{
			name:   "other provider",
			actor:  Actor{UserID: uuid.New(), ProviderID: ptr(providerB), Role: model.RoleInvoiceCreator},
			res:    Resource{Customer: customer, CustomerRoles: customerRoles},
			effect: Deny,
		},
		{
			name:   "actor without provider",
			actor:  Actor{UserID: uuid.New(), Role: model.RoleSuperCreator},
			res:    Resource{Customer: customer, CustomerRoles: customerRoles},
			effect: Deny,
		},
		{
			name:   "target is not a customer",
			actor:  Actor{UserID: uuid.New(), ProviderID: ptr(providerA), Role: model.RoleInvoiceCreator},
			res:    Resource{Customer: customer, CustomerRoles: model.NewRoleSet(model.RoleAuditor)},
			effect: Reject,
		},
		{
			name:   "auditor cannot create",
			actor:  Actor{UserID: uuid.New(), ProviderID: ptr(providerA), Role: model.RoleAuditor},
			res:    Resource{Customer: customer, CustomerRoles: customerRoles},
			effect: Deny,
		},
		{
			name:   "customer cannot create",
			actor:  Actor{UserID: uuid.New(), ProviderID: ptr(providerA), Role: model.RoleCustomer},
			res:    Resource{Customer: customer, CustomerRoles: customerRoles},
			effect: Deny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.actor, ActionCreateInvoice, tt.res)
			assert.Equal(t, tt.effect, d.Effect, d.Reason)
		})
	}
}

func TestAuthorizeUpdate(t *testing.T) {
	provider := uuid.New()
	creator := uuid.New()
	inv := &model.Invoice{ID: uuid.New(), ProviderID: provider, CreatedByUserID: creator}

	d := Authorize(Actor{UserID: creator, ProviderID: ptr(provider), Role: model.RoleInvoiceCreator}, ActionUpdateInvoice, Resource{Invoice: inv})
	assert.True(t, d.Allowed())

	d = Authorize(Actor{UserID: uuid.New(), ProviderID: ptr(provider), Role: model.RoleInvoiceCreator}, ActionUpdateInvoice, Resource{Invoice: inv})
	assert.Equal(t, Deny, d.Effect)
	assert.Equal(t, "you can only edit invoices you created", d.Reason)

	d = Authorize(Actor{UserID: uuid.New(), ProviderID: ptr(provider), Role: model.RoleSuperCreator}, ActionUpdateInvoice, Resource{Invoice: inv})
	assert.True(t, d.Allowed())

	d = Authorize(Actor{UserID: uuid.New(), ProviderID: ptr(uuid.New()), Role: model.RoleSuperCreator}, ActionUpdateInvoice, Resource{Invoice: inv})
	assert.Equal(t, Deny, d.Effect)

	d = Authorize(Actor{UserID: creator, ProviderID: ptr(provider), Role: model.RoleAuditor}, ActionUpdateInvoice, Resource{Invoice: inv})
	assert.Equal(t, Deny, d.Effect)
}

func TestAuthorizeUsesOnlyActiveRole(t *testing.T) {
	// same user, same invoice: the outcome follows the selected role
	provider := uuid.New()
	user := uuid.New()
	inv := &model.Invoice{ID: uuid.New(), ProviderID: provider, CreatedByUserID: uuid.New()}

	asCreator := Authorize(Actor{UserID: user, ProviderID: ptr(provider), Role: model.RoleInvoiceCreator}, ActionUpdateInvoice, Resource{Invoice: inv})
	asSuper := Authorize(Actor{UserID: user, ProviderID: ptr(provider), Role: model.RoleSuperCreator}, ActionUpdateInvoice, Resource{Invoice: inv})

	assert.False(t, asCreator.Allowed())
	assert.True(t, asSuper.Allowed())
}

func TestAuthorizeView(t *testing.T) {
	provider := uuid.New()
	customer := uuid.New()
	inv := &model.Invoice{ID: uuid.New(), ProviderID: provider, CustomerID: customer, CreatedByUserID: uuid.New()}

	assert.True(t, Authorize(Actor{UserID: customer, ProviderID: ptr(provider), Role: model.RoleCustomer}, ActionViewInvoice, Resource{Invoice: inv}).Allowed())
	assert.False(t, Authorize(Actor{UserID: uuid.New(), ProviderID: ptr(provider), Role: model.RoleCustomer}, ActionViewInvoice, Resource{Invoice: inv}).Allowed())

	for _, role := range []model.Role{model.RoleInvoiceCreator, model.RoleSuperCreator, model.RoleAuditor} {
		assert.True(t, Authorize(Actor{UserID: uuid.New(), ProviderID: ptr(provider), Role: role}, ActionViewInvoice, Resource{Invoice: inv}).Allowed(), role)
		assert.False(t, Authorize(Actor{UserID: uuid.New(), ProviderID: ptr(uuid.New()), Role: role}, ActionViewInvoice, Resource{Invoice: inv}).Allowed(), role)
	}

	assert.False(t, Authorize(Actor{UserID: uuid.New(), Role: model.RoleAdmin}, ActionViewInvoice, Resource{Invoice: inv}).Allowed())
}

func TestAuthorizeUnknownAction(t *testing.T) {
	d := Authorize(Actor{UserID: uuid.New(), Role: model.RoleAdmin}, Action("invoice.delete"), Resource{})
	assert.Equal(t, Deny, d.Effect)
}
