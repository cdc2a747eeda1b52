// Package policy decides whether an actor, under its active role, may act on
// an invoice. It performs no I/O; callers resolve users, roles and invoices
// first.
package policy

import (
	"electricity-billing/internal/model"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreateInvoice Action = "invoice.create"
	ActionUpdateInvoice Action = "invoice.update"
	ActionViewInvoice   Action = "invoice.view"
)

type Effect int

const (
	Deny Effect = iota
	Allow
	// Reject means the request targets something that can never be valid,
	// such as invoicing a user who is not a customer.
	Reject
)

type Decision struct {
	Effect Effect
	Reason string
}

func (d Decision) Allowed() bool {
	return d.Effect == Allow
}

// Actor is the acting user evaluated under a single active role.
type Actor struct {
	UserID     uuid.UUID
	ProviderID *uuid.UUID
	Role       model.Role
}

// Resource is what the action targets. Invoice creation uses Customer and
// CustomerRoles; update and view use Invoice.
type Resource struct {
	Invoice       *model.Invoice
	Customer      *model.User
	CustomerRoles model.RoleSet
}

func allow() Decision { return Decision{Effect: Allow} }

func deny(reason string) Decision { return Decision{Effect: Deny, Reason: reason} }

func reject(reason string) Decision { return Decision{Effect: Reject, Reason: reason} }

func Authorize(actor Actor, action Action, res Resource) Decision {
	switch action {
	case ActionCreateInvoice:
		return authorizeCreate(actor, res)
	case ActionUpdateInvoice:
		return authorizeUpdate(actor, res)
	case ActionViewInvoice:
		return authorizeView(actor, res)
	}
	return deny("unknown action")
}

func authorizeCreate(actor Actor, res Resource) Decision {
	switch actor.Role {
	case model.RoleInvoiceCreator, model.RoleSuperCreator:
	default:
		return deny("you don't have permission to create invoices")
	}
	if res.Customer == nil || !res.CustomerRoles.Has(model.RoleCustomer) {
		return reject("selected user is not a customer")
	}
	if !res.Customer.SameProvider(actor.ProviderID) {
		return deny("cannot create invoice for customer from different provider")
	}
	return allow()
}

func authorizeUpdate(actor Actor, res Resource) Decision {
	inv := res.Invoice
	if inv == nil {
		return deny("invoice is required")
	}
	switch actor.Role {
	case model.RoleInvoiceCreator:
		if inv.CreatedByUserID != actor.UserID {
			return deny("you can only edit invoices you created")
		}
		return allow()
	case model.RoleSuperCreator:
		if !sameProvider(actor.ProviderID, inv.ProviderID) {
			return deny("you can only edit invoices from your provider")
		}
		return allow()
	}
	return deny("you don't have permission to edit invoices")
}

func authorizeView(actor Actor, res Resource) Decision {
	inv := res.Invoice
	if inv == nil {
		return deny("invoice is required")
	}
	switch actor.Role {
	case model.RoleCustomer:
		if inv.CustomerID != actor.UserID {
			return deny("you can only view your own invoices")
		}
		return allow()
	case model.RoleInvoiceCreator, model.RoleSuperCreator, model.RoleAuditor:
		if !sameProvider(actor.ProviderID, inv.ProviderID) {
			return deny("you can only view invoices from your provider")
		}
		return allow()
	}
	return deny("you don't have permission to view invoices")
}

func sameProvider(actorProvider *uuid.UUID, providerID uuid.UUID) bool {
	return actorProvider != nil && *actorProvider == providerID
}
