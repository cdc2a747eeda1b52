package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin          Role = "Admin"
	RoleAuditor        Role = "Auditor"
	RoleInvoiceCreator Role = "Invoice_Creator"
	RoleSuperCreator   Role = "Super_Creator"
	RoleCustomer       Role = "Customer"
)

// AllRoles lists every role the platform knows about.
var AllRoles = []Role{RoleAdmin, RoleAuditor, RoleInvoiceCreator, RoleSuperCreator, RoleCustomer}

func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// UserRole grants a role to a user. The (user_id, role) pair is unique.
type UserRole struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_user_roles_user_role" json:"user_id"`
	Role       Role      `gorm:"type:varchar(32);not null;uniqueIndex:ux_user_roles_user_role" json:"role"`
	AssignedAt time.Time `gorm:"not null" json:"assigned_at"`
}

func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RoleSet is the set of roles held by a user.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Slice returns the roles in a stable order.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Principal is the authenticated caller: who they are and which of their
// roles is active for this session.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}
