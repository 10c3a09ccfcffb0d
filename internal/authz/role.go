package authz

import "taskboard/internal/apperr"

// Role is the closed set of roles the permission table is keyed by.
// Values match the role column stored on users.
type Role string

const (
	// RoleSystemAdmin is the system-level identity: no tenant, authorized
	// for cross-tenant administration only.
	RoleSystemAdmin Role = "system_admin"
	// RoleTenantAdmin administers a single tenant.
	RoleTenantAdmin Role = "tenant_admin"
	// RoleMember is a regular tenant user.
	RoleMember Role = "member"
)

// ParseRole maps a stored role string onto the closed enumeration
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystemAdmin, RoleTenantAdmin, RoleMember:
		return Role(s), nil
	}
	return "", apperr.Validation("unknown role: " + s)
}

// AssignableRoles are the roles a tenant_admin may grant when inviting or
// updating users. system_admin is never assignable through the API.
func AssignableRoles() []Role {
	return []Role{RoleTenantAdmin, RoleMember}
}

// Assignable reports whether r can be granted to a tenant user
func (r Role) Assignable() bool {
	return r == RoleTenantAdmin || r == RoleMember
}
