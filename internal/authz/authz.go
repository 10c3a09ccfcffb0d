// Package authz is the access control layer: it derives an Identity from
// token claims and gates every resource operation through one permission
// table instead of per-route role checks.
package authz

import (
	"github.com/google/uuid"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
)

// Operation identifies a resource operation in the permission table
type Operation string

const (
	OpTenantList   Operation = "tenant:list"
	OpTenantRead   Operation = "tenant:read"
	OpTenantUpdate Operation = "tenant:update"
	OpTenantDelete Operation = "tenant:delete"

	OpUserCreate Operation = "user:create"
	OpUserList   Operation = "user:list"
	OpUserRead   Operation = "user:read"
	OpUserUpdate Operation = "user:update"
	OpUserDelete Operation = "user:delete"

	OpProjectCreate Operation = "project:create"
	OpProjectList   Operation = "project:list"
	OpProjectRead   Operation = "project:read"
	OpProjectUpdate Operation = "project:update"
	OpProjectDelete Operation = "project:delete"

	OpTaskCreate       Operation = "task:create"
	OpTaskList         Operation = "task:list"
	OpTaskRead         Operation = "task:read"
	OpTaskUpdate       Operation = "task:update"
	OpTaskUpdateStatus Operation = "task:update_status"
	OpTaskClaim        Operation = "task:claim"
	OpTaskDelete       Operation = "task:delete"

	OpDashboardView Operation = "dashboard:view"
)

// Identity is the resolved caller: who, which tenant, which role.
// TenantID is nil only for RoleSystemAdmin.
type Identity struct {
	UserID   uuid.UUID
	TenantID *uuid.UUID
	Email    string
	Role     Role
}

// IsSystem reports whether the identity bypasses tenant scoping
func (id Identity) IsSystem() bool {
	return id.Role == RoleSystemAdmin
}

// permissions is the single (role, operation) table consulted for every
// request. system_admin gets system-scope operations only: tenant-owned
// CRUD is not meaningful outside a tenant.
var permissions = map[Role]map[Operation]bool{
	RoleSystemAdmin: {
		OpTenantList:    true,
		OpTenantRead:    true,
		OpTenantUpdate:  true,
		OpTenantDelete:  true,
		OpDashboardView: true,
	},
	RoleTenantAdmin: {
		OpTenantRead:       true,
		OpTenantUpdate:     true,
		OpUserCreate:       true,
		OpUserList:         true,
		OpUserRead:         true,
		OpUserUpdate:       true,
		OpUserDelete:       true,
		OpProjectCreate:    true,
		OpProjectList:      true,
		OpProjectRead:      true,
		OpProjectUpdate:    true,
		OpProjectDelete:    true,
		OpTaskCreate:       true,
		OpTaskList:         true,
		OpTaskRead:         true,
		OpTaskUpdate:       true,
		OpTaskUpdateStatus: true,
		OpTaskClaim:        true,
		OpTaskDelete:       true,
		OpDashboardView:    true,
	},
	RoleMember: {
		OpUserList:         true,
		OpUserRead:         true,
		OpProjectList:      true,
		OpProjectRead:      true,
		OpTaskCreate:       true,
		OpTaskList:         true,
		OpTaskRead:         true,
		OpTaskUpdate:       true,
		OpTaskUpdateStatus: true,
		OpTaskClaim:        true,
		OpTaskDelete:       true,
		OpDashboardView:    true,
	},
}

// Can reports whether the role is granted the operation at all,
// independent of tenant scoping
func Can(role Role, op Operation) bool {
	return permissions[role][op]
}

// Authorize decides whether the identity may perform op against a resource
// owned by resourceTenantID (nil for system-scope operations). Tenant
// mismatches come back as not-found so cross-tenant probing cannot confirm
// that a resource exists.
func Authorize(id Identity, op Operation, resourceTenantID *uuid.UUID) error {
	if !Can(id.Role, op) {
		return apperr.Authorization("operation not permitted")
	}

	if id.IsSystem() {
		// System scope ignores tenant matching entirely.
		return nil
	}

	if id.TenantID == nil {
		// Tenant roles must always carry a tenant.
		return apperr.Authorization("operation not permitted")
	}

	if resourceTenantID != nil && *resourceTenantID != *id.TenantID {
		return apperr.NotFound("resource not found")
	}

	return nil
}

// CanDeleteUser gates user deletion: tenant_admin only, same tenant, and
// never their own record. The self-delete guard holds even when other
// admins exist, so a tenant cannot accidentally lock itself out mid-flight.
func CanDeleteUser(id Identity, target *model.User) error {
	if err := Authorize(id, OpUserDelete, target.TenantID); err != nil {
		return err
	}
	if target.ID == id.UserID {
		return apperr.Authorization("cannot delete your own account")
	}
	return nil
}

// CanDeleteTask gates task deletion: tenant_admin may delete any task in
// their tenant, a member only tasks currently assigned to them.
func CanDeleteTask(id Identity, task *model.Task) error {
	if err := Authorize(id, OpTaskDelete, &task.TenantID); err != nil {
		return err
	}
	if id.Role == RoleTenantAdmin {
		return nil
	}
	if task.AssignedTo == nil || *task.AssignedTo != id.UserID {
		return apperr.Authorization("members may only delete their own tasks")
	}
	return nil
}

// ScopedTenant returns the tenant id the identity's queries must be
// qualified by, or nil for the system role
func ScopedTenant(id Identity) *uuid.UUID {
	if id.IsSystem() {
		return nil
	}
	return id.TenantID
}
