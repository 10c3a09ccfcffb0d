package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
)

func systemIdentity() Identity {
	return Identity{UserID: uuid.New(), Role: RoleSystemAdmin}
}

func tenantIdentity(role Role) Identity {
	tenantID := uuid.New()
	return Identity{UserID: uuid.New(), TenantID: &tenantID, Role: role}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"system_admin", "tenant_admin", "member"} {
		role, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, Role(s), role)
	}

	_, err := ParseRole("owner")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRoleAssignable(t *testing.T) {
	assert.True(t, RoleTenantAdmin.Assignable())
	assert.True(t, RoleMember.Assignable())
	assert.False(t, RoleSystemAdmin.Assignable())
	assert.False(t, Role("owner").Assignable())
}

func TestPermissionTable(t *testing.T) {
	tests := []struct {
		name string
		role Role
		op   Operation
		want bool
	}{
		{"system admin lists tenants", RoleSystemAdmin, OpTenantList, true},
		{"system admin updates tenants", RoleSystemAdmin, OpTenantUpdate, true},
		{"system admin deletes tenants", RoleSystemAdmin, OpTenantDelete, true},
		{"system admin denied project create", RoleSystemAdmin, OpProjectCreate, false},
		{"system admin denied project read", RoleSystemAdmin, OpProjectRead, false},
		{"system admin denied task create", RoleSystemAdmin, OpTaskCreate, false},
		{"system admin denied user create", RoleSystemAdmin, OpUserCreate, false},

		{"tenant admin creates users", RoleTenantAdmin, OpUserCreate, true},
		{"tenant admin deletes users", RoleTenantAdmin, OpUserDelete, true},
		{"tenant admin creates projects", RoleTenantAdmin, OpProjectCreate, true},
		{"tenant admin deletes projects", RoleTenantAdmin, OpProjectDelete, true},
		{"tenant admin denied tenant list", RoleTenantAdmin, OpTenantList, false},
		{"tenant admin denied tenant delete", RoleTenantAdmin, OpTenantDelete, false},

		{"member reads projects", RoleMember, OpProjectRead, true},
		{"member creates tasks", RoleMember, OpTaskCreate, true},
		{"member claims tasks", RoleMember, OpTaskClaim, true},
		{"member updates task status", RoleMember, OpTaskUpdateStatus, true},
		{"member lists users", RoleMember, OpUserList, true},
		{"member denied user create", RoleMember, OpUserCreate, false},
		{"member denied user delete", RoleMember, OpUserDelete, false},
		{"member denied project create", RoleMember, OpProjectCreate, false},
		{"member denied project delete", RoleMember, OpProjectDelete, false},
		{"member denied tenant update", RoleMember, OpTenantUpdate, false},
		{"member denied tenant list", RoleMember, OpTenantList, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.op))
		})
	}
}

func TestAuthorizeDeniesUnpermittedOperation(t *testing.T) {
	member := tenantIdentity(RoleMember)

	err := Authorize(member, OpUserCreate, member.TenantID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestAuthorizeTenantMismatchIsNotFound(t *testing.T) {
	// Cross-tenant access must be indistinguishable from true absence
	admin := tenantIdentity(RoleTenantAdmin)
	otherTenant := uuid.New()

	err := Authorize(admin, OpProjectDelete, &otherTenant)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAuthorizeSameTenantAllowed(t *testing.T) {
	admin := tenantIdentity(RoleTenantAdmin)
	assert.NoError(t, Authorize(admin, OpProjectDelete, admin.TenantID))

	member := tenantIdentity(RoleMember)
	assert.NoError(t, Authorize(member, OpTaskClaim, member.TenantID))
}

func TestAuthorizeSystemIgnoresTenant(t *testing.T) {
	system := systemIdentity()
	anyTenant := uuid.New()

	assert.NoError(t, Authorize(system, OpTenantUpdate, &anyTenant))
	assert.NoError(t, Authorize(system, OpTenantList, nil))
}

func TestAuthorizeTenantRoleWithoutTenant(t *testing.T) {
	// A tenant role without a tenant id is a malformed identity
	broken := Identity{UserID: uuid.New(), Role: RoleMember}

	err := Authorize(broken, OpTaskRead, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestCanDeleteUserSelfGuard(t *testing.T) {
	admin := tenantIdentity(RoleTenantAdmin)

	self := &model.User{ID: admin.UserID, TenantID: admin.TenantID}
	err := CanDeleteUser(admin, self)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	other := &model.User{ID: uuid.New(), TenantID: admin.TenantID}
	assert.NoError(t, CanDeleteUser(admin, other))
}

func TestCanDeleteUserCrossTenant(t *testing.T) {
	admin := tenantIdentity(RoleTenantAdmin)
	foreignTenant := uuid.New()

	target := &model.User{ID: uuid.New(), TenantID: &foreignTenant}
	err := CanDeleteUser(admin, target)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCanDeleteUserMemberDenied(t *testing.T) {
	member := tenantIdentity(RoleMember)

	target := &model.User{ID: uuid.New(), TenantID: member.TenantID}
	err := CanDeleteUser(member, target)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestCanDeleteTask(t *testing.T) {
	admin := tenantIdentity(RoleTenantAdmin)
	member := tenantIdentity(RoleMember)

	t.Run("admin deletes any task in tenant", func(t *testing.T) {
		task := &model.Task{ID: uuid.New(), TenantID: *admin.TenantID}
		assert.NoError(t, CanDeleteTask(admin, task))
	})

	t.Run("member deletes own assigned task", func(t *testing.T) {
		task := &model.Task{ID: uuid.New(), TenantID: *member.TenantID, AssignedTo: &member.UserID}
		assert.NoError(t, CanDeleteTask(member, task))
	})

	t.Run("member denied unassigned task", func(t *testing.T) {
		task := &model.Task{ID: uuid.New(), TenantID: *member.TenantID}
		err := CanDeleteTask(member, task)
		require.Error(t, err)
		assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	})

	t.Run("member denied someone else's task", func(t *testing.T) {
		otherUser := uuid.New()
		task := &model.Task{ID: uuid.New(), TenantID: *member.TenantID, AssignedTo: &otherUser}
		err := CanDeleteTask(member, task)
		require.Error(t, err)
		assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	})

	t.Run("cross-tenant task is not found", func(t *testing.T) {
		task := &model.Task{ID: uuid.New(), TenantID: uuid.New(), AssignedTo: &member.UserID}
		err := CanDeleteTask(member, task)
		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestScopedTenant(t *testing.T) {
	system := systemIdentity()
	assert.Nil(t, ScopedTenant(system))

	member := tenantIdentity(RoleMember)
	require.NotNil(t, ScopedTenant(member))
	assert.Equal(t, *member.TenantID, *ScopedTenant(member))
}
