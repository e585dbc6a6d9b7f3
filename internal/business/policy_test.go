package business

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emreisik/kahveqr/internal/apperr"
)

func ptr[T any](v T) *T { return &v }

func actorWith(role Role, id, brandID string, branchID *string) *BusinessUser {
	return &BusinessUser{
		ID:       id,
		Role:     role,
		BrandID:  &brandID,
		BranchID: branchID,
		IsActive: true,
	}
}

func TestSameBrand(t *testing.T) {
	owner := actorWith(RoleOwner, "o-1", "brand-1", nil)

	assert.NoError(t, SameBrand(owner, "brand-1"))
	assert.Error(t, SameBrand(owner, "brand-2"))

	brandless := &BusinessUser{ID: "x", Role: RoleOwner}
	assert.Error(t, SameBrand(brandless, "brand-1"))
}

func TestCheckCreateStaff_Owner(t *testing.T) {
	owner := actorWith(RoleOwner, "o-1", "brand-1", nil)

	err := CheckCreateStaff(owner, &CreateStaffRequest{Role: RoleStaff})
	require.Error(t, err, "owner without a branch selection must be rejected")

	err = CheckCreateStaff(owner, &CreateStaffRequest{Role: RoleBranchManager, BranchID: ptr("branch-1")})
	assert.NoError(t, err, "owner may create any role once a branch is named")
}

func TestCheckCreateStaff_BranchManager(t *testing.T) {
	manager := actorWith(RoleBranchManager, "m-1", "brand-1", ptr("branch-1"))

	assert.NoError(t, CheckCreateStaff(manager, &CreateStaffRequest{Role: RoleStaff}))
	assert.NoError(t, CheckCreateStaff(manager, &CreateStaffRequest{Role: RoleStaff, BranchID: ptr("branch-1")}))

	err := CheckCreateStaff(manager, &CreateStaffRequest{Role: RoleBranchManager})
	require.Error(t, err)

	err = CheckCreateStaff(manager, &CreateStaffRequest{Role: RoleStaff, BranchID: ptr("branch-2")})
	require.Error(t, err, "manager cannot place staff in another branch")
}

func TestCheckCreateStaff_StaffForbidden(t *testing.T) {
	staff := actorWith(RoleStaff, "s-1", "brand-1", ptr("branch-1"))

	err := CheckCreateStaff(staff, &CreateStaffRequest{Role: RoleStaff})
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Forbidden, appErr.Kind)
}

func TestCheckUpdateStaff_ManagerCreatorScope(t *testing.T) {
	manager := actorWith(RoleBranchManager, "m-1", "brand-1", ptr("branch-1"))

	mine := &BusinessUser{ID: "s-1", Role: RoleStaff, CreatedBy: ptr("m-1")}
	theirs := &BusinessUser{ID: "s-2", Role: RoleStaff, CreatedBy: ptr("m-2")}
	orphan := &BusinessUser{ID: "s-3", Role: RoleStaff}

	assert.NoError(t, CheckUpdateStaff(manager, mine, &UpdateStaffRequest{Name: ptr("New")}))
	assert.Error(t, CheckUpdateStaff(manager, theirs, &UpdateStaffRequest{Name: ptr("New")}))
	assert.Error(t, CheckUpdateStaff(manager, orphan, &UpdateStaffRequest{Name: ptr("New")}))

	err := CheckUpdateStaff(manager, mine, &UpdateStaffRequest{Role: ptr(RoleBranchManager)})
	assert.Error(t, err, "manager cannot promote staff")
}

func TestCheckUpdateStaff_OwnerSelfProtection(t *testing.T) {
	owner := actorWith(RoleOwner, "o-1", "brand-1", nil)
	self := &BusinessUser{ID: "o-1", Role: RoleOwner}

	assert.Error(t, CheckUpdateStaff(owner, self, &UpdateStaffRequest{Role: ptr(RoleStaff)}))
	assert.Error(t, CheckUpdateStaff(owner, self, &UpdateStaffRequest{IsActive: ptr(false)}))
	assert.NoError(t, CheckUpdateStaff(owner, self, &UpdateStaffRequest{Name: ptr("Still Me")}))
}

func TestCheckDeactivateStaff(t *testing.T) {
	owner := actorWith(RoleOwner, "o-1", "brand-1", nil)
	manager := actorWith(RoleBranchManager, "m-1", "brand-1", ptr("branch-1"))

	assert.Error(t, CheckDeactivateStaff(owner, &BusinessUser{ID: "o-1"}), "self delete")
	assert.NoError(t, CheckDeactivateStaff(owner, &BusinessUser{ID: "s-1", CreatedBy: ptr("m-2")}))

	assert.NoError(t, CheckDeactivateStaff(manager, &BusinessUser{ID: "s-1", CreatedBy: ptr("m-1")}))
	assert.Error(t, CheckDeactivateStaff(manager, &BusinessUser{ID: "s-2", CreatedBy: ptr("o-1")}))
}

func TestCheckUpdateBranch(t *testing.T) {
	owner := actorWith(RoleOwner, "o-1", "brand-1", nil)
	manager := actorWith(RoleBranchManager, "m-1", "brand-1", ptr("branch-1"))

	assert.NoError(t, CheckUpdateBranch(owner, "brand-1", "branch-2"))
	assert.Error(t, CheckUpdateBranch(owner, "brand-2", "branch-9"))

	assert.NoError(t, CheckUpdateBranch(manager, "brand-1", "branch-1"))
	assert.Error(t, CheckUpdateBranch(manager, "brand-1", "branch-2"))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleOwner.Valid())
	assert.True(t, RoleBranchManager.Valid())
	assert.True(t, RoleStaff.Valid())
	assert.False(t, Role("ADMIN").Valid())
	assert.False(t, Role("").Valid())
}
