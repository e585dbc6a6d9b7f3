package business

import "github.com/emreisik/kahveqr/internal/apperr"

// Pure authorization rules for the business side. Every function takes the
// acting user plus the target's identifying fields and returns nil or a
// Forbidden/Validation error; no storage access happens here.

// SameBrand rejects any target whose brand differs from the actor's,
// regardless of role.
func SameBrand(actor *BusinessUser, brandID string) error {
	if actor.BrandID == nil || *actor.BrandID != brandID {
		return apperr.New(apperr.Forbidden, "Resource belongs to another brand")
	}
	return nil
}

// CanViewStaff reports whether the actor may list staff accounts at all.
// The listing itself is additionally scoped by StaffListScope.
func CanViewStaff(actor *BusinessUser) error {
	switch actor.Role {
	case RoleOwner, RoleBranchManager:
		return nil
	case RoleStaff:
		return apperr.New(apperr.Forbidden, "Insufficient permissions")
	}
	return apperr.New(apperr.Forbidden, "Insufficient permissions")
}

// CheckCreateStaff validates a staff-creation request against the actor's
// role. Owners may create any role but must name a branch; branch managers
// may only create STAFF inside their own branch.
func CheckCreateStaff(actor *BusinessUser, req *CreateStaffRequest) error {
	switch actor.Role {
	case RoleOwner:
		if req.BranchID == nil {
			return apperr.New(apperr.Validation, "Branch selection is required")
		}
		return nil
	case RoleBranchManager:
		if req.Role != RoleStaff {
			return apperr.New(apperr.Forbidden, "Branch managers can only add staff members")
		}
		if req.BranchID != nil && (actor.BranchID == nil || *req.BranchID != *actor.BranchID) {
			return apperr.New(apperr.Forbidden, "You can only add staff to your own branch")
		}
		return nil
	case RoleStaff:
		return apperr.New(apperr.Forbidden, "Insufficient permissions")
	}
	return apperr.New(apperr.Forbidden, "Insufficient permissions")
}

// CheckUpdateStaff validates an update against both the actor's scope and
// self-protection rules: branch managers touch only staff they created and
// cannot change roles; owners cannot demote or deactivate themselves.
func CheckUpdateStaff(actor, target *BusinessUser, req *UpdateStaffRequest) error {
	if actor.Role == RoleBranchManager {
		if target.CreatedBy == nil || *target.CreatedBy != actor.ID {
			return apperr.New(apperr.Forbidden, "You are not allowed to edit this staff member")
		}
		if req.Role != nil && *req.Role != RoleStaff {
			return apperr.New(apperr.Forbidden, "You cannot change a staff member's role")
		}
	}

	if actor.Role == RoleOwner && target.ID == actor.ID {
		if req.Role != nil && *req.Role != RoleOwner {
			return apperr.New(apperr.Forbidden, "You cannot change your own role")
		}
		if req.IsActive != nil && !*req.IsActive {
			return apperr.New(apperr.Forbidden, "You cannot deactivate your own account")
		}
	}

	return nil
}

// CheckDeactivateStaff guards the soft-delete path.
func CheckDeactivateStaff(actor, target *BusinessUser) error {
	if target.ID == actor.ID {
		return apperr.New(apperr.Forbidden, "You cannot delete your own account")
	}
	if actor.Role == RoleBranchManager {
		if target.CreatedBy == nil || *target.CreatedBy != actor.ID {
			return apperr.New(apperr.Forbidden, "You are not allowed to delete this staff member")
		}
	}
	return nil
}

// CheckResetStaffPassword mirrors the deactivation scoping: branch managers
// may only reset passwords for staff they created.
func CheckResetStaffPassword(actor, target *BusinessUser) error {
	if actor.Role == RoleBranchManager {
		if target.CreatedBy == nil || *target.CreatedBy != actor.ID {
			return apperr.New(apperr.Forbidden, "You are not allowed to reset this staff member's password")
		}
	}
	return nil
}

// CheckUpdateBranch allows owners to edit any branch of their brand and
// branch managers only their own.
func CheckUpdateBranch(actor *BusinessUser, branchBrandID, branchID string) error {
	if err := SameBrand(actor, branchBrandID); err != nil {
		return apperr.New(apperr.Forbidden, "You are not allowed to edit this branch")
	}
	if actor.Role == RoleBranchManager && (actor.BranchID == nil || *actor.BranchID != branchID) {
		return apperr.New(apperr.Forbidden, "You can only edit your own branch")
	}
	return nil
}

// CheckDeleteBranch is owner-only within the brand. Emptiness of the branch
// is a storage-side check done by the caller.
func CheckDeleteBranch(actor *BusinessUser, branchBrandID string) error {
	if err := SameBrand(actor, branchBrandID); err != nil {
		return apperr.New(apperr.Forbidden, "You are not allowed to delete this branch")
	}
	return nil
}
