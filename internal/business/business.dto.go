package business

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	BusinessUser *BusinessUser `json:"businessUser"`
	Token        string        `json:"token"`
}

type CreateStaffRequest struct {
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Password string  `json:"password"`
	Role     Role    `json:"role"`
	BranchID *string `json:"branchId,omitempty"`
}

type UpdateStaffRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}
