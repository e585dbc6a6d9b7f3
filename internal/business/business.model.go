package business

import "time"

// Role is the closed set of business account roles. Authorization rules
// switch exhaustively over these values.
type Role string

const (
	RoleOwner         Role = "OWNER"
	RoleBranchManager Role = "BRANCH_MANAGER"
	RoleStaff         Role = "STAFF"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleBranchManager, RoleStaff:
		return true
	}
	return false
}

// BusinessUser is a staff account scoped to a brand and, for non-owners, a
// branch. Owners carry a nil BranchID and act brand-wide.
type BusinessUser struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	BrandID      *string    `json:"brandId"`
	BranchID     *string    `json:"branchId"`
	IsActive     bool       `json:"isActive"`
	CreatedBy    *string    `json:"createdBy,omitempty"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// StaffMember is the directory listing shape, without credentials.
type StaffMember struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"isActive"`
	CreatedBy   *string    `json:"createdBy,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	BrandName   string     `json:"brandName"`
	BranchName  *string    `json:"branchName,omitempty"`
}
