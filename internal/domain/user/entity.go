package user

import "time"

// Role is the access role carried in tokens. It decides which endpoints a user
// may call and is unrelated to the job role used for approval chains.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"  // Full access across the company
	RoleAdminCabang Role = "admin_cabang" // Branch administrator
	RoleHRD         Role = "hrd"          // Human resources
	RoleEmployee    Role = "employee"     // Regular employee
)

func (r Role) Valid() bool {
	_, ok := RolePermissions[r]
	return ok
}

type User struct {
	ID           string
	CompanyID    *string
	Email        string
	PasswordHash *string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Join
	EmployeeID *string
}

// IsAdmin reports whether the user oversees every request in the company.
func (u *User) IsAdmin() bool {
	return HasPermission(u.Role, PermissionApprovalViewAll)
}
