package user

type Permission string

const (
	// Requests
	PermissionRequestCreate  Permission = "request.create"
	PermissionRequestViewAll Permission = "request.view_all"
	PermissionRequestManage  Permission = "request.manage"

	// Approvals
	PermissionApprovalViewAll Permission = "approval.view_all"

	// Policies
	PermissionPolicyManage Permission = "policy.manage"

	// Reports
	PermissionOvertimeExport Permission = "overtime.export"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		PermissionRequestCreate,
		PermissionRequestViewAll,
		PermissionRequestManage,
		PermissionApprovalViewAll,
		PermissionPolicyManage,
		PermissionOvertimeExport,
	},
	RoleAdminCabang: {
		PermissionRequestCreate,
		PermissionRequestViewAll,
		PermissionRequestManage,
		PermissionApprovalViewAll,
		PermissionOvertimeExport,
	},
	RoleHRD: {
		PermissionRequestCreate,
		PermissionRequestViewAll,
		PermissionRequestManage,
		PermissionApprovalViewAll,
		PermissionPolicyManage,
		PermissionOvertimeExport,
	},
	RoleEmployee: {
		PermissionRequestCreate,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
