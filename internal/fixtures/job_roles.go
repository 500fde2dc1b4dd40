package fixtures

import "github.com/sobat-hris/sobat-backend-go/internal/domain/employee"

func intPtr(i int) *int { return &i }

// DefaultJobRoles is the job role ladder the built-in approval policy expects.
// Roles without an approval level rank below spv.
func DefaultJobRoles(companyID string) []employee.JobRole {
	return []employee.JobRole{
		{CompanyID: companyID, Name: "crew", DisplayName: "Crew"},
		{CompanyID: companyID, Name: "leader", DisplayName: "Leader"},
		{CompanyID: companyID, Name: "staff", DisplayName: "Staff"},
		{CompanyID: companyID, Name: employee.JobRoleSPV, DisplayName: "Supervisor", ApprovalLevel: intPtr(1)},
		{CompanyID: companyID, Name: employee.JobRoleManagerDivisi, DisplayName: "Manager Divisi", ApprovalLevel: intPtr(2)},
		{CompanyID: companyID, Name: employee.JobRoleManager, DisplayName: "Manager", ApprovalLevel: intPtr(2)},
		{CompanyID: companyID, Name: employee.JobRoleCOO, DisplayName: "Chief Operating Officer", ApprovalLevel: intPtr(3)},
		{CompanyID: companyID, Name: employee.JobRoleHRD, DisplayName: "HRD", ApprovalLevel: intPtr(3)},
		{CompanyID: companyID, Name: employee.JobRoleSuperAdmin, DisplayName: "Super Admin", ApprovalLevel: intPtr(3)},
	}
}
