package employee

import "time"

// Job role names referenced by the built-in approval policy.
const (
	JobRoleSPV           = "spv"
	JobRoleManagerDivisi = "manager_divisi"
	JobRoleManager       = "manager"
	JobRoleCOO           = "coo"
	JobRoleHRD           = "hrd"
	JobRoleSuperAdmin    = "super_admin"
)

type Employee struct {
	ID             string
	CompanyID      string
	UserID         *string
	OrganizationID string
	JobRoleID      string
	SupervisorID   *string
	EmployeeCode   string
	FullName       string
	Email          string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Join
	JobRoleName      string
	ApprovalLevel    *int
	OrganizationName string
}

// Level is the job role approval level; roles without one rank as 0.
func (e Employee) Level() int {
	if e.ApprovalLevel == nil {
		return 0
	}
	return *e.ApprovalLevel
}

// Organization is a division. ParentID links it into the company tree.
type Organization struct {
	ID        string
	CompanyID string
	Name      string
	Code      string
	ParentID  *string
}

type JobRole struct {
	ID            string
	CompanyID     string
	Name          string
	DisplayName   string
	ApprovalLevel *int
}
