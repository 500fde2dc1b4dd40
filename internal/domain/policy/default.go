package policy

import "github.com/sobat-hris/sobat-backend-go/internal/domain/employee"

// DefaultVersion marks the built-in policy used until a company publishes its own.
const DefaultVersion = 0

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func hrdStep() Step {
	return Step{
		Source:     SourceRole,
		Roles:      []string{employee.JobRoleHRD, employee.JobRoleSuperAdmin},
		Scope:      ScopeCompany,
		SkipIfHeld: true,
	}
}

func managerStep() Step {
	return Step{
		Source: SourceRole,
		Roles:  []string{employee.JobRoleManagerDivisi, employee.JobRoleManager},
		Scope:  ScopeOrganization,
	}
}

func cooStep() Step {
	return Step{Source: SourceRole, Roles: []string{employee.JobRoleCOO}, Scope: ScopeCompany}
}

// Default returns the built-in policy for companyID.
func Default(companyID string) Policy {
	return Policy{
		CompanyID: companyID,
		Version:   DefaultVersion,
		Rules: []Rule{
			{
				Name:          "supervisor",
				HasSupervisor: boolPtr(true),
				Steps:         []Step{{Source: SourceSupervisor}, hrdStep()},
			},
			{
				Name:              "senior_sick_leave",
				MinRequesterLevel: intPtr(2),
				Types:             []string{"leave:sick"},
				Steps:             []Step{cooStep(), hrdStep()},
			},
			{
				Name:              "senior",
				MinRequesterLevel: intPtr(2),
				Steps:             []Step{cooStep()},
			},
			{
				Name:              "supervisor_level",
				MinRequesterLevel: intPtr(1),
				MaxRequesterLevel: intPtr(1),
				Steps:             []Step{managerStep(), hrdStep()},
			},
			{
				Name:              "staff",
				MaxRequesterLevel: intPtr(0),
				Steps: []Step{
					{Source: SourceRole, Roles: []string{employee.JobRoleSPV}, Scope: ScopeOrganization},
					managerStep(),
					hrdStep(),
				},
			},
		},
	}
}
