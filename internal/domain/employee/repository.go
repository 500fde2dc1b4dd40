package employee

import "context"

type EmployeeRepository interface {
	GetByID(ctx context.Context, companyID, id string) (Employee, error)
	GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]Employee, error)
	// FindByRole lists holders of a job role ordered by full name then id.
	// A nil organizationID searches the whole company.
	FindByRole(ctx context.Context, companyID, roleName string, organizationID *string) ([]Employee, error)
	// FindAboveLevel lists employees of one organization whose job role
	// approval level is strictly greater than level, lowest level first,
	// then by full name and id.
	FindAboveLevel(ctx context.Context, companyID, organizationID string, level int) ([]Employee, error)
}

type OrganizationRepository interface {
	GetByID(ctx context.Context, companyID, id string) (Organization, error)
	// Ancestors returns the organization itself followed by its parents up to the root.
	Ancestors(ctx context.Context, companyID, id string) ([]Organization, error)
}
