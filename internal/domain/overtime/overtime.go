package overtime

import (
	"context"
	"time"
)

// Record is the payroll-facing trace of an approved overtime request.
type Record struct {
	ID              string
	CompanyID       string
	RequestID       string
	EmployeeID      string
	Date            time.Time
	StartTime       string
	EndTime         string
	DurationMinutes int
	Reason          string
	ApprovedAt      time.Time

	// Join
	EmployeeName     string
	EmployeeCode     string
	OrganizationName string
}

type Filter struct {
	From           *time.Time
	To             *time.Time
	OrganizationID *string
}

type Repository interface {
	// Upsert writes one record per request; approving again replaces it.
	Upsert(ctx context.Context, r Record) error
	List(ctx context.Context, companyID string, filter Filter) ([]Record, error)
}
