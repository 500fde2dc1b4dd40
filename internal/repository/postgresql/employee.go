package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/employee"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/database"
)

const selectEmployee = `
	SELECT e.id, e.company_id, e.user_id, e.organization_id, e.job_role_id, e.supervisor_id,
		   e.employee_code, e.full_name, e.email, e.created_at, e.updated_at,
		   jr.name, jr.approval_level, o.name
	FROM employees e
	JOIN job_roles jr ON jr.id = e.job_role_id
	JOIN organizations o ON o.id = e.organization_id
`

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var e employee.Employee
	err := row.Scan(
		&e.ID,
		&e.CompanyID,
		&e.UserID,
		&e.OrganizationID,
		&e.JobRoleID,
		&e.SupervisorID,
		&e.EmployeeCode,
		&e.FullName,
		&e.Email,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.JobRoleName,
		&e.ApprovalLevel,
		&e.OrganizationName,
	)
	return e, err
}

func (r *employeeRepositoryImpl) list(ctx context.Context, query string, args ...interface{}) ([]employee.Employee, error) {
	rows, err := GetQuerier(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []employee.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByID implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) GetByID(ctx context.Context, companyID, id string) (employee.Employee, error) {
	row := GetQuerier(ctx, r.db).QueryRow(ctx, selectEmployee+`WHERE e.company_id = $1 AND e.id = $2`, companyID, id)
	e, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee %s: %w", id, err)
	}
	return e, nil
}

// GetByIDs implements employee.EmployeeRepository. Unknown ids are absent from the map.
func (r *employeeRepositoryImpl) GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]employee.Employee, error) {
	out := make(map[string]employee.Employee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	list, err := r.list(ctx, selectEmployee+`WHERE e.company_id = $1 AND e.id = ANY($2::uuid[])`, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get employees: %w", err)
	}
	for _, e := range list {
		out[e.ID] = e
	}
	return out, nil
}

// FindByRole implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) FindByRole(ctx context.Context, companyID, roleName string, organizationID *string) ([]employee.Employee, error) {
	list, err := r.list(ctx, selectEmployee+`
		WHERE e.company_id = $1
		  AND jr.name = $2
		  AND ($3::uuid IS NULL OR e.organization_id = $3::uuid)
		ORDER BY e.full_name, e.id
	`, companyID, roleName, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s holders: %w", roleName, err)
	}
	return list, nil
}

// FindAboveLevel implements employee.EmployeeRepository.
func (r *employeeRepositoryImpl) FindAboveLevel(ctx context.Context, companyID, organizationID string, level int) ([]employee.Employee, error) {
	list, err := r.list(ctx, selectEmployee+`
		WHERE e.company_id = $1
		  AND e.organization_id = $2
		  AND COALESCE(jr.approval_level, 0) > $3
		ORDER BY COALESCE(jr.approval_level, 0), e.full_name, e.id
	`, companyID, organizationID, level)
	if err != nil {
		return nil, fmt.Errorf("failed to find employees above level %d: %w", level, err)
	}
	return list, nil
}

type organizationRepositoryImpl struct {
	db *database.DB
}

func NewOrganizationRepository(db *database.DB) employee.OrganizationRepository {
	return &organizationRepositoryImpl{db: db}
}

// GetByID implements employee.OrganizationRepository.
func (r *organizationRepositoryImpl) GetByID(ctx context.Context, companyID, id string) (employee.Organization, error) {
	var o employee.Organization
	err := GetQuerier(ctx, r.db).QueryRow(ctx, `
		SELECT id, company_id, name, code, parent_id
		FROM organizations
		WHERE company_id = $1 AND id = $2
	`, companyID, id).Scan(&o.ID, &o.CompanyID, &o.Name, &o.Code, &o.ParentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Organization{}, employee.ErrOrganizationNotFound
		}
		return employee.Organization{}, fmt.Errorf("failed to get organization %s: %w", id, err)
	}
	return o, nil
}

// Ancestors implements employee.OrganizationRepository. The depth guard stops
// a malformed parent cycle from recursing forever.
func (r *organizationRepositoryImpl) Ancestors(ctx context.Context, companyID, id string) ([]employee.Organization, error) {
	rows, err := GetQuerier(ctx, r.db).Query(ctx, `
		WITH RECURSIVE chain AS (
			SELECT id, company_id, name, code, parent_id, 0 AS depth
			FROM organizations
			WHERE company_id = $1 AND id = $2
			UNION ALL
			SELECT o.id, o.company_id, o.name, o.code, o.parent_id, c.depth + 1
			FROM organizations o
			JOIN chain c ON o.id = c.parent_id
			WHERE o.company_id = $1 AND c.depth < 32
		)
		SELECT id, company_id, name, code, parent_id FROM chain ORDER BY depth
	`, companyID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to walk organization %s: %w", id, err)
	}
	defer rows.Close()

	var out []employee.Organization
	for rows.Next() {
		var o employee.Organization
		if err := rows.Scan(&o.ID, &o.CompanyID, &o.Name, &o.Code, &o.ParentID); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, employee.ErrOrganizationNotFound
	}
	return out, nil
}
