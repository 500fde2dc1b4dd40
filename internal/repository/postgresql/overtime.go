package postgresql

import (
	"context"
	"fmt"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/overtime"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/database"
)

type overtimeRepositoryImpl struct {
	db *database.DB
}

func NewOvertimeRepository(db *database.DB) overtime.Repository {
	return &overtimeRepositoryImpl{db: db}
}

// Upsert implements overtime.Repository.
func (r *overtimeRepositoryImpl) Upsert(ctx context.Context, rec overtime.Record) error {
	_, err := GetQuerier(ctx, r.db).Exec(ctx, `
		INSERT INTO overtime_records (
			id, company_id, request_id, employee_id, date, start_time, end_time,
			duration_minutes, reason, approved_at
		)
		VALUES (uuidv7(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO UPDATE SET
			date = EXCLUDED.date,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			duration_minutes = EXCLUDED.duration_minutes,
			reason = EXCLUDED.reason,
			approved_at = EXCLUDED.approved_at
	`,
		rec.CompanyID,
		rec.RequestID,
		rec.EmployeeID,
		rec.Date,
		rec.StartTime,
		rec.EndTime,
		rec.DurationMinutes,
		rec.Reason,
		rec.ApprovedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record overtime for request %s: %w", rec.RequestID, err)
	}
	return nil
}

// List implements overtime.Repository. Ordered by date then employee name.
func (r *overtimeRepositoryImpl) List(ctx context.Context, companyID string, filter overtime.Filter) ([]overtime.Record, error) {
	rows, err := GetQuerier(ctx, r.db).Query(ctx, `
		SELECT ot.id, ot.company_id, ot.request_id, ot.employee_id, ot.date,
			   ot.start_time, ot.end_time, ot.duration_minutes, ot.reason, ot.approved_at,
			   e.full_name, e.employee_code, o.name
		FROM overtime_records ot
		JOIN employees e ON e.id = ot.employee_id
		JOIN organizations o ON o.id = e.organization_id
		WHERE ot.company_id = $1
		  AND ($2::date IS NULL OR ot.date >= $2::date)
		  AND ($3::date IS NULL OR ot.date <= $3::date)
		  AND ($4::uuid IS NULL OR e.organization_id = $4::uuid)
		ORDER BY ot.date, e.full_name, ot.request_id
	`, companyID, filter.From, filter.To, filter.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list overtime records: %w", err)
	}
	defer rows.Close()

	var out []overtime.Record
	for rows.Next() {
		var rec overtime.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.CompanyID,
			&rec.RequestID,
			&rec.EmployeeID,
			&rec.Date,
			&rec.StartTime,
			&rec.EndTime,
			&rec.DurationMinutes,
			&rec.Reason,
			&rec.ApprovedAt,
			&rec.EmployeeName,
			&rec.EmployeeCode,
			&rec.OrganizationName,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
