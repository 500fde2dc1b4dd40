package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/database"
)

const requestColumns = `
	r.id, r.company_id, r.employee_id, r.type, r.title, r.description,
	r.start_date, r.end_date, r.amount::text, r.status, r.detail, r.attachments,
	r.policy_version, r.rejection_reason, r.admin_note,
	r.submitted_at, r.decided_at, r.created_at, r.updated_at,
	e.full_name`

const selectRequest = `SELECT` + requestColumns + `
	FROM requests r
	JOIN employees e ON e.id = r.employee_id
`

type requestRepositoryImpl struct {
	db *database.DB
}

func NewRequestRepository(db *database.DB) request.RequestRepository {
	return &requestRepositoryImpl{db: db}
}

// scanRequest reads requestColumns followed by any extra destinations.
func scanRequest(row pgx.Row, extra ...interface{}) (request.Request, error) {
	var (
		r           request.Request
		amount      *string
		detail      []byte
		attachments []byte
	)
	dest := []interface{}{
		&r.ID,
		&r.CompanyID,
		&r.EmployeeID,
		&r.Type,
		&r.Title,
		&r.Description,
		&r.StartDate,
		&r.EndDate,
		&amount,
		&r.Status,
		&detail,
		&attachments,
		&r.PolicyVersion,
		&r.RejectionReason,
		&r.AdminNote,
		&r.SubmittedAt,
		&r.DecidedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.EmployeeName,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return request.Request{}, err
	}

	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return request.Request{}, fmt.Errorf("invalid amount on request %s: %w", r.ID, err)
		}
		r.Amount = &d
	}
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &r.Detail); err != nil {
			return request.Request{}, fmt.Errorf("invalid detail on request %s: %w", r.ID, err)
		}
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &r.Attachments); err != nil {
			return request.Request{}, fmt.Errorf("invalid attachments on request %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func amountArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func encodeDetail(r request.Request) ([]byte, []byte, error) {
	detail, err := json.Marshal(r.Detail)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode detail: %w", err)
	}
	atts := r.Attachments
	if atts == nil {
		atts = []request.Attachment{}
	}
	attachments, err := json.Marshal(atts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode attachments: %w", err)
	}
	return detail, attachments, nil
}

// Create implements request.RequestRepository.
func (rr *requestRepositoryImpl) Create(ctx context.Context, r *request.Request) error {
	detail, attachments, err := encodeDetail(*r)
	if err != nil {
		return err
	}

	err = GetQuerier(ctx, rr.db).QueryRow(ctx, `
		INSERT INTO requests (
			id, company_id, employee_id, type, title, description, start_date, end_date,
			amount, status, detail, attachments, policy_version, submitted_at, created_at, updated_at
		)
		VALUES (uuidv7(), $1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`,
		r.CompanyID,
		r.EmployeeID,
		string(r.Type),
		r.Title,
		r.Description,
		r.StartDate,
		r.EndDate,
		amountArg(r.Amount),
		string(r.Status),
		detail,
		attachments,
		r.PolicyVersion,
		r.SubmittedAt,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (rr *requestRepositoryImpl) get(ctx context.Context, companyID, id, suffix string) (request.Request, error) {
	row := GetQuerier(ctx, rr.db).QueryRow(ctx, selectRequest+`WHERE r.company_id = $1 AND r.id = $2`+suffix, companyID, id)
	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return request.Request{}, request.ErrRequestNotFound
		}
		return request.Request{}, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	return r, nil
}

// GetByID implements request.RequestRepository.
func (rr *requestRepositoryImpl) GetByID(ctx context.Context, companyID, id string) (request.Request, error) {
	return rr.get(ctx, companyID, id, "")
}

// GetByIDForUpdate implements request.RequestRepository. Only the request
// row is locked; the employee row is read as is.
func (rr *requestRepositoryImpl) GetByIDForUpdate(ctx context.Context, companyID, id string) (request.Request, error) {
	return rr.get(ctx, companyID, id, " FOR UPDATE OF r")
}

// Update implements request.RequestRepository.
func (rr *requestRepositoryImpl) Update(ctx context.Context, r request.Request) error {
	detail, attachments, err := encodeDetail(r)
	if err != nil {
		return err
	}

	tag, err := GetQuerier(ctx, rr.db).Exec(ctx, `
		UPDATE requests SET
			title = $3,
			description = $4,
			start_date = $5,
			end_date = $6,
			amount = $7::numeric,
			status = $8,
			detail = $9,
			attachments = $10,
			policy_version = $11,
			rejection_reason = $12,
			admin_note = $13,
			submitted_at = $14,
			decided_at = $15,
			updated_at = NOW()
		WHERE company_id = $1 AND id = $2
	`,
		r.CompanyID,
		r.ID,
		r.Title,
		r.Description,
		r.StartDate,
		r.EndDate,
		amountArg(r.Amount),
		string(r.Status),
		detail,
		attachments,
		r.PolicyVersion,
		r.RejectionReason,
		r.AdminNote,
		r.SubmittedAt,
		r.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return request.ErrRequestNotFound
	}
	return nil
}

// Delete implements request.RequestRepository. Only drafts can be removed.
func (rr *requestRepositoryImpl) Delete(ctx context.Context, companyID, id string) error {
	tag, err := GetQuerier(ctx, rr.db).Exec(ctx,
		`DELETE FROM requests WHERE company_id = $1 AND id = $2 AND status = 'draft'`, companyID, id)
	if err != nil {
		return fmt.Errorf("failed to delete request %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return request.ErrRequestNotFound
	}
	return nil
}

// List implements request.RequestRepository.
func (rr *requestRepositoryImpl) List(ctx context.Context, companyID string, filter request.RequestFilter) ([]request.Request, int64, error) {
	q := GetQuerier(ctx, rr.db)

	conds := []string{"r.company_id = $1"}
	args := []interface{}{companyID}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.EmployeeID != nil {
		add("r.employee_id = $%d", *filter.EmployeeID)
	}
	if filter.Status != nil {
		add("r.status = $%d", *filter.Status)
	}
	if filter.Type != nil {
		add("r.type = $%d", *filter.Type)
	}
	if filter.From != nil {
		add("r.submitted_at >= $%d::date", *filter.From)
	}
	if filter.To != nil {
		add("r.submitted_at < $%d::date + 1", *filter.To)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM requests r`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := selectRequest + where + fmt.Sprintf(`
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []request.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// ListPending implements request.RequestRepository.
func (rr *requestRepositoryImpl) ListPending(ctx context.Context, companyID *string) ([]request.Request, error) {
	rows, err := GetQuerier(ctx, rr.db).Query(ctx, selectRequest+`
		WHERE r.status = 'pending' AND ($1::uuid IS NULL OR r.company_id = $1::uuid)
		ORDER BY r.submitted_at, r.id
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var out []request.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
