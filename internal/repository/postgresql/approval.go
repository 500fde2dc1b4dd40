package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/database"
)

const approvalColumns = `
	a.id, a.request_id, a.approver_id, a.level, a.status, a.notes,
	a.signature_blob_id, a.acted_at, a.created_at, a.updated_at, ap.full_name`

// approvalJoin carries a.*, the request as r with its requester as e, and
// the approver as ap.
const approvalJoin = `
	FROM approvals a
	JOIN requests r ON r.id = a.request_id
	JOIN employees e ON e.id = r.employee_id
	JOIN employees ap ON ap.id = a.approver_id
`

type approvalRepositoryImpl struct {
	db *database.DB
}

func NewApprovalRepository(db *database.DB) request.ApprovalRepository {
	return &approvalRepositoryImpl{db: db}
}

func approvalDest(a *request.Approval) []interface{} {
	return []interface{}{
		&a.ID,
		&a.RequestID,
		&a.ApproverID,
		&a.Level,
		&a.Status,
		&a.Notes,
		&a.SignatureBlobID,
		&a.ActedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.ApproverName,
	}
}

// CreateBatch implements request.ApprovalRepository.
func (r *approvalRepositoryImpl) CreateBatch(ctx context.Context, approvals []request.Approval) error {
	q := GetQuerier(ctx, r.db)
	for i := range approvals {
		a := &approvals[i]
		err := q.QueryRow(ctx, `
			INSERT INTO approvals (id, request_id, approver_id, level, status, created_at, updated_at)
			VALUES (uuidv7(), $1, $2, $3, $4, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`, a.RequestID, a.ApproverID, a.Level, string(a.Status)).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create approval level %d: %w", a.Level, err)
		}
	}
	return nil
}

// ListByRequest implements request.ApprovalRepository.
func (r *approvalRepositoryImpl) ListByRequest(ctx context.Context, requestID string) ([]request.Approval, error) {
	rows, err := GetQuerier(ctx, r.db).Query(ctx, `
		SELECT `+approvalColumns+`
		FROM approvals a
		JOIN employees ap ON ap.id = a.approver_id
		WHERE a.request_id = $1
		ORDER BY a.level
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var out []request.Approval
	for rows.Next() {
		var a request.Approval
		if err := rows.Scan(approvalDest(&a)...); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateStatusIfPending implements request.ApprovalRepository.
func (r *approvalRepositoryImpl) UpdateStatusIfPending(ctx context.Context, a request.Approval) (int64, error) {
	tag, err := GetQuerier(ctx, r.db).Exec(ctx, `
		UPDATE approvals
		SET status = $2, notes = $3, signature_blob_id = $4, acted_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, a.ID, string(a.Status), a.Notes, a.SignatureBlobID, a.ActedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to update approval %s: %w", a.ID, err)
	}
	return tag.RowsAffected(), nil
}

// SkipPending implements request.ApprovalRepository.
func (r *approvalRepositoryImpl) SkipPending(ctx context.Context, requestID string, at time.Time) (int64, error) {
	tag, err := GetQuerier(ctx, r.db).Exec(ctx, `
		UPDATE approvals
		SET status = 'skipped', updated_at = $2
		WHERE request_id = $1 AND status = 'pending'
	`, requestID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to skip approvals of %s: %w", requestID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *approvalRepositoryImpl) listJoined(ctx context.Context, where string, filter request.ApprovalFilter, order string, args ...interface{}) ([]request.PendingApproval, int64, error) {
	q := GetQuerier(ctx, r.db)

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*)`+approvalJoin+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count approvals: %w", err)
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := `SELECT` + requestColumns + `,` + approvalColumns + approvalJoin + where +
		fmt.Sprintf(` ORDER BY %s LIMIT $%d OFFSET $%d`, order, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var out []request.PendingApproval
	for rows.Next() {
		var a request.Approval
		req, err := scanRequest(rows, approvalDest(&a)...)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, request.PendingApproval{Approval: a, Request: req})
	}
	return out, total, rows.Err()
}

// ListActive implements request.ApprovalRepository.
func (r *approvalRepositoryImpl) ListActive(ctx context.Context, companyID string, approverID *string, filter request.ApprovalFilter) ([]request.PendingApproval, int64, error) {
	where := `
		WHERE r.company_id = $1
		  AND r.status = 'pending'
		  AND a.status = 'pending'
		  AND a.level = (
			SELECT MIN(p.level) FROM approvals p
			WHERE p.request_id = a.request_id AND p.status = 'pending'
		  )
		  AND ($2::uuid IS NULL OR a.approver_id = $2::uuid)
	`
	return r.listJoined(ctx, where, filter, "r.submitted_at, r.id", companyID, approverID)
}

// ListByApprover implements request.ApprovalRepository.
func (r *approvalRepositoryImpl) ListByApprover(ctx context.Context, companyID, approverID string, filter request.ApprovalFilter) ([]request.PendingApproval, int64, error) {
	where := `
		WHERE r.company_id = $1
		  AND a.approver_id = $2
		  AND ($3::text IS NULL OR a.status = $3::text)
	`
	return r.listJoined(ctx, where, filter, "a.created_at DESC, a.id DESC", companyID, approverID, filter.Status)
}
