package request

import (
	"context"
	"time"
)

type RequestRepository interface {
	// Create inserts r and fills its ID and timestamps.
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, companyID, id string) (Request, error)
	// GetByIDForUpdate locks the request row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, companyID, id string) (Request, error)
	Update(ctx context.Context, r Request) error
	Delete(ctx context.Context, companyID, id string) error
	List(ctx context.Context, companyID string, filter RequestFilter) ([]Request, int64, error)
	// ListPending returns pending requests; a nil companyID spans every company.
	ListPending(ctx context.Context, companyID *string) ([]Request, error)
}

type ApprovalRepository interface {
	// CreateBatch inserts approvals and fills their IDs and timestamps in place.
	CreateBatch(ctx context.Context, approvals []Approval) error
	ListByRequest(ctx context.Context, requestID string) ([]Approval, error)
	// UpdateStatusIfPending writes the status, notes, signature and acted_at of
	// one approval only if it is still pending and returns the rows affected.
	UpdateStatusIfPending(ctx context.Context, a Approval) (int64, error)
	// SkipPending marks every remaining pending approval of a request as skipped.
	SkipPending(ctx context.Context, requestID string, at time.Time) (int64, error)
	// ListActive returns the active step of every pending request in the
	// company. A non-nil approverID narrows it to that approver.
	ListActive(ctx context.Context, companyID string, approverID *string, filter ApprovalFilter) ([]PendingApproval, int64, error)
	ListByApprover(ctx context.Context, companyID, approverID string, filter ApprovalFilter) ([]PendingApproval, int64, error)
}
